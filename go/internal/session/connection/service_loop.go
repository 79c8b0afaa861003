package connection

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// serviceLoop dials the server and then owns every write on the connection
// until it is stopped or the transport fails. There is no internal retry.
func (m *Manager) serviceLoop(run *serviceRun, started chan<- struct{}) {
	defer close(run.done)
	close(started)

	conn, err := m.dial(run)
	if err != nil {
		select {
		case <-run.stop:
			m.setState(StateDisconnected)
			log.Debug().Str("url", run.url).Msg("connect abandoned by disconnect")
		default:
			m.setState(StateFailed)
			log.Error().Err(err).Str("url", run.url).Msg("failed to connect to game server")
		}
		return
	}
	defer conn.Close()

	m.configureRead(conn)
	m.setState(StateConnected)
	log.Info().Str("url", run.url).Msg("connected to game server")
	m.notifyConnection(true)

	readErr := make(chan error, 1)
	go m.readLoop(conn, readErr)

	ticker := m.clock.NewTicker(m.config.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-run.stop:
			m.setState(StateDisconnected)
			deadline := time.Now().Add(m.config.WriteTimeout)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
				log.Debug().Err(err).Msg("failed to send close frame")
			}
			conn.Close()
			<-readErr
			m.notifyConnection(false)
			return

		case err := <-readErr:
			m.setState(StateDisconnected)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Str("url", run.url).Msg("connection closed unexpectedly")
			} else {
				log.Info().Err(err).Str("url", run.url).Msg("connection closed")
			}
			m.notifyConnection(false)
			return

		case <-m.wakeCh:
			m.drain(conn)

		case <-ticker.Chan():
			m.keepAlive(conn)
		}
	}
}

func (m *Manager) dial(run *serviceRun) (*websocket.Conn, error) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	timer := m.clock.NewTimer(m.config.ConnectTimeout)
	defer timer.Stop()

	go func() {
		select {
		case <-timer.Chan():
			cancel(ErrConnectTimeout)
		case <-run.stop:
			cancel(context.Canceled)
		case <-ctx.Done():
		}
	}()

	conn, _, err := m.dialer.DialContext(ctx, run.url, nil)
	if err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrConnectTimeout) {
			return nil, ErrConnectTimeout
		}
		return nil, err
	}
	return conn, nil
}

func (m *Manager) configureRead(conn *websocket.Conn) {
	if m.config.MaxMessageSize > 0 {
		conn.SetReadLimit(m.config.MaxMessageSize)
	}
	if m.config.ReadTimeout <= 0 {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(m.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(m.config.ReadTimeout))
	})
}

// readLoop delivers complete messages; continuation frames are reassembled
// by the websocket library before ReadMessage returns.
func (m *Manager) readLoop(conn *websocket.Conn, readErr chan<- error) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		if m.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(m.config.ReadTimeout))
		}
		if messageType != websocket.TextMessage {
			log.Debug().Int("message_type", messageType).Msg("ignoring non-text frame")
			continue
		}
		m.received.Add(1)
		m.notifyMessage(string(data))
	}
}

// drain writes up to MaxBatch queued messages in FIFO order and re-arms the
// wake-up if more remain.
func (m *Manager) drain(conn *websocket.Conn) {
	batch, remaining := m.dequeue(m.config.MaxBatch)
	for _, text := range batch {
		_ = conn.SetWriteDeadline(time.Now().Add(m.config.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			m.writeErrors.Add(1)
			log.Error().Err(err).Msg("failed to write message to game server")
			m.notifyWriteError(err)
			continue
		}
		m.sent.Add(1)
	}
	if remaining > 0 {
		m.wake()
	}
}

func (m *Manager) keepAlive(conn *websocket.Conn) {
	deadline := time.Now().Add(m.config.WriteTimeout)
	if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		m.writeErrors.Add(1)
		log.Error().Err(err).Msg("failed to send keep-alive")
		m.notifyWriteError(err)
		return
	}
	log.Debug().Msg("keep-alive sent")
}
