package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gesturegame/go/internal/session/connection"
	"github.com/mcdev12/gesturegame/go/internal/session/display"
	"github.com/mcdev12/gesturegame/go/internal/session/input"
	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
	"github.com/mcdev12/gesturegame/go/internal/session/room"
	"github.com/mcdev12/gesturegame/go/internal/session/round"
	"github.com/mcdev12/gesturegame/go/internal/session/router"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyConnected = errors.New("connection already active")
	ErrConnectFailed    = errors.New("connect failed")
)

// Server is the game server address
type Server struct {
	Host string
	Port int
	Path string
	TLS  bool
}

// Config holds configuration for the device session service
type Config struct {
	Server         Server
	Connection     connection.Config
	Room           room.Config
	Round          round.Config
	Relay          input.RelayConfig
	ConfirmWindow  time.Duration
	RequireConfirm bool
}

// DefaultConfig returns default configuration for the session service
func DefaultConfig() Config {
	return Config{
		Server:         Server{Host: "localhost", Port: 3000, Path: "/"},
		Connection:     connection.DefaultConfig(),
		Room:           room.DefaultConfig(),
		Round:          round.DefaultConfig(),
		Relay:          input.DefaultRelayConfig(),
		ConfirmWindow:  input.DefaultConfirmWindow,
		RequireConfirm: true,
	}
}

// Option configures a Service.
type Option func(*options)

type options struct {
	clock    clockwork.Clock
	deviceID string
	strategy round.AutoPlayStrategy
}

// WithClock drives every timer in the service from clock.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithDeviceID fixes the device id.
func WithDeviceID(id string) Option {
	return func(o *options) { o.deviceID = id }
}

// WithAutoPlayStrategy replaces the random auto-play strategy.
func WithAutoPlayStrategy(strategy round.AutoPlayStrategy) Option {
	return func(o *options) { o.strategy = strategy }
}

// Service wires the connection, room session, round state, router and input
// together for one device.
type Service struct {
	server  Server
	conn    *connection.Manager
	session *room.Manager
	rounds  *round.State
	router  *router.Router
	display display.Display
	presses *input.Counter
	relay   *input.Relay

	connected chan struct{}
}

// NewService creates a session service rendering to d.
func NewService(config Config, d display.Display, opts ...Option) *Service {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	conn := connection.NewManager(config.Connection, connection.WithClock(o.clock))

	roomOpts := []room.Option{room.WithClock(o.clock)}
	if o.deviceID != "" {
		roomOpts = append(roomOpts, room.WithDeviceID(o.deviceID))
	}
	session := room.NewManager(conn, config.Room, roomOpts...)

	roundOpts := []round.Option{round.WithClock(o.clock)}
	if o.strategy != nil {
		roundOpts = append(roundOpts, round.WithStrategy(o.strategy))
	}
	rounds := round.NewState(config.Round, session, d, roundOpts...)

	presses := &input.Counter{}
	var confirm input.Confirmer
	if config.RequireConfirm {
		confirm = input.NewConfirmGate(o.clock, presses, config.ConfirmWindow)
	}

	s := &Service{
		server:    config.Server,
		conn:      conn,
		session:   session,
		rounds:    rounds,
		router:    router.NewRouter(session, rounds, d),
		display:   d,
		presses:   presses,
		relay:     input.NewRelay(session, confirm, config.Relay),
		connected: make(chan struct{}, 1),
	}

	conn.OnMessage(s.handleMessage)
	conn.OnConnection(s.handleConnection)
	conn.OnWriteError(func(err error) {
		log.Warn().Err(err).Msg("message write failed")
	})

	log.Info().Str("device_id", session.DeviceID()).Msg("session service created")
	return s
}

func (s *Service) handleMessage(text string) {
	if err := s.router.HandleMessage(text); err != nil {
		log.Debug().Err(err).Msg("message not routed")
	}
}

func (s *Service) handleConnection(connected bool) {
	if connected {
		select {
		case s.connected <- struct{}{}:
		default:
		}
		s.display.Render([]string{"connected"})
		return
	}
	s.rounds.Reset()
	s.session.ConnectionLost()
	s.display.Render([]string{"disconnected"})
}

// Connect opens the server connection and waits until the handshake completes,
// fails, or ctx ends.
func (s *Service) Connect(ctx context.Context) error {
	select {
	case <-s.connected:
	default:
	}

	if !s.conn.Connect(s.server.Host, s.server.Port, s.server.Path, s.server.TLS) {
		return ErrAlreadyConnected
	}
	done := s.conn.Done()

	select {
	case <-s.connected:
		return nil
	case <-done:
		return fmt.Errorf("%w: %s ended %s", ErrConnectFailed, connection.Endpoint(s.server.Host, s.server.Port, s.server.Path, s.server.TLS), s.conn.State())
	case <-ctx.Done():
		s.conn.Disconnect()
		return ctx.Err()
	}
}

// Done is closed when the current connection ends.
func (s *Service) Done() <-chan struct{} {
	return s.conn.Done()
}

// Stop cancels the round timer and closes the connection.
func (s *Service) Stop() error {
	s.rounds.Reset()
	s.conn.Disconnect()
	log.Info().Msg("session service stopped")
	return nil
}

// Session returns the room session manager
func (s *Service) Session() *room.Manager {
	return s.session
}

// Rounds returns the round state
func (s *Service) Rounds() *round.State {
	return s.rounds
}

// Press records one confirmation button press.
func (s *Service) Press() uint64 {
	return s.presses.Press()
}

// SubmitGesture relays a classified gesture, waiting for confirmation when
// configured to.
func (s *Service) SubmitGesture(ctx context.Context, action protocol.CardType, confidence float64) error {
	return s.relay.Submit(ctx, action, confidence)
}

// GetStats returns statistics about the session service
func (s *Service) GetStats() map[string]interface{} {
	conn := s.conn.Stats()
	routed := s.router.Stats()
	snap := s.session.Snapshot()
	rnd := s.rounds.Snapshot()
	return map[string]interface{}{
		"device_id":         snap.Identity.DeviceID,
		"player_name":       snap.Identity.PlayerName,
		"connection_state":  conn.State.String(),
		"queued":            conn.Queued,
		"sent":              conn.Sent,
		"received":          conn.Received,
		"dropped":           conn.Dropped,
		"write_errors":      conn.WriteErrors,
		"routed":            routed.Handled,
		"legacy_frames":     routed.Legacy,
		"unparseable":       routed.Dropped,
		"room_id":           snap.RoomID,
		"in_room":           snap.InRoom,
		"ready":             snap.Ready,
		"pending_request":   string(snap.Tracker.RequestType),
		"round":             rnd.RoundNumber,
		"seconds_remaining": rnd.SecondsRemaining,
		"timer_active":      rnd.TimerActive,
		"game_in_progress":  rnd.GameInProgress,
		"auto_plays":        s.rounds.AutoPlays(),
	}
}
