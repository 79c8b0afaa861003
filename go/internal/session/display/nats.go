package display

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Frame kinds published by the bridge. Each is appended to the subject prefix.
const (
	KindLines      = "lines"
	KindRoomList   = "room_list"
	KindRoom       = "room"
	KindRoundStart = "round_start"
	KindRoundEnd   = "round_end"
	KindCountdown  = "countdown"
	KindGame       = "game"
	KindError      = "error"
)

type BridgeConfig struct {
	URL           string
	Subject       string // Subject prefix, e.g. "gesture.display"
	DeviceID      string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		URL:           nats.DefaultURL,
		Subject:       "gesture.display",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Frame is the JSON body of every bridge message.
type Frame struct {
	Kind      string      `json:"kind"`
	DeviceID  string      `json:"deviceId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type publisher interface {
	PublishMsg(m *nats.Msg) error
}

// Bridge publishes display frames over NATS so an out-of-process screen
// driver can render them.
type Bridge struct {
	pub      publisher
	nc       *nats.Conn
	subject  string
	deviceID string
}

// NewBridge connects to NATS and returns a bridge publishing under cfg.Subject.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	opts := []nats.Option{
		nats.Name("gesture-display-bridge"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	b := newBridge(nc, cfg.Subject, cfg.DeviceID)
	b.nc = nc
	log.Info().Str("url", nc.ConnectedUrl()).Str("subject", cfg.Subject).Msg("display bridge connected")
	return b, nil
}

func newBridge(pub publisher, subject, deviceID string) *Bridge {
	if subject == "" {
		subject = DefaultBridgeConfig().Subject
	}
	return &Bridge{pub: pub, subject: subject, deviceID: deviceID}
}

// Close flushes and closes the NATS connection.
func (b *Bridge) Close() error {
	if b.nc != nil {
		if err := b.nc.Flush(); err != nil {
			log.Warn().Err(err).Msg("flush display bridge")
		}
		b.nc.Close()
	}
	return nil
}

func (b *Bridge) Render(lines []string) {
	b.publish(KindLines, map[string]interface{}{"lines": lines})
}

func (b *Bridge) ShowRoomList(rooms []protocol.Room) {
	b.publish(KindRoomList, map[string]interface{}{"rooms": rooms})
}

func (b *Bridge) ShowRoom(room protocol.Room) {
	b.publish(KindRoom, room)
}

func (b *Bridge) ShowRoundStart(roundNumber int, cards []protocol.Card) {
	b.publish(KindRoundStart, map[string]interface{}{"roundNumber": roundNumber, "cards": cards})
}

func (b *Bridge) ShowRoundEnd(result protocol.RoundEndPayload) {
	b.publish(KindRoundEnd, result)
}

func (b *Bridge) ShowCountdown(roundNumber, secondsRemaining int) {
	b.publish(KindCountdown, map[string]interface{}{"roundNumber": roundNumber, "secondsRemaining": secondsRemaining})
}

func (b *Bridge) ShowGameEvent(event protocol.EventType, game protocol.GamePayload) {
	b.publish(KindGame, map[string]interface{}{"event": event, "game": game})
}

func (b *Bridge) ShowError(message string) {
	b.publish(KindError, map[string]interface{}{"message": message})
}

func (b *Bridge) publish(kind string, data interface{}) {
	frame := Frame{
		Kind:      kind,
		DeviceID:  b.deviceID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	body, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("marshal display frame")
		return
	}

	msg := &nats.Msg{
		Subject: b.subject + "." + kind,
		Data:    body,
		Header: nats.Header{
			"Frame-Kind": []string{kind},
		},
	}
	if b.deviceID != "" {
		msg.Header.Set("Device-ID", b.deviceID)
	}
	if err := b.pub.PublishMsg(msg); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("publish display frame")
	}
}
