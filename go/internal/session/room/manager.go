package room

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
	"github.com/rs/zerolog/log"
)

// roomIDAlphabet avoids characters that are easy to misread on a small display.
const roomIDAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Sender is the part of the connection the session needs
type Sender interface {
	SendMessage(text string) bool
	IsConnected() bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the real clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithDeviceID fixes the device id instead of generating one.
func WithDeviceID(id string) Option {
	return func(m *Manager) { m.deviceID = id }
}

// WithRoomIDGenerator replaces the room id generator.
func WithRoomIDGenerator(fn func() (string, error)) Option {
	return func(m *Manager) { m.newRoomID = fn }
}

// Manager translates user intents into protocol envelopes and holds the
// device's room membership.
type Manager struct {
	sender    Sender
	clock     clockwork.Clock
	config    Config
	deviceID  string
	newRoomID func() (string, error)

	inRoom atomic.Bool
	ready  atomic.Bool

	mu              sync.Mutex
	playerName      string
	currentRoomID   string
	tracker         RequestTracker
	requestSeq      uint64
	membership      Membership
	rooms           []protocol.Room
	lastPlayerCount int
	lastStatus      string
}

// NewManager creates a session manager. The device id is generated once here
// and stays fixed for the lifetime of the manager.
func NewManager(sender Sender, config Config, opts ...Option) *Manager {
	if config.MaxPlayers <= 0 {
		config.MaxPlayers = DefaultConfig().MaxPlayers
	}
	if config.PlayerType == "" {
		config.PlayerType = DefaultConfig().PlayerType
	}
	m := &Manager{
		sender:     sender,
		clock:      clockwork.NewRealClock(),
		config:     config,
		playerName: config.PlayerName,
		newRoomID: func() (string, error) {
			return gonanoid.Generate(roomIDAlphabet, 6)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.deviceID == "" {
		m.deviceID = uuid.New().String()
	}
	return m
}

// DeviceID returns the stable device id
func (m *Manager) DeviceID() string {
	return m.deviceID
}

// PlayerName returns the current player name
func (m *Manager) PlayerName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playerName
}

// SetPlayerName changes the name sent with create and join requests.
func (m *Manager) SetPlayerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		log.Warn().Msg("rejected empty player name")
		return fmt.Errorf("player name: %w", ErrMissingField)
	}
	m.mu.Lock()
	m.playerName = name
	m.mu.Unlock()
	log.Info().Str("player_name", name).Msg("player name set")
	return nil
}

// CurrentRoomID returns the room this device believes it is in, confirmed or not.
func (m *Manager) CurrentRoomID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentRoomID
}

// InRoom reports confirmed, live room membership.
func (m *Manager) InRoom() bool {
	return m.inRoom.Load()
}

// IsReady reports the ready flag
func (m *Manager) IsReady() bool {
	return m.ready.Load()
}

// Membership returns the latest membership action
func (m *Manager) Membership() Membership {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.membership
}

// Tracker returns the request tracker
func (m *Manager) Tracker() RequestTracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker
}

// PendingRequest returns the tracked request type, if any.
func (m *Manager) PendingRequest() (protocol.EventType, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.RequestType, m.tracker.Pending
}

// ClearRequest resets the request tracker.
func (m *Manager) ClearRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracker = RequestTracker{}
}

// CurrentRequest returns the tracked request type and its sequence number.
// Both are zero when nothing is pending.
func (m *Manager) CurrentRequest() (protocol.EventType, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tracker.Pending {
		return "", 0
	}
	return m.tracker.RequestType, m.tracker.Seq
}

// ResolveRequest clears the tracker only if it still holds request seq, so a
// request issued after seq was read survives. It reports whether it cleared.
func (m *Manager) ResolveRequest(seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tracker.Pending || m.tracker.Seq != seq {
		return false
	}
	m.tracker = RequestTracker{}
	return true
}

// Rooms returns a copy of the last room list
func (m *Manager) Rooms() []protocol.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]protocol.Room(nil), m.rooms...)
}

// Snapshot returns a consistent view of the session
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Identity:   Identity{DeviceID: m.deviceID, PlayerName: m.playerName},
		RoomID:     m.currentRoomID,
		InRoom:     m.inRoom.Load(),
		Ready:      m.ready.Load(),
		Membership: m.membership,
		Tracker:    m.tracker,
		Rooms:      append([]protocol.Room(nil), m.rooms...),
	}
}

// trackLocked records a new in-flight request. A pending request is
// overridden rather than waited on. m.mu must be held.
func (m *Manager) trackLocked(requestType protocol.EventType) {
	if m.tracker.Pending {
		log.Warn().
			Str("pending_request", string(m.tracker.RequestType)).
			Str("new_request", string(requestType)).
			Dur("pending_for", m.clock.Since(m.tracker.SentAt)).
			Msg("overriding pending request")
	}
	m.requestSeq++
	m.tracker = RequestTracker{
		Pending:     true,
		RequestType: requestType,
		SentAt:      m.clock.Now(),
		Seq:         m.requestSeq,
	}
}

func (m *Manager) setMembershipLocked(action MembershipAction, status MembershipStatus, roomID string) {
	m.membership = Membership{
		Action:    action,
		Status:    status,
		RoomID:    roomID,
		UpdatedAt: m.clock.Now(),
	}
}

// send encodes and queues an envelope.
func (m *Manager) send(event protocol.EventType, payload interface{}) error {
	if !m.sender.IsConnected() {
		log.Warn().Str("event", string(event)).Msg("cannot send: not connected")
		return ErrNotConnected
	}
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	text, err := env.Encode()
	if err != nil {
		return err
	}
	if !m.sender.SendMessage(text) {
		log.Warn().Str("event", string(event)).Msg("connection refused message")
		return fmt.Errorf("%s: %w", event, ErrSendFailed)
	}
	log.Debug().Str("event", string(event)).Msg("message queued")
	return nil
}
