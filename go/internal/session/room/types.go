package room

import (
	"errors"
	"time"

	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
)

var (
	// ErrNotConnected is returned when an intent is issued without a server connection
	ErrNotConnected = errors.New("not connected to server")
	// ErrAlreadyInRoom is returned when creating or joining while a room is held
	ErrAlreadyInRoom = errors.New("already in a room")
	// ErrNotInRoom is returned when a room-scoped intent is issued outside a room
	ErrNotInRoom = errors.New("not in a room")
	// ErrMissingField is returned when a required intent argument is empty
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidGesture is returned for an unknown action type or confidence outside [0,1]
	ErrInvalidGesture = errors.New("invalid gesture")
	// ErrSendFailed is returned when the connection refused the message
	ErrSendFailed = errors.New("message not queued")
)

// RequestTracker marks the single in-flight request.
type RequestTracker struct {
	Pending     bool
	RequestType protocol.EventType
	SentAt      time.Time
	// Seq increases with every tracked request; 0 means none was tracked.
	Seq uint64
}

// MembershipAction is a room-membership intent
type MembershipAction string

const (
	ActionCreate MembershipAction = "create"
	ActionJoin   MembershipAction = "join"
	ActionLeave  MembershipAction = "leave"
)

// MembershipStatus tracks an optimistic membership change through to the
// server's answer.
type MembershipStatus string

const (
	StatusNone      MembershipStatus = ""
	StatusRequested MembershipStatus = "requested"
	StatusConfirmed MembershipStatus = "confirmed"
	StatusRejected  MembershipStatus = "rejected"
)

// Membership is the latest membership action and where it stands
type Membership struct {
	Action    MembershipAction
	Status    MembershipStatus
	RoomID    string
	UpdatedAt time.Time
}

// Identity is the device's stable id plus the user-chosen player name.
type Identity struct {
	DeviceID   string
	PlayerName string
}

// Snapshot is a consistent view of the session for display and status output
type Snapshot struct {
	Identity
	RoomID     string
	InRoom     bool
	Ready      bool
	Membership Membership
	Tracker    RequestTracker
	Rooms      []protocol.Room
}

// Config holds session defaults
type Config struct {
	PlayerName string
	MaxPlayers int
	PlayerType string
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		MaxPlayers: 4,
		PlayerType: "beagleboard",
	}
}
