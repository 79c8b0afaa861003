package protocol

import "encoding/json"

// CardType is the action a card lets the player perform.
type CardType string

const (
	CardAttack CardType = "attack"
	CardDefend CardType = "defend"
	CardBuild  CardType = "build"
)

// AllCardTypes lists every playable card type.
var AllCardTypes = []CardType{CardAttack, CardDefend, CardBuild}

// Valid reports whether t is one of the known card types.
func (t CardType) Valid() bool {
	switch t {
	case CardAttack, CardDefend, CardBuild:
		return true
	}
	return false
}

// Room is a server-side game room as advertised to clients
type Room struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	PlayerCount int      `json:"playerCount"`
	MaxPlayers  int      `json:"maxPlayers"`
	Status      string   `json:"status"`
	HostID      string   `json:"hostId,omitempty"`
	Players     []Player `json:"players,omitempty"`
}

// HasMember reports whether the room lists a player matching deviceID or name.
// Either match counts.
func (r Room) HasMember(deviceID, name string) bool {
	for _, p := range r.Players {
		if deviceID != "" && p.ID == deviceID {
			return true
		}
		if name != "" && p.Name == name {
			return true
		}
	}
	return false
}

// Player is a room participant
type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsReady    bool   `json:"isReady"`
	Connected  bool   `json:"connected"`
	PlayerType string `json:"playerType"`
}

// Card is a playable action dealt for a round
type Card struct {
	ID          string   `json:"id"`
	Type        CardType `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
}

// Outbound payloads

// CreateRoomPayload is the payload for a create_room request
type CreateRoomPayload struct {
	DeviceID   string `json:"deviceId"`
	PlayerName string `json:"playerName"`
	Room       Room   `json:"room"`
}

// JoinRoomPayload is the payload for a join_room request
type JoinRoomPayload struct {
	DeviceID   string `json:"deviceId"`
	PlayerName string `json:"playerName"`
	RoomID     string `json:"roomId"`
}

// LeaveRoomPayload is the payload for a leave_room request
type LeaveRoomPayload struct {
	DeviceID string `json:"deviceId"`
	RoomID   string `json:"roomId"`
}

// RoomListRequestPayload is the payload for a room_list request
type RoomListRequestPayload struct {
	DeviceID string `json:"deviceId"`
}

// PlayerReadyPayload is sent to toggle readiness and echoed back by the server.
type PlayerReadyPayload struct {
	DeviceID string `json:"deviceId"`
	RoomID   string `json:"roomId"`
	IsReady  bool   `json:"isReady"`
}

// GesturePayload carries a played action. The server echoes other players'
// gestures with the same shape.
type GesturePayload struct {
	DeviceID   string   `json:"deviceId"`
	PlayerName string   `json:"playerName,omitempty"`
	RoomID     string   `json:"roomId,omitempty"`
	Gesture    CardType `json:"gesture"`
	Confidence float64  `json:"confidence"`
	CardID     string   `json:"cardId,omitempty"`
	AutoPlay   bool     `json:"autoPlay,omitempty"`
}

// Inbound payloads

// RoomListPayload is the payload for a room_list response
type RoomListPayload struct {
	Rooms []Room `json:"rooms"`
}

// RoomUpdatedPayload is the payload for a room_updated push
type RoomUpdatedPayload struct {
	Room Room `json:"room"`
}

// MembershipPayload confirms or rejects a join_room / leave_room request.
// A missing success field counts as success.
type MembershipPayload struct {
	RoomID  string `json:"roomId"`
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Room    *Room  `json:"room,omitempty"`
}

// Succeeded reports whether the server accepted the request.
func (p MembershipPayload) Succeeded() bool {
	return p.Success == nil || *p.Success
}

// RoundStartPayload is the payload for a round_start event. Cards is keyed by
// device id.
type RoundStartPayload struct {
	RoundNumber   int               `json:"roundNumber"`
	RemainingTime int               `json:"remainingTime"`
	Cards         map[string][]Card `json:"cards,omitempty"`
}

// RoundEndPayload is the payload for a round_end event
type RoundEndPayload struct {
	RoundNumber int    `json:"roundNumber"`
	Winner      string `json:"winner,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

// GamePayload is shared by game_starting, game_started and game_ended.
type GamePayload struct {
	RoomID    string `json:"roomId,omitempty"`
	Countdown int    `json:"countdown,omitempty"`
	Winner    string `json:"winner,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ErrorPayload is the payload for a server error event
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// DeviceCommandPayload is the custom hardware command envelope.
type DeviceCommandPayload struct {
	Command        string          `json:"command"`
	DeviceID       string          `json:"deviceId,omitempty"`
	TargetPlayerID string          `json:"targetPlayerId,omitempty"`
	Cards          []Card          `json:"cards,omitempty"`
	Details        json.RawMessage `json:"details,omitempty"`
}
