package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the unit exchanged with the game server. Every text frame on the
// wire is exactly one envelope.
type Envelope struct {
	Event   EventType       `json:"event"`   // Event tag
	Payload json.RawMessage `json:"payload"` // Event-specific payload
}

// EventType represents the type of a session event
type EventType string

const (
	EventRoomList      EventType = "room_list"
	EventRoomUpdated   EventType = "room_updated"
	EventCreateRoom    EventType = "create_room"
	EventJoinRoom      EventType = "join_room"
	EventLeaveRoom     EventType = "leave_room"
	EventPlayerReady   EventType = "player_ready"
	EventRoundStart    EventType = "round_start"
	EventRoundEnd      EventType = "round_end"
	EventGameStarting  EventType = "game_starting"
	EventGameStarted   EventType = "game_started"
	EventGameEnded     EventType = "game_ended"
	EventGesture       EventType = "gesture_event"
	EventError         EventType = "error"
	EventDeviceCommand EventType = "beagle_board_command"
)

// NewEnvelope marshals payload and wraps it in an envelope for the given event.
func NewEnvelope(event EventType, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Payload: data}, nil
}

// Encode renders the envelope as a single text frame.
func (e Envelope) Encode() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(data), nil
}

// ParsePayload parses envelope data into the payload struct for its event.
// Unknown events return a nil payload and no error.
func ParsePayload(env Envelope) (interface{}, error) {
	switch env.Event {
	case EventRoomList:
		var payload RoomListPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventRoomUpdated:
		var payload RoomUpdatedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventCreateRoom:
		var payload CreateRoomPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventJoinRoom, EventLeaveRoom:
		var payload MembershipPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventPlayerReady:
		var payload PlayerReadyPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventRoundStart:
		var payload RoundStartPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventRoundEnd:
		var payload RoundEndPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventGameStarting, EventGameStarted, EventGameEnded:
		var payload GamePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventGesture:
		var payload GesturePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventError:
		var payload ErrorPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventDeviceCommand:
		var payload DeviceCommandPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
