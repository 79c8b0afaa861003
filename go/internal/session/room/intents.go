package room

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
	"github.com/rs/zerolog/log"
)

// Intents hold m.mu across the enqueue so a fast response cannot be routed
// before the optimistic state and tracker are in place. Enqueueing never
// blocks on I/O.

// FetchRooms requests the room list.
func (m *Manager) FetchRooms() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.send(protocol.EventRoomList, protocol.RoomListRequestPayload{DeviceID: m.deviceID}); err != nil {
		return err
	}
	m.trackLocked(protocol.EventRoomList)
	return nil
}

// CreateRoom asks the server to create a room hosted by this device. The new
// room id becomes current immediately; membership is confirmed by a later
// room update listing this device.
func (m *Manager) CreateRoom(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		log.Warn().Msg("create room rejected: empty room name")
		return "", fmt.Errorf("room name: %w", ErrMissingField)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.playerName == "" {
		log.Warn().Msg("create room rejected: player name not set")
		return "", fmt.Errorf("player name: %w", ErrMissingField)
	}
	if m.currentRoomID != "" {
		log.Warn().Str("room_id", m.currentRoomID).Msg("create room rejected: already in a room")
		return "", ErrAlreadyInRoom
	}

	roomID, err := m.newRoomID()
	if err != nil {
		return "", fmt.Errorf("generate room id: %w", err)
	}

	payload := protocol.CreateRoomPayload{
		DeviceID:   m.deviceID,
		PlayerName: m.playerName,
		Room: protocol.Room{
			ID:          roomID,
			Name:        name,
			PlayerCount: 1,
			MaxPlayers:  m.config.MaxPlayers,
			Status:      "waiting",
			HostID:      m.deviceID,
			Players: []protocol.Player{{
				ID:         m.deviceID,
				Name:       m.playerName,
				IsReady:    false,
				Connected:  true,
				PlayerType: m.config.PlayerType,
			}},
		},
	}
	if err := m.send(protocol.EventCreateRoom, payload); err != nil {
		return "", err
	}

	m.trackLocked(protocol.EventCreateRoom)
	m.currentRoomID = roomID
	m.ready.Store(false)
	m.setMembershipLocked(ActionCreate, StatusRequested, roomID)

	log.Info().Str("room_id", roomID).Str("room_name", name).Msg("create room requested")
	return roomID, nil
}

// JoinRoom asks to join roomID. The room id becomes current immediately; live
// membership waits for the server's confirmation.
func (m *Manager) JoinRoom(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		log.Warn().Msg("join room rejected: empty room id")
		return fmt.Errorf("room id: %w", ErrMissingField)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.playerName == "" {
		log.Warn().Msg("join room rejected: player name not set")
		return fmt.Errorf("player name: %w", ErrMissingField)
	}
	if m.currentRoomID != "" {
		log.Warn().Str("room_id", m.currentRoomID).Msg("join room rejected: already in a room")
		return ErrAlreadyInRoom
	}

	payload := protocol.JoinRoomPayload{
		DeviceID:   m.deviceID,
		PlayerName: m.playerName,
		RoomID:     roomID,
	}
	if err := m.send(protocol.EventJoinRoom, payload); err != nil {
		return err
	}

	m.trackLocked(protocol.EventJoinRoom)
	m.currentRoomID = roomID
	m.setMembershipLocked(ActionJoin, StatusRequested, roomID)

	log.Info().Str("room_id", roomID).Msg("join room requested")
	return nil
}

// LeaveRoom asks to leave the current room. Live membership is dropped at
// once; the room id is kept until the server confirms.
func (m *Manager) LeaveRoom() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentRoomID == "" {
		log.Warn().Msg("leave room rejected: not in a room")
		return ErrNotInRoom
	}

	payload := protocol.LeaveRoomPayload{DeviceID: m.deviceID, RoomID: m.currentRoomID}
	if err := m.send(protocol.EventLeaveRoom, payload); err != nil {
		return err
	}

	m.trackLocked(protocol.EventLeaveRoom)
	m.inRoom.Store(false)
	m.ready.Store(false)
	m.setMembershipLocked(ActionLeave, StatusRequested, m.currentRoomID)

	log.Info().Str("room_id", m.currentRoomID).Msg("leave room requested")
	return nil
}

// SetReady toggles this player's ready flag in the current room.
func (m *Manager) SetReady(ready bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentRoomID == "" {
		log.Warn().Bool("ready", ready).Msg("set ready rejected: not in a room")
		return ErrNotInRoom
	}

	payload := protocol.PlayerReadyPayload{DeviceID: m.deviceID, RoomID: m.currentRoomID, IsReady: ready}
	if err := m.send(protocol.EventPlayerReady, payload); err != nil {
		return err
	}

	m.trackLocked(protocol.EventPlayerReady)
	m.ready.Store(ready)
	log.Info().Str("room_id", m.currentRoomID).Bool("ready", ready).Msg("ready state requested")
	return nil
}

// SendGestureData submits a recognised action for the current round.
// Gestures are fire-and-forget and do not occupy the request tracker.
func (m *Manager) SendGestureData(actionType protocol.CardType, confidence float64) error {
	return m.sendGesture(protocol.GesturePayload{Gesture: actionType, Confidence: confidence})
}

// SendAutoPlay submits card on the player's behalf when the round timer expires.
func (m *Manager) SendAutoPlay(card protocol.Card) error {
	return m.sendGesture(protocol.GesturePayload{
		Gesture:    card.Type,
		Confidence: 1,
		CardID:     card.ID,
		AutoPlay:   true,
	})
}

func (m *Manager) sendGesture(payload protocol.GesturePayload) error {
	if !payload.Gesture.Valid() {
		log.Warn().Str("gesture", string(payload.Gesture)).Msg("gesture rejected: unknown action")
		return fmt.Errorf("action %q: %w", payload.Gesture, ErrInvalidGesture)
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		log.Warn().Float64("confidence", payload.Confidence).Msg("gesture rejected: confidence out of range")
		return fmt.Errorf("confidence %.2f: %w", payload.Confidence, ErrInvalidGesture)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentRoomID == "" {
		log.Warn().Str("gesture", string(payload.Gesture)).Msg("gesture rejected: not in a room")
		return ErrNotInRoom
	}

	payload.DeviceID = m.deviceID
	payload.PlayerName = m.playerName
	payload.RoomID = m.currentRoomID
	if err := m.send(protocol.EventGesture, payload); err != nil {
		return err
	}

	log.Info().
		Str("gesture", string(payload.Gesture)).
		Float64("confidence", payload.Confidence).
		Bool("auto_play", payload.AutoPlay).
		Msg("gesture sent")
	return nil
}

// ReplyCommand answers a device command from the server, e.g. "pong" for a
// "ping". Replies are not tracked and do not require room membership.
func (m *Manager) ReplyCommand(command string, details interface{}) error {
	payload := protocol.DeviceCommandPayload{Command: command}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal %s details: %w", command, err)
		}
		payload.Details = raw
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	payload.DeviceID = m.deviceID
	return m.send(protocol.EventDeviceCommand, payload)
}
