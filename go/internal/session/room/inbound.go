package room

import (
	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
	"github.com/rs/zerolog/log"
)

// ReplaceRooms swaps in a freshly received room list.
func (m *Manager) ReplaceRooms(rooms []protocol.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms = append([]protocol.Room(nil), rooms...)
}

// MarkPresent records that room lists this device as a member. It returns
// true when the room's player count or status differs from the last one seen.
// While another room is held, the update is only adopted when it lists this
// device by id; a match by name alone is ignored and false is returned.
func (m *Manager) MarkPresent(room protocol.Room) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentRoomID != "" && m.currentRoomID != room.ID {
		if !room.HasMember(m.deviceID, "") {
			log.Debug().
				Str("room_id", room.ID).
				Str("current_room_id", m.currentRoomID).
				Msg("ignoring update for another room")
			return false
		}
		m.lastPlayerCount = 0
		m.lastStatus = ""
	}
	m.inRoom.Store(true)
	if m.currentRoomID != room.ID {
		log.Info().Str("room_id", room.ID).Str("previous_room_id", m.currentRoomID).Msg("room membership adopted from server")
		m.currentRoomID = room.ID
	}
	if m.membership.Status == StatusRequested && m.membership.Action != ActionLeave && m.membership.RoomID == room.ID {
		m.setMembershipLocked(m.membership.Action, StatusConfirmed, room.ID)
	}
	for _, p := range room.Players {
		if p.ID == m.deviceID {
			m.ready.Store(p.IsReady)
		}
	}

	if room.PlayerCount == m.lastPlayerCount && room.Status == m.lastStatus {
		return false
	}
	m.lastPlayerCount = room.PlayerCount
	m.lastStatus = room.Status
	return true
}

// MarkAbsent handles a room update that no longer lists this device. Live
// membership of that room is dropped; it returns true if it was held.
func (m *Manager) MarkAbsent(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inRoom.Load() || roomID != m.currentRoomID {
		return false
	}
	m.inRoom.Store(false)
	m.ready.Store(false)
	m.currentRoomID = ""
	m.lastPlayerCount = 0
	m.lastStatus = ""
	log.Warn().Str("room_id", roomID).Msg("no longer listed as a room member")
	return true
}

// ConfirmJoin applies the server's answer to a join request. Answers for a
// room other than the current one are ignored and false is returned.
func (m *Manager) ConfirmJoin(p protocol.MembershipPayload) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID := p.RoomID
	if roomID == "" {
		roomID = m.currentRoomID
	}
	if roomID == "" || roomID != m.currentRoomID {
		log.Debug().Str("room_id", p.RoomID).Str("current_room_id", m.currentRoomID).Msg("ignoring join answer for another room")
		return false
	}

	if !p.Succeeded() {
		m.currentRoomID = ""
		m.inRoom.Store(false)
		m.setMembershipLocked(ActionJoin, StatusRejected, roomID)
		log.Warn().Str("room_id", roomID).Str("reason", p.Message).Msg("join rejected")
		return true
	}

	m.inRoom.Store(true)
	m.setMembershipLocked(ActionJoin, StatusConfirmed, roomID)
	log.Info().Str("room_id", roomID).Msg("joined room")
	return true
}

// ConfirmLeave applies the server's answer to a leave request. The room id is
// only released here.
func (m *Manager) ConfirmLeave(p protocol.MembershipPayload) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID := p.RoomID
	if roomID == "" {
		roomID = m.currentRoomID
	}
	if roomID == "" || roomID != m.currentRoomID {
		log.Debug().Str("room_id", p.RoomID).Str("current_room_id", m.currentRoomID).Msg("ignoring leave answer for another room")
		return false
	}

	if !p.Succeeded() {
		if m.membership.Action == ActionLeave && m.membership.Status == StatusRequested {
			m.inRoom.Store(true)
		}
		m.setMembershipLocked(ActionLeave, StatusRejected, roomID)
		log.Warn().Str("room_id", roomID).Str("reason", p.Message).Msg("leave rejected")
		return true
	}

	m.currentRoomID = ""
	m.inRoom.Store(false)
	m.ready.Store(false)
	m.lastPlayerCount = 0
	m.lastStatus = ""
	m.setMembershipLocked(ActionLeave, StatusConfirmed, roomID)
	log.Info().Str("room_id", roomID).Msg("left room")
	return true
}

// ConfirmReady applies a player_ready echo for this device.
func (m *Manager) ConfirmReady(p protocol.PlayerReadyPayload) bool {
	if p.DeviceID != m.deviceID {
		return false
	}
	m.ready.Store(p.IsReady)
	return true
}

// RollbackCreate undoes the optimistic room id of a create request the server
// refused. It returns false when no create was awaiting an answer.
func (m *Manager) RollbackCreate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.membership.Action != ActionCreate || m.membership.Status != StatusRequested {
		return false
	}
	if m.currentRoomID == m.membership.RoomID {
		m.currentRoomID = ""
	}
	m.inRoom.Store(false)
	m.setMembershipLocked(ActionCreate, StatusRejected, m.membership.RoomID)
	log.Warn().Str("room_id", m.membership.RoomID).Msg("room creation rolled back")
	return true
}

// ConnectionLost forgets all room state after the server connection drops.
func (m *Manager) ConnectionLost() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inRoom.Store(false)
	m.ready.Store(false)
	m.currentRoomID = ""
	m.lastPlayerCount = 0
	m.lastStatus = ""
	m.tracker = RequestTracker{}
	m.membership = Membership{}
}
