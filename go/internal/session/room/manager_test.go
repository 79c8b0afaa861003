package room

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
)

// fakeSender records queued frames instead of writing them.
type fakeSender struct {
	mu        sync.Mutex
	connected bool
	refuse    bool
	sent      []string
}

func (f *fakeSender) SendMessage(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected || f.refuse {
		return false
	}
	f.sent = append(f.sent, text)
	return true
}

func (f *fakeSender) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSender) last(t *testing.T) protocol.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	env, _, err := protocol.Parse(f.sent[len(f.sent)-1])
	if err != nil {
		t.Fatalf("parse sent frame: %v", err)
	}
	return env
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestManager(t *testing.T) (*Manager, *fakeSender, *clockwork.FakeClock) {
	t.Helper()
	sender := &fakeSender{connected: true}
	fc := clockwork.NewFakeClock()
	m := NewManager(sender, Config{PlayerName: "ann"},
		WithClock(fc),
		WithDeviceID("dev-1"),
		WithRoomIDGenerator(func() (string, error) { return "ROOM42", nil }),
	)
	return m, sender, fc
}

func TestDeviceIDIsGeneratedOnce(t *testing.T) {
	m := NewManager(&fakeSender{}, DefaultConfig())
	id := m.DeviceID()
	if id == "" {
		t.Fatal("device id was not generated")
	}
	if m.DeviceID() != id {
		t.Fatal("device id changed between calls")
	}
	if other := NewManager(&fakeSender{}, DefaultConfig()); other.DeviceID() == id {
		t.Fatal("two managers share a device id")
	}
}

func TestCreateRoomRoundTrip(t *testing.T) {
	m, sender, _ := newTestManager(t)

	roomID, err := m.CreateRoom("Arena")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if roomID != "ROOM42" || m.CurrentRoomID() != "ROOM42" {
		t.Fatalf("room id=%q current=%q", roomID, m.CurrentRoomID())
	}
	if m.InRoom() {
		t.Fatal("create must not mark live membership before the server lists us")
	}

	env := sender.last(t)
	if env.Event != protocol.EventCreateRoom {
		t.Fatalf("event=%q, want %q", env.Event, protocol.EventCreateRoom)
	}
	payload, err := protocol.ParsePayload(env)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	p := payload.(protocol.CreateRoomPayload)
	if p.Room.ID != "ROOM42" || p.Room.HostID != "dev-1" || len(p.Room.Players) != 1 {
		t.Fatalf("unexpected room %+v", p.Room)
	}
	if host := p.Room.Players[0]; host.ID != "dev-1" || host.Name != "ann" || host.IsReady {
		t.Fatalf("unexpected host player %+v", host)
	}
	if p.DeviceID != "dev-1" || p.PlayerName != "ann" {
		t.Fatalf("identity not carried: %+v", p)
	}

	ms := m.Membership()
	if ms.Action != ActionCreate || ms.Status != StatusRequested {
		t.Fatalf("unexpected membership %+v", ms)
	}
	if tr := m.Tracker(); !tr.Pending || tr.RequestType != protocol.EventCreateRoom {
		t.Fatalf("unexpected tracker %+v", tr)
	}
}

func TestPreconditions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *Manager, s *fakeSender)
		call  func(m *Manager) error
		want  error
	}{
		{
			name:  "fetch while disconnected",
			setup: func(m *Manager, s *fakeSender) { s.connected = false },
			call:  func(m *Manager) error { return m.FetchRooms() },
			want:  ErrNotConnected,
		},
		{
			name: "create with empty name",
			call: func(m *Manager) error { _, err := m.CreateRoom("  "); return err },
			want: ErrMissingField,
		},
		{
			name: "join with empty id",
			call: func(m *Manager) error { return m.JoinRoom("") },
			want: ErrMissingField,
		},
		{
			name:  "join while in a room",
			setup: func(m *Manager, s *fakeSender) { _ = m.JoinRoom("R1") },
			call:  func(m *Manager) error { return m.JoinRoom("R2") },
			want:  ErrAlreadyInRoom,
		},
		{
			name:  "create while in a room",
			setup: func(m *Manager, s *fakeSender) { _ = m.JoinRoom("R1") },
			call:  func(m *Manager) error { _, err := m.CreateRoom("Arena"); return err },
			want:  ErrAlreadyInRoom,
		},
		{
			name: "leave outside a room",
			call: func(m *Manager) error { return m.LeaveRoom() },
			want: ErrNotInRoom,
		},
		{
			name: "ready outside a room",
			call: func(m *Manager) error { return m.SetReady(true) },
			want: ErrNotInRoom,
		},
		{
			name:  "unknown gesture",
			setup: func(m *Manager, s *fakeSender) { _ = m.JoinRoom("R1") },
			call:  func(m *Manager) error { return m.SendGestureData("wave", 0.9) },
			want:  ErrInvalidGesture,
		},
		{
			name:  "confidence out of range",
			setup: func(m *Manager, s *fakeSender) { _ = m.JoinRoom("R1") },
			call:  func(m *Manager) error { return m.SendGestureData(protocol.CardAttack, 1.5) },
			want:  ErrInvalidGesture,
		},
		{
			name:  "queue refused",
			setup: func(m *Manager, s *fakeSender) { s.refuse = true },
			call:  func(m *Manager) error { return m.FetchRooms() },
			want:  ErrSendFailed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, sender, _ := newTestManager(t)
			if tc.setup != nil {
				tc.setup(m, sender)
			}
			if err := tc.call(m); !errors.Is(err, tc.want) {
				t.Fatalf("err=%v, want %v", err, tc.want)
			}
		})
	}
}

func TestLeaveRoomIsOptimisticThenConfirmed(t *testing.T) {
	m, sender, _ := newTestManager(t)
	if err := m.JoinRoom("R1"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	m.ConfirmJoin(protocol.MembershipPayload{RoomID: "R1"})
	if !m.InRoom() {
		t.Fatal("join confirmation did not mark membership")
	}

	if err := m.LeaveRoom(); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	if m.InRoom() {
		t.Fatal("leave must drop live membership immediately")
	}
	if m.CurrentRoomID() != "R1" {
		t.Fatal("room id must survive until the leave is confirmed")
	}
	if env := sender.last(t); env.Event != protocol.EventLeaveRoom {
		t.Fatalf("event=%q, want leave_room", env.Event)
	}

	if !m.ConfirmLeave(protocol.MembershipPayload{RoomID: "R1"}) {
		t.Fatal("leave confirmation ignored")
	}
	if m.CurrentRoomID() != "" {
		t.Fatal("room id not cleared on confirmation")
	}
	if ms := m.Membership(); ms.Action != ActionLeave || ms.Status != StatusConfirmed {
		t.Fatalf("unexpected membership %+v", ms)
	}
}

func TestLeaveRejectedRestoresMembership(t *testing.T) {
	m, _, _ := newTestManager(t)
	_ = m.JoinRoom("R1")
	m.ConfirmJoin(protocol.MembershipPayload{RoomID: "R1"})
	_ = m.LeaveRoom()

	failed := false
	m.ConfirmLeave(protocol.MembershipPayload{RoomID: "R1", Success: &failed, Message: "round in progress"})
	if !m.InRoom() || m.CurrentRoomID() != "R1" {
		t.Fatal("rejected leave should keep the room")
	}
	if ms := m.Membership(); ms.Status != StatusRejected {
		t.Fatalf("status=%q, want rejected", ms.Status)
	}
}

func TestJoinAnswers(t *testing.T) {
	t.Run("answer for another room is ignored", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		_ = m.JoinRoom("R1")
		if m.ConfirmJoin(protocol.MembershipPayload{RoomID: "R9"}) {
			t.Fatal("stale answer applied")
		}
		if m.InRoom() {
			t.Fatal("membership set by an answer for another room")
		}
	})

	t.Run("rejection clears the optimistic room", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		_ = m.JoinRoom("R1")
		failed := false
		m.ConfirmJoin(protocol.MembershipPayload{RoomID: "R1", Success: &failed})
		if m.CurrentRoomID() != "" || m.InRoom() {
			t.Fatal("rejected join left state behind")
		}
		if ms := m.Membership(); ms.Action != ActionJoin || ms.Status != StatusRejected {
			t.Fatalf("unexpected membership %+v", ms)
		}
	})
}

func TestRequestOverride(t *testing.T) {
	m, _, fc := newTestManager(t)

	if err := m.FetchRooms(); err != nil {
		t.Fatalf("FetchRooms: %v", err)
	}
	fc.Advance(time.Second)
	if _, err := m.CreateRoom("Arena"); err != nil {
		t.Fatalf("CreateRoom must not be blocked by a pending request: %v", err)
	}

	tr := m.Tracker()
	if !tr.Pending || tr.RequestType != protocol.EventCreateRoom {
		t.Fatalf("tracker=%+v, want pending create_room", tr)
	}
	if !tr.SentAt.Equal(fc.Now()) {
		t.Fatalf("sentAt=%v, want %v", tr.SentAt, fc.Now())
	}

	m.ClearRequest()
	if _, pending := m.PendingRequest(); pending {
		t.Fatal("tracker not cleared")
	}
}

func TestResolveRequestOnlyClearsMatchingRequest(t *testing.T) {
	m, _, _ := newTestManager(t)

	if err := m.FetchRooms(); err != nil {
		t.Fatalf("FetchRooms: %v", err)
	}
	_, seq := m.CurrentRequest()
	if _, err := m.CreateRoom("Arena"); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	if m.ResolveRequest(seq) {
		t.Fatal("resolved a request that was already replaced")
	}
	tracked, current := m.CurrentRequest()
	if tracked != protocol.EventCreateRoom || current == seq {
		t.Fatalf("tracked=%q seq=%d, want create_room with a new seq", tracked, current)
	}
	if !m.ResolveRequest(current) {
		t.Fatal("current request not resolved")
	}
	if tracked, seq := m.CurrentRequest(); tracked != "" || seq != 0 {
		t.Fatalf("tracker=%q/%d after resolve", tracked, seq)
	}
}

func TestRollbackCreate(t *testing.T) {
	m, _, _ := newTestManager(t)
	if m.RollbackCreate() {
		t.Fatal("rollback without a create in flight")
	}
	_, _ = m.CreateRoom("Arena")
	if !m.RollbackCreate() {
		t.Fatal("rollback refused")
	}
	if m.CurrentRoomID() != "" {
		t.Fatal("optimistic room id survived rollback")
	}
	if ms := m.Membership(); ms.Status != StatusRejected {
		t.Fatalf("status=%q, want rejected", ms.Status)
	}
}

func TestMarkPresentAndAbsent(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, _ = m.CreateRoom("Arena")

	room := protocol.Room{ID: "ROOM42", PlayerCount: 1, Status: "waiting"}
	if !m.MarkPresent(room) {
		t.Fatal("first sighting should report a change")
	}
	if !m.InRoom() {
		t.Fatal("membership not confirmed")
	}
	if ms := m.Membership(); ms.Status != StatusConfirmed {
		t.Fatalf("status=%q, want confirmed", ms.Status)
	}
	if m.MarkPresent(room) {
		t.Fatal("identical update reported as a change")
	}
	room.PlayerCount = 2
	if !m.MarkPresent(room) {
		t.Fatal("player count change not reported")
	}

	if m.MarkAbsent("OTHER") {
		t.Fatal("absence from another room evicted us")
	}
	if !m.MarkAbsent("ROOM42") {
		t.Fatal("absence from our room not applied")
	}
	if m.InRoom() || m.CurrentRoomID() != "" {
		t.Fatal("eviction left membership behind")
	}
}

func TestGestureCarriesIdentity(t *testing.T) {
	m, sender, _ := newTestManager(t)
	_ = m.JoinRoom("R1")
	before := sender.count()

	if err := m.SendAutoPlay(protocol.Card{ID: "c7", Type: protocol.CardDefend}); err != nil {
		t.Fatalf("SendAutoPlay: %v", err)
	}
	if sender.count() != before+1 {
		t.Fatal("auto-play not sent")
	}
	payload, err := protocol.ParsePayload(sender.last(t))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	g := payload.(protocol.GesturePayload)
	if g.DeviceID != "dev-1" || g.RoomID != "R1" || g.Gesture != protocol.CardDefend || g.CardID != "c7" || !g.AutoPlay {
		t.Fatalf("unexpected gesture %+v", g)
	}
	if tr := m.Tracker(); tr.RequestType != protocol.EventJoinRoom {
		t.Fatalf("gesture replaced the tracked request: %+v", tr)
	}
}
