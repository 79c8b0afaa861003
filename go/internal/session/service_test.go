package session

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
	"github.com/mcdev12/gesturegame/go/internal/session/room"
)

// gameServer answers create_room with a room_updated listing the creator and
// records every event it reads.
type gameServer struct {
	srv   *httptest.Server
	mu    sync.Mutex
	seen  []protocol.EventType
	conns chan *websocket.Conn
}

func newGameServer(t *testing.T) *gameServer {
	t.Helper()
	gs := &gameServer{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}
	gs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		gs.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			gs.mu.Lock()
			gs.seen = append(gs.seen, env.Event)
			gs.mu.Unlock()

			if env.Event == protocol.EventCreateRoom {
				var p protocol.CreateRoomPayload
				if err := json.Unmarshal(env.Payload, &p); err != nil {
					continue
				}
				reply, _ := protocol.NewEnvelope(protocol.EventRoomUpdated, protocol.RoomUpdatedPayload{Room: p.Room})
				text, _ := reply.Encode()
				_ = conn.WriteMessage(websocket.TextMessage, []byte(text))
			}
		}
	}))
	t.Cleanup(gs.srv.Close)
	return gs
}

func (gs *gameServer) server(t *testing.T) Server {
	t.Helper()
	u, err := url.Parse(gs.srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return Server{Host: host, Port: port, Path: "/ws"}
}

type nopDisplay struct{}

func (nopDisplay) Render([]string) {}
func (nopDisplay) ShowRoomList([]protocol.Room) {}
func (nopDisplay) ShowRoom(protocol.Room) {}
func (nopDisplay) ShowRoundStart(int, []protocol.Card) {}
func (nopDisplay) ShowRoundEnd(protocol.RoundEndPayload) {}
func (nopDisplay) ShowCountdown(int, int) {}
func (nopDisplay) ShowGameEvent(protocol.EventType, protocol.GamePayload) {}
func (nopDisplay) ShowError(string) {}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestService(t *testing.T, gs *gameServer) *Service {
	t.Helper()
	config := DefaultConfig()
	config.Server = gs.server(t)
	config.Room.PlayerName = "ann"
	config.RequireConfirm = false
	s := NewService(config, nopDisplay{}, WithDeviceID("dev-1"))
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestServiceCreateRoomRoundTrip(t *testing.T) {
	gs := newGameServer(t)
	s := newTestService(t, gs)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	id, err := s.Session().CreateRoom("Alpha")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	waitFor(t, "membership confirmed", s.Session().InRoom)
	if s.Session().CurrentRoomID() != id {
		t.Fatalf("room id=%q, want %q", s.Session().CurrentRoomID(), id)
	}
	if m := s.Session().Membership(); m.Status != room.StatusConfirmed {
		t.Fatalf("membership=%+v", m)
	}

	if err := s.SubmitGesture(ctx, protocol.CardAttack, 0.95); err != nil {
		t.Fatalf("submit gesture: %v", err)
	}
	waitFor(t, "gesture delivered", func() bool {
		gs.mu.Lock()
		defer gs.mu.Unlock()
		return len(gs.seen) == 2 && gs.seen[1] == protocol.EventGesture
	})

	stats := s.GetStats()
	if stats["connection_state"] != "connected" || stats["room_id"] != id {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestServiceConnectionLossClearsSession(t *testing.T) {
	gs := newGameServer(t)
	s := newTestService(t, gs)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Session().JoinRoom("R1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	s.Rounds().StartTimer(10)

	serverConn := <-gs.conns
	_ = serverConn.Close()

	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("connection did not end")
	}
	waitFor(t, "session cleared", func() bool { return s.Session().CurrentRoomID() == "" })
	if s.Rounds().Snapshot().TimerActive {
		t.Fatal("timer survived connection loss")
	}
}

func TestServiceConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	config := DefaultConfig()
	config.Server = Server{Host: "127.0.0.1", Port: port, Path: "/"}
	s := NewService(config, nopDisplay{}, WithDeviceID("dev-1"))
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Connect(ctx); !errors.Is(err, ErrConnectFailed) {
		t.Fatalf("err=%v, want ErrConnectFailed", err)
	}
}
