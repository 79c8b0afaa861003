package router

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/mcdev12/gesturegame/go/internal/session/display"
	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
	"github.com/rs/zerolog/log"
)

// Session is the room state the router updates.
type Session interface {
	DeviceID() string
	PlayerName() string
	CurrentRequest() (protocol.EventType, uint64)
	ResolveRequest(seq uint64) bool
	ReplaceRooms(rooms []protocol.Room)
	MarkPresent(room protocol.Room) bool
	MarkAbsent(roomID string) bool
	ConfirmJoin(p protocol.MembershipPayload) bool
	ConfirmLeave(p protocol.MembershipPayload) bool
	ConfirmReady(p protocol.PlayerReadyPayload) bool
	RollbackCreate() bool
	ReplyCommand(command string, details interface{}) error
}

// Rounds is the round state the router drives.
type Rounds interface {
	StartRound(roundNumber, serverSeconds int)
	ReplaceCards(cards []protocol.Card)
	StartTimer(seconds int)
	StopTimer() bool
	SetGameInProgress(inProgress bool)
}

// Stats counts routed frames
type Stats struct {
	Handled uint64
	Legacy  uint64
	Dropped uint64
	Ignored uint64
}

// Router dispatches inbound frames by event type. HandleMessage is called from
// the connection's service loop, one frame at a time.
type Router struct {
	session Session
	rounds  Rounds
	display display.Display

	handled atomic.Uint64
	legacy  atomic.Uint64
	dropped atomic.Uint64
	ignored atomic.Uint64
}

func NewRouter(session Session, rounds Rounds, d display.Display) *Router {
	return &Router{session: session, rounds: rounds, display: d}
}

// Stats returns frame counters
func (r *Router) Stats() Stats {
	return Stats{
		Handled: r.handled.Load(),
		Legacy:  r.legacy.Load(),
		Dropped: r.dropped.Load(),
		Ignored: r.ignored.Load(),
	}
}

// HandleMessage parses and dispatches one inbound frame. Whatever happens, the
// request tracked on entry is cleared afterwards so nothing waits on a reply
// forever. A request issued while the frame is handled stays tracked.
func (r *Router) HandleMessage(text string) error {
	tracked, seq := r.session.CurrentRequest()
	defer r.session.ResolveRequest(seq)

	env, format, err := protocol.Parse(text)
	if err != nil {
		r.dropped.Add(1)
		log.Warn().Err(err).Int("length", len(text)).Msg("dropping unparseable message")
		return fmt.Errorf("parse message: %w", err)
	}
	if format == protocol.FormatLegacy {
		r.legacy.Add(1)
	}

	payload, err := protocol.ParsePayload(env)
	if err != nil {
		r.dropped.Add(1)
		log.Warn().Err(err).Str("event", string(env.Event)).Msg("dropping message with bad payload")
		return fmt.Errorf("parse %s payload: %w", env.Event, err)
	}
	if payload == nil {
		r.ignored.Add(1)
		log.Debug().Str("event", string(env.Event)).Msg("ignoring unknown event")
		return nil
	}

	log.Debug().
		Str("event", string(env.Event)).
		Str("format", string(format)).
		Str("tracked_request", string(tracked)).
		Msg("routing message")

	r.handled.Add(1)
	r.dispatch(env.Event, payload, tracked)
	return nil
}

func (r *Router) dispatch(event protocol.EventType, payload interface{}, tracked protocol.EventType) {
	switch event {
	case protocol.EventRoomList:
		p := payload.(protocol.RoomListPayload)
		r.session.ReplaceRooms(p.Rooms)
		if tracked == protocol.EventRoomList {
			r.display.ShowRoomList(p.Rooms)
		} else {
			log.Debug().Int("rooms", len(p.Rooms)).Str("tracked_request", string(tracked)).Msg("room list not requested, not displayed")
		}

	case protocol.EventRoomUpdated:
		r.handleRoom(payload.(protocol.RoomUpdatedPayload).Room)

	case protocol.EventCreateRoom:
		// Some servers echo the created room instead of pushing room_updated.
		r.handleRoom(payload.(protocol.CreateRoomPayload).Room)

	case protocol.EventJoinRoom:
		p := payload.(protocol.MembershipPayload)
		if r.session.ConfirmJoin(p) {
			if !p.Succeeded() {
				r.display.ShowError(rejection("join", p))
			} else if p.Room != nil {
				r.handleRoom(*p.Room)
			}
		}

	case protocol.EventLeaveRoom:
		p := payload.(protocol.MembershipPayload)
		if r.session.ConfirmLeave(p) {
			if !p.Succeeded() {
				r.display.ShowError(rejection("leave", p))
			} else {
				r.rounds.StopTimer()
				r.rounds.SetGameInProgress(false)
				r.display.Render([]string{"left room"})
			}
		}

	case protocol.EventPlayerReady:
		r.session.ConfirmReady(payload.(protocol.PlayerReadyPayload))

	case protocol.EventRoundStart:
		p := payload.(protocol.RoundStartPayload)
		cards := p.Cards[r.session.DeviceID()]
		if cards == nil && len(p.Cards) > 0 {
			log.Warn().Int("round", p.RoundNumber).Msg("round start carries no cards for this device")
		}
		r.rounds.ReplaceCards(cards)
		r.display.ShowRoundStart(p.RoundNumber, cards)
		r.rounds.StartRound(p.RoundNumber, p.RemainingTime)

	case protocol.EventRoundEnd:
		p := payload.(protocol.RoundEndPayload)
		r.rounds.StopTimer()
		// the game goes on between rounds; game_ended closes it
		r.rounds.SetGameInProgress(true)
		log.Info().Int("round", p.RoundNumber).Str("winner", p.Winner).Msg("round ended")
		r.display.ShowRoundEnd(p)

	case protocol.EventGameStarting:
		p := payload.(protocol.GamePayload)
		r.rounds.SetGameInProgress(false)
		log.Info().Str("room_id", p.RoomID).Int("countdown", p.Countdown).Msg("game starting")
		r.display.ShowGameEvent(event, p)

	case protocol.EventGameStarted:
		p := payload.(protocol.GamePayload)
		r.rounds.SetGameInProgress(true)
		log.Info().Str("room_id", p.RoomID).Msg("game started")
		r.display.ShowGameEvent(event, p)

	case protocol.EventGameEnded:
		p := payload.(protocol.GamePayload)
		r.rounds.StopTimer()
		r.rounds.SetGameInProgress(false)
		log.Info().Str("room_id", p.RoomID).Str("winner", p.Winner).Msg("game ended")
		r.display.ShowGameEvent(event, p)

	case protocol.EventGesture:
		p := payload.(protocol.GesturePayload)
		log.Info().
			Str("device_id", p.DeviceID).
			Str("player_name", p.PlayerName).
			Str("gesture", string(p.Gesture)).
			Float64("confidence", p.Confidence).
			Bool("auto_play", p.AutoPlay).
			Msg("gesture event")

	case protocol.EventError:
		p := payload.(protocol.ErrorPayload)
		log.Error().Str("message", p.Message).Str("code", p.Code).Str("tracked_request", string(tracked)).Msg("server error")
		if tracked == protocol.EventCreateRoom {
			r.session.RollbackCreate()
		}
		r.display.ShowError(p.Message)

	case protocol.EventDeviceCommand:
		r.handleCommand(payload.(protocol.DeviceCommandPayload))
	}
}

// handleRoom applies a room snapshot. Self is matched by device id or name.
func (r *Router) handleRoom(room protocol.Room) {
	if room.HasMember(r.session.DeviceID(), r.session.PlayerName()) {
		if r.session.MarkPresent(room) {
			log.Info().
				Str("room_id", room.ID).
				Int("player_count", room.PlayerCount).
				Str("status", room.Status).
				Msg("room updated")
			r.display.ShowRoom(room)
		}
		return
	}
	if r.session.MarkAbsent(room.ID) {
		r.rounds.StopTimer()
		r.rounds.SetGameInProgress(false)
		r.display.Render([]string{"removed from room " + room.ID})
	}
}

type commandDetails struct {
	Seconds int      `json:"seconds"`
	Lines   []string `json:"lines"`
	Text    string   `json:"text"`
}

func (r *Router) handleCommand(cmd protocol.DeviceCommandPayload) {
	if cmd.TargetPlayerID != "" && cmd.TargetPlayerID != r.session.DeviceID() {
		log.Debug().Str("command", cmd.Command).Str("target", cmd.TargetPlayerID).Msg("ignoring command for another device")
		return
	}

	var details commandDetails
	if len(cmd.Details) > 0 {
		if err := json.Unmarshal(cmd.Details, &details); err != nil {
			log.Warn().Err(err).Str("command", cmd.Command).Msg("ignoring malformed command details")
		}
	}

	log.Info().Str("command", cmd.Command).Msg("device command")
	switch cmd.Command {
	case "set_cards":
		r.rounds.ReplaceCards(cmd.Cards)
	case "start_timer":
		r.rounds.StartTimer(details.Seconds)
	case "stop_timer":
		r.rounds.StopTimer()
	case "display":
		lines := details.Lines
		if len(lines) == 0 && details.Text != "" {
			lines = []string{details.Text}
		}
		r.display.Render(lines)
	case "ping":
		if err := r.session.ReplyCommand("pong", nil); err != nil {
			log.Warn().Err(err).Msg("pong failed")
		}
	default:
		log.Warn().Str("command", cmd.Command).Msg("unknown device command")
	}
}

func rejection(action string, p protocol.MembershipPayload) string {
	if p.Message != "" {
		return fmt.Sprintf("%s %s failed: %s", action, p.RoomID, p.Message)
	}
	return fmt.Sprintf("%s %s failed", action, p.RoomID)
}
