package display

import (
	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
	"github.com/rs/zerolog"
)

// Log renders through a zerolog logger. It is the display used when no
// hardware screen is attached.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a Log display writing to logger.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "display").Logger()}
}

func (l *Log) Render(lines []string) {
	l.logger.Info().Strs("lines", lines).Msg("render")
}

func (l *Log) ShowRoomList(rooms []protocol.Room) {
	l.logger.Info().Int("rooms", len(rooms)).Strs("lines", RoomListLines(rooms)).Msg("room list")
}

func (l *Log) ShowRoom(room protocol.Room) {
	l.logger.Info().Str("room_id", room.ID).Strs("lines", RoomLines(room)).Msg("room")
}

func (l *Log) ShowRoundStart(roundNumber int, cards []protocol.Card) {
	l.logger.Info().Int("round", roundNumber).Strs("lines", CardLines(roundNumber, cards)).Msg("round start")
}

func (l *Log) ShowRoundEnd(result protocol.RoundEndPayload) {
	l.logger.Info().
		Int("round", result.RoundNumber).
		Str("winner", result.Winner).
		Str("summary", result.Summary).
		Msg("round end")
}

// ShowCountdown logs at debug level; it fires every second.
func (l *Log) ShowCountdown(roundNumber, secondsRemaining int) {
	l.logger.Debug().Int("round", roundNumber).Int("seconds_remaining", secondsRemaining).Msg(CountdownLine(roundNumber, secondsRemaining))
}

func (l *Log) ShowGameEvent(event protocol.EventType, game protocol.GamePayload) {
	l.logger.Info().Str("event", string(event)).Str("room_id", game.RoomID).Msg(GameEventLine(event, game))
}

func (l *Log) ShowError(message string) {
	l.logger.Error().Str("message", message).Msg("server error")
}
