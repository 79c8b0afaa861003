package display

import (
	"fmt"

	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
)

// RoomListLines formats a room list, one room per line.
func RoomListLines(rooms []protocol.Room) []string {
	if len(rooms) == 0 {
		return []string{"no rooms available"}
	}
	lines := make([]string, 0, len(rooms)+1)
	lines = append(lines, fmt.Sprintf("%d room(s):", len(rooms)))
	for _, r := range rooms {
		lines = append(lines, fmt.Sprintf("%s %s %d/%d %s", r.ID, r.Name, r.PlayerCount, r.MaxPlayers, r.Status))
	}
	return lines
}

// RoomLines formats a single room and its players.
func RoomLines(room protocol.Room) []string {
	lines := []string{
		fmt.Sprintf("room %s (%s)", room.Name, room.ID),
		fmt.Sprintf("%d/%d players, %s", room.PlayerCount, room.MaxPlayers, room.Status),
	}
	for _, p := range room.Players {
		state := "not ready"
		if p.IsReady {
			state = "ready"
		}
		lines = append(lines, fmt.Sprintf("  %s: %s", p.Name, state))
	}
	return lines
}

// CardLines formats a hand of cards.
func CardLines(roundNumber int, cards []protocol.Card) []string {
	lines := []string{fmt.Sprintf("round %d", roundNumber)}
	if len(cards) == 0 {
		return append(lines, "no cards")
	}
	for i, c := range cards {
		name := c.Name
		if name == "" {
			name = string(c.Type)
		}
		lines = append(lines, fmt.Sprintf("%d. %s [%s]", i+1, name, c.Type))
	}
	return lines
}

// CountdownLine formats a countdown tick.
func CountdownLine(roundNumber, secondsRemaining int) string {
	if secondsRemaining <= 0 {
		return fmt.Sprintf("round %d: time's up", roundNumber)
	}
	return fmt.Sprintf("round %d: %ds left", roundNumber, secondsRemaining)
}

// GameEventLine formats a game lifecycle event.
func GameEventLine(event protocol.EventType, game protocol.GamePayload) string {
	switch event {
	case protocol.EventGameStarting:
		if game.Countdown > 0 {
			return fmt.Sprintf("game starting in %d", game.Countdown)
		}
		return "game starting"
	case protocol.EventGameStarted:
		return "game started"
	case protocol.EventGameEnded:
		if game.Winner != "" {
			return fmt.Sprintf("game over, %s wins", game.Winner)
		}
		return "game over"
	}
	if game.Message != "" {
		return game.Message
	}
	return string(event)
}
