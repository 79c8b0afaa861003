// Package display renders session state for the device's user. Every call is
// fire-and-forget: implementations must not block the caller for long and
// never report failures back.
package display

import "github.com/mcdev12/gesturegame/go/internal/session/protocol"

// Display is the rendering surface driven by the router and the round timer.
type Display interface {
	Render(lines []string)
	ShowRoomList(rooms []protocol.Room)
	ShowRoom(room protocol.Room)
	ShowRoundStart(roundNumber int, cards []protocol.Card)
	ShowRoundEnd(result protocol.RoundEndPayload)
	ShowCountdown(roundNumber, secondsRemaining int)
	ShowGameEvent(event protocol.EventType, game protocol.GamePayload)
	ShowError(message string)
}

// Multi fans every call out to each display in order.
type Multi []Display

func (m Multi) Render(lines []string) {
	for _, d := range m {
		d.Render(lines)
	}
}

func (m Multi) ShowRoomList(rooms []protocol.Room) {
	for _, d := range m {
		d.ShowRoomList(rooms)
	}
}

func (m Multi) ShowRoom(room protocol.Room) {
	for _, d := range m {
		d.ShowRoom(room)
	}
}

func (m Multi) ShowRoundStart(roundNumber int, cards []protocol.Card) {
	for _, d := range m {
		d.ShowRoundStart(roundNumber, cards)
	}
}

func (m Multi) ShowRoundEnd(result protocol.RoundEndPayload) {
	for _, d := range m {
		d.ShowRoundEnd(result)
	}
}

func (m Multi) ShowCountdown(roundNumber, secondsRemaining int) {
	for _, d := range m {
		d.ShowCountdown(roundNumber, secondsRemaining)
	}
}

func (m Multi) ShowGameEvent(event protocol.EventType, game protocol.GamePayload) {
	for _, d := range m {
		d.ShowGameEvent(event, game)
	}
}

func (m Multi) ShowError(message string) {
	for _, d := range m {
		d.ShowError(message)
	}
}
