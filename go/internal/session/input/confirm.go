package input

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	DefaultConfirmWindow = 5 * time.Second
	defaultPollInterval  = 50 * time.Millisecond
)

// ConfirmGate waits for the user to press the button within a window.
type ConfirmGate struct {
	clock  clockwork.Clock
	source PressSource
	window time.Duration
	poll   time.Duration
}

func NewConfirmGate(clock clockwork.Clock, source PressSource, window time.Duration) *ConfirmGate {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = DefaultConfirmWindow
	}
	return &ConfirmGate{
		clock:  clock,
		source: source,
		window: window,
		poll:   defaultPollInterval,
	}
}

// Wait blocks until the press counter moves past its value at call time or
// the window closes. It returns true on a press, false when the window
// expired, and ctx's error if ctx ends first.
func (g *ConfirmGate) Wait(ctx context.Context) (bool, error) {
	baseline := g.source.Presses()

	deadline := g.clock.NewTimer(g.window)
	defer deadline.Stop()
	ticker := g.clock.NewTicker(g.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.Chan():
			log.Debug().Dur("window", g.window).Msg("confirmation window expired")
			return g.source.Presses() > baseline, nil
		case <-ticker.Chan():
			if g.source.Presses() > baseline {
				return true, nil
			}
		}
	}
}
