package input

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
)

func TestCounterIsMonotonic(t *testing.T) {
	var c Counter
	for i := uint64(1); i <= 3; i++ {
		if got := c.Press(); got != i {
			t.Fatalf("Press()=%d, want %d", got, i)
		}
	}
	if c.Presses() != 3 {
		t.Fatalf("Presses()=%d, want 3", c.Presses())
	}
}

type gateResult struct {
	ok  bool
	err error
}

func startWait(ctx context.Context, g *ConfirmGate) chan gateResult {
	out := make(chan gateResult, 1)
	go func() {
		ok, err := g.Wait(ctx)
		out <- gateResult{ok, err}
	}()
	return out
}

func TestConfirmGate(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	t.Run("press inside window", func(t *testing.T) {
		fc := clockwork.NewFakeClock()
		var c Counter
		c.Press() // presses before the wait do not count
		g := NewConfirmGate(fc, &c, 5*time.Second)

		res := startWait(ctx, g)
		if err := fc.BlockUntilContext(ctx, 2); err != nil {
			t.Fatalf("waiting for gate timers: %v", err)
		}
		c.Press()
		fc.Advance(defaultPollInterval)

		r := <-res
		if !r.ok || r.err != nil {
			t.Fatalf("Wait()=%v,%v, want true,nil", r.ok, r.err)
		}
	})

	t.Run("window expires", func(t *testing.T) {
		fc := clockwork.NewFakeClock()
		var c Counter
		g := NewConfirmGate(fc, &c, 5*time.Second)

		res := startWait(ctx, g)
		if err := fc.BlockUntilContext(ctx, 2); err != nil {
			t.Fatalf("waiting for gate timers: %v", err)
		}
		fc.Advance(5 * time.Second)

		r := <-res
		if r.ok || r.err != nil {
			t.Fatalf("Wait()=%v,%v, want false,nil", r.ok, r.err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		fc := clockwork.NewFakeClock()
		var c Counter
		g := NewConfirmGate(fc, &c, 5*time.Second)

		waitCtx, stop := context.WithCancel(ctx)
		res := startWait(waitCtx, g)
		stop()

		r := <-res
		if !errors.Is(r.err, context.Canceled) {
			t.Fatalf("err=%v, want context.Canceled", r.err)
		}
	})
}

type fakeSender struct {
	sent []protocol.CardType
	err  error
}

func (s *fakeSender) SendGestureData(action protocol.CardType, _ float64) error {
	s.sent = append(s.sent, action)
	return s.err
}

type fakeConfirmer struct {
	ok    bool
	err   error
	calls int
}

func (c *fakeConfirmer) Wait(context.Context) (bool, error) {
	c.calls++
	return c.ok, c.err
}

func TestRelay(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		confirm    *fakeConfirmer
		confidence float64
		want       error
		sent       int
	}{
		{name: "confirmed", confirm: &fakeConfirmer{ok: true}, confidence: 0.9, sent: 1},
		{name: "no confirmation needed", confidence: 0.9, sent: 1},
		{name: "low confidence", confirm: &fakeConfirmer{ok: true}, confidence: 0.2, want: ErrLowConfidence},
		{name: "not confirmed", confirm: &fakeConfirmer{}, confidence: 0.9, want: ErrNotConfirmed},
		{name: "confirm aborted", confirm: &fakeConfirmer{err: context.Canceled}, confidence: 0.9, want: context.Canceled},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sender := &fakeSender{}
			var confirm Confirmer
			if tc.confirm != nil {
				confirm = tc.confirm
			}
			r := NewRelay(sender, confirm, DefaultRelayConfig())

			err := r.Submit(ctx, protocol.CardDefend, tc.confidence)
			if tc.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("err=%v, want %v", err, tc.want)
			}
			if len(sender.sent) != tc.sent {
				t.Fatalf("sent %d gestures, want %d", len(sender.sent), tc.sent)
			}
		})
	}
}

func TestRelayRateLimits(t *testing.T) {
	sender := &fakeSender{}
	r := NewRelay(sender, nil, RelayConfig{MinConfidence: 0.5, Rate: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		if err := r.Submit(context.Background(), protocol.CardAttack, 0.9); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if err := r.Submit(context.Background(), protocol.CardAttack, 0.9); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err=%v, want ErrRateLimited", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d, want 2", len(sender.sent))
	}
}
