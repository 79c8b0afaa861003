package input

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	ErrLowConfidence = errors.New("gesture confidence below threshold")
	ErrRateLimited   = errors.New("gesture rate limited")
	ErrNotConfirmed  = errors.New("gesture not confirmed")
)

// GestureSender submits a recognised gesture to the game.
type GestureSender interface {
	SendGestureData(actionType protocol.CardType, confidence float64) error
}

// Confirmer asks the user to confirm an action.
type Confirmer interface {
	Wait(ctx context.Context) (bool, error)
}

type RelayConfig struct {
	MinConfidence float64
	Rate          float64 // gestures per second
	Burst         int
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		MinConfidence: 0.6,
		Rate:          2,
		Burst:         1,
	}
}

// Relay sits between the sensing pipeline and the session. It drops
// low-confidence classifications, throttles bursts and waits for the user's
// confirmation before submitting.
type Relay struct {
	sender  GestureSender
	confirm Confirmer
	limiter *rate.Limiter
	config  RelayConfig
}

// NewRelay creates a relay. confirm may be nil to submit without confirmation.
func NewRelay(sender GestureSender, confirm Confirmer, config RelayConfig) *Relay {
	if config.Rate <= 0 {
		config.Rate = DefaultRelayConfig().Rate
	}
	if config.Burst <= 0 {
		config.Burst = DefaultRelayConfig().Burst
	}
	return &Relay{
		sender:  sender,
		confirm: confirm,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
		config:  config,
	}
}

// Submit relays one classification.
func (r *Relay) Submit(ctx context.Context, action protocol.CardType, confidence float64) error {
	if confidence < r.config.MinConfidence {
		log.Debug().
			Str("gesture", string(action)).
			Float64("confidence", confidence).
			Float64("min_confidence", r.config.MinConfidence).
			Msg("dropping low-confidence gesture")
		return fmt.Errorf("%s at %.2f: %w", action, confidence, ErrLowConfidence)
	}
	if !r.limiter.Allow() {
		log.Debug().Str("gesture", string(action)).Msg("gesture rate limited")
		return ErrRateLimited
	}

	if r.confirm != nil {
		log.Info().Str("gesture", string(action)).Msg("press to confirm gesture")
		ok, err := r.confirm.Wait(ctx)
		if err != nil {
			return fmt.Errorf("confirm gesture: %w", err)
		}
		if !ok {
			log.Info().Str("gesture", string(action)).Msg("gesture not confirmed")
			return ErrNotConfirmed
		}
	}

	return r.sender.SendGestureData(action, confidence)
}
