package round

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
	"github.com/rs/zerolog/log"
)

// Player submits the auto-play card.
type Player interface {
	SendAutoPlay(card protocol.Card) error
}

// Renderer receives every countdown tick.
type Renderer interface {
	ShowCountdown(roundNumber, secondsRemaining int)
}

// Config holds round timer settings
type Config struct {
	// Duration is the countdown started by every round.
	Duration time.Duration
	// UseServerDuration starts the countdown from the server's remainingTime
	// instead of Duration when the server sends one.
	UseServerDuration bool
}

// DefaultConfig returns the default round configuration
func DefaultConfig() Config {
	return Config{Duration: 30 * time.Second}
}

// Snapshot is a consistent view of the round
type Snapshot struct {
	RoundNumber      int
	SecondsRemaining int
	TimerActive      bool
	GameInProgress   bool
	Cards            []protocol.Card
}

// Option configures a State.
type Option func(*State)

// WithClock replaces the real clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(s *State) { s.clock = clock }
}

// WithStrategy replaces the random auto-play strategy.
func WithStrategy(strategy AutoPlayStrategy) Option {
	return func(s *State) { s.strategy = strategy }
}

// State holds per-round bookkeeping and owns the countdown goroutine. At most
// one countdown runs at any time.
type State struct {
	clock    clockwork.Clock
	config   Config
	strategy AutoPlayStrategy
	player   Player
	renderer Renderer

	// timerMu serialises starting and stopping countdowns.
	timerMu sync.Mutex
	running *countdown

	mu               sync.Mutex
	roundNumber      int
	secondsRemaining int
	owner            *countdown // countdown allowed to tick and expire; nil when idle
	cards            []protocol.Card
	gameInProgress   bool

	autoPlays atomic.Uint64
}

type countdown struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (c *countdown) cancel() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// NewState creates round state. player receives auto-play submissions and
// renderer every countdown tick.
func NewState(config Config, player Player, renderer Renderer, opts ...Option) *State {
	if config.Duration <= 0 {
		config.Duration = DefaultConfig().Duration
	}
	s := &State{
		clock:    clockwork.NewRealClock(),
		config:   config,
		player:   player,
		renderer: renderer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.strategy == nil {
		s.strategy = NewRandomStrategy()
	}
	return s
}

// ReplaceCards swaps in a new hand.
func (s *State) ReplaceCards(cards []protocol.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards = append([]protocol.Card(nil), cards...)
}

// Cards returns a copy of the current hand
func (s *State) Cards() []protocol.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Card(nil), s.cards...)
}

// SetGameInProgress records whether a game is running.
func (s *State) SetGameInProgress(inProgress bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameInProgress = inProgress
}

// GameInProgress reports whether a game is running
func (s *State) GameInProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameInProgress
}

// AutoPlays returns how many auto-play submissions were made
func (s *State) AutoPlays() uint64 {
	return s.autoPlays.Load()
}

// Snapshot returns a consistent view of the round
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		RoundNumber:      s.roundNumber,
		SecondsRemaining: s.secondsRemaining,
		TimerActive:      s.owner != nil,
		GameInProgress:   s.gameInProgress,
		Cards:            append([]protocol.Card(nil), s.cards...),
	}
}

// StartRound begins round roundNumber and (re)starts its countdown. The
// server's remaining time is used only when UseServerDuration is set.
func (s *State) StartRound(roundNumber, serverSeconds int) {
	seconds := int(s.config.Duration / time.Second)
	if s.config.UseServerDuration && serverSeconds > 0 {
		seconds = serverSeconds
	} else if serverSeconds > 0 && serverSeconds != seconds {
		log.Debug().
			Int("server_seconds", serverSeconds).
			Int("seconds", seconds).
			Msg("ignoring server round duration")
	}

	s.mu.Lock()
	s.roundNumber = roundNumber
	s.gameInProgress = true
	s.mu.Unlock()

	log.Info().Int("round", roundNumber).Int("seconds", seconds).Msg("round started")
	s.StartTimer(seconds)
}

// StartTimer starts a countdown of seconds, cancelling and waiting out any
// countdown already running. A non-positive value uses the configured round
// duration.
func (s *State) StartTimer(seconds int) {
	if seconds < 1 {
		seconds = max(int(s.config.Duration/time.Second), 1)
	}

	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	s.mu.Lock()
	s.owner = nil
	s.mu.Unlock()
	if s.running != nil {
		s.running.cancel()
		<-s.running.done
		log.Debug().Msg("replaced running countdown")
	}

	cd := &countdown{stop: make(chan struct{}), done: make(chan struct{})}
	ticker := s.clock.NewTicker(time.Second)

	s.mu.Lock()
	s.secondsRemaining = seconds
	s.owner = cd
	round := s.roundNumber
	s.mu.Unlock()
	s.running = cd

	go s.tick(cd, ticker)
	s.render(round, seconds)
}

// StopTimer cancels the running countdown without auto-play. It returns false
// when no countdown was running.
func (s *State) StopTimer() bool {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	s.mu.Lock()
	active := s.owner != nil
	s.owner = nil
	s.mu.Unlock()

	if s.running != nil {
		s.running.cancel()
		<-s.running.done
		s.running = nil
	}
	if active {
		log.Debug().Msg("countdown stopped")
	}
	return active
}

// Reset stops the countdown and forgets the round, the hand and the game flag.
func (s *State) Reset() {
	s.StopTimer()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roundNumber = 0
	s.secondsRemaining = 0
	s.cards = nil
	s.gameInProgress = false
}

func (s *State) tick(cd *countdown, ticker clockwork.Ticker) {
	defer close(cd.done)
	defer ticker.Stop()

	for {
		select {
		case <-cd.stop:
			return
		case <-ticker.Chan():
			s.mu.Lock()
			if s.owner != cd {
				s.mu.Unlock()
				return
			}
			s.secondsRemaining--
			remaining := s.secondsRemaining
			round := s.roundNumber
			expired := remaining <= 0
			var cards []protocol.Card
			if expired {
				s.secondsRemaining = 0
				s.owner = nil
				cards = append(cards, s.cards...)
			}
			s.mu.Unlock()

			s.render(round, remaining)
			if expired {
				s.autoPlay(round, cards)
				return
			}
		}
	}
}

func (s *State) autoPlay(round int, cards []protocol.Card) {
	card := s.strategy.Choose(cards)
	defer s.autoPlays.Add(1)
	log.Info().
		Int("round", round).
		Str("card_id", card.ID).
		Str("card_type", string(card.Type)).
		Msg("round timer expired, auto-playing")
	if s.player == nil {
		return
	}
	if err := s.player.SendAutoPlay(card); err != nil {
		log.Error().Err(err).Int("round", round).Msg("auto-play failed")
	}
}

func (s *State) render(round, seconds int) {
	if s.renderer != nil {
		s.renderer.ShowCountdown(round, seconds)
	}
}
