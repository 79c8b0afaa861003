package round

import (
	"math/rand"
	"sync"
	"time"

	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
)

type AutoPlayStrategy interface {
	// Choose picks the card to play when the round timer runs out. cards may
	// be empty.
	Choose(cards []protocol.Card) protocol.Card
}

// RandomStrategy picks uniformly among the distinct card types on hand, so a
// hand of four attacks and one build still builds half the time.
type RandomStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy constructs a RandomStrategy with its own seed.
func NewRandomStrategy() *RandomStrategy {
	return NewSeededStrategy(time.Now().UnixNano())
}

// NewSeededStrategy constructs a RandomStrategy with a fixed seed.
func NewSeededStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{rng: rand.New(rand.NewSource(seed))}
}

// Choose implements AutoPlayStrategy.Choose
func (s *RandomStrategy) Choose(cards []protocol.Card) protocol.Card {
	byType := make(map[protocol.CardType][]protocol.Card)
	var types []protocol.CardType
	for _, c := range cards {
		if !c.Type.Valid() {
			continue
		}
		if _, seen := byType[c.Type]; !seen {
			types = append(types, c.Type)
		}
		byType[c.Type] = append(byType[c.Type], c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Nothing usable on hand: any action keeps the round moving.
	if len(types) == 0 {
		return protocol.Card{Type: protocol.AllCardTypes[s.rng.Intn(len(protocol.AllCardTypes))]}
	}

	t := types[s.rng.Intn(len(types))]
	candidates := byType[t]
	return candidates[s.rng.Intn(len(candidates))]
}
