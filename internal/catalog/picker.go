package catalog

import (
	"math/rand/v2"

	"github.com/arcanaland/oracle/internal/card"
)

// RNG abstracts random number generation for deterministic testing.
type RNG interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

// SystemRNG delegates to math/rand/v2 (auto-seeded, safe for concurrent use).
type SystemRNG struct{}

func (SystemRNG) Intn(n int) int { return rand.IntN(n) }

// Picker draws cards uniformly at random from a catalog.
// Every draw is independent, so one reading may repeat a card.
type Picker struct {
	catalog *Catalog
	rng     RNG
}

func NewPicker(c *Catalog, rng RNG) *Picker {
	if rng == nil {
		rng = SystemRNG{}
	}
	return &Picker{catalog: c, rng: rng}
}

// Pick returns one card
func (p *Picker) Pick() card.Card {
	return p.catalog.At(p.rng.Intn(p.catalog.Len()))
}

// Draw returns n cards in draw order
func (p *Picker) Draw(n int) []card.Card {
	cards := make([]card.Card, n)
	for i := range cards {
		cards[i] = p.Pick()
	}
	return cards
}
