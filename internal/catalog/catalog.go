package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/arcanaland/oracle/internal/card"
	"github.com/arcanaland/oracle/internal/validator"
)

//go:embed cards.toml
var builtinCards string

// ErrInvalidCatalog is returned when a catalog fails validation
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is a fixed, read-only set of tarot cards.
// It is never mutated after construction and is safe to share.
type Catalog struct {
	cards  []card.Card
	byName map[string]int
}

// catalogFile is the on-disk TOML layout
type catalogFile struct {
	Cards []card.Card `toml:"cards"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(builtinCards)
		if err != nil {
			panic(fmt.Sprintf("built-in catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load reads a catalog from a TOML file with the same layout as the built-in one
func Load(path string) (*Catalog, error) {
	cards, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return New(cards)
}

// DecodeFile reads the cards of a catalog file without validating them
func DecodeFile(path string) ([]card.Card, error) {
	var file catalogFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("error parsing catalog %s: %w", path, err)
	}
	return file.Cards, nil
}

// Parse decodes a catalog from TOML text
func Parse(data string) (*Catalog, error) {
	var file catalogFile
	if _, err := toml.Decode(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing catalog: %w", err)
	}
	return New(file.Cards)
}

// New builds a catalog from cards, rejecting sets that fail validation
func New(cards []card.Card) (*Catalog, error) {
	results := validator.NewValidator(cards).Validate()
	if !results.OK() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(results.Errors, "; "))
	}

	c := &Catalog{
		cards:  make([]card.Card, len(cards)),
		byName: make(map[string]int, len(cards)),
	}
	copy(c.cards, cards)
	for i, cd := range c.cards {
		c.byName[strings.ToLower(cd.Name)] = i
	}
	return c, nil
}

// Len returns the number of cards
func (c *Catalog) Len() int {
	return len(c.cards)
}

// Cards returns a copy of the cards in catalog order
func (c *Catalog) Cards() []card.Card {
	out := make([]card.Card, len(c.cards))
	copy(out, c.cards)
	return out
}

// At returns the card at index i
func (c *Catalog) At(i int) card.Card {
	return c.cards[i]
}

// Lookup finds a card by name, ignoring case
func (c *Catalog) Lookup(name string) (card.Card, bool) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return card.Card{}, false
	}
	return c.cards[i], true
}
