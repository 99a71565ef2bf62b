package card

import (
	"regexp"
	"strings"
)

// Suits recognised by the catalog
const (
	SuitMajorArcana = "Major Arcana"
	SuitCups        = "Cups"
	SuitPentacles   = "Pentacles"
	SuitSwords      = "Swords"
	SuitWands       = "Wands"
)

// Suits lists every suit in catalog order
var Suits = []string{SuitMajorArcana, SuitCups, SuitPentacles, SuitSwords, SuitWands}

// Card represents a tarot card
type Card struct {
	Name    string `toml:"name" json:"name"`       // Unique within a catalog (e.g., The Fool, Ace of Cups)
	Suit    string `toml:"suit" json:"suit"`       // Major Arcana, Cups, Pentacles, Swords or Wands
	Number  int    `toml:"number" json:"number"`   // 0-21 for major arcana, 1+ for minor arcana
	Meaning string `toml:"meaning" json:"meaning"` // Short interpretation
}

var (
	nonFilenameChars = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRuns   = regexp.MustCompile(`\s+`)
)

// IsMajor reports whether the card belongs to the major arcana
func (c Card) IsMajor() bool {
	return c.Suit == SuitMajorArcana
}

// ImagePath returns the image filename for the card, e.g. "The Fool" -> "fool.jpg"
func (c Card) ImagePath() string {
	name := strings.ToLower(c.Name)
	name = nonFilenameChars.ReplaceAllString(name, "")
	name = whitespaceRuns.ReplaceAllString(name, "_")
	name = strings.TrimPrefix(name, "the_")
	return name + ".jpg"
}

// String returns the card as it is listed in a reading prompt
func (c Card) String() string {
	return c.Name + " (" + c.Suit + ")"
}
