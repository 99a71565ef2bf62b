package validator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/arcanaland/oracle/internal/card"
)

type ValidationResults struct {
	Errors   []string
	Warnings []string
}

// OK reports whether validation found no errors
func (r ValidationResults) OK() bool {
	return len(r.Errors) == 0
}

type Validator struct {
	Cards   []card.Card
	Results ValidationResults
}

func NewValidator(cards []card.Card) *Validator {
	return &Validator{
		Cards:   cards,
		Results: ValidationResults{},
	}
}

func (v *Validator) Validate() ValidationResults {
	v.Results = ValidationResults{}

	if len(v.Cards) == 0 {
		v.Results.Errors = append(v.Results.Errors, "catalog contains no cards")
		return v.Results
	}

	v.validateNames()
	v.validateSuits()
	v.validateMeanings()
	v.validateMajorArcana()

	return v.Results
}

// validateNames checks that every card has a name and that names are unique
func (v *Validator) validateNames() {
	seen := make(map[string]int)
	for i, c := range v.Cards {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			v.Results.Errors = append(v.Results.Errors,
				fmt.Sprintf("card %d: name is required", i+1))
			continue
		}

		key := strings.ToLower(name)
		if first, ok := seen[key]; ok {
			v.Results.Errors = append(v.Results.Errors,
				fmt.Sprintf("card %d: duplicate name %q (first defined as card %d)", i+1, c.Name, first))
			continue
		}
		seen[key] = i + 1
	}
}

// validateSuits checks suits and the rank range allowed for each suit
func (v *Validator) validateSuits() {
	for i, c := range v.Cards {
		if !slices.Contains(card.Suits, c.Suit) {
			v.Results.Errors = append(v.Results.Errors,
				fmt.Sprintf("card %d (%s): unknown suit %q", i+1, c.Name, c.Suit))
			continue
		}

		if c.IsMajor() {
			if c.Number < 0 || c.Number > 21 {
				v.Results.Errors = append(v.Results.Errors,
					fmt.Sprintf("card %d (%s): major arcana number must be 0-21, got %d", i+1, c.Name, c.Number))
			}
		} else if c.Number < 1 {
			v.Results.Errors = append(v.Results.Errors,
				fmt.Sprintf("card %d (%s): minor arcana number must be at least 1, got %d", i+1, c.Name, c.Number))
		}
	}
}

// validateMeanings checks that every card carries a meaning.
// Repeated meanings are legal but reported.
func (v *Validator) validateMeanings() {
	seen := make(map[string]string)
	for i, c := range v.Cards {
		meaning := strings.TrimSpace(c.Meaning)
		if meaning == "" {
			v.Results.Errors = append(v.Results.Errors,
				fmt.Sprintf("card %d (%s): meaning is required", i+1, c.Name))
			continue
		}

		key := strings.ToLower(meaning)
		if other, ok := seen[key]; ok {
			v.Results.Warnings = append(v.Results.Warnings,
				fmt.Sprintf("%s shares its meaning with %s", c.Name, other))
			continue
		}
		seen[key] = c.Name
	}
}

// validateMajorArcana warns when the major arcana is not fully enumerated
func (v *Validator) validateMajorArcana() {
	present := make(map[int]bool)
	for _, c := range v.Cards {
		if c.IsMajor() {
			present[c.Number] = true
		}
	}

	missing := []string{}
	for i := 0; i <= 21; i++ {
		if !present[i] {
			missing = append(missing, fmt.Sprintf("%02d", i))
		}
	}

	if len(missing) > 0 {
		v.Results.Warnings = append(v.Results.Warnings,
			fmt.Sprintf("missing major arcana: %s", strings.Join(missing, ", ")))
	}
}
