// Package prompt renders the chat-completion prompts for tarot readings.
//
// Prompts are plain string interpolation: the same question and the same
// cards in the same order always produce byte-identical text.
package prompt

import (
	"fmt"
	"strings"

	"github.com/arcanaland/oracle/internal/card"
)

// Prompt is a system/user message pair for the completion API
type Prompt struct {
	System string
	User   string
}

const (
	fullSystem  = "You are the Oracle, an ancient mystical tarot reader who speaks with wisdom and mystical insight. Always stay in character as a mystical oracle."
	quickSystem = "You are the Oracle. Give brief, mystical responses."
)

// Full builds the prompt for a multi-card reading
func Full(question string, cards []card.Card) Prompt {
	var b strings.Builder

	b.WriteString("You are the Oracle, a mystical tarot reader with ancient wisdom.\n\n")
	fmt.Fprintf(&b, "A seeker has come to you with this question: \"%s\"\n\n", question)
	b.WriteString("The cards drawn for this reading are:\n")
	for i, c := range cards {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s - %s", i+1, c, c.Meaning)
	}
	b.WriteString(`

Provide a mystical, insightful tarot reading that:
- Addresses their specific question
- Interprets each card in context of their question
- Weaves the cards together into a coherent narrative
- Offers guidance and wisdom
- Uses mystical, oracle-like language but remains accessible
- Is 3-4 paragraphs long

Speak as the Oracle in first person. Begin with "I see..." or "The cards reveal..." or similar mystical opening.`)

	return Prompt{System: fullSystem, User: b.String()}
}

// Quick builds the prompt for a single-card follow-up
func Quick(question string, c card.Card) Prompt {
	user := fmt.Sprintf(`You are the Oracle. Someone asks: "%s"

The card drawn is: %s - %s

Give a brief, mystical response (2-3 sentences) that interprets this card in relation to their question. Speak as the Oracle.`,
		question, c.Name, c.Meaning)

	return Prompt{System: quickSystem, User: user}
}
