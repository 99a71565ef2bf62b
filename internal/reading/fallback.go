package reading

import (
	"fmt"
	"strings"

	"github.com/arcanaland/oracle/internal/card"
)

// positionLines describe each spread position in the offline narrative
var positionLines = []string{
	"The cosmos has drawn %s, revealing %s. This card speaks to the foundation of your current situation.",
	"%s appears in the present position, indicating %s. The energies surrounding you now are shifting.",
	"Finally, %s illuminates your path forward with %s. Trust in the wisdom these cards offer.",
}

const extraPositionLine = "%s also answers your call, bringing %s. Let its message settle alongside the others."

const fallbackClosing = "The universe speaks through these ancient symbols. Meditate upon their message, for within their imagery lies the guidance you seek. Remember, dear seeker, you hold the power to shape your destiny."

// FallbackText composes the offline narrative for a full reading
func FallbackText(question string, cards []card.Card) string {
	paragraphs := make([]string, 0, len(cards)+2)
	paragraphs = append(paragraphs,
		fmt.Sprintf("I sense your energy reaching across the veil with the question: \"%s\"", question))

	for i, c := range cards {
		line := extraPositionLine
		if i < len(positionLines) {
			line = positionLines[i]
		}
		paragraphs = append(paragraphs, fmt.Sprintf(line, c.Name, strings.ToLower(c.Meaning)))
	}

	paragraphs = append(paragraphs, fallbackClosing)
	return strings.Join(paragraphs, "\n\n")
}

// QuickFallbackText composes the offline answer for a single card
func QuickFallbackText(c card.Card) string {
	name := c.Name
	if !strings.HasPrefix(name, "The ") {
		name = "The " + name
	}
	return fmt.Sprintf("%s appears, speaking of %s. Trust in this guidance, seeker.",
		name, strings.ToLower(c.Meaning))
}
