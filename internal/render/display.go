package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/arcanaland/oracle/internal/card"
	"github.com/arcanaland/oracle/internal/reading"
)

// SpreadPositions names the three places of a full reading
var SpreadPositions = []string{"Foundation", "Present", "Path forward"}

func suitSymbol(suit string) string {
	switch suit {
	case card.SuitWands:
		return "♣"
	case card.SuitCups:
		return "♥"
	case card.SuitSwords:
		return "♠"
	case card.SuitPentacles:
		return "♦"
	case card.SuitMajorArcana:
		return "★"
	default:
		return "•"
	}
}

func label(name string) string {
	return color.CyanString("%-7s", name+":")
}

// CardInfo returns the labelled lines describing a card
func CardInfo(c card.Card, width int) []string {
	lines := []string{
		label("Card") + color.HiWhiteString("%s", c.Name),
		label("Suit") + color.HiWhiteString("%s · %s", c.Suit, suitSymbol(c.Suit)),
	}
	if c.IsMajor() {
		lines = append(lines, label("Rank")+color.HiWhiteString("%d", c.Number))
	} else {
		lines = append(lines, label("Rank")+color.HiWhiteString("%d of %s", c.Number, c.Suit))
	}
	lines = append(lines, label("Image")+color.HiWhiteString("%s", c.ImagePath()))

	if c.Meaning != "" {
		lines = append(lines, "", color.CyanString("Meaning:"))
		lines = append(lines, WrapText(c.Meaning, width)...)
	}
	return lines
}

// Card writes card details, with art on the left when art is not empty
func Card(w io.Writer, c card.Card, art string, width int) {
	if art == "" {
		fmt.Fprintln(w)
		for _, line := range CardInfo(c, width-2) {
			indented(w, line)
		}
		fmt.Fprintln(w)
		return
	}

	artLines := strings.Split(strings.TrimRight(art, "\n"), "\n")
	maxArtWidth := 0
	for _, line := range artLines {
		maxArtWidth = max(maxArtWidth, VisibleWidth(line))
	}

	const spacing = 4
	infoStartCol := maxArtWidth + spacing
	infoWidth := max(width-infoStartCol-2, 20)
	infoLines := CardInfo(c, infoWidth)

	fmt.Fprintln(w)
	for i := 0; i < max(len(artLines), len(infoLines)); i++ {
		fmt.Fprint(w, "  ")
		if i < len(artLines) {
			fmt.Fprint(w, artLines[i])
			fmt.Fprint(w, strings.Repeat(" ", infoStartCol-VisibleWidth(artLines[i])))
		} else {
			fmt.Fprint(w, strings.Repeat(" ", infoStartCol))
		}
		if i < len(infoLines) {
			fmt.Fprint(w, infoLines[i])
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

// Reading writes a full reading: the spread, then the wrapped narrative
func Reading(w io.Writer, r reading.Reading, width int) {
	fmt.Fprintln(w)
	if r.Question != "" {
		fmt.Fprintln(w, color.CyanString("Question: ")+color.HiWhiteString("%s", r.Question))
		fmt.Fprintln(w)
	}

	for i, c := range r.Cards {
		position := fmt.Sprintf("Card %d", i+1)
		if i < len(SpreadPositions) {
			position = SpreadPositions[i]
		}
		fmt.Fprintf(w, "  %s %s %s\n",
			color.CyanString("%-13s", position),
			color.HiWhiteString("%s", c.Name),
			color.New(color.Faint).Sprintf("(%s)", c.Meaning))
	}

	narrative(w, r.Reading, r.IsOffline, width)
}

// QuickReading writes a single-card reading
func QuickReading(w io.Writer, q reading.QuickReading, width int) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s %s\n",
		color.CyanString("Card:"),
		color.HiWhiteString("%s", q.Card.Name),
		color.New(color.Faint).Sprintf("(%s)", q.Card.Meaning))
	narrative(w, q.Reading, q.IsOffline, width)
}

func narrative(w io.Writer, text string, offline bool, width int) {
	fmt.Fprintln(w)
	for _, line := range WrapText(text, width-4) {
		indented(w, line)
	}
	if offline {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  "+color.YellowString("The spirits are quiet; this reading was composed offline."))
	}
	fmt.Fprintln(w)
}

func indented(w io.Writer, line string) {
	if line == "" {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintln(w, "  "+line)
}
