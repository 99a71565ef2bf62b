// Package render formats cards and readings for the terminal.
package render

import (
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const defaultWidth = 80

// TerminalWidth returns the width of stdout, or 80 when it is not a terminal
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// WrapText wraps text to width columns, breaking only between words.
// Blank lines in text are kept as paragraph breaks.
func WrapText(text string, width int) []string {
	if width < 10 {
		width = 40
	}

	var result []string
	for i, paragraph := range strings.Split(text, "\n\n") {
		if i > 0 {
			result = append(result, "")
		}
		result = append(result, wrapParagraph(paragraph, width)...)
	}
	return result
}

func wrapParagraph(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var result []string
	currentLine := words[0]
	for _, word := range words[1:] {
		if utf8.RuneCountInString(currentLine)+1+utf8.RuneCountInString(word) <= width {
			currentLine += " " + word
		} else {
			result = append(result, currentLine)
			currentLine = word
		}
	}
	return append(result, currentLine)
}

// StripANSI removes ANSI color escape sequences from s
func StripANSI(s string) string {
	var result strings.Builder
	inEscape := false
	for _, c := range s {
		switch {
		case inEscape:
			if c == 'm' {
				inEscape = false
			}
		case c == '\033':
			inEscape = true
		default:
			result.WriteRune(c)
		}
	}
	return result.String()
}

// VisibleWidth counts the runes of s that reach the screen
func VisibleWidth(s string) int {
	return utf8.RuneCountInString(StripANSI(s))
}
