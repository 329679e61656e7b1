// Package terminal provides small helpers for line-oriented terminal output.
package terminal

import (
	"os"

	"atomicgo.dev/cursor"
	"golang.org/x/term"
)

// defaultWidth is used when stdout is not a terminal.
const defaultWidth = 80

// Width returns the terminal width of stdout.
func Width() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultWidth
}

// ClearPreviousLines erases a prompt and the user's answer after Enter.
// textLength is the number of characters printed (prompt plus input).
func ClearPreviousLines(textLength int) {
	cursor.ClearLinesUp(LinesUsed(textLength, Width()))
	cursor.StartOfLine()
}

// LinesUsed returns how many lines textLength characters occupied at the
// given width, plus the empty line the cursor moved to on Enter.
func LinesUsed(textLength, width int) int {
	if width <= 0 {
		width = defaultWidth
	}
	lines := (textLength + width - 1) / width
	if lines < 1 {
		lines = 1
	}
	return lines + 1
}
