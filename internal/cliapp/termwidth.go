package cliapp

import (
	"os"

	"golang.org/x/term"
	"golang.org/x/text/width"
)

// terminalWidth returns the current terminal column width, falling back to
// a sane default when stdout isn't a TTY (piped output, CI logs).
func terminalWidth() int {
	const fallback = 100
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return fallback
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// displayWidth measures s in terminal columns, counting East-Asian
// wide/fullwidth runes as two columns the way a real terminal renders them.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// truncateForWidth shortens s to fit within max display columns, appending
// an ellipsis when it had to cut. Used to keep the resumable-workflows
// table readable on narrow terminals.
func truncateForWidth(s string, max int) string {
	if max <= 1 || displayWidth(s) <= max {
		return s
	}
	out := make([]rune, 0, len(s))
	n := 0
	for _, r := range s {
		w := 1
		if k := width.LookupRune(r).Kind(); k == width.EastAsianWide || k == width.EastAsianFullwidth {
			w = 2
		}
		if n+w > max-1 {
			break
		}
		out = append(out, r)
		n += w
	}
	return string(out) + "…"
}
