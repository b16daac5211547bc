package logging

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
// Returns false when BENDSINK_NON_INTERACTIVE=1 or CI is set.
func IsTerminal(f *os.File) bool {
	if os.Getenv("BENDSINK_NON_INTERACTIVE") == "1" {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// NoColor reports whether colored output is disabled by NO_COLOR.
func NoColor() bool {
	return os.Getenv("NO_COLOR") != ""
}
