package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor returns true when ANSI colors should be used on stdout.
// It respects NO_COLOR, CLICOLOR_FORCE, CLICOLOR, and TTY detection.
func ShouldUseColor() bool {
	// https://no-color.org: any non-empty value disables color.
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
