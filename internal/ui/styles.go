// Package ui renders CLI output: colors and small table helpers.
package ui

import (
	"fmt"

	"github.com/alfredjeanlab/orggraph/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent  = 74  // blue
	colorMuted   = 245 // medium gray
	colorUrgent  = 203 // red
	colorWarning = 215 // orange
	colorOK      = 114 // green
)

var noColor = true

// Setup enables color when stdout supports it and disable is false.
func Setup(disable bool) {
	noColor = disable || !ShouldUseColor()
}

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderOK returns s in green.
func RenderOK(s string) string { return paint(colorOK, s) }

// RenderPriority colors a notification priority by severity.
func RenderPriority(p model.Priority) string {
	switch p {
	case model.PriorityUrgent:
		return paint(colorUrgent, string(p))
	case model.PriorityWarning:
		return paint(colorWarning, string(p))
	}
	return paint(colorMuted, string(p))
}

// RenderActive marks the active profile.
func RenderActive(active bool) string {
	if active {
		return RenderOK("●")
	}
	return RenderMuted("○")
}
