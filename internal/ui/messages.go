package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	infoStyle    = lipgloss.NewStyle().Foreground(ColorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Success prints a completed-step line.
func Success(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", successStyle.Render(SymbolSuccess), fmt.Sprintf(format, args...))
}

// Warn prints a notice the user should see but that doesn't stop anything.
func Warn(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", warningStyle.Render(SymbolWarning), fmt.Sprintf(format, args...))
}

// Info prints a labelled detail line, e.g. "› Mode: compact".
func Info(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s %s\n", infoStyle.Render(SymbolInfo), mutedStyle.Render(label+":"), value)
}
