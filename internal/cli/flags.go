package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rileyhilliard/node-monitor/internal/config"
	"github.com/rileyhilliard/node-monitor/internal/errors"
)

// Output formats for --once.
const (
	formatText = "text"
	formatYAML = "yaml"
)

// ValidateFormat checks the --format value.
func ValidateFormat(format string) error {
	switch format {
	case formatText, formatYAML:
		return nil
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("'%s' isn't a supported output format", format),
		"Use --format text or --format yaml.")
}

// ColorProfile maps a --color value to a terminal profile. ok is false for
// "auto", which leaves detection to lipgloss.
func ColorProfile(color string) (profile termenv.Profile, ok bool) {
	switch color {
	case config.ColorNever:
		return termenv.Ascii, true
	case config.ColorAlways:
		p := termenv.EnvColorProfile()
		if p == termenv.Ascii {
			p = termenv.ANSI256
		}
		return p, true
	}
	return termenv.Ascii, false
}

// applyColor sets the global lipgloss profile for the --color value.
func applyColor(color string) {
	if p, ok := ColorProfile(color); ok {
		lipgloss.SetColorProfile(p)
	}
}
