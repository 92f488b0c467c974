package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/node-monitor/internal/layout"
)

// Dashboard color palette
const (
	ColorBorder = lipgloss.Color("#2A2A4A")

	ColorHealthy  = lipgloss.Color("#39FF14") // neon green
	ColorModerate = lipgloss.Color("#FFE600") // yellow
	ColorWarning  = lipgloss.Color("#FFAA00") // amber
	ColorCritical = lipgloss.Color("#FF0055") // red-pink
	ColorMemory   = lipgloss.Color("#00FFFF") // cyan, low memory use

	ColorTextPrimary   = lipgloss.Color("#FFFFFF")
	ColorTextSecondary = lipgloss.Color("#B4B4D0")
	ColorTextMuted     = lipgloss.Color("#6B6B8D")

	ColorAccent = lipgloss.Color("#FF2E97")
)

// Bar glyphs
const (
	barFilled = "▰"
	barEmpty  = "▱"
)

// Status glyphs shown before the node name.
var statusGlyphs = map[layout.Status]string{
	layout.StatusOK:     "◉",
	layout.StatusBusy:   "◈",
	layout.StatusHot:    "✹",
	layout.StatusNoGPUs: "?",
	layout.StatusFailed: "✗",
}

var (
	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	nodeNameStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true)
)

// utilizationColor maps a utilization band to its color.
func utilizationColor(l layout.Level) lipgloss.Color {
	switch l {
	case layout.LevelLow:
		return ColorHealthy
	case layout.LevelModerate:
		return ColorModerate
	case layout.LevelHigh:
		return ColorWarning
	default:
		return ColorCritical
	}
}

// memoryColor maps a memory band to its color. Low memory use is cyan
// so the two bars of a row are easy to tell apart.
func memoryColor(l layout.Level) lipgloss.Color {
	if l == layout.LevelLow {
		return ColorMemory
	}
	return utilizationColor(l)
}

// statusColor is the panel border and title color for a node state.
func statusColor(s layout.Status) lipgloss.Color {
	switch s {
	case layout.StatusOK:
		return ColorHealthy
	case layout.StatusBusy, layout.StatusNoGPUs:
		return ColorWarning
	default:
		return ColorCritical
	}
}

// bar draws a gauge as planned: Filled shaded cells out of Width.
func bar(b layout.Bar, color lipgloss.Color) string {
	if b.Width < 1 {
		return ""
	}
	if b.Indeterminate {
		return mutedStyle.Render(strings.Repeat(barEmpty, b.Width))
	}
	filled := b.Filled
	if filled > b.Width {
		filled = b.Width
	}
	if filled < 0 {
		filled = 0
	}
	s := strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, b.Width-filled)
	return lipgloss.NewStyle().Foreground(color).Render(s)
}
