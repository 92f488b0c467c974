package ui

import "github.com/charmbracelet/lipgloss"

// Semantic colors for the line-oriented output printed before and after the
// dashboard. ANSI codes keep them readable on any terminal theme.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
	ColorMuted   lipgloss.Color = "8" // Gray (bright black)
)
