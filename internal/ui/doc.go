// Package ui provides the line-oriented terminal output that surrounds the
// dashboard: startup messages, a spinner for blocking steps such as Slurm
// discovery, and the interactive node picker built on huh.
//
// The dashboard itself is drawn by the render and monitor packages. Nothing
// here runs while the dashboard owns the screen.
//
// # Symbols
//
//	✓  step finished
//	✗  step failed
//	⚠  notice, e.g. --processes forcing compact mode
//	›  detail line, e.g. "Mode: compact"
package ui
