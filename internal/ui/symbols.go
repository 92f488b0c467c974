package ui

// Status symbols for startup and --once output.
const (
	SymbolSuccess = "✓"
	SymbolFail    = "✗"
	SymbolWarning = "⚠"
	SymbolInfo    = "›"
	SymbolPending = "○"
)
