// Package monitor implements the live GPU dashboard as a Bubble Tea program.
//
// # Refresh loop
//
// The model drives one tick at a time:
//
//  1. pollCmd runs Scheduler.PollAll for every node
//  2. snapshotMsg replaces the current snapshot and re-renders
//  3. tickCmd waits interval minus the poll's duration, then sends tickMsg
//  4. tickMsg starts the next poll
//
// The next tick is only scheduled once the previous snapshot has arrived, so
// polls never overlap. A forced refresh bumps a generation counter so the
// tick that was already pending is dropped.
//
// Resizing and mode toggles recompute the layout from the current snapshot
// without polling again.
//
// # Keyboard Shortcuts
//
//	q, Ctrl+C   - Quit (cancels the in-flight poll)
//	r           - Force refresh (ignored while polling)
//	c           - Toggle compact / full panels
//	p           - Toggle per-user processes (switches to compact)
//	j/k, ↑/↓    - Scroll
//	PgUp/PgDn   - Scroll a page
//	?           - Toggle full help
package monitor
