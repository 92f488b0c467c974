package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/node-monitor/internal/layout"
	"github.com/rileyhilliard/node-monitor/internal/render"
	"github.com/rileyhilliard/node-monitor/internal/telemetry"
)

// Scheduler polls every node once and returns a complete snapshot.
// *poller.Scheduler satisfies it.
type Scheduler interface {
	PollAll(ctx context.Context, nodes []string) telemetry.Snapshot
}

// ProcessSwitch turns the process query on or off for subsequent polls.
// *poller.NodePoller satisfies it.
type ProcessSwitch interface {
	SetProcesses(on bool)
}

// DefaultInterval is the refresh interval used when Options.Interval is zero.
const DefaultInterval = 2 * time.Second

// Options configure a Model.
type Options struct {
	Nodes     []string
	Interval  time.Duration
	Compact   bool
	Processes bool

	Scheduler Scheduler
	// Switch is optional. Without it, toggling processes only changes the view.
	Switch ProcessSwitch
}

// Model is the Bubble Tea model for the dashboard. It owns the current
// snapshot and the in-flight flag; nothing else mutates them.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	nodes     []string
	interval  time.Duration
	scheduler Scheduler
	procs     ProcessSwitch
	renderer  *render.Renderer

	snapshot *telemetry.Snapshot
	polling  bool
	// tickGen invalidates ticks scheduled before a forced refresh.
	tickGen int

	mode      layout.Mode
	showProcs bool
	showHelp  bool
	quitting  bool

	width    int
	height   int
	viewport viewport.Model
	ready    bool
	help     help.Model
}

// tickMsg starts a poll if its generation is still current.
type tickMsg struct {
	gen int
}

// snapshotMsg carries the result of one PollAll.
type snapshotMsg struct {
	snapshot telemetry.Snapshot
}

// NewModel creates a dashboard model. The model starts with a poll in
// flight; Init issues it. Cancelling ctx, or quitting, aborts that poll.
func NewModel(ctx context.Context, opts Options) Model {
	ctx, cancel := context.WithCancel(ctx)

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	m := Model{
		ctx:       ctx,
		cancel:    cancel,
		nodes:     append([]string(nil), opts.Nodes...),
		interval:  interval,
		scheduler: opts.Scheduler,
		procs:     opts.Switch,
		renderer:  render.New(),
		polling:   true,
		mode:      layout.ModeFull,
		showProcs: opts.Processes,
		help:      newHelp(),
	}
	if opts.Compact || opts.Processes {
		m.mode = layout.ModeCompact
	}
	if m.procs != nil {
		m.procs.SetProcesses(m.showProcs)
	}
	return m
}

// Init issues the first poll immediately.
func (m Model) Init() tea.Cmd {
	return m.pollCmd()
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if !m.ready {
			m.viewport = viewport.New(m.width, 1)
			m.ready = true
		}
		m.relayout()
		return m, nil

	case tickMsg:
		if msg.gen != m.tickGen || m.polling {
			return m, nil
		}
		m.polling = true
		return m, m.pollCmd()

	case snapshotMsg:
		snap := msg.snapshot
		m.snapshot = &snap
		m.polling = false
		m.relayout()
		m.tickGen++
		return m, m.tickCmd(m.tickGen, snap.Duration)
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, keys.Refresh):
		if m.polling {
			return m, nil
		}
		m.polling = true
		m.tickGen++
		return m, m.pollCmd()

	case key.Matches(msg, keys.Compact):
		if m.mode == layout.ModeCompact {
			m.mode = layout.ModeFull
		} else {
			m.mode = layout.ModeCompact
		}
		m.relayout()
		return m, nil

	case key.Matches(msg, keys.Processes):
		m.showProcs = !m.showProcs
		if m.showProcs {
			m.mode = layout.ModeCompact
		}
		if m.procs != nil {
			m.procs.SetProcesses(m.showProcs)
		}
		m.relayout()
		return m, nil

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		m.relayout()
		return m, nil
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.snapshot == nil {
		return lipgloss.JoinVertical(lipgloss.Left,
			fmt.Sprintf("Polling %d nodes...", len(m.nodes)),
			m.footer(),
		)
	}
	if !m.ready {
		return lipgloss.JoinVertical(lipgloss.Left, m.Frame(), m.footer())
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), m.footer())
}

// Frame renders the current snapshot at the current size and mode, without
// scrolling or footer. It is empty before the first snapshot arrives.
func (m Model) Frame() string {
	if m.snapshot == nil {
		return ""
	}
	return m.renderer.Render(m.plan())
}

// Snapshot returns the latest snapshot, if any.
func (m Model) Snapshot() (telemetry.Snapshot, bool) {
	if m.snapshot == nil {
		return telemetry.Snapshot{}, false
	}
	return *m.snapshot, true
}

// Polling reports whether a poll is in flight.
func (m Model) Polling() bool {
	return m.polling
}

// Mode returns the current layout mode.
func (m Model) Mode() layout.Mode {
	return m.mode
}

func (m Model) plan() layout.Plan {
	return layout.Compute(*m.snapshot, layout.Options{
		Width:         m.width,
		Height:        m.height,
		Mode:          m.mode,
		ShowProcesses: m.showProcs,
		Interval:      m.interval,
	})
}

// relayout recomputes the plan from the current snapshot and refreshes the
// viewport. It never polls.
func (m *Model) relayout() {
	if !m.ready {
		return
	}
	m.viewport.Width = m.width
	h := m.height - lipgloss.Height(m.footer())
	if h < 1 {
		h = 1
	}
	m.viewport.Height = h
	if m.snapshot != nil {
		m.viewport.SetContent(m.Frame())
	}
}

// pollCmd runs one PollAll on the loop context.
func (m Model) pollCmd() tea.Cmd {
	ctx, scheduler, nodes := m.ctx, m.scheduler, m.nodes
	return func() tea.Msg {
		return snapshotMsg{snapshot: scheduler.PollAll(ctx, nodes)}
	}
}

// tickCmd schedules the next poll interval-elapsed from now, floored at zero.
func (m Model) tickCmd(gen int, elapsed time.Duration) tea.Cmd {
	return tea.Tick(nextWait(m.interval, elapsed), func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

func nextWait(interval, elapsed time.Duration) time.Duration {
	wait := interval - elapsed
	if wait < 0 {
		return 0
	}
	return wait
}
