package monitor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rileyhilliard/node-monitor/internal/layout"
	"github.com/rileyhilliard/node-monitor/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls int
	ctxs  []context.Context
	snap  telemetry.Snapshot
}

func (f *fakeScheduler) PollAll(ctx context.Context, nodes []string) telemetry.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ctxs = append(f.ctxs, ctx)
	return f.snap
}

func (f *fakeScheduler) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSwitch struct {
	values []bool
}

func (f *fakeSwitch) SetProcesses(on bool) {
	f.values = append(f.values, on)
}

func testSnapshot(nodes ...string) telemetry.Snapshot {
	results := make([]telemetry.NodeResult, len(nodes))
	for i, n := range nodes {
		results[i] = telemetry.OK(n, []telemetry.GPUSample{
			{Index: 0, UtilizationPercent: 40, MemoryUsedBytes: 1 << 30, MemoryTotalBytes: 80 << 30},
		}, nil, 0)
	}
	return telemetry.Snapshot{CapturedAt: time.Now(), Duration: 500 * time.Millisecond, Results: results}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func newTestModel(t *testing.T, opts Options) (Model, *fakeScheduler) {
	t.Helper()
	sched := &fakeScheduler{snap: testSnapshot(opts.Nodes...)}
	opts.Scheduler = sched
	return NewModel(context.Background(), opts), sched
}

// step feeds msg to the model and returns the updated Model.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

// firstTick runs Init's poll and delivers the snapshot.
func firstTick(t *testing.T, m Model) Model {
	t.Helper()
	msg := m.Init()()
	m, cmd := step(t, m, msg)
	require.NotNil(t, cmd)
	return m
}

func TestNewModel(t *testing.T) {
	m, sched := newTestModel(t, Options{Nodes: []string{"gpu-01", "gpu-02"}, Interval: 5 * time.Second})

	assert.Equal(t, []string{"gpu-01", "gpu-02"}, m.nodes)
	assert.Equal(t, 5*time.Second, m.interval)
	assert.True(t, m.Polling())
	assert.Equal(t, layout.ModeFull, m.Mode())
	_, ok := m.Snapshot()
	assert.False(t, ok)
	assert.Equal(t, 0, sched.Calls())
}

func TestNewModel_Defaults(t *testing.T) {
	m, _ := newTestModel(t, Options{Nodes: []string{"a"}})
	assert.Equal(t, DefaultInterval, m.interval)
}

func TestNewModel_ProcessesForceCompact(t *testing.T) {
	sw := &fakeSwitch{}
	m, _ := newTestModel(t, Options{Nodes: []string{"a"}, Processes: true, Switch: sw})

	assert.Equal(t, layout.ModeCompact, m.Mode())
	assert.True(t, m.showProcs)
	assert.Equal(t, []bool{true}, sw.values)
}

func TestModel_InitPollsAndSchedulesTick(t *testing.T) {
	m, sched := newTestModel(t, Options{Nodes: []string{"gpu-01"}})

	cmd := m.Init()
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, snapshotMsg{}, msg)
	assert.Equal(t, 1, sched.Calls())

	m, tick := step(t, m, msg)
	assert.False(t, m.Polling())
	snap, ok := m.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "gpu-01", snap.Results[0].Node)
	assert.NotNil(t, tick)
	assert.Equal(t, 1, m.tickGen)
}

func TestModel_TickWaitsForInterval(t *testing.T) {
	m, _ := newTestModel(t, Options{Nodes: []string{"a"}, Interval: time.Millisecond})
	m = firstTick(t, m)

	start := time.Now()
	msg := m.tickCmd(m.tickGen, 0)()
	assert.Equal(t, tickMsg{gen: m.tickGen}, msg)
	assert.Less(t, time.Since(start), time.Second)
}

func TestModel_TickStartsPoll(t *testing.T) {
	m, sched := newTestModel(t, Options{Nodes: []string{"a"}})
	m = firstTick(t, m)

	m, cmd := step(t, m, tickMsg{gen: m.tickGen})
	require.NotNil(t, cmd)
	assert.True(t, m.Polling())

	_, _ = step(t, m, cmd())
	assert.Equal(t, 2, sched.Calls())
}

func TestModel_TickIgnoredWhilePolling(t *testing.T) {
	m, _ := newTestModel(t, Options{Nodes: []string{"a"}})
	require.True(t, m.Polling())

	_, cmd := step(t, m, tickMsg{gen: m.tickGen})
	assert.Nil(t, cmd)
}

func TestModel_StaleTickIgnored(t *testing.T) {
	m, _ := newTestModel(t, Options{Nodes: []string{"a"}})
	m = firstTick(t, m)
	stale := tickMsg{gen: m.tickGen}

	// A forced refresh supersedes the pending tick.
	m, cmd := step(t, m, runeKey('r'))
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())
	require.False(t, m.Polling())

	_, cmd = step(t, m, stale)
	assert.Nil(t, cmd)
}

func TestModel_RefreshIgnoredWhilePolling(t *testing.T) {
	m, sched := newTestModel(t, Options{Nodes: []string{"a"}})

	m, cmd := step(t, m, runeKey('r'))
	assert.Nil(t, cmd)
	assert.True(t, m.Polling())
	assert.Equal(t, 0, sched.Calls())
}

func TestModel_ToggleCompact(t *testing.T) {
	m, sched := newTestModel(t, Options{Nodes: []string{"a"}})
	m = firstTick(t, m)

	m, cmd := step(t, m, runeKey('c'))
	assert.Nil(t, cmd)
	assert.Equal(t, layout.ModeCompact, m.Mode())

	m, _ = step(t, m, runeKey('c'))
	assert.Equal(t, layout.ModeFull, m.Mode())
	assert.Equal(t, 1, sched.Calls())
}

func TestModel_ToggleProcesses(t *testing.T) {
	sw := &fakeSwitch{}
	m, _ := newTestModel(t, Options{Nodes: []string{"a"}, Switch: sw})
	m = firstTick(t, m)

	m, cmd := step(t, m, runeKey('p'))
	assert.Nil(t, cmd)
	assert.True(t, m.showProcs)
	assert.Equal(t, layout.ModeCompact, m.Mode())

	m, _ = step(t, m, runeKey('p'))
	assert.False(t, m.showProcs)
	// Turning processes off keeps the current mode.
	assert.Equal(t, layout.ModeCompact, m.Mode())

	assert.Equal(t, []bool{false, true, false}, sw.values)
}

func TestModel_Quit(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
	}{
		{name: "q", msg: runeKey('q')},
		{name: "ctrl+c", msg: tea.KeyMsg{Type: tea.KeyCtrlC}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, sched := newTestModel(t, Options{Nodes: []string{"a"}})
			poll := m.Init()

			m, cmd := step(t, m, tt.msg)
			require.NotNil(t, cmd)
			assert.Equal(t, tea.QuitMsg{}, cmd())
			assert.Equal(t, "", m.View())

			// The in-flight poll sees a cancelled context.
			poll()
			require.Len(t, sched.ctxs, 1)
			assert.ErrorIs(t, sched.ctxs[0].Err(), context.Canceled)
		})
	}
}

func TestModel_WindowSizeRelayoutsWithoutPolling(t *testing.T) {
	m, sched := newTestModel(t, Options{Nodes: []string{"gpu-01", "gpu-02"}})
	m = firstTick(t, m)

	m, cmd := step(t, m, tea.WindowSizeMsg{Width: 140, Height: 40})
	assert.Nil(t, cmd)
	assert.True(t, m.ready)
	assert.Equal(t, 140, m.viewport.Width)
	assert.Equal(t, 40-lipgloss.Height(m.footer()), m.viewport.Height)
	assert.Equal(t, 1, sched.Calls())

	assert.Contains(t, m.View(), "gpu-02")
}

func TestModel_ViewBeforeFirstSnapshot(t *testing.T) {
	m, _ := newTestModel(t, Options{Nodes: []string{"a", "b"}})
	view := m.View()
	assert.Contains(t, view, "Polling 2 nodes...")
	assert.Contains(t, view, "Press q to exit")
	assert.Contains(t, view, "refreshing")
}

func TestModel_ViewShowsNodesAndFooter(t *testing.T) {
	m, _ := newTestModel(t, Options{Nodes: []string{"gpu-01"}})
	m = firstTick(t, m)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	view := m.View()
	assert.Contains(t, view, "GPU Cluster Monitor")
	assert.Contains(t, view, "gpu-01")
	assert.Contains(t, view, "Press q to exit")
	assert.NotContains(t, view, "refreshing")
}

func TestModel_HelpToggle(t *testing.T) {
	m, _ := newTestModel(t, Options{Nodes: []string{"a"}})
	m = firstTick(t, m)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	short := m.viewport.Height

	m, _ = step(t, m, runeKey('?'))
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "scroll down")
	assert.Less(t, m.viewport.Height, short)

	m, _ = step(t, m, runeKey('?'))
	assert.False(t, m.showHelp)
	assert.Equal(t, short, m.viewport.Height)
}

func TestModel_ScrollsTallPlan(t *testing.T) {
	nodes := make([]string, 12)
	for i := range nodes {
		nodes[i] = fmt.Sprintf("gpu-%02d", i)
	}
	m, _ := newTestModel(t, Options{Nodes: nodes})
	m = firstTick(t, m)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 10})
	require.Greater(t, m.viewport.TotalLineCount(), m.viewport.Height)

	m, _ = step(t, m, runeKey('j'))
	assert.Equal(t, 1, m.viewport.YOffset)

	m, _ = step(t, m, runeKey('k'))
	assert.Equal(t, 0, m.viewport.YOffset)
}

func TestNextWait(t *testing.T) {
	tests := []struct {
		interval, elapsed, want time.Duration
	}{
		{interval: 2 * time.Second, elapsed: 500 * time.Millisecond, want: 1500 * time.Millisecond},
		{interval: 2 * time.Second, elapsed: 2 * time.Second, want: 0},
		{interval: 2 * time.Second, elapsed: 5 * time.Second, want: 0},
		{interval: time.Second, elapsed: 0, want: time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextWait(tt.interval, tt.elapsed))
	}
}
