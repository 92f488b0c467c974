// Package layout turns a telemetry snapshot into a terminal-independent
// render plan: which panels or table rows exist, how wide they are, how full
// every bar is and which severity band it falls in.
//
// Compute is a pure function of its inputs. The renderer only styles what the
// plan says, so layout decisions can be tested without a terminal.
package layout

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rileyhilliard/node-monitor/internal/telemetry"
)

// Mode selects between per-node panels and a single table.
type Mode int

const (
	ModeFull Mode = iota
	ModeCompact
)

func (m Mode) String() string {
	if m == ModeCompact {
		return "compact"
	}
	return "full"
}

// Breakpoints and sizing.
const (
	// MultiColumnMinWidth is the narrowest terminal that gets side-by-side panels.
	MultiColumnMinWidth = 130
	// PanelMinWidth is the narrowest a panel is allowed to get in a multi-column layout.
	PanelMinWidth = 64
	// DualRowMinWidth is the narrowest terminal that puts two GPUs on one compact row.
	DualRowMinWidth = 120

	// panelChrome is everything on a full-mode GPU line except the two bars:
	// border, padding, index, labels, percentage and memory text.
	panelChrome = 50
	// compactChrome is the same for one compact GPU cell, including the node column.
	compactChrome = 44

	minBarWidth      = 4
	maxPanelBar      = 20
	maxCompactBar    = 15
	maxDualCellBar   = 10
	defaultWidth     = 80
	processSeparator = "  "
)

// Status is the headline state shown in a panel title.
type Status int

const (
	StatusOK Status = iota
	StatusBusy
	StatusHot
	StatusNoGPUs
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBusy:
		return "busy"
	case StatusHot:
		return "hot"
	case StatusNoGPUs:
		return "no-gpus"
	default:
		return "failed"
	}
}

// Options are the inputs to Compute besides the snapshot.
type Options struct {
	Width         int
	Height        int
	Mode          Mode
	ShowProcesses bool
	Interval      time.Duration
}

// Bar is a fixed-width gauge. Filled cells out of Width are shaded.
// Indeterminate bars have no meaningful fraction and render empty.
type Bar struct {
	Width         int
	Filled        int
	Fraction      float64
	Indeterminate bool
	Level         Level
}

// GPURow is one GPU's gauges and labels.
type GPURow struct {
	Index       int
	Utilization Bar
	UtilPercent int
	Memory      Bar
	MemoryLabel string // "12.5G/80G"
}

// Summary aggregates a node's GPUs.
type Summary struct {
	GPUCount      int
	AvgUtil       float64
	UtilLevel     Level
	MemoryUsed    int64
	MemoryTotal   int64
	MemoryPercent float64
	MemoryLevel   Level
}

// ProcessEntry is one user's share of a node, e.g. "u1[gpu 0,1]:15G".
type ProcessEntry struct {
	User        string
	GPUs        []int
	MemoryBytes int64
	Label       string
}

// Panel is one node in full mode.
type Panel struct {
	Node    string
	Status  Status
	Width   int
	GPUs    []GPURow
	Summary Summary
	Failure *telemetry.Failure
}

// RowGroup is one node in compact mode. Each row holds one GPU, or two when
// the table is dual-column. Processes is set only when processes are shown.
type RowGroup struct {
	Node      string
	Status    Status
	Rows      [][]GPURow
	Summary   Summary
	Failure   *telemetry.Failure
	Processes []ProcessEntry
	// ProcessLine is Processes joined for the auxiliary line; empty when none.
	ProcessLine string
}

// Table is the compact-mode body.
type Table struct {
	Width      int
	DualColumn bool
	Groups     []RowGroup
}

// Header is the cluster summary above the body.
type Header struct {
	CapturedAt    time.Time
	Interval      time.Duration
	Online        int
	Offline       int
	TotalGPUs     int
	AvgUtil       float64
	UtilLevel     Level
	MemoryUsed    int64
	MemoryTotal   int64
	MemoryPercent float64
	MemoryLevel   Level
}

// Plan is everything the renderer needs for one frame.
// Exactly one of Panels (full mode) or Table (compact mode) is populated.
type Plan struct {
	Width         int
	Height        int
	Mode          Mode
	ShowProcesses bool
	Header        Header
	Columns       int
	Panels        []Panel
	Table         *Table
}

// Compute lays out snapshot for the given terminal size and mode. It never
// fails: failed nodes become degraded panels or rows.
func Compute(snapshot telemetry.Snapshot, opts Options) Plan {
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}

	plan := Plan{
		Width:         width,
		Height:        opts.Height,
		Mode:          opts.Mode,
		ShowProcesses: opts.ShowProcesses,
		Header:        computeHeader(snapshot, opts.Interval),
	}

	if opts.Mode == ModeCompact {
		plan.Columns = 1
		plan.Table = computeTable(snapshot, width, opts.ShowProcesses)
		return plan
	}

	plan.Columns = Columns(width, len(snapshot.Results))
	panelWidth := width / plan.Columns
	bar := clamp((panelWidth-panelChrome)/2, minBarWidth, maxPanelBar)

	plan.Panels = make([]Panel, 0, len(snapshot.Results))
	for _, r := range snapshot.Results {
		plan.Panels = append(plan.Panels, computePanel(r, panelWidth, bar))
	}
	return plan
}

// Columns returns how many panels fit side by side: one below
// MultiColumnMinWidth, otherwise width/PanelMinWidth capped at the node count.
func Columns(width, nodes int) int {
	if width < MultiColumnMinWidth || nodes <= 1 {
		return 1
	}
	cols := width / PanelMinWidth
	if cols > nodes {
		cols = nodes
	}
	if cols < 1 {
		cols = 1
	}
	return cols
}

// UtilizationBar fills floor(clamp(util,0,100)/100 * width) cells.
func UtilizationBar(util, width int) Bar {
	u := clamp(util, 0, 100)
	return Bar{
		Width:    width,
		Filled:   u * width / 100,
		Fraction: float64(u) / 100,
		Level:    UtilizationLevel(float64(u)),
	}
}

// MemoryBar fills by used/total clamped to [0,1]. A zero total yields an
// empty, indeterminate bar.
func MemoryBar(used, total int64, width int) Bar {
	f, ok := telemetry.Fraction(used, total)
	if !ok {
		return Bar{Width: width, Indeterminate: true, Level: LevelLow}
	}
	return Bar{
		Width:    width,
		Filled:   int(f * float64(width)),
		Fraction: f,
		Level:    MemoryLevel(f * 100),
	}
}

func computeHeader(s telemetry.Snapshot, interval time.Duration) Header {
	used, total := s.MemoryTotals()
	memPct := percent(used, total)
	avg := s.AverageUtilization()
	return Header{
		CapturedAt:    s.CapturedAt,
		Interval:      interval,
		Online:        s.OnlineCount(),
		Offline:       s.FailedCount(),
		TotalGPUs:     s.TotalGPUs(),
		AvgUtil:       avg,
		UtilLevel:     UtilizationLevel(avg),
		MemoryUsed:    used,
		MemoryTotal:   total,
		MemoryPercent: memPct,
		MemoryLevel:   MemoryLevel(memPct),
	}
}

func computeSummary(r telemetry.NodeResult) Summary {
	used, total := r.MemoryTotals()
	memPct := percent(used, total)
	avg := r.AverageUtilization()
	return Summary{
		GPUCount:      len(r.GPUs),
		AvgUtil:       avg,
		UtilLevel:     UtilizationLevel(avg),
		MemoryUsed:    used,
		MemoryTotal:   total,
		MemoryPercent: memPct,
		MemoryLevel:   MemoryLevel(memPct),
	}
}

func nodeStatus(r telemetry.NodeResult) Status {
	switch {
	case !r.IsOK():
		return StatusFailed
	case len(r.GPUs) == 0:
		return StatusNoGPUs
	}
	avg := r.AverageUtilization()
	switch {
	case avg > 80:
		return StatusHot
	case avg > 50:
		return StatusBusy
	default:
		return StatusOK
	}
}

func computePanel(r telemetry.NodeResult, width, bar int) Panel {
	p := Panel{
		Node:   r.Node,
		Status: nodeStatus(r),
		Width:  width,
	}
	if !r.IsOK() {
		f := *r.Failure
		p.Failure = &f
		return p
	}
	p.Summary = computeSummary(r)
	p.GPUs = gpuRows(r.GPUs, bar)
	return p
}

func computeTable(s telemetry.Snapshot, width int, showProcs bool) *Table {
	t := &Table{
		Width:      width,
		DualColumn: width >= DualRowMinWidth,
		Groups:     make([]RowGroup, 0, len(s.Results)),
	}

	var bar int
	if t.DualColumn {
		bar = clamp((width/2-compactChrome)/2, minBarWidth, maxDualCellBar)
	} else {
		bar = clamp((width-compactChrome)/2, minBarWidth, maxCompactBar)
	}

	for _, r := range s.Results {
		g := RowGroup{
			Node:   r.Node,
			Status: nodeStatus(r),
		}
		if !r.IsOK() {
			f := *r.Failure
			g.Failure = &f
			t.Groups = append(t.Groups, g)
			continue
		}

		g.Summary = computeSummary(r)
		rows := gpuRows(r.GPUs, bar)
		step := 1
		if t.DualColumn {
			step = 2
		}
		for i := 0; i < len(rows); i += step {
			end := i + step
			if end > len(rows) {
				end = len(rows)
			}
			g.Rows = append(g.Rows, rows[i:end])
		}

		if showProcs {
			g.Processes = processEntries(r.Processes)
			labels := make([]string, len(g.Processes))
			for i, p := range g.Processes {
				labels[i] = p.Label
			}
			g.ProcessLine = strings.Join(labels, processSeparator)
		}
		t.Groups = append(t.Groups, g)
	}
	return t
}

func gpuRows(gpus []telemetry.GPUSample, bar int) []GPURow {
	rows := make([]GPURow, len(gpus))
	for i, g := range gpus {
		rows[i] = GPURow{
			Index:       g.Index,
			Utilization: UtilizationBar(g.UtilizationPercent, bar),
			UtilPercent: g.UtilizationPercent,
			Memory:      MemoryBar(g.MemoryUsedBytes, g.MemoryTotalBytes, bar),
			MemoryLabel: FormatMemory(g.MemoryUsedBytes) + "/" + FormatMemory(g.MemoryTotalBytes),
		}
	}
	return rows
}

// processEntries orders users by descending memory, then name.
func processEntries(procs []telemetry.ProcessSample) []ProcessEntry {
	sorted := append([]telemetry.ProcessSample(nil), procs...)
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].MemoryBytes != sorted[b].MemoryBytes {
			return sorted[a].MemoryBytes > sorted[b].MemoryBytes
		}
		return sorted[a].User < sorted[b].User
	})

	entries := make([]ProcessEntry, len(sorted))
	for i, p := range sorted {
		entries[i] = ProcessEntry{
			User:        p.User,
			GPUs:        p.GPUIndices,
			MemoryBytes: p.MemoryBytes,
			Label:       fmt.Sprintf("%s[gpu %s]:%s", p.User, FormatGPUList(p.GPUIndices), FormatMemory(p.MemoryBytes)),
		}
	}
	return entries
}

func percent(used, total int64) float64 {
	f, ok := telemetry.Fraction(used, total)
	if !ok {
		return 0
	}
	return f * 100
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
