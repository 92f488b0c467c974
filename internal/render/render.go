// Package render draws a layout.Plan as styled terminal text.
//
// The renderer makes no layout decisions of its own: widths, bar fills and
// severity levels all come from the plan. It only picks glyphs and colors.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/node-monitor/internal/layout"
	"github.com/rileyhilliard/node-monitor/internal/telemetry"
)

const (
	title        = "GPU Cluster Monitor"
	timeFormat   = "2006-01-02 15:04:05"
	columnSep    = " │ "
	nodeColWidth = 16
	cellSep      = "   "
)

// Renderer turns plans into strings. The zero value is ready to use.
type Renderer struct{}

// New returns a Renderer.
func New() *Renderer {
	return &Renderer{}
}

// Render draws the header followed by the panels or the compact table.
func (r *Renderer) Render(plan layout.Plan) string {
	header := r.header(plan.Header, plan.Width)

	var body string
	if plan.Mode == layout.ModeCompact && plan.Table != nil {
		body = r.table(*plan.Table)
	} else {
		body = r.panels(plan.Panels, plan.Columns)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

func (r *Renderer) header(h layout.Header, width int) string {
	captured := "--"
	if !h.CapturedAt.IsZero() {
		captured = h.CapturedAt.Format(timeFormat)
	}

	top := titleStyle.Render(title) +
		mutedStyle.Render(columnSep+captured+columnSep+"refresh "+formatInterval(h.Interval))

	nodes := fmt.Sprintf("%d online", h.Online)
	if h.Offline > 0 {
		nodes += lipgloss.NewStyle().Foreground(ColorCritical).Render(fmt.Sprintf(", %d offline", h.Offline))
	}

	util := lipgloss.NewStyle().Foreground(utilizationColor(h.UtilLevel)).
		Render(fmt.Sprintf("%.1f%%", h.AvgUtil))
	mem := lipgloss.NewStyle().Foreground(memoryColor(h.MemoryLevel)).
		Render(fmt.Sprintf("%s/%s (%.1f%%)",
			layout.FormatMemory(h.MemoryUsed), layout.FormatMemory(h.MemoryTotal), h.MemoryPercent))

	stats := strings.Join([]string{
		labelStyle.Render("Nodes ") + nodes,
		labelStyle.Render("GPUs ") + valueStyle.Render(fmt.Sprint(h.TotalGPUs)),
		labelStyle.Render("Avg Util ") + util,
		labelStyle.Render("Mem ") + mem,
	}, mutedStyle.Render(columnSep))

	return headerStyle.Width(innerWidth(width)).Render(top + "\n" + stats)
}

func (r *Renderer) panels(panels []layout.Panel, columns int) string {
	if len(panels) == 0 {
		return mutedStyle.Render("No nodes to show")
	}
	if columns < 1 {
		columns = 1
	}

	var rows []string
	for i := 0; i < len(panels); i += columns {
		end := i + columns
		if end > len(panels) {
			end = len(panels)
		}
		cells := make([]string, 0, end-i)
		for _, p := range panels[i:end] {
			cells = append(cells, r.panel(p))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (r *Renderer) panel(p layout.Panel) string {
	color := statusColor(p.Status)
	lines := []string{nodeTitle(p.Node, p.Status)}

	switch {
	case p.Status == layout.StatusFailed && p.Failure != nil:
		lines = append(lines, failureLine(*p.Failure))
	case p.Status == layout.StatusNoGPUs:
		lines = append(lines, lipgloss.NewStyle().Foreground(ColorWarning).Render("No GPUs detected"))
	default:
		for _, g := range p.GPUs {
			lines = append(lines, gpuLine(g))
		}
		lines = append(lines, mutedStyle.Render(strings.Repeat("─", ruleWidth(p.Width))))
		lines = append(lines, summaryLine(p.Summary))
	}

	return panelStyle.
		BorderForeground(color).
		Width(innerWidth(p.Width)).
		Render(strings.Join(lines, "\n"))
}

func (r *Renderer) table(t layout.Table) string {
	if len(t.Groups) == 0 {
		return mutedStyle.Render("No nodes to show")
	}

	var lines []string
	for _, g := range t.Groups {
		name := nodeCell(g.Node, g.Status)
		blank := strings.Repeat(" ", nodeColWidth)

		switch {
		case g.Status == layout.StatusFailed && g.Failure != nil:
			lines = append(lines, name+failureLine(*g.Failure))
			continue
		case g.Status == layout.StatusNoGPUs:
			lines = append(lines, name+lipgloss.NewStyle().Foreground(ColorWarning).Render("No GPUs detected"))
			continue
		}

		for i, row := range g.Rows {
			cells := make([]string, len(row))
			for j, gpu := range row {
				cells[j] = compactCell(gpu)
			}
			lead := blank
			if i == 0 {
				lead = name
			}
			lines = append(lines, lead+strings.Join(cells, mutedStyle.Render(cellSep+"│"+cellSep)))
		}
		if g.ProcessLine != "" {
			lines = append(lines, blank+mutedStyle.Render("↳ ")+labelStyle.Render(g.ProcessLine))
		}
	}

	return panelStyle.
		BorderForeground(ColorBorder).
		Width(innerWidth(t.Width)).
		Render(strings.Join(lines, "\n"))
}

func nodeTitle(node string, s layout.Status) string {
	c := statusColor(s)
	return lipgloss.NewStyle().Foreground(c).Render(statusGlyphs[s]) + " " +
		nodeNameStyle.Render(node) + " " +
		lipgloss.NewStyle().Foreground(c).Render(s.String())
}

// nodeCell is the fixed-width first column of a compact row.
func nodeCell(node string, s layout.Status) string {
	name := truncate(node, nodeColWidth-3)
	pad := nodeColWidth - 2 - lipgloss.Width(name)
	if pad < 1 {
		pad = 1
	}
	return lipgloss.NewStyle().Foreground(statusColor(s)).Render(statusGlyphs[s]) + " " +
		nodeNameStyle.Render(name) + strings.Repeat(" ", pad)
}

func gpuLine(g layout.GPURow) string {
	util := bar(g.Utilization, utilizationColor(g.Utilization.Level))
	mem := bar(g.Memory, memoryColor(g.Memory.Level))
	return labelStyle.Render(fmt.Sprintf("GPU %d", g.Index)) + mutedStyle.Render(columnSep) +
		labelStyle.Render("Util ") + util + fmt.Sprintf(" %3d%%", g.UtilPercent) + mutedStyle.Render(columnSep) +
		labelStyle.Render("Mem ") + mem + " " + g.MemoryLabel
}

func compactCell(g layout.GPURow) string {
	util := bar(g.Utilization, utilizationColor(g.Utilization.Level))
	mem := bar(g.Memory, memoryColor(g.Memory.Level))
	return labelStyle.Render(fmt.Sprintf("GPU%-2d ", g.Index)) +
		util + fmt.Sprintf(" %3d%%  ", g.UtilPercent) +
		mem + " " + g.MemoryLabel
}

func summaryLine(s layout.Summary) string {
	util := lipgloss.NewStyle().Foreground(utilizationColor(s.UtilLevel)).
		Render(fmt.Sprintf("%.1f%%", s.AvgUtil))
	mem := lipgloss.NewStyle().Foreground(memoryColor(s.MemoryLevel)).
		Render(fmt.Sprintf("%s/%s (%.0f%%)",
			layout.FormatMemory(s.MemoryUsed), layout.FormatMemory(s.MemoryTotal), s.MemoryPercent))

	gpus := "GPUs"
	if s.GPUCount == 1 {
		gpus = "GPU"
	}
	return valueStyle.Render(fmt.Sprintf("Σ %d %s", s.GPUCount, gpus)) + mutedStyle.Render(columnSep) +
		labelStyle.Render("Avg Util ") + util + mutedStyle.Render(columnSep) +
		labelStyle.Render("Mem ") + mem
}

func failureLine(f telemetry.Failure) string {
	text := "⚠ " + f.Kind.String()
	if f.Detail != "" {
		text += ": " + f.Detail
	}
	return lipgloss.NewStyle().Foreground(ColorCritical).Render(text)
}

// formatInterval prints whole seconds as "2s" and fractions as "1.5s".
func formatInterval(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	return d.Round(time.Millisecond).String()
}

// innerWidth is what a bordered block must be set to so that its outer
// width, borders included, equals width.
func innerWidth(width int) int {
	if width < 4 {
		return 2
	}
	return width - 2
}

// ruleWidth is the content width of a panel: border and padding removed.
func ruleWidth(width int) int {
	if width < 8 {
		return 4
	}
	return width - 4
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
