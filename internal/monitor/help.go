package monitor

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/node-monitor/internal/render"
)

var (
	footerStyle = lipgloss.NewStyle().
			Foreground(render.ColorTextMuted)

	busyStyle = lipgloss.NewStyle().
			Foreground(render.ColorAccent)
)

func newHelp() help.Model {
	h := help.New()
	h.Styles.ShortKey = h.Styles.ShortKey.Foreground(render.ColorTextPrimary)
	h.Styles.ShortDesc = h.Styles.ShortDesc.Foreground(render.ColorTextMuted)
	h.Styles.FullKey = h.Styles.FullKey.Foreground(render.ColorTextPrimary)
	h.Styles.FullDesc = h.Styles.FullDesc.Foreground(render.ColorTextSecondary)
	return h
}

// footer is the exit hint, mode flags and key help. With help toggled on the
// full binding table is shown under the hint line.
func (m Model) footer() string {
	hints := []string{"Press q to exit", m.mode.String()}
	if m.showProcs {
		hints = append(hints, "processes")
	}
	if m.polling {
		hints = append(hints, busyStyle.Render("refreshing"))
	}

	h := m.help
	h.ShowAll = false
	line := footerStyle.Render(strings.Join(hints, " | ")) + "  " + h.View(keys)

	if !m.showHelp {
		return line
	}
	h.ShowAll = true
	return line + "\n" + h.View(keys)
}
