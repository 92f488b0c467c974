package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rileyhilliard/node-monitor/internal/config"
	"github.com/rileyhilliard/node-monitor/internal/errors"
	"github.com/rileyhilliard/node-monitor/internal/layout"
	"github.com/rileyhilliard/node-monitor/internal/monitor"
	"github.com/rileyhilliard/node-monitor/internal/render"
	"github.com/rileyhilliard/node-monitor/internal/telemetry"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// defaultOnceWidth is the layout width when stdout isn't a terminal.
const defaultOnceWidth = 100

// runOnce polls every node once and prints the result in format.
func runOnce(ctx context.Context, w io.Writer, sched monitor.Scheduler, nodes []string, cfg *config.Config, format string) error {
	snap := sched.PollAll(ctx, nodes)

	if format == formatYAML {
		return writeYAML(w, snap)
	}

	mode := layout.ModeFull
	if cfg.Compact || cfg.Processes {
		mode = layout.ModeCompact
	}
	plan := layout.Compute(snap, layout.Options{
		Width:         outputWidth(w),
		Mode:          mode,
		ShowProcesses: cfg.Processes,
		Interval:      cfg.Interval,
	})
	fmt.Fprintln(w, render.New().Render(plan))
	fmt.Fprintln(w, onceSummary(snap))
	return nil
}

func writeYAML(w io.Writer, snap telemetry.Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec, "Couldn't encode the snapshot", "")
	}
	return enc.Close()
}

// outputWidth is the terminal width of w, or defaultOnceWidth.
func outputWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultOnceWidth
}

// onceSummary is the closing line of --once text output, e.g.
// "Polled 4 nodes in 1.2s: 3 online, 1 offline, 12 GiB of 80 GiB GPU memory in use".
func onceSummary(snap telemetry.Snapshot) string {
	used, total := snap.MemoryTotals()
	n := len(snap.Results)
	return fmt.Sprintf("Polled %d %s in %s: %d online, %d offline, %s of %s GPU memory in use",
		n, plural(n, "node", "nodes"),
		snap.Duration.Round(time.Millisecond),
		snap.OnlineCount(), snap.FailedCount(),
		humanize.IBytes(uint64(used)), humanize.IBytes(uint64(total)))
}
