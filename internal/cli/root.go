package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rileyhilliard/node-monitor/internal/errors"
	"github.com/spf13/cobra"
)

// rootOptions holds the flags that are not config keys. Flags that are
// config keys (nodes, interval, ...) are read through config.Load so that
// their precedence over the environment and the file is handled in one place.
type rootOptions struct {
	configPath   string
	noFullscreen bool
	pick         bool
	save         bool
	once         bool
	format       string
	verbose      bool
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "node-monitor",
		Short: "Live GPU utilization and memory dashboard for a cluster",
		Long: `Poll nvidia-smi on every node of a GPU cluster over SSH and show the
results as a live terminal dashboard.

Nodes come from --nodes (hostlist patterns allowed) or, without it, from
Slurm's sinfo. Each refresh polls all nodes in parallel; a node that is
slow or unreachable only affects its own panel.

Examples:
  node-monitor
  node-monitor --nodes gpu-[01-08] --interval 5
  node-monitor -n a100-1,a100-2 --processes
  node-monitor --once --format yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return monitorCommand(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringP("nodes", "n", "", "comma-separated nodes, e.g. gpu-[01-04],dgx1 (default: Slurm discovery)")
	f.Float64P("interval", "i", 2, "refresh interval in seconds")
	f.IntP("workers", "w", 8, "maximum nodes polled at once")
	f.Float64P("timeout", "t", 10, "per-node poll timeout in seconds")
	f.BoolP("compact", "c", false, "start in compact table mode")
	f.BoolP("processes", "p", false, "show per-user GPU processes (implies --compact)")
	f.String("color", "auto", "color output: auto, always or never")
	f.BoolVarP(&opts.noFullscreen, "no-fullscreen", "F", false, "draw inline instead of on the alternate screen")
	f.BoolVar(&opts.pick, "pick", false, "choose nodes interactively before starting")
	f.BoolVar(&opts.save, "save", false, "save the resolved node list to the config file")
	f.BoolVar(&opts.once, "once", false, "poll once, print the result and exit")
	f.StringVar(&opts.format, "format", formatText, "output format for --once: text or yaml")
	f.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/node-monitor/config.yaml)")
	f.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")

	cmd.AddCommand(newVersionCmd(), newDoctorCmd())
	return cmd
}

// Execute runs the root command and exits the process with its exit code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err, os.Stderr))
}

// exitCode prints err, if any, and maps it to the process exit code:
// 0 for success, the carried code for an ExitError, 1 for everything else.
func exitCode(err error, w io.Writer) int {
	if err == nil {
		return 0
	}
	if code, ok := errors.GetExitCode(err); ok {
		return code
	}
	if isUnknownCommandError(err) {
		fmt.Fprintf(w, "Error: %v\n", err)
		if name := extractUnknownCommand(err); name != "" {
			fmt.Fprintf(w, "node-monitor has no %q subcommand.\n", name)
		}
		fmt.Fprintln(w, "Run 'node-monitor --help' for usage.")
		return 1
	}
	fmt.Fprintln(w, err.Error())
	return 1
}

// isUnknownCommandError reports whether err is cobra's complaint about an
// unknown subcommand or flag.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// extractUnknownCommand pulls the command name out of
// `unknown command "foo" for "node-monitor"`.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
