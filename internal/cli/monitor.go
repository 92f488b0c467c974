package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/node-monitor/internal/config"
	"github.com/rileyhilliard/node-monitor/internal/discovery"
	"github.com/rileyhilliard/node-monitor/internal/errors"
	"github.com/rileyhilliard/node-monitor/internal/logger"
	"github.com/rileyhilliard/node-monitor/internal/monitor"
	"github.com/rileyhilliard/node-monitor/internal/poller"
	"github.com/rileyhilliard/node-monitor/internal/telemetry"
	"github.com/rileyhilliard/node-monitor/internal/ui"
	"github.com/rileyhilliard/node-monitor/pkg/sshutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// monitorCommand resolves the configuration and the node set, then runs the
// dashboard, or a single poll with --once. Every configuration or discovery
// problem is returned before the first poll.
func monitorCommand(cmd *cobra.Command, opts *rootOptions) error {
	if opts.verbose {
		logger.SetDebug(true)
	}
	log := logger.NewEnvLogger("[node-monitor]")

	cfg, cfgPath, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	applyColor(cfg.Color)

	// --once keeps stdout for the result.
	status := cmd.OutOrStdout()
	if opts.once {
		status = cmd.ErrOrStderr()
	}

	ctx := cmd.Context()
	resolver := &nodeResolver{
		discover: discovery.NewSlurm(log),
		out:      status,
		animate:  isTerminal(status),
	}
	nodes, err := resolver.resolve(ctx, cfg, opts.pick)
	if err != nil {
		return err
	}

	if opts.save {
		if err := saveNodes(status, cfgPath, nodes); err != nil {
			return err
		}
	}

	sshutil.StrictHostKeyChecking = cfg.SSH.StrictHostKeyChecking
	sshutil.WarningHandler = func(message string) { log.Warn("%s", message) }
	defer sshutil.CloseAgent()

	pool := sshutil.NewPool(dialer(cfg.SSH.ConfigFile), cfg.Timeout)
	defer pool.Close()

	nodePoller := poller.NewNodePoller(pool, cfg.Processes)
	sched := poller.NewScheduler(nodePoller, poller.Options{
		MaxParallel: cfg.Workers,
		Timeout:     cfg.Timeout,
		OnResult:    logResult(log),
	})
	defer sched.Close()

	if opts.once {
		return runOnce(ctx, cmd.OutOrStdout(), sched, nodes, cfg, opts.format)
	}

	printStartup(status, cfg, nodes)
	return runDashboard(ctx, cfg, nodes, sched, nodePoller)
}

// loadConfig finds, loads and validates the configuration. It also returns
// the path --save should write to.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, string, error) {
	if err := ValidateFormat(opts.format); err != nil {
		return nil, "", err
	}

	path, err := config.Find(opts.configPath)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, "", err
	}
	if opts.noFullscreen {
		cfg.Fullscreen = false
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}

	if path == "" {
		path = config.DefaultPath()
	}
	return cfg, path, nil
}

func saveNodes(w io.Writer, path string, nodes []string) error {
	if path == "" {
		return errors.New(errors.ErrConfig,
			"Couldn't work out where to save the node list",
			"Pass --config with the file to write.")
	}
	if err := config.SaveNodes(path, nodes); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't save the node list to "+path,
			"Check the file is valid YAML and writable.")
	}
	ui.Success(w, "Saved %d nodes to %s", len(nodes), path)
	return nil
}

// dialer returns the pool's DialFunc for an ssh config override, or nil
// for the default ~/.ssh/config.
func dialer(configFile string) sshutil.DialFunc {
	if configFile == "" {
		return nil
	}
	return func(ctx context.Context, node string, timeout time.Duration) (sshutil.Conn, error) {
		c, err := sshutil.DialWithConfig(ctx, node, timeout, configFile)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func logResult(log logger.Logger) func(telemetry.NodeResult) {
	return func(r telemetry.NodeResult) {
		if r.IsOK() {
			log.Debug("%s: %d GPUs in %s", r.Node, len(r.GPUs), r.Duration.Round(time.Millisecond))
			return
		}
		log.Debug("%s: %s (%s) after %s", r.Node, r.Failure.Kind, r.Failure.Detail, r.Duration.Round(time.Millisecond))
	}
}

// printStartup reports what is about to be monitored, before the dashboard
// takes over the screen.
func printStartup(w io.Writer, cfg *config.Config, nodes []string) {
	ui.Success(w, "Monitoring %d %s: %s", len(nodes), plural(len(nodes), "node", "nodes"), strings.Join(nodes, ", "))

	mode := "full"
	if cfg.Compact || cfg.Processes {
		mode = "compact"
	}
	if cfg.Processes {
		mode += ", with processes"
	}
	ui.Info(w, "Mode", mode)
	ui.Info(w, "Refresh", fmt.Sprintf("every %s, %s timeout, %d workers", cfg.Interval, cfg.Timeout, cfg.Workers))

	if cfg.Processes && !cfg.Compact {
		ui.Warn(w, "Process view uses compact mode")
	}
}

// runDashboard runs the TUI until the user quits or ctx is cancelled. Both
// are a clean shutdown.
func runDashboard(ctx context.Context, cfg *config.Config, nodes []string, sched monitor.Scheduler, sw monitor.ProcessSwitch) error {
	restore, err := logger.Redirect()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't open the log file",
			"Check the path in "+logger.LogFileEnv)
	}
	defer restore()

	model := monitor.NewModel(ctx, monitor.Options{
		Nodes:     nodes,
		Interval:  cfg.Interval,
		Compact:   cfg.Compact,
		Processes: cfg.Processes,
		Scheduler: sched,
		Switch:    sw,
	})

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if cfg.Fullscreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	if _, err := tea.NewProgram(model, progOpts...).Run(); err != nil {
		if stderrors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return errors.WrapWithCode(err, errors.ErrExec,
			"The dashboard stopped unexpectedly",
			"Try --no-fullscreen, or --once to poll without the dashboard.")
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
