package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/node-monitor/internal/config"
	"github.com/rileyhilliard/node-monitor/internal/discovery"
	"github.com/rileyhilliard/node-monitor/internal/doctor"
	"github.com/rileyhilliard/node-monitor/internal/errors"
	"github.com/rileyhilliard/node-monitor/internal/logger"
	"github.com/rileyhilliard/node-monitor/internal/poller"
	"github.com/rileyhilliard/node-monitor/internal/ui"
	"github.com/rileyhilliard/node-monitor/pkg/sshutil"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type doctorOptions struct {
	configPath string
	fix        bool
	format     string
}

// DoctorReport is the --format yaml output of doctor.
type DoctorReport struct {
	Categories []doctor.Category `yaml:"categories"`
	Summary    DoctorSummary     `yaml:"summary"`
}

// DoctorSummary counts the results of a report.
type DoctorSummary struct {
	Pass     int  `yaml:"pass"`
	Warn     int  `yaml:"warn"`
	Fail     int  `yaml:"fail"`
	Fixable  int  `yaml:"fixable"`
	AllClear bool `yaml:"all_clear"`
}

func newDoctorCmd() *cobra.Command {
	opts := &doctorOptions{}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose why nodes are missing or degraded",
		Long: `Check the config file, local SSH credentials, Slurm discovery and every
node's SSH connection and nvidia-smi output.

Each node is polled once, in parallel, exactly the way the dashboard polls
it. Exits 1 if any check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doctorCommand(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringP("nodes", "n", "", "nodes to check (default: configured nodes, then Slurm discovery)")
	f.Float64P("timeout", "t", 10, "per-node poll timeout in seconds")
	f.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/node-monitor/config.yaml)")
	f.BoolVar(&opts.fix, "fix", false, "attempt automatic fixes where possible")
	f.StringVar(&opts.format, "format", formatText, "output format: text or yaml")
	return cmd
}

func doctorCommand(cmd *cobra.Command, opts *doctorOptions) error {
	if err := ValidateFormat(opts.format); err != nil {
		return err
	}
	log := logger.NewEnvLogger("[node-monitor]")
	cfg := doctorConfig(cmd, opts.configPath)

	sshutil.StrictHostKeyChecking = cfg.SSH.StrictHostKeyChecking
	sshutil.WarningHandler = func(message string) { log.Warn("%s", message) }
	defer sshutil.CloseAgent()

	pool := sshutil.NewPool(dialer(cfg.SSH.ConfigFile), cfg.Timeout)
	defer pool.Close()

	d := &diagnosis{
		discover: discovery.NewSlurm(log),
		poller:   poller.NewNodePoller(pool, false),
	}
	checks, results := d.run(opts.configPath, cfg)
	if opts.fix {
		results = doctor.FixAll(checks, results)
	}

	w := cmd.OutOrStdout()
	if opts.format == formatYAML {
		if err := writeDoctorYAML(w, checks, results); err != nil {
			return err
		}
	} else {
		writeDoctorText(w, checks, results, opts.fix)
	}

	if doctor.HasFailures(results) {
		return errors.NewExitError(1)
	}
	return nil
}

// doctorConfig loads what it can. A broken file is reported by the config
// checks, so this falls back to flags over defaults rather than failing.
func doctorConfig(cmd *cobra.Command, configPath string) *config.Config {
	if path, err := config.Find(configPath); err == nil {
		if cfg, err := config.Load(path, cmd.Flags()); err == nil {
			return cfg
		}
	}
	if cfg, err := config.Load("", cmd.Flags()); err == nil {
		return cfg
	}
	return config.DefaultConfig()
}

type diagnosis struct {
	discover doctor.Discoverer
	poller   doctor.Poller
}

// run executes the local checks in order, then polls every node at once.
// Slurm is only consulted when no nodes are configured.
func (d *diagnosis) run(configPath string, cfg *config.Config) ([]doctor.Check, []doctor.CheckResult) {
	checks := doctor.NewConfigChecks(configPath, cfg.Nodes)
	checks = append(checks, doctor.NewSSHChecks()...)

	nodes, err := discovery.ParseNodeList(cfg.NodeSpec())
	if err != nil {
		nodes = nil
	}
	var slurm *doctor.SlurmCheck
	if len(nodes) == 0 {
		slurm = &doctor.SlurmCheck{Discover: d.discover, Required: true}
		checks = append(checks, slurm)
	}

	results := doctor.RunAll(checks)
	if slurm != nil {
		nodes = slurm.Found
	}

	nodeChecks := doctor.NewNodeChecks(nodes, d.poller, cfg.Timeout)
	results = append(results, doctor.RunAllParallel(nodeChecks)...)
	return append(checks, nodeChecks...), results
}

func writeDoctorYAML(w io.Writer, checks []doctor.Check, results []doctor.CheckResult) error {
	counts := doctor.CountByStatus(results)
	report := DoctorReport{
		Categories: doctor.Group(checks, results),
		Summary: DoctorSummary{
			Pass:     counts[doctor.StatusPass],
			Warn:     counts[doctor.StatusWarn],
			Fail:     counts[doctor.StatusFail],
			Fixable:  doctor.FixableCount(results),
			AllClear: !doctor.HasIssues(results),
		},
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec, "Couldn't encode the report", "")
	}
	return enc.Close()
}

func writeDoctorText(w io.Writer, checks []doctor.Check, results []doctor.CheckResult, fixed bool) {
	successStyle := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	errorStyle := lipgloss.NewStyle().Foreground(ui.ColorError)
	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("node-monitor diagnostic report"))
	fmt.Fprintln(w)

	for _, category := range doctor.Group(checks, results) {
		fmt.Fprintln(w, headerStyle.Render(category.Name))
		for _, result := range category.Results {
			writeCheckResult(w, result)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("━", 60))
	fmt.Fprintln(w)

	if !doctor.HasIssues(results) {
		fmt.Fprintf(w, "%s %s\n", successStyle.Render(ui.SymbolSuccess), doctor.Summary(results))
	} else {
		fmt.Fprintf(w, "%s %s\n", errorStyle.Render(ui.SymbolFail), doctor.Summary(results))
		if doctor.FixableCount(results) > 0 && !fixed {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "  Run with %s to attempt automatic fixes where possible.\n", mutedStyle.Render("--fix"))
		}
	}
	fmt.Fprintln(w)
}

func writeCheckResult(w io.Writer, result doctor.CheckResult) {
	symbol := ui.SymbolSuccess
	style := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	switch result.Status {
	case doctor.StatusWarn:
		symbol = ui.SymbolWarning
		style = lipgloss.NewStyle().Foreground(ui.ColorWarning)
	case doctor.StatusFail:
		symbol = ui.SymbolFail
		style = lipgloss.NewStyle().Foreground(ui.ColorError)
	}

	fmt.Fprintf(w, "  %s %s\n", style.Render(symbol), result.Message)

	if result.Suggestion != "" && result.Status != doctor.StatusPass {
		muted := lipgloss.NewStyle().Foreground(ui.ColorMuted)
		for _, line := range strings.Split(result.Suggestion, "\n") {
			fmt.Fprintf(w, "    %s\n", muted.Render(line))
		}
	}
}
