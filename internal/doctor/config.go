package doctor

import (
	stderrors "errors"
	"fmt"

	"github.com/rileyhilliard/node-monitor/internal/config"
	"github.com/rileyhilliard/node-monitor/internal/discovery"
	"github.com/rileyhilliard/node-monitor/internal/errors"
)

// summarize shortens a structured error for a one-line result. Wrapping
// added on the way up is dropped.
func summarize(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Summary()
	}
	return err.Error()
}

// ConfigFileCheck reports which config file is used. Having none is fine.
type ConfigFileCheck struct {
	ConfigPath string // Explicit path, or empty for the default location
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return CategoryConfig }

func (c *ConfigFileCheck) Run() CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    summarize(err),
			Suggestion: "Check the --config path, or drop it to use " + config.DefaultPath(),
		}
	}

	if path == "" {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No config file, using defaults",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Config file: %s", path),
	}
}

func (c *ConfigFileCheck) Fix() error {
	return nil
}

// ConfigSchemaCheck loads and validates the resolved configuration,
// environment included.
type ConfigSchemaCheck struct {
	ConfigPath string
}

func (c *ConfigSchemaCheck) Name() string     { return "config_schema" }
func (c *ConfigSchemaCheck) Category() string { return CategoryConfig }

func (c *ConfigSchemaCheck) Run() CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusFail,
			Message: "Cannot validate: config file not found",
		}
	}

	cfg, err := config.Load(path, nil)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    summarize(err),
			Suggestion: "Check the YAML syntax and NODE_MONITOR_* variables",
		}
	}

	if err := config.Validate(cfg); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    summarize(err),
			Suggestion: "Fix the value in your config file or environment",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Settings valid: refresh %s, timeout %s, %d workers", cfg.Interval, cfg.Timeout, cfg.Workers),
	}
}

func (c *ConfigSchemaCheck) Fix() error {
	return nil // Schema issues require manual intervention
}

// ConfigNodesCheck verifies the configured node list expands.
type ConfigNodesCheck struct {
	Nodes []string
}

func (c *ConfigNodesCheck) Name() string     { return "config_nodes" }
func (c *ConfigNodesCheck) Category() string { return CategoryConfig }

func (c *ConfigNodesCheck) Run() CheckResult {
	cfg := config.Config{Nodes: c.Nodes}
	spec := cfg.NodeSpec()
	if spec == "" {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No nodes configured, Slurm discovery will be used",
		}
	}

	nodes, err := discovery.ParseNodeList(spec)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    summarize(err),
			Suggestion: "Use comma-separated names or ranges such as gpu-[01-04]",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%d node%s configured", len(nodes), pluralize(len(nodes))),
	}
}

func (c *ConfigNodesCheck) Fix() error {
	return nil
}

// NewConfigChecks creates all config-related checks.
func NewConfigChecks(configPath string, nodes []string) []Check {
	return []Check{
		&ConfigFileCheck{ConfigPath: configPath},
		&ConfigSchemaCheck{ConfigPath: configPath},
		&ConfigNodesCheck{Nodes: nodes},
	}
}
