package config

import (
	"strings"
	"time"
)

// Config is the resolved node-monitor configuration: defaults, then the
// config file, then NODE_MONITOR_* environment variables, then flags.
type Config struct {
	// Nodes to monitor. Entries may be hostlist patterns such as gpu-[01-04].
	// Empty means discover them with Slurm.
	Nodes []string `yaml:"nodes" mapstructure:"nodes"`

	// Interval is the period from the start of one poll to the start of the
	// next. A poll that runs longer delays the next one, which then starts at
	// once.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// Workers is the maximum number of nodes polled at once.
	Workers int `yaml:"workers" mapstructure:"workers"`

	// Timeout bounds each node's poll, connection included.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	Compact    bool `yaml:"compact" mapstructure:"compact"`
	Processes  bool `yaml:"processes" mapstructure:"processes"`
	Fullscreen bool `yaml:"fullscreen" mapstructure:"fullscreen"`

	// Color is "auto", "always" or "never".
	Color string `yaml:"color" mapstructure:"color"`

	SSH SSHConfig `yaml:"ssh" mapstructure:"ssh"`
}

// SSHConfig controls the SSH transport.
type SSHConfig struct {
	// StrictHostKeyChecking rejects hosts missing from known_hosts.
	StrictHostKeyChecking bool `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`

	// ConfigFile overrides ~/.ssh/config.
	ConfigFile string `yaml:"config_file" mapstructure:"config_file"`
}

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Defaults.
const (
	DefaultInterval = 2 * time.Second
	DefaultWorkers  = 8
	DefaultTimeout  = 10 * time.Second
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Nodes:      []string{},
		Interval:   DefaultInterval,
		Workers:    DefaultWorkers,
		Timeout:    DefaultTimeout,
		Fullscreen: true,
		Color:      ColorAuto,
		SSH: SSHConfig{
			StrictHostKeyChecking: true,
		},
	}
}

// NodeSpec joins Nodes back into one hostlist string. Environment and flag
// values are split on commas, which can cut a bracket range in two; joining
// restores it before expansion.
func (c *Config) NodeSpec() string {
	return strings.Join(c.Nodes, ",")
}
