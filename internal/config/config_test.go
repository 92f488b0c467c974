package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/node-monitor/internal/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("nodes", "n", "", "")
	fs.Float64P("interval", "i", 2.0, "")
	fs.IntP("workers", "w", DefaultWorkers, "")
	fs.Float64P("timeout", "t", 10, "")
	fs.BoolP("compact", "c", false, "")
	fs.BoolP("processes", "p", false, "")
	fs.String("color", ColorAuto, "")
	return fs
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Empty(t, cfg.Nodes)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.True(t, cfg.Fullscreen)
	assert.False(t, cfg.Compact)
	assert.False(t, cfg.Processes)
	assert.Equal(t, ColorAuto, cfg.Color)
	assert.True(t, cfg.SSH.StrictHostKeyChecking)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	d := DefaultConfig()
	assert.Empty(t, cfg.Nodes)
	assert.Equal(t, d.Interval, cfg.Interval)
	assert.Equal(t, d.Workers, cfg.Workers)
	assert.Equal(t, d.Timeout, cfg.Timeout)
	assert.Equal(t, d.Fullscreen, cfg.Fullscreen)
	assert.Equal(t, d.Color, cfg.Color)
	assert.Equal(t, d.SSH, cfg.SSH)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
nodes:
  - gpu-[01-02]
  - visko-1
interval: 5s
workers: 4
timeout: 3
compact: true
fullscreen: false
color: never
ssh:
  strict_host_key_checking: false
  config_file: /tmp/ssh_config
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"gpu-[01-02]", "visko-1"}, cfg.Nodes)
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.True(t, cfg.Compact)
	assert.False(t, cfg.Processes)
	assert.False(t, cfg.Fullscreen)
	assert.Equal(t, ColorNever, cfg.Color)
	assert.False(t, cfg.SSH.StrictHostKeyChecking)
	assert.Equal(t, "/tmp/ssh_config", cfg.SSH.ConfigFile)
}

func TestLoad_DurationForms(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{value: "2s", want: 2 * time.Second},
		{value: "1500ms", want: 1500 * time.Millisecond},
		{value: "3", want: 3 * time.Second},
		{value: "0.5", want: 500 * time.Millisecond},
		{value: `"4"`, want: 4 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, "interval: "+tt.value+"\n"), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Interval)
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "interval: soon\n"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "Invalid config format")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "nodes: [unclosed\n"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config file not found")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "workers: 4\ninterval: 5s\n")
	t.Setenv("NODE_MONITOR_WORKERS", "16")
	t.Setenv("NODE_MONITOR_INTERVAL", "1.5")
	t.Setenv("NODE_MONITOR_NODES", "gpu-[1-3,7],b")
	t.Setenv("NODE_MONITOR_SSH_STRICT_HOST_KEY_CHECKING", "false")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, 1500*time.Millisecond, cfg.Interval)
	assert.Equal(t, "gpu-[1-3,7],b", cfg.NodeSpec())
	assert.False(t, cfg.SSH.StrictHostKeyChecking)
}

func TestLoad_FlagsOverrideEnvAndFile(t *testing.T) {
	path := writeConfig(t, "workers: 4\ncolor: never\n")
	t.Setenv("NODE_MONITOR_WORKERS", "16")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--workers", "2", "-i", "0.25", "-n", "a,b", "-p"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
	assert.Equal(t, []string{"a", "b"}, cfg.Nodes)
	assert.True(t, cfg.Processes)
	// Unchanged flags leave lower layers alone.
	assert.Equal(t, ColorNever, cfg.Color)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestFind(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := Find("")
	require.NoError(t, err)
	assert.Empty(t, path)

	global := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(global), 0755))
	require.NoError(t, os.WriteFile(global, []byte("workers: 2\n"), 0644))

	path, err = Find("")
	require.NoError(t, err)
	assert.Equal(t, global, path)

	explicit := writeConfig(t, "workers: 3\n")
	path, err = Find(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, path)
}

func TestFind_ExplicitMissing(t *testing.T) {
	_, err := Find(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "Specified config file not found")
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "2s", want: 2 * time.Second},
		{in: " 2 ", want: 2 * time.Second},
		{in: "2.5", want: 2500 * time.Millisecond},
		{in: "-1", want: -time.Second},
		{in: "", wantErr: true},
		{in: "fast", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, ".ssh/config"), ExpandPath("~/.ssh/config"))
	assert.Equal(t, "/etc/ssh/ssh_config", ExpandPath("/etc/ssh/ssh_config"))
	assert.Equal(t, "~other/x", ExpandPath("~other/x"))

	t.Setenv("CLUSTER_SSH_DIR", "~/cluster")
	assert.Equal(t, filepath.Join(home, "cluster/config"), ExpandPath("$CLUSTER_SSH_DIR/config"))
	assert.Equal(t, "/srv/ssh/config", ExpandPath("/srv${UNSET_NODE_MONITOR_VAR}/ssh/config"))
}
