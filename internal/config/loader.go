package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/node-monitor/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. NODE_MONITOR_INTERVAL.
	EnvPrefix = "NODE_MONITOR"
	// GlobalConfigDir is the directory for the config file, under $HOME.
	GlobalConfigDir = ".config/node-monitor"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yaml"
)

// flagKeys maps flag names to config keys for flags that bind directly.
var flagKeys = map[string]string{
	"nodes":     "nodes",
	"interval":  "interval",
	"workers":   "workers",
	"timeout":   "timeout",
	"compact":   "compact",
	"processes": "processes",
	"color":     "color",
}

// DefaultPath returns ~/.config/node-monitor/config.yaml, or "" if the home
// directory is unknown. The file may not exist.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// Find returns the config file to read. An explicit path must exist.
// Otherwise the default path is used if present. Returns "" when there is
// no config file, which is not an error.
func Find(explicit string) (string, error) {
	if explicit != "" {
		explicit = ExpandPath(explicit)
		if _, err := os.Stat(explicit); err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	if p := DefaultPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// Load resolves the configuration: defaults, then the file at path (if not
// empty), then NODE_MONITOR_* environment variables, then any changed flags
// in flags (which may be nil).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found",
					"Create "+DefaultPath()+" or specify one with --config")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.WrapWithCode(err, errors.ErrConfig,
						"Couldn't bind --"+name, "")
				}
			}
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook)); err != nil {
		where := "your environment"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the values in "+where)
	}
	cfg.SSH.ConfigFile = ExpandPath(cfg.SSH.ConfigFile)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("nodes", d.Nodes)
	v.SetDefault("interval", d.Interval)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("compact", d.Compact)
	v.SetDefault("processes", d.Processes)
	v.SetDefault("fullscreen", d.Fullscreen)
	v.SetDefault("color", d.Color)
	v.SetDefault("ssh.strict_host_key_checking", d.SSH.StrictHostKeyChecking)
	v.SetDefault("ssh.config_file", d.SSH.ConfigFile)
}

var (
	durationType    = reflect.TypeOf(time.Duration(0))
	stringSliceType = reflect.TypeOf([]string(nil))
)

// decodeHook accepts durations as Go strings ("2s") or plain seconds (2,
// 1.5, "2"), and comma-separated strings for lists.
func decodeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	switch to {
	case durationType:
		return toDuration(data)
	case stringSliceType:
		if s, ok := data.(string); ok {
			return splitList(s), nil
		}
	}
	return data, nil
}

func toDuration(data interface{}) (interface{}, error) {
	switch v := data.(type) {
	case time.Duration:
		return v, nil
	case string:
		return ParseDuration(v)
	case int:
		return Seconds(float64(v)), nil
	case int64:
		return Seconds(float64(v)), nil
	case float64:
		return Seconds(v), nil
	case float32:
		return Seconds(float64(v)), nil
	}
	return data, nil
}

// ParseDuration reads "2s", "500ms" or a plain number of seconds ("2", "1.5").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: use seconds (2.5) or a Go duration (2500ms)", s)
	}
	return Seconds(f), nil
}

// Seconds converts fractional seconds to a Duration.
func Seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
