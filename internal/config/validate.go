package config

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/node-monitor/internal/errors"
)

// Validate checks ranges and enums. Every failure is a CONFIG error.
func Validate(cfg *Config) error {
	if cfg.Interval <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Refresh interval must be positive, got %s", cfg.Interval),
			"Pass --interval in seconds, e.g. --interval 2")
	}

	if cfg.Timeout <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Timeout must be positive, got %s", cfg.Timeout),
			"Pass --timeout in seconds, e.g. --timeout 10")
	}

	if cfg.Workers < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Workers must be at least 1, got %d", cfg.Workers),
			"Pass --workers 8 or any value of 1 or more")
	}

	if err := validateColor(cfg.Color); err != nil {
		return err
	}

	return nil
}

func validateColor(c string) error {
	switch c {
	case ColorAuto, ColorAlways, ColorNever:
		return nil
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown color mode %q", c),
		"Use one of: "+strings.Join([]string{ColorAuto, ColorAlways, ColorNever}, ", "))
}
