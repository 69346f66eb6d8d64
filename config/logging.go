package config

import (
	"fmt"

	"github.com/kilianp07/thrustmapper/core/allocation/logging"
)

// LoggingConfig selects where accepted allocation cycles are recorded.
type LoggingConfig struct {
	Enabled bool `json:"enabled"`
	// Backend is "jsonl" or "sqlite".
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// MaxSizeMB enables rotation of the jsonl file when positive.
	MaxSizeMB  int `json:"max_size_mb"`
	MaxBackups int `json:"max_backups"`
	MaxAgeDays int `json:"max_age_days"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "allocation.log"
	}
}

func (c LoggingConfig) Validate() error {
	switch c.Backend {
	case "jsonl":
	case "sqlite":
		if c.MaxSizeMB > 0 {
			return fmt.Errorf("rotation is only supported by the jsonl backend")
		}
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("rotation limits must not be negative")
	}
	return nil
}

// Options converts the section to log store options.
func (c LoggingConfig) Options() logging.Options {
	return logging.Options{
		Backend:    c.Backend,
		Path:       c.Path,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	}
}
