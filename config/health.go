package config

import (
	"fmt"
	"time"
)

// HealthConfig holds configuration for the thruster health monitor.
type HealthConfig struct {
	Enabled bool `json:"enabled"`
	// StaleAfterMS marks a thruster dead when no status message arrived for
	// that long. Zero disables staleness detection.
	StaleAfterMS    int `json:"stale_after_ms"`
	CheckIntervalMS int `json:"check_interval_ms"`
}

func (c *HealthConfig) SetDefaults() {
	if c.StaleAfterMS > 0 && c.CheckIntervalMS <= 0 {
		c.CheckIntervalMS = c.StaleAfterMS / 2
		if c.CheckIntervalMS == 0 {
			c.CheckIntervalMS = 1
		}
	}
}

func (c HealthConfig) Validate() error {
	if c.StaleAfterMS < 0 || c.CheckIntervalMS < 0 {
		return fmt.Errorf("health: durations must not be negative")
	}
	return nil
}

func (c HealthConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMS) * time.Millisecond
}

func (c HealthConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMS) * time.Millisecond
}
