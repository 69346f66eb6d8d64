package allocation

import (
	"fmt"
	"time"
)

// Config defines allocation-related settings.
type Config struct {
	// MinIntervalMS is the minimum time between two accepted wrench requests.
	MinIntervalMS int `json:"min_interval_ms"`
	// MinCommandableThrust is the deadband in Newtons.
	MinCommandableThrust float64 `json:"min_commandable_thrust"`
	// Regularization is the per-thruster diagonal weight of the effort term.
	Regularization float64 `json:"regularization"`
	Tolerance      float64 `json:"tolerance"`
	MaxIterations  int     `json:"max_iterations"`
	// DerateFactor scales the wrench after every failed solve.
	DerateFactor      float64 `json:"derate_factor"`
	MaxDerateAttempts int     `json:"max_derate_attempts"`
	DerateBudgetMS    int     `json:"derate_budget_ms"`
	// FeasibilityTolerance, when positive, marks converged solutions whose
	// relative wrench residual exceeds it as failed so the wrench is de-rated.
	FeasibilityTolerance float64 `json:"feasibility_tolerance"`
	// Frame is stamped on the diagnostic wrenches.
	Frame string `json:"frame"`
}

// SetDefaults applies the reference tuning.
func (c *Config) SetDefaults() {
	if c.MinIntervalMS <= 0 {
		c.MinIntervalMS = 50
	}
	if c.MinCommandableThrust <= 0 {
		c.MinCommandableThrust = 1e-2
	}
	if c.Regularization <= 0 {
		c.Regularization = 1e-4
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-6
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 100
	}
	if c.DerateFactor <= 0 {
		c.DerateFactor = 0.75
	}
	if c.MaxDerateAttempts <= 0 {
		c.MaxDerateAttempts = 24
	}
	if c.DerateBudgetMS <= 0 {
		c.DerateBudgetMS = 40
	}
	if c.Frame == "" {
		c.Frame = "base_link"
	}
}

// Validate checks the settings after defaults are applied.
func (c Config) Validate() error {
	if c.DerateFactor >= 1 {
		return fmt.Errorf("derate_factor must be in (0, 1), got %v", c.DerateFactor)
	}
	if c.FeasibilityTolerance < 0 {
		return fmt.Errorf("feasibility_tolerance must not be negative")
	}
	return nil
}

func (c Config) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

func (c Config) DerateBudget() time.Duration {
	return time.Duration(c.DerateBudgetMS) * time.Millisecond
}
