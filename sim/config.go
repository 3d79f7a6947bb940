package sim

import (
	"fmt"
	"math"
)

// EngineConfig groups the sampling parameters of the simulation grid.
// The defaults reproduce the reference curves; change them only for
// exploratory runs.
type EngineConfig struct {
	Samples     int     `yaml:"samples"`       // evenly spaced grid points (must be >= 2)
	PreWindowH  float64 `yaml:"pre_window_h"`  // hours simulated before the first event
	PostWindowH float64 `yaml:"post_window_h"` // hours simulated after the last event
}

const (
	DefaultSamples     = 1000
	DefaultPreWindowH  = 24.0
	DefaultPostWindowH = 14 * 24.0
)

// DefaultEngineConfig returns the grid used by RunSimulation.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Samples:     DefaultSamples,
		PreWindowH:  DefaultPreWindowH,
		PostWindowH: DefaultPostWindowH,
	}
}

// Validate checks the grid parameters.
func (c EngineConfig) Validate() error {
	if c.Samples < 2 {
		return fmt.Errorf("samples must be at least 2, got %d", c.Samples)
	}
	if err := validateFiniteNonNegative("pre_window_h", c.PreWindowH); err != nil {
		return err
	}
	return validateFiniteNonNegative("post_window_h", c.PostWindowH)
}

func validateFiniteNonNegative(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val < 0 {
		return fmt.Errorf("%s must be non-negative, got %f", name, val)
	}
	return nil
}
