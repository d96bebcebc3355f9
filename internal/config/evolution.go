package config

import "time"

// EvolveConfig tunes the gap analyzer, orchestrator, and lifecycle manager.
type EvolveConfig struct {
	MinRuns               int     `mapstructure:"min_runs"`         // analysis floor
	GapThreshold          float64 `mapstructure:"gap_threshold"`    // min priority to act on
	DeprecationRuns       int     `mapstructure:"deprecation_runs"` // consecutive underperformance limit
	RequireManualApproval bool    `mapstructure:"require_manual_approval"`
	MinSourceBytes        int     `mapstructure:"min_source_bytes"` // reject shorter synthesis output
}

// DefaultEvolveConfig returns the evolution defaults.
func DefaultEvolveConfig() EvolveConfig {
	return EvolveConfig{
		MinRuns:               5,
		GapThreshold:          0.5,
		DeprecationRuns:       10,
		RequireManualApproval: true,
		MinSourceBytes:        50,
	}
}

// VerifyConfig tunes the candidate verifier.
type VerifyConfig struct {
	TimeoutSec      int `mapstructure:"timeout_sec"`      // sandbox invocation deadline
	DeterminismRuns int `mapstructure:"determinism_runs"` // repeat invocations in phase 3
}

// Timeout returns the sandbox deadline as a duration.
func (v VerifyConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutSec) * time.Second
}

// DefaultVerifyConfig returns the verifier defaults.
func DefaultVerifyConfig() VerifyConfig {
	return VerifyConfig{
		TimeoutSec:      5,
		DeterminismRuns: 3,
	}
}
