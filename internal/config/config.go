// Package config centralizes every tunable for oddsmith.
// Values load from an optional YAML file merged over defaults; no magic
// numbers live anywhere else.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the full process configuration.
type Config struct {
	Debug   bool         `mapstructure:"debug"`
	DataDir string       `mapstructure:"data_dir"`
	Paths   PathsConfig  `mapstructure:"paths"`
	Evolve  EvolveConfig `mapstructure:"evolution"`
	Verify  VerifyConfig `mapstructure:"verify"`
	Watcher WatchConfig  `mapstructure:"watcher"`
}

// PathsConfig locates the on-disk artifacts. Empty entries are derived
// from DataDir in applyDefaults.
type PathsConfig struct {
	ExecutionLog    string `mapstructure:"execution_log"`     // JSONL, append-only
	LifecycleLedger string `mapstructure:"lifecycle_ledger"`  // JSONL, rewritten per update
	GeneratedTools  string `mapstructure:"generated_tools"`   // dir for accepted tool sources
	ApprovedTools   string `mapstructure:"approved_manifest"` // flat {tool_name, version} list
	Snapshots       string `mapstructure:"snapshots"`         // market snapshot JSONL
}

// WatchConfig configures the execution-log watcher.
type WatchConfig struct {
	DebounceMs int `mapstructure:"debounce_ms"`
}

// base returns the defaults with paths still underived, so a loaded
// data_dir can relocate them before applyDefaults runs.
func base() Config {
	return Config{
		Evolve:  DefaultEvolveConfig(),
		Verify:  DefaultVerifyConfig(),
		Watcher: WatchConfig{DebounceMs: 500},
	}
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := base()
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file and merges it over defaults.
// An empty path returns Default().
func Load(path string) (*Config, error) {
	cfg := base()
	if path == "" {
		cfg.applyDefaults()
		return &cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Paths.ExecutionLog == "" {
		c.Paths.ExecutionLog = filepath.Join(c.DataDir, "execution_logs.jsonl")
	}
	if c.Paths.LifecycleLedger == "" {
		c.Paths.LifecycleLedger = filepath.Join(c.DataDir, "tool_lifecycle.jsonl")
	}
	if c.Paths.GeneratedTools == "" {
		c.Paths.GeneratedTools = filepath.Join(c.DataDir, "generated_tools")
	}
	if c.Paths.ApprovedTools == "" {
		c.Paths.ApprovedTools = filepath.Join(c.Paths.GeneratedTools, "approved.json")
	}
	if c.Paths.Snapshots == "" {
		c.Paths.Snapshots = filepath.Join(c.DataDir, "market_snapshots.jsonl")
	}
	if c.Watcher.DebounceMs <= 0 {
		c.Watcher.DebounceMs = 500
	}
}

func (c *Config) validate() error {
	if c.Evolve.MinRuns < 1 {
		return fmt.Errorf("evolution.min_runs must be >= 1, got %d", c.Evolve.MinRuns)
	}
	if c.Evolve.GapThreshold < 0 || c.Evolve.GapThreshold > 1 {
		return fmt.Errorf("evolution.gap_threshold must be in [0,1], got %g", c.Evolve.GapThreshold)
	}
	if c.Verify.DeterminismRuns < 2 {
		return fmt.Errorf("verify.determinism_runs must be >= 2, got %d", c.Verify.DeterminismRuns)
	}
	if c.Verify.TimeoutSec <= 0 {
		return fmt.Errorf("verify.timeout_sec must be positive, got %d", c.Verify.TimeoutSec)
	}
	return nil
}
