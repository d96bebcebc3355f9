// Package logging provides categorized zap loggers for oddsmith.
// Each subsystem logs under its own named logger so log output can be
// filtered per category (evolution, verifier, lifecycle, registry, watcher).
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a logging subsystem.
type Category string

const (
	CategoryEvolution Category = "evolution" // gap analysis, cycle orchestration
	CategoryVerifier  Category = "verifier"  // candidate verification phases
	CategoryLifecycle Category = "lifecycle" // per-tool performance ledger
	CategoryRegistry  Category = "registry"  // tool registration and manifest
	CategoryWatcher   Category = "watcher"   // execution log watcher
	CategoryCLI       Category = "cli"       // command entry points
)

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	byCat   = map[Category]*zap.Logger{}
	initted bool
)

// Init builds the process-wide root logger. Call once from main.
// When debug is true, log level drops to Debug and output switches to the
// development console encoder.
func Init(debug bool) error {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	root = logger
	byCat = map[Category]*zap.Logger{}
	initted = true
	return nil
}

// L returns the logger for a category. Safe to call before Init; until then
// it returns a nop logger so library code never nil-checks.
func L(cat Category) *zap.Logger {
	mu.RLock()
	if l, ok := byCat[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := byCat[cat]; ok {
		return l
	}
	l := root.Named(string(cat))
	byCat[cat] = l
	return l
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if initted {
		_ = root.Sync()
	}
}
