package evolution

// Evolution orchestrator: the single driver of the analyze -> specify ->
// build -> verify -> accept pipeline. At most one tool is synthesized per
// cycle, and every early exit is a normal outcome, not an error.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"oddsmith/internal/config"
	"oddsmith/internal/logging"
	"oddsmith/internal/tools"
)

// CycleOutcome names how a cycle ended.
type CycleOutcome string

const (
	OutcomeNoGap      CycleOutcome = "no_gap"      // corpus below floor or no gap over threshold
	OutcomeDuplicate  CycleOutcome = "duplicate"   // proposed tool already registered
	OutcomeSpecFailed CycleOutcome = "spec_failed" // collaborator spec rejected
	OutcomeBuildFail  CycleOutcome = "build_failed"
	OutcomeRejected   CycleOutcome = "rejected" // failed verification
	OutcomeStaged     CycleOutcome = "staged"   // verified, awaiting manual approval
	OutcomeAccepted   CycleOutcome = "accepted" // verified and registered
)

// CycleResult reports one evolution cycle.
type CycleResult struct {
	Outcome  CycleOutcome
	ToolName string
	Gap      *GapReport
	Reason   string
}

// Loop wires the evolution pipeline together.
type Loop struct {
	cfg         config.Config
	execLog     *Log
	analyzer    *Analyzer
	synthesizer *Synthesizer
	verifier    *Verifier
	lifecycle   *Lifecycle
	registry    *tools.Registry
	log         *zap.Logger
}

// NewLoop builds the pipeline from its collaborators.
func NewLoop(cfg config.Config, client LLMClient, registry *tools.Registry) (*Loop, error) {
	synth, err := NewSynthesizer(client, cfg.Evolve.MinSourceBytes)
	if err != nil {
		return nil, err
	}
	lifecycle, err := NewLifecycle(cfg.Paths.LifecycleLedger, cfg.Evolve.DeprecationRuns)
	if err != nil {
		return nil, err
	}
	return &Loop{
		cfg:         cfg,
		execLog:     NewLog(cfg.Paths.ExecutionLog),
		analyzer:    NewAnalyzer(),
		synthesizer: synth,
		verifier:    NewVerifier(VerifierConfig{Timeout: cfg.Verify.Timeout(), DeterminismRuns: cfg.Verify.DeterminismRuns}),
		lifecycle:   lifecycle,
		registry:    registry,
		log:         logging.L(logging.CategoryEvolution),
	}, nil
}

// ExecutionLog exposes the underlying record store.
func (l *Loop) ExecutionLog() *Log { return l.execLog }

// LifecycleManager exposes the lifecycle ledger.
func (l *Loop) LifecycleManager() *Lifecycle { return l.lifecycle }

// RunCycle executes one full evolution cycle. Infrastructure failures
// (unreadable log, staging write errors) return an error; pipeline early
// exits are reported in the result.
func (l *Loop) RunCycle(ctx context.Context) (CycleResult, error) {
	records, err := l.execLog.Load()
	if err != nil {
		return CycleResult{}, fmt.Errorf("loading execution log: %w", err)
	}

	gap := l.analyzer.Analyze(records, l.cfg.Evolve.MinRuns, l.cfg.Evolve.GapThreshold)
	if gap == nil {
		return CycleResult{Outcome: OutcomeNoGap}, nil
	}

	spec, err := l.synthesizer.GenerateSpec(ctx, gap)
	if err != nil {
		l.log.Warn("spec generation failed", zap.Error(err))
		return CycleResult{Outcome: OutcomeSpecFailed, Gap: gap, Reason: err.Error()}, nil
	}

	if l.registry.Contains(spec.ToolName) {
		l.log.Info("proposed tool already registered", zap.String("tool", spec.ToolName))
		return CycleResult{Outcome: OutcomeDuplicate, ToolName: spec.ToolName, Gap: gap}, nil
	}

	source, err := l.synthesizer.BuildSource(ctx, spec)
	if err != nil {
		l.log.Warn("source generation failed", zap.String("tool", spec.ToolName), zap.Error(err))
		return CycleResult{Outcome: OutcomeBuildFail, ToolName: spec.ToolName, Gap: gap, Reason: err.Error()}, nil
	}

	result := l.verifier.Verify(ctx, source, *spec)
	if !result.Passed {
		return CycleResult{
			Outcome:  OutcomeRejected,
			ToolName: spec.ToolName,
			Gap:      gap,
			Reason:   result.RejectionReason,
		}, nil
	}

	if l.cfg.Evolve.RequireManualApproval {
		pendingDir := filepath.Join(l.cfg.Paths.GeneratedTools, "pending")
		if _, err := l.verifier.StageForReview(pendingDir, *spec, source, result); err != nil {
			return CycleResult{}, err
		}
		return CycleResult{Outcome: OutcomeStaged, ToolName: spec.ToolName, Gap: gap}, nil
	}

	if err := l.accept(*spec, source); err != nil {
		return CycleResult{}, err
	}
	return CycleResult{Outcome: OutcomeAccepted, ToolName: spec.ToolName, Gap: gap}, nil
}

// accept persists a verified candidate and registers it for use.
func (l *Loop) accept(spec ToolSpec, source string) error {
	if err := os.MkdirAll(l.cfg.Paths.GeneratedTools, 0o755); err != nil {
		return fmt.Errorf("creating generated tools dir: %w", err)
	}
	sourcePath := filepath.Join(l.cfg.Paths.GeneratedTools, spec.ToolName+".go")
	if err := os.WriteFile(sourcePath, []byte(source), 0o644); err != nil {
		return fmt.Errorf("persisting accepted tool: %w", err)
	}

	if err := tools.AppendManifest(l.cfg.Paths.ApprovedTools, tools.ManifestEntry{
		ToolName: spec.ToolName,
		Version:  "0.1.0",
	}); err != nil {
		return fmt.Errorf("updating tool manifest: %w", err)
	}

	entry, err := tools.LoadEntry(source)
	if err != nil {
		// Verification already loaded this source; a failure here means
		// the interpreter environment changed underneath us.
		return fmt.Errorf("loading accepted tool: %w", err)
	}
	tool := tools.NewGeneratedTool(spec.ToolName, spec.Description, "0.1.0", entry)
	if err := l.registry.RegisterGenerated(tool, "0.1.0"); err != nil {
		return fmt.Errorf("registering accepted tool: %w", err)
	}

	l.lifecycle.Register(spec.ToolName, "0.1.0")
	l.log.Info("tool accepted into registry",
		zap.String("tool", spec.ToolName),
		zap.String("source", sourcePath))
	return nil
}
