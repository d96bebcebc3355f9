// Package evolution implements the autonomous tool-evolution pipeline:
// mining execution logs for capability gaps, gating synthesized tool
// candidates behind a three-phase safety verifier, and tracking accepted
// tools until deprecation.
package evolution

import (
	"fmt"
	"strings"
	"time"

	"oddsmith/internal/types"
)

// =============================================================================
// EXECUTION LOG
// =============================================================================

// ToolExecutionStatus records whether one selected tool ran cleanly
// during a pipeline run.
type ToolExecutionStatus struct {
	ToolName string `json:"tool_name"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// ExecutionRecord is the structured record of a single completed pipeline
// run. Immutable once written; the evolution subsystem only reads these.
type ExecutionRecord struct {
	RunID              string                `json:"run_id"`
	MarketID           string                `json:"market_id"`
	MarketTitle        string                `json:"market_title,omitempty"`
	SelectedTools      []string              `json:"selected_tools"`
	ToolWeights        []float64             `json:"tool_weights"`
	ToolOutputs        []types.ToolOutput    `json:"tool_outputs"`
	FinalScore         float64               `json:"final_score"`
	Threshold          float64               `json:"threshold"`
	BetTriggered       bool                  `json:"bet_triggered"`
	Rationale          string                `json:"rationale"`
	FailedToolAttempts []string              `json:"failed_tool_attempts,omitempty"`
	TotalTokensUsed    int                   `json:"total_tokens_used"`
	Timestamp          time.Time             `json:"timestamp"`
	ToolStatuses       []ToolExecutionStatus `json:"tool_statuses,omitempty"`

	// Upstream-response fingerprint for stale data detection.
	ResponseHash      string     `json:"response_hash,omitempty"`
	ResponseTimestamp *time.Time `json:"response_timestamp,omitempty"`
}

// =============================================================================
// GAP ANALYSIS
// =============================================================================

// GapReport is the output of one detection pass: a detected capability gap
// with its evidence and a priority in [0,1]. Ephemeral; produced fresh
// each analysis cycle.
type GapReport struct {
	Problem             string                 `json:"problem_detected"`
	Evidence            map[string]interface{} `json:"evidence"`
	EstimatedTokenWaste float64                `json:"estimated_token_waste"`
	Priority            float64                `json:"priority_score"`
}

// =============================================================================
// TOOL SPECIFICATION
// =============================================================================

// RiskLevel classifies a proposed tool. High risk is rejected at
// construction time, never reaching verification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ToolSpec is the contract a synthesized tool must satisfy. The synthesis
// collaborator's raw response is deserialized into this shape and rejected
// if validation fails.
type ToolSpec struct {
	ToolName               string            `json:"tool_name"`
	Description            string            `json:"description"`
	Inputs                 map[string]string `json:"inputs"`
	OutputType             string            `json:"output_type"`
	Deterministic          bool              `json:"deterministic"`
	DataSources            []string          `json:"data_sources"`
	ExpectedTokenReduction float64           `json:"expected_token_reduction"`
	ExpectedAccuracyGain   float64           `json:"expected_accuracy_gain"`
	RiskLevel              RiskLevel         `json:"risk_level"`
}

// Validate enforces the construction-time constraints on a spec.
func (s *ToolSpec) Validate() error {
	if s.ToolName == "" {
		return fmt.Errorf("tool_name must not be empty")
	}
	if !strings.HasSuffix(s.ToolName, "_tool") {
		return fmt.Errorf("tool_name %q must end with _tool", s.ToolName)
	}
	if s.Description == "" {
		return fmt.Errorf("description must not be empty")
	}
	if !s.Deterministic {
		return fmt.Errorf("generated tools must be deterministic")
	}
	switch s.RiskLevel {
	case RiskLow, RiskMedium:
	case RiskHigh:
		return fmt.Errorf("high-risk tools are rejected at spec level")
	default:
		return fmt.Errorf("unknown risk_level %q", s.RiskLevel)
	}
	if s.ExpectedTokenReduction < 0 {
		return fmt.Errorf("expected_token_reduction must be >= 0")
	}
	if s.ExpectedAccuracyGain < 0 {
		return fmt.Errorf("expected_accuracy_gain must be >= 0")
	}
	return nil
}

// =============================================================================
// VERIFICATION
// =============================================================================

// Verification phase names, in execution order.
const (
	PhaseStaticInspection = "static_inspection"
	PhaseSandboxExecution = "sandbox_execution"
	PhaseDeterminism      = "determinism"
)

// VerificationResult is the outcome of the three-phase gate for one
// candidate. Produced once, never mutated afterward.
type VerificationResult struct {
	ToolName        string          `json:"tool_name"`
	Passed          bool            `json:"passed"`
	Checks          map[string]bool `json:"checks"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// ToolStatus is the lifecycle state of a registered tool.
type ToolStatus string

const (
	StatusActive     ToolStatus = "active"
	StatusPending    ToolStatus = "pending"
	StatusDeprecated ToolStatus = "deprecated"
)

// ToolLifecycleRecord is the running performance aggregate for one tool.
type ToolLifecycleRecord struct {
	ToolName                    string     `json:"tool_name"`
	Version                     string     `json:"version"`
	UsageCount                  int        `json:"usage_count"`
	TotalScoreContribution      float64    `json:"total_score_contribution"`
	CorrectPredictions          int        `json:"correct_predictions"`
	TotalPredictions            int        `json:"total_predictions"`
	TotalLatencyMs              float64    `json:"total_latency_ms"`
	ConsecutiveUnderperformance int        `json:"consecutive_underperformance"`
	Status                      ToolStatus `json:"status"`
	CreatedAt                   time.Time  `json:"created_at"`
	LastUsedAt                  *time.Time `json:"last_used_at,omitempty"`
}

// AvgScoreContribution is the mean score contribution per usage.
func (r *ToolLifecycleRecord) AvgScoreContribution() float64 {
	if r.UsageCount == 0 {
		return 0
	}
	return r.TotalScoreContribution / float64(r.UsageCount)
}

// CorrectRate is the fraction of predictions that were correct.
func (r *ToolLifecycleRecord) CorrectRate() float64 {
	if r.TotalPredictions == 0 {
		return 0
	}
	return float64(r.CorrectPredictions) / float64(r.TotalPredictions)
}

// AvgLatencyMs is the mean execution latency per usage.
func (r *ToolLifecycleRecord) AvgLatencyMs() float64 {
	if r.UsageCount == 0 {
		return 0
	}
	return r.TotalLatencyMs / float64(r.UsageCount)
}
