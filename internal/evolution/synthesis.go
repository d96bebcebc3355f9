package evolution

// Tool synthesis. A gap report goes to the language-model collaborator
// twice: once for a structured tool spec, once for the tool source. Every
// response is treated as untrusted text until it clears schema validation
// (specs) or the verifier gate (source).

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"oddsmith/internal/logging"
)

// LLMClient is the synthesis collaborator. Implementations wrap a real
// model endpoint; tests supply canned responses.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// toolSpecSchema structurally validates the collaborator's spec response
// before any field-level checks run.
const toolSpecSchema = `{
  "type": "object",
  "required": ["tool_name", "description", "deterministic", "risk_level"],
  "properties": {
    "tool_name": {"type": "string", "minLength": 1},
    "description": {"type": "string", "minLength": 1},
    "inputs": {"type": "object", "additionalProperties": {"type": "string"}},
    "output_type": {"type": "string"},
    "deterministic": {"type": "boolean"},
    "data_sources": {"type": "array", "items": {"type": "string"}},
    "expected_token_reduction": {"type": "number"},
    "expected_accuracy_gain": {"type": "number"},
    "risk_level": {"type": "string", "enum": ["low", "medium", "high"]}
  }
}`

// Synthesizer turns gap reports into candidate tool sources.
type Synthesizer struct {
	client         LLMClient
	minSourceBytes int
	schema         *jsonschema.Schema
	log            *zap.Logger
}

// NewSynthesizer creates a synthesizer. minSourceBytes is the floor below
// which a source response is rejected as truncated.
func NewSynthesizer(client LLMClient, minSourceBytes int) (*Synthesizer, error) {
	if minSourceBytes < 1 {
		minSourceBytes = 50
	}
	schema, err := jsonschema.CompileString("tool_spec.json", toolSpecSchema)
	if err != nil {
		return nil, fmt.Errorf("compiling tool spec schema: %w", err)
	}
	return &Synthesizer{
		client:         client,
		minSourceBytes: minSourceBytes,
		schema:         schema,
		log:            logging.L(logging.CategoryEvolution),
	}, nil
}

// GenerateSpec asks the collaborator for a structured tool spec addressing
// the gap, then validates the response through three layers: JSON
// well-formedness, schema conformance, and spec-level constraints.
func (s *Synthesizer) GenerateSpec(ctx context.Context, gap *GapReport) (*ToolSpec, error) {
	raw, err := s.client.Complete(ctx, specPrompt(gap))
	if err != nil {
		return nil, fmt.Errorf("spec generation request: %w", err)
	}

	cleaned := stripFences(raw)
	if !gjson.Valid(cleaned) {
		return nil, fmt.Errorf("spec response is not valid JSON")
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, fmt.Errorf("decoding spec response: %w", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("spec response failed schema validation: %w", err)
	}

	var spec ToolSpec
	if err := json.Unmarshal([]byte(cleaned), &spec); err != nil {
		return nil, fmt.Errorf("decoding spec response: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("spec rejected: %w", err)
	}

	s.log.Info("tool spec generated",
		zap.String("tool", spec.ToolName),
		zap.String("risk", string(spec.RiskLevel)))
	return &spec, nil
}

// BuildSource asks the collaborator for the tool implementation. The
// result is raw untrusted source; only the verifier decides whether it is
// safe to load.
func (s *Synthesizer) BuildSource(ctx context.Context, spec *ToolSpec) (string, error) {
	raw, err := s.client.Complete(ctx, sourcePrompt(spec))
	if err != nil {
		return "", fmt.Errorf("source generation request: %w", err)
	}

	source := strings.TrimSpace(stripFences(raw))
	if len(source) < s.minSourceBytes {
		return "", fmt.Errorf("source response too short (%d bytes), likely truncated", len(source))
	}

	s.log.Info("candidate source generated",
		zap.String("tool", spec.ToolName),
		zap.Int("bytes", len(source)))
	return source, nil
}

// stripFences removes a surrounding markdown code fence, with or without
// a language tag, leaving other content untouched.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line (```json, ```go, or bare ```).
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func specPrompt(gap *GapReport) string {
	evidence, _ := json.MarshalIndent(gap.Evidence, "", "  ")
	var b strings.Builder
	b.WriteString("You are designing a deterministic analysis tool for a prediction market agent.\n\n")
	fmt.Fprintf(&b, "A capability gap was detected in the agent's execution history:\n")
	fmt.Fprintf(&b, "Problem: %s\n", gap.Problem)
	fmt.Fprintf(&b, "Evidence: %s\n", evidence)
	fmt.Fprintf(&b, "Estimated token waste: %.1f\n\n", gap.EstimatedTokenWaste)
	b.WriteString(`Propose ONE tool that closes this gap. Respond with ONLY a JSON object:
{
  "tool_name": "snake_case name ending in _tool",
  "description": "one sentence describing what the tool computes",
  "inputs": {"param_name": "type"},
  "output_type": "[]float64",
  "deterministic": true,
  "data_sources": ["local files or computations only"],
  "expected_token_reduction": 0.0,
  "expected_accuracy_gain": 0.0,
  "risk_level": "low"
}

Constraints:
- The tool must be fully deterministic: same inputs always produce the same outputs.
- No network access, no subprocess execution, no randomness.
- risk_level must be "low" or "medium"; high-risk proposals are rejected.
`)
	return b.String()
}

func sourcePrompt(spec *ToolSpec) string {
	specJSON, _ := json.MarshalIndent(spec, "", "  ")
	var b strings.Builder
	b.WriteString("Implement the following tool specification as a single Go file.\n\n")
	fmt.Fprintf(&b, "Specification:\n%s\n\n", specJSON)
	b.WriteString(`Requirements:
- Package main, with exactly one exported function of signature:
    func ComputeXxx(marketID string, currentPrice float64) ([]float64, error)
- Pure computation only. Allowed imports: fmt, math, sort, strings, strconv, errors.
- Never import os, net, os/exec, syscall, unsafe, math/rand, or crypto/rand.
- Never panic on edge cases; return an error instead.
- The function must be deterministic and must return a non-empty []float64.

Respond with ONLY the Go source code, no explanations.
`)
	return b.String()
}
