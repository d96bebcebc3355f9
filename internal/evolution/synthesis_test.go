package evolution

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptedClient replays canned responses in order.
type scriptedClient struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	if c.calls >= len(c.responses) {
		return "", errors.New("scripted client exhausted")
	}
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

const validSpecJSON = `{
  "tool_name": "odds_normalizer_tool",
  "description": "Converts raw prices into implied probabilities",
  "inputs": {"price": "float64"},
  "output_type": "[]float64",
  "deterministic": true,
  "data_sources": ["local computation"],
  "expected_token_reduction": 150,
  "expected_accuracy_gain": 0.02,
  "risk_level": "low"
}`

func testGap() *GapReport {
	return &GapReport{
		Problem:  "Agent frequently performs implicit calculations that a tool could handle",
		Evidence: map[string]interface{}{"runs_with_calculations": 8},
		Priority: 0.8,
	}
}

func newTestSynthesizer(t *testing.T, client LLMClient) *Synthesizer {
	t.Helper()
	s, err := NewSynthesizer(client, 50)
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	return s
}

func TestGenerateSpec_ParsesFencedJSON(t *testing.T) {
	client := &scriptedClient{responses: []string{"```json\n" + validSpecJSON + "\n```"}}
	s := newTestSynthesizer(t, client)

	spec, err := s.GenerateSpec(context.Background(), testGap())
	if err != nil {
		t.Fatalf("GenerateSpec: %v", err)
	}
	if spec.ToolName != "odds_normalizer_tool" {
		t.Fatalf("ToolName = %q", spec.ToolName)
	}
	if spec.RiskLevel != RiskLow || !spec.Deterministic {
		t.Fatalf("spec = %+v", spec)
	}
	if !strings.Contains(client.prompts[0], testGap().Problem) {
		t.Fatal("prompt does not carry the gap problem statement")
	}
}

func TestGenerateSpec_RejectsInvalidJSON(t *testing.T) {
	s := newTestSynthesizer(t, &scriptedClient{responses: []string{"sure! here is a tool idea:"}})
	if _, err := s.GenerateSpec(context.Background(), testGap()); err == nil {
		t.Fatal("GenerateSpec accepted non-JSON output")
	}
}

func TestGenerateSpec_RejectsSchemaViolations(t *testing.T) {
	// deterministic has the wrong type, so schema validation fails before
	// any field-level checks.
	bad := strings.Replace(validSpecJSON, `"deterministic": true`, `"deterministic": "yes"`, 1)
	s := newTestSynthesizer(t, &scriptedClient{responses: []string{bad}})
	if _, err := s.GenerateSpec(context.Background(), testGap()); err == nil {
		t.Fatal("GenerateSpec accepted a schema-invalid spec")
	}
}

func TestGenerateSpec_RejectsHighRisk(t *testing.T) {
	risky := strings.Replace(validSpecJSON, `"risk_level": "low"`, `"risk_level": "high"`, 1)
	s := newTestSynthesizer(t, &scriptedClient{responses: []string{risky}})
	_, err := s.GenerateSpec(context.Background(), testGap())
	if err == nil || !strings.Contains(err.Error(), "high-risk") {
		t.Fatalf("GenerateSpec err = %v, want high-risk rejection", err)
	}
}

func TestGenerateSpec_RejectsBadSuffix(t *testing.T) {
	renamed := strings.Replace(validSpecJSON, "odds_normalizer_tool", "odds_normalizer", 1)
	s := newTestSynthesizer(t, &scriptedClient{responses: []string{renamed}})
	if _, err := s.GenerateSpec(context.Background(), testGap()); err == nil {
		t.Fatal("GenerateSpec accepted a name without the _tool suffix")
	}
}

func TestGenerateSpec_RejectsNonDeterministic(t *testing.T) {
	flaky := strings.Replace(validSpecJSON, `"deterministic": true`, `"deterministic": false`, 1)
	s := newTestSynthesizer(t, &scriptedClient{responses: []string{flaky}})
	if _, err := s.GenerateSpec(context.Background(), testGap()); err == nil {
		t.Fatal("GenerateSpec accepted a non-deterministic spec")
	}
}

func TestBuildSource_StripsFences(t *testing.T) {
	source := "```go\n" + goodCandidate + "```"
	client := &scriptedClient{responses: []string{source}}
	s := newTestSynthesizer(t, client)

	spec := ToolSpec{ToolName: "distance_tool", Description: "d", Deterministic: true, RiskLevel: RiskLow}
	got, err := s.BuildSource(context.Background(), &spec)
	if err != nil {
		t.Fatalf("BuildSource: %v", err)
	}
	if strings.Contains(got, "```") {
		t.Fatalf("fences survived: %q", got)
	}
	if !strings.HasPrefix(got, "package main") {
		t.Fatalf("source does not start with package clause: %q", got)
	}
}

func TestBuildSource_RejectsTruncatedOutput(t *testing.T) {
	s := newTestSynthesizer(t, &scriptedClient{responses: []string{"package main"}})
	spec := ToolSpec{ToolName: "tiny_tool", Description: "d", Deterministic: true, RiskLevel: RiskLow}
	_, err := s.BuildSource(context.Background(), &spec)
	if err == nil || !strings.Contains(err.Error(), "too short") {
		t.Fatalf("BuildSource err = %v, want truncation rejection", err)
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"  ```go\npackage main\n```  ", "package main"},
	}
	for _, tc := range cases {
		if got := stripFences(tc.in); got != tc.want {
			t.Fatalf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
