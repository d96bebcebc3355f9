package evolution

import (
	"context"
	"strings"
	"testing"
	"time"
)

const goodCandidate = `package main

import "math"

// ComputeDistance reports how far a price sits from the 0.5 midpoint.
func ComputeDistance(marketID string, price float64) ([]float64, error) {
	return []float64{math.Abs(price - 0.5), price * price}, nil
}
`

func testSpec(name string) ToolSpec {
	return ToolSpec{
		ToolName:      name,
		Description:   "test candidate",
		Deterministic: true,
		RiskLevel:     RiskLow,
	}
}

func newTestVerifier(timeout time.Duration) *Verifier {
	return NewVerifier(VerifierConfig{Timeout: timeout, DeterminismRuns: 3})
}

func TestVerify_GoodCandidatePassesAllPhases(t *testing.T) {
	result := newTestVerifier(5*time.Second).Verify(context.Background(), goodCandidate, testSpec("distance_tool"))
	if !result.Passed {
		t.Fatalf("Verify failed: %s", result.RejectionReason)
	}
	for _, phase := range []string{PhaseStaticInspection, PhaseSandboxExecution, PhaseDeterminism} {
		if !result.Checks[phase] {
			t.Fatalf("phase %s = false, want true", phase)
		}
	}
}

func TestVerify_BlockedImportFailsStaticInspection(t *testing.T) {
	source := `package main

import "os"

func ComputeEnv(marketID string, price float64) ([]float64, error) {
	_ = os.Getenv("HOME")
	return []float64{price}, nil
}
`
	result := newTestVerifier(5*time.Second).Verify(context.Background(), source, testSpec("env_tool"))
	if result.Passed {
		t.Fatal("Verify passed a candidate importing os")
	}
	if result.Checks[PhaseStaticInspection] {
		t.Fatal("static_inspection = true for blocked import")
	}
	if !strings.Contains(result.RejectionReason, "os") {
		t.Fatalf("rejection reason %q does not name the blocked import", result.RejectionReason)
	}
	// Later phases must not run after a static failure.
	if _, ran := result.Checks[PhaseSandboxExecution]; ran {
		t.Fatal("sandbox_execution ran after static rejection")
	}
}

func TestVerify_BlockedImportSubtree(t *testing.T) {
	source := `package main

import "net/http"

func ComputeFetch(marketID string, price float64) ([]float64, error) {
	_ = http.DefaultClient
	return []float64{price}, nil
}
`
	result := newTestVerifier(5*time.Second).Verify(context.Background(), source, testSpec("fetch_tool"))
	if result.Checks[PhaseStaticInspection] {
		t.Fatal("static_inspection passed an import under net/")
	}
}

func TestVerify_SyntaxErrorFailsStaticInspection(t *testing.T) {
	result := newTestVerifier(5*time.Second).Verify(context.Background(), "package main\n\nfunc {", testSpec("broken_tool"))
	if result.Passed || result.Checks[PhaseStaticInspection] {
		t.Fatalf("Verify accepted unparseable source: %+v", result)
	}
	if !strings.Contains(result.RejectionReason, "syntax error") {
		t.Fatalf("rejection reason %q, want a syntax error", result.RejectionReason)
	}
}

func TestVerify_NonFiniteOutputFailsSandbox(t *testing.T) {
	source := `package main

import "math"

func ComputeNaN(marketID string, price float64) ([]float64, error) {
	return []float64{math.NaN()}, nil
}
`
	result := newTestVerifier(5*time.Second).Verify(context.Background(), source, testSpec("nan_tool"))
	if result.Passed {
		t.Fatal("Verify passed a candidate producing NaN")
	}
	if !result.Checks[PhaseStaticInspection] || result.Checks[PhaseSandboxExecution] {
		t.Fatalf("unexpected phase results: %v", result.Checks)
	}
}

func TestVerify_EmptyVectorFailsSandbox(t *testing.T) {
	source := `package main

func ComputeNothing(marketID string, price float64) ([]float64, error) {
	return []float64{}, nil
}
`
	result := newTestVerifier(5*time.Second).Verify(context.Background(), source, testSpec("empty_tool"))
	if result.Passed || result.Checks[PhaseSandboxExecution] {
		t.Fatalf("Verify accepted an empty output vector: %+v", result)
	}
}

// Leaves the candidate goroutine spinning past the deadline; the verifier
// only stops waiting.
func TestVerify_HungCandidateTimesOut(t *testing.T) {
	source := `package main

func ComputeForever(marketID string, price float64) ([]float64, error) {
	n := 0.0
	for {
		n += price
	}
}
`
	result := newTestVerifier(200*time.Millisecond).Verify(context.Background(), source, testSpec("hang_tool"))
	if result.Passed {
		t.Fatal("Verify passed a hung candidate")
	}
	if result.Checks[PhaseSandboxExecution] {
		t.Fatal("sandbox_execution = true for a hung candidate")
	}
	if !strings.Contains(result.RejectionReason, "timed out") {
		t.Fatalf("rejection reason %q, want a timeout", result.RejectionReason)
	}
}

func TestVerify_NonDeterministicCandidateRejected(t *testing.T) {
	source := `package main

import "time"

func ComputeClock(marketID string, price float64) ([]float64, error) {
	return []float64{float64(time.Now().UnixNano())}, nil
}
`
	result := newTestVerifier(5*time.Second).Verify(context.Background(), source, testSpec("clock_tool"))
	if result.Passed {
		t.Fatal("Verify passed a clock-reading candidate")
	}
	if !result.Checks[PhaseSandboxExecution] || result.Checks[PhaseDeterminism] {
		t.Fatalf("unexpected phase results: %v", result.Checks)
	}
	if !strings.Contains(result.RejectionReason, "non-deterministic") {
		t.Fatalf("rejection reason %q, want non-determinism", result.RejectionReason)
	}
}

func TestVerify_AmbiguousEntryPointRejected(t *testing.T) {
	source := `package main

func ComputeA(marketID string, price float64) ([]float64, error) {
	return []float64{price}, nil
}

func ComputeB(marketID string, price float64) ([]float64, error) {
	return []float64{price * 2}, nil
}
`
	result := newTestVerifier(5*time.Second).Verify(context.Background(), source, testSpec("twin_tool"))
	if result.Passed || result.Checks[PhaseSandboxExecution] {
		t.Fatalf("Verify accepted an ambiguous candidate: %+v", result)
	}
	if !strings.Contains(result.RejectionReason, "ambiguous") {
		t.Fatalf("rejection reason %q, want ambiguity", result.RejectionReason)
	}
}

func TestStaticInspect_OpenFileModes(t *testing.T) {
	cases := []struct {
		name   string
		source string
		allow  bool
	}{
		{
			name: "write flag rejected",
			source: `package main
import "io"
func Compute(marketID string, price float64) ([]float64, error) {
	_, _ = os.OpenFile("x", os.O_WRONLY, 0)
	_ = io.Discard
	return []float64{price}, nil
}
`,
			allow: false,
		},
		{
			name: "unprovable flag rejected",
			source: `package main
func Compute(marketID string, price float64) ([]float64, error) {
	flag := 1
	_, _ = os.OpenFile("x", flag, 0)
	return []float64{price}, nil
}
`,
			allow: false,
		},
	}

	v := newTestVerifier(time.Second)
	for _, tc := range cases {
		out := v.staticInspect(tc.source)
		if out.passed != tc.allow {
			t.Fatalf("%s: staticInspect passed=%v reason=%q, want passed=%v",
				tc.name, out.passed, out.reason, tc.allow)
		}
	}
}
