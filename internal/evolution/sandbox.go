package evolution

// Sandboxed candidate execution. Candidates run inside a yaegi interpreter
// on a separate goroutine; the verifier stops waiting at the deadline. The
// contract is "stop waiting", not "guarantee termination": a hung candidate
// keeps its goroutine alive until the process exits, and the host is
// expected to recycle the process out-of-band if that matters.

import (
	"context"
	"fmt"
	"math"
	"time"

	"oddsmith/internal/tools"
)

// Canonical synthetic input used for every sandbox and determinism run.
const (
	verifyMarketID = "VERIFY-MKT-001"
	verifyPrice    = 0.50
)

// runCandidate loads the candidate into a fresh interpreter and invokes
// its entry point once with the canonical input. Panics inside the
// interpreter surface as errors, never past this function.
func runCandidate(source string) (vector []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("candidate panicked: %v", r)
		}
	}()
	entry, err := tools.LoadEntry(source)
	if err != nil {
		return nil, err
	}
	return entry(verifyMarketID, verifyPrice)
}

type sandboxResult struct {
	vector []float64
	err    error
}

// runSandboxed executes runCandidate with a deadline.
func runSandboxed(ctx context.Context, source string, timeout time.Duration) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan sandboxResult, 1)
	go func() {
		vec, err := runCandidate(source)
		resultCh <- sandboxResult{vector: vec, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.vector, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("execution timed out after %s", timeout)
	}
}

// validateVector enforces the output contract: non-empty and every element
// a finite number.
func validateVector(vec []float64) error {
	if len(vec) == 0 {
		return fmt.Errorf("output vector is empty")
	}
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("output vector[%d] is not a finite number: %v", i, v)
		}
	}
	return nil
}
