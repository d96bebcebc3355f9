package evolution

// Candidate verifier: the trust boundary between synthesized source and the
// registry. Three phases run strictly in order and the first failure is
// terminal for the candidate:
//
//   static_inspection -> sandbox_execution -> determinism
//
// Nothing downstream of a failing phase executes.

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"oddsmith/internal/logging"
)

// Imports never allowed in generated tools: process and OS access,
// subprocess spawning, networking, and non-deterministic randomness.
// A path matches when it equals an entry or sits below it.
var blockedImports = []string{
	"os",
	"os/exec",
	"syscall",
	"net",
	"unsafe",
	"plugin",
	"runtime/cgo",
	"runtime/debug",
	"math/rand",
	"crypto/rand",
}

// Package qualifiers whose call sites are never allowed: reflective
// namespace access and the blocked modules above used through an alias
// that survived import screening.
var blockedCallQualifiers = map[string]bool{
	"os":      true,
	"exec":    true,
	"syscall": true,
	"net":     true,
	"http":    true,
	"reflect": true,
	"plugin":  true,
	"unsafe":  true,
}

// os.OpenFile flags that imply write access.
var writeOpenFlags = map[string]bool{
	"O_WRONLY": true,
	"O_RDWR":   true,
	"O_APPEND": true,
	"O_CREATE": true,
	"O_TRUNC":  true,
}

// os functions that are write-mode file access regardless of flags.
var writeFileFuncs = map[string]bool{
	"Create":    true,
	"WriteFile": true,
	"Mkdir":     true,
	"MkdirAll":  true,
	"Remove":    true,
	"RemoveAll": true,
	"Rename":    true,
	"Truncate":  true,
}

// VerifierConfig tunes the verifier.
type VerifierConfig struct {
	Timeout         time.Duration // sandbox invocation deadline
	DeterminismRuns int           // total invocations in phase 3
}

// DefaultVerifierConfig returns the standard gate settings.
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		Timeout:         5 * time.Second,
		DeterminismRuns: 3,
	}
}

// Verifier runs the three-phase gate.
type Verifier struct {
	cfg VerifierConfig
	log *zap.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(cfg VerifierConfig) *Verifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.DeterminismRuns < 2 {
		cfg.DeterminismRuns = 3
	}
	return &Verifier{cfg: cfg, log: logging.L(logging.CategoryVerifier)}
}

// phaseOutcome is the explicit result union each phase returns; the
// verifier composes these instead of letting failures propagate.
type phaseOutcome struct {
	passed bool
	reason string
}

func phasePass() phaseOutcome              { return phaseOutcome{passed: true} }
func phaseFail(reason string) phaseOutcome { return phaseOutcome{reason: reason} }

// Verify runs all phases against candidate source. The returned result
// carries a per-phase outcome map and, on failure, a reason naming the
// first failing phase.
func (v *Verifier) Verify(ctx context.Context, source string, spec ToolSpec) VerificationResult {
	checks := map[string]bool{}

	out := v.staticInspect(source)
	checks[PhaseStaticInspection] = out.passed
	if !out.passed {
		return v.reject(spec, checks, PhaseStaticInspection, out.reason)
	}

	vec, err := runSandboxed(ctx, source, v.cfg.Timeout)
	if err == nil {
		err = validateVector(vec)
	}
	checks[PhaseSandboxExecution] = err == nil
	if err != nil {
		return v.reject(spec, checks, PhaseSandboxExecution, err.Error())
	}

	out = v.determinismCheck(source)
	checks[PhaseDeterminism] = out.passed
	if !out.passed {
		return v.reject(spec, checks, PhaseDeterminism, out.reason)
	}

	v.log.Info("candidate passed all verification phases", zap.String("tool", spec.ToolName))
	return VerificationResult{
		ToolName: spec.ToolName,
		Passed:   true,
		Checks:   checks,
	}
}

func (v *Verifier) reject(spec ToolSpec, checks map[string]bool, phase, reason string) VerificationResult {
	full := fmt.Sprintf("%s failed: %s", phase, reason)
	v.log.Warn("candidate rejected",
		zap.String("tool", spec.ToolName),
		zap.String("phase", phase),
		zap.String("reason", reason))
	return VerificationResult{
		ToolName:        spec.ToolName,
		Passed:          false,
		Checks:          checks,
		RejectionReason: full,
	}
}

// -----------------------------------------------------------------------------
// Phase 1: static inspection
// -----------------------------------------------------------------------------

// staticInspect parses the candidate and walks every node looking for
// deny-listed imports, deny-listed call sites, and write-mode file access.
// The candidate is never executed here.
func (v *Verifier) staticInspect(source string) phaseOutcome {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "candidate.go", source, parser.ParseComments)
	if err != nil {
		return phaseFail(fmt.Sprintf("syntax error: %v", err))
	}

	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		if blocked, name := importBlocked(path); blocked {
			return phaseFail(fmt.Sprintf("blocked import: %s", name))
		}
	}

	var violation string
	ast.Inspect(file, func(n ast.Node) bool {
		if violation != "" {
			return false
		}
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		qualifier, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}

		// Write-mode file access gets the specific reason before the
		// generic blocked-call reason.
		if qualifier.Name == "os" {
			if writeFileFuncs[sel.Sel.Name] {
				violation = fmt.Sprintf("blocked: os.%s is write-mode file access", sel.Sel.Name)
				return false
			}
			if sel.Sel.Name == "OpenFile" {
				if reason := openFileViolation(call); reason != "" {
					violation = reason
					return false
				}
			}
		}
		if blockedCallQualifiers[qualifier.Name] {
			violation = fmt.Sprintf("blocked call: %s.%s", qualifier.Name, sel.Sel.Name)
			return false
		}
		return true
	})
	if violation != "" {
		return phaseFail(violation)
	}
	return phasePass()
}

// importBlocked reports whether path is on the deny-list, matching exact
// entries and their subtrees (net matches net/http).
func importBlocked(path string) (bool, string) {
	for _, blocked := range blockedImports {
		if path == blocked || strings.HasPrefix(path, blocked+"/") {
			return true, path
		}
	}
	return false, ""
}

// openFileViolation checks the flag argument of an os.OpenFile call.
// Write flags are rejected outright; a flag expression that cannot be
// proven read-only is rejected as unverifiable.
func openFileViolation(call *ast.CallExpr) string {
	if len(call.Args) < 2 {
		return "blocked: os.OpenFile without a provable read-only mode"
	}
	writes, unknown := flagWrites(call.Args[1])
	if writes {
		return "blocked: os.OpenFile in write/append mode"
	}
	if unknown {
		return "blocked: os.OpenFile flag cannot be proven read-only"
	}
	return ""
}

// flagWrites walks a flag expression. It returns (writes, unknown):
// writes when any write flag appears, unknown when the expression contains
// something other than os.O_RDONLY, literal zero, or an OR of those.
func flagWrites(expr ast.Expr) (bool, bool) {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return flagWrites(e.X)
	case *ast.BinaryExpr:
		w1, u1 := flagWrites(e.X)
		w2, u2 := flagWrites(e.Y)
		return w1 || w2, u1 || u2
	case *ast.SelectorExpr:
		if id, ok := e.X.(*ast.Ident); ok && id.Name == "os" {
			if writeOpenFlags[e.Sel.Name] {
				return true, false
			}
			if e.Sel.Name == "O_RDONLY" {
				return false, false
			}
		}
		return false, true
	case *ast.BasicLit:
		if e.Kind == token.INT && e.Value == "0" {
			return false, false
		}
		return false, true
	default:
		return false, true
	}
}

// -----------------------------------------------------------------------------
// Phase 3: determinism
// -----------------------------------------------------------------------------

// determinismCheck re-instantiates and re-invokes the candidate against
// the same canonical input and requires bit-identical output vectors.
// No floating-point tolerance: these tools are deterministic by contract.
func (v *Verifier) determinismCheck(source string) phaseOutcome {
	var reference []float64
	for run := 1; run <= v.cfg.DeterminismRuns; run++ {
		vec, err := runCandidate(source)
		if err != nil {
			return phaseFail(fmt.Sprintf("run %d crashed: %v", run, err))
		}
		if run == 1 {
			reference = vec
			continue
		}
		if !cmp.Equal(reference, vec) {
			return phaseFail(fmt.Sprintf(
				"non-deterministic: run 1 produced %v, run %d produced %v", reference, run, vec))
		}
	}
	return phasePass()
}
