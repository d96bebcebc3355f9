package evolution

// Manual-approval staging. When the approval gate is active, a fully
// verified candidate is written to a pending area together with a
// human-readable review document. Nothing machine-consumed lives there:
// an operator either promotes the file and manifest entry by hand or
// deletes both.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// StageForReview writes the candidate source and a review summary under
// pendingDir. Returns the path of the staged source file.
func (v *Verifier) StageForReview(pendingDir string, spec ToolSpec, source string, result VerificationResult) (string, error) {
	if err := os.MkdirAll(pendingDir, 0o755); err != nil {
		return "", fmt.Errorf("creating pending dir: %w", err)
	}

	sourcePath := filepath.Join(pendingDir, spec.ToolName+".go")
	if err := os.WriteFile(sourcePath, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("staging candidate source: %w", err)
	}

	reviewPath := filepath.Join(pendingDir, spec.ToolName+"_REVIEW.md")
	if err := os.WriteFile(reviewPath, []byte(reviewDocument(spec, source, result, sourcePath)), 0o644); err != nil {
		return "", fmt.Errorf("writing review document: %w", err)
	}

	v.log.Info("candidate staged for manual review",
		zap.String("tool", spec.ToolName),
		zap.String("source", sourcePath),
		zap.String("review", reviewPath))
	return sourcePath, nil
}

func reviewDocument(spec ToolSpec, source string, result VerificationResult, sourcePath string) string {
	checksJSON, _ := json.MarshalIndent(result.Checks, "", "  ")

	dataSources := "none specified"
	if len(spec.DataSources) > 0 {
		dataSources = strings.Join(spec.DataSources, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Manual Review Required: %s\n\n", spec.ToolName)
	fmt.Fprintf(&b, "## Tool Specification\n")
	fmt.Fprintf(&b, "- **Description**: %s\n", spec.Description)
	fmt.Fprintf(&b, "- **Risk Level**: %s\n", spec.RiskLevel)
	fmt.Fprintf(&b, "- **Deterministic**: %t\n", spec.Deterministic)
	fmt.Fprintf(&b, "- **Expected Accuracy Gain**: %.2f%%\n", spec.ExpectedAccuracyGain*100)
	fmt.Fprintf(&b, "- **Expected Token Reduction**: %.1f\n", spec.ExpectedTokenReduction)
	fmt.Fprintf(&b, "- **Data Sources**: %s\n\n", dataSources)
	fmt.Fprintf(&b, "## Verification Results\nAll checks passed:\n```json\n%s\n```\n\n", checksJSON)
	fmt.Fprintf(&b, "- **Pending File**: `%s`\n", sourcePath)
	fmt.Fprintf(&b, "- **Verified At**: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "## To Approve\n")
	fmt.Fprintf(&b, "1. Review the generated code at `%s`.\n", sourcePath)
	fmt.Fprintf(&b, "2. Move it into the generated tools directory.\n")
	fmt.Fprintf(&b, "3. Append `{\"tool_name\": %q, \"version\": \"0.1.0\"}` to approved.json.\n\n", spec.ToolName)
	fmt.Fprintf(&b, "## To Reject\nDelete the pending source file and this document.\n\n")
	fmt.Fprintf(&b, "## Source\n```go\n%s\n```\n", source)
	return b.String()
}
