package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"oddsmith/internal/evolution"
)

var verifyName string

// verifyCmd runs the three-phase gate against a candidate source file on
// disk, for re-checking staged candidates before manual approval.
var verifyCmd = &cobra.Command{
	Use:   "verify <source.go>",
	Short: "Run the safety gate against a candidate tool source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		name := verifyName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(args[0]), ".go")
		}
		spec := evolution.ToolSpec{
			ToolName:      name,
			Description:   "candidate under manual verification",
			Deterministic: true,
			RiskLevel:     evolution.RiskLow,
		}

		verifier := evolution.NewVerifier(evolution.VerifierConfig{
			Timeout:         cfg.Verify.Timeout(),
			DeterminismRuns: cfg.Verify.DeterminismRuns,
		})
		result := verifier.Verify(cmd.Context(), string(source), spec)

		for _, phase := range []string{
			evolution.PhaseStaticInspection,
			evolution.PhaseSandboxExecution,
			evolution.PhaseDeterminism,
		} {
			passed, ran := result.Checks[phase]
			switch {
			case !ran:
				fmt.Printf("  %-20s skipped\n", phase)
			case passed:
				fmt.Printf("  %-20s pass\n", phase)
			default:
				fmt.Printf("  %-20s FAIL\n", phase)
			}
		}
		if !result.Passed {
			return fmt.Errorf("candidate rejected: %s", result.RejectionReason)
		}
		fmt.Println("Candidate passed all verification phases.")
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyName, "name", "", "tool name to report (defaults to file basename)")
	rootCmd.AddCommand(verifyCmd)
}
