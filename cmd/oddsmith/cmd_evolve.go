package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"oddsmith/internal/evolution"
)

var (
	evolveModel  string
	evolveAPIKey string
)

// evolveCmd runs one full evolution cycle: analyze, specify, build,
// verify, then stage or register.
var evolveCmd = &cobra.Command{
	Use:   "evolve",
	Short: "Run one evolution cycle against the execution log",
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey := evolveAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		client, err := evolution.NewGeminiClient(cmd.Context(), apiKey, evolveModel)
		if err != nil {
			return err
		}

		registry, err := buildRegistry(cfg)
		if err != nil {
			return err
		}
		loop, err := evolution.NewLoop(*cfg, client, registry)
		if err != nil {
			return err
		}

		result, err := loop.RunCycle(cmd.Context())
		if err != nil {
			return err
		}
		printCycleResult(result)
		return nil
	},
}

func printCycleResult(result evolution.CycleResult) {
	switch result.Outcome {
	case evolution.OutcomeNoGap:
		fmt.Println("No actionable gap detected; nothing to synthesize.")
	case evolution.OutcomeDuplicate:
		fmt.Printf("Proposed tool %s already exists; skipped.\n", result.ToolName)
	case evolution.OutcomeSpecFailed:
		fmt.Printf("Spec generation failed: %s\n", result.Reason)
	case evolution.OutcomeBuildFail:
		fmt.Printf("Source generation for %s failed: %s\n", result.ToolName, result.Reason)
	case evolution.OutcomeRejected:
		fmt.Printf("Candidate %s rejected: %s\n", result.ToolName, result.Reason)
	case evolution.OutcomeStaged:
		fmt.Printf("Candidate %s verified and staged for manual review.\n", result.ToolName)
	case evolution.OutcomeAccepted:
		fmt.Printf("Tool %s verified and registered.\n", result.ToolName)
	}
	if result.Gap != nil {
		fmt.Printf("Gap: %s\n", result.Gap.String())
	}
}

func init() {
	evolveCmd.Flags().StringVar(&evolveModel, "model", "", "Gemini model for synthesis")
	evolveCmd.Flags().StringVar(&evolveAPIKey, "api-key", "", "Gemini API key (defaults to GEMINI_API_KEY)")
	rootCmd.AddCommand(evolveCmd)
}
