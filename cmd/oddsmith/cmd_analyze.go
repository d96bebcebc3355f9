package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"oddsmith/internal/evolution"
)

var analyzeJSON bool

// analyzeCmd runs the gap analyzer over the execution log and prints the
// highest-priority gap, without synthesizing anything.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Detect capability gaps in the execution log",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := evolution.NewLog(cfg.Paths.ExecutionLog).Load()
		if err != nil {
			return err
		}

		gap := evolution.NewAnalyzer().Analyze(records, cfg.Evolve.MinRuns, cfg.Evolve.GapThreshold)
		if gap == nil {
			fmt.Printf("No actionable gap (%d runs, floor %d, threshold %.2f).\n",
				len(records), cfg.Evolve.MinRuns, cfg.Evolve.GapThreshold)
			return nil
		}

		if analyzeJSON {
			data, err := json.MarshalIndent(gap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		fmt.Println(gap.String())
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full gap report as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
