package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"oddsmith/internal/evolution"
)

// lifecycleCmd prints the lifecycle ledger: usage, performance, and status
// for every tracked tool.
var lifecycleCmd = &cobra.Command{
	Use:   "lifecycle",
	Short: "Show the tool lifecycle ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		lifecycle, err := evolution.NewLifecycle(cfg.Paths.LifecycleLedger, cfg.Evolve.DeprecationRuns)
		if err != nil {
			return err
		}

		records := lifecycle.Records()
		if len(records) == 0 {
			fmt.Println("Lifecycle ledger is empty.")
			return nil
		}

		fmt.Printf("  %-32s %-10s %6s %8s %8s %8s %5s\n",
			"TOOL", "STATUS", "USES", "AVG", "CORRECT", "LAT(ms)", "UNDER")
		for _, rec := range records {
			fmt.Printf("  %-32s %-10s %6d %8.4f %7.1f%% %8.1f %5d\n",
				rec.ToolName,
				rec.Status,
				rec.UsageCount,
				rec.AvgScoreContribution(),
				rec.CorrectRate()*100,
				rec.AvgLatencyMs(),
				rec.ConsecutiveUnderperformance)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lifecycleCmd)
}
