package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"oddsmith/internal/evolution"
)

// logCmd appends one execution record to the log, reading JSON from a
// file argument or stdin. Used by the prediction agent's run harness.
var logCmd = &cobra.Command{
	Use:   "log [record.json]",
	Short: "Append an execution record to the log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if len(args) == 1 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return err
		}

		var rec evolution.ExecutionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("parsing execution record: %w", err)
		}

		written, err := evolution.NewLog(cfg.Paths.ExecutionLog).Append(rec)
		if err != nil {
			return err
		}
		fmt.Printf("Logged run %s (market %s, score %.4f).\n",
			written.RunID, written.MarketID, written.FinalScore)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
}
