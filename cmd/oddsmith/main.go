package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"oddsmith/internal/config"
	"oddsmith/internal/logging"
)

var (
	// Global flags
	cfgPath string
	debug   bool

	// Loaded configuration, available to every subcommand after PreRun.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "oddsmith",
	Short: "oddsmith - self-evolving tool pipeline for prediction markets",
	Long: `oddsmith mines a prediction agent's execution history for capability
gaps, synthesizes candidate analysis tools to close them, and gates every
candidate behind a three-phase safety verifier before it can run.

Accepted tools are tracked in a lifecycle ledger and deprecated after
sustained underperformance.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if debug {
			cfg.Debug = true
		}
		return logging.Init(cfg.Debug)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
