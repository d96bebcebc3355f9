package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"oddsmith/internal/evolution"
)

var (
	watchModel  string
	watchAPIKey string
)

// watchCmd runs the evolution loop continuously, triggering a cycle
// whenever new execution records land in the log.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the execution log and evolve on new runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey := watchAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		client, err := evolution.NewGeminiClient(cmd.Context(), apiKey, watchModel)
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

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		debounce := time.Duration(cfg.Watcher.DebounceMs) * time.Millisecond
		fmt.Printf("Watching %s (debounce %s). Ctrl-C to stop.\n", cfg.Paths.ExecutionLog, debounce)

		err = evolution.NewWatcher(loop, debounce).Run(ctx)
		if errors.Is(err, context.Canceled) {
			fmt.Println("Watcher stopped.")
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchModel, "model", "", "Gemini model for synthesis")
	watchCmd.Flags().StringVar(&watchAPIKey, "api-key", "", "Gemini API key (defaults to GEMINI_API_KEY)")
	rootCmd.AddCommand(watchCmd)
}
