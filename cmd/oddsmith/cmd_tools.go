package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// toolsCmd lists everything in the registry: built-ins plus approved
// generated tools.
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := buildRegistry(cfg)
		if err != nil {
			return err
		}

		generated := map[string]bool{}
		for _, name := range registry.GeneratedNames() {
			generated[name] = true
		}

		for _, info := range registry.List() {
			kind := "built-in"
			if generated[info.Name] {
				kind = "generated"
			}
			fmt.Printf("  %-32s %-10s %s\n", info.Name, kind, info.Description)
		}
		fmt.Printf("%d tools registered.\n", registry.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
