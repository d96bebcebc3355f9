// Package tools defines the deterministic tool contract, the registry the
// agent selects from, and the adapter that turns verified generated source
// into a live tool.
package tools

import "oddsmith/internal/types"

// Tool is the interface every analysis tool implements. Tools must be
// deterministic: identical input always yields an identical output vector.
type Tool interface {
	// Name returns the unique tool identifier (registry key).
	Name() string

	// Description is the one-line summary shown to the agent.
	Description() string

	// Run executes the tool against a single market event.
	Run(event types.MarketEvent) (types.ToolOutput, error)
}
