// Package types holds the shared data contracts that flow between the
// market pipeline, the tool registry, and the evolution subsystem.
// Every tool consumes a MarketEvent and produces a ToolOutput.
package types

import "time"

// MarketEvent is a single market observation pulled from the upstream
// prediction-market API. Prices are YES prices in [0,1].
type MarketEvent struct {
	EventID      string    `json:"event_id"`
	MarketID     string    `json:"market_id"`
	MarketTitle  string    `json:"market_title"`
	CurrentPrice float64   `json:"current_price"`
	Timestamp    time.Time `json:"timestamp"`
}

// Clamp forces CurrentPrice into [0,1]. Upstream data occasionally
// reports 1.02 or -0.01 around settlement.
func (e *MarketEvent) Clamp() {
	if e.CurrentPrice < 0 {
		e.CurrentPrice = 0
	}
	if e.CurrentPrice > 1 {
		e.CurrentPrice = 1
	}
}

// ToolOutput is the result vector from a single deterministic tool run.
type ToolOutput struct {
	ToolName     string                 `json:"tool_name"`
	OutputVector []float64              `json:"output_vector"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}
