package tools

import (
	"time"

	"oddsmith/internal/types"
)

// SpreadCompressionTool analyses bid-ask spread compression for a single
// market from stored snapshot data.
//
// Output vector: [mean_spread, spread_std, spread_trend, compression_ratio]
type SpreadCompressionTool struct {
	SnapshotPath string
	Window       time.Duration
	Now          func() time.Time
}

// NewSpreadCompressionTool builds the tool with a 2h lookback window.
func NewSpreadCompressionTool(snapshotPath string) *SpreadCompressionTool {
	return &SpreadCompressionTool{
		SnapshotPath: snapshotPath,
		Window:       2 * time.Hour,
	}
}

func (t *SpreadCompressionTool) Name() string { return "spread_compression_tool" }

func (t *SpreadCompressionTool) Description() string {
	return "Computes mean spread, spread std-dev, spread trend, and compression ratio from local market snapshots."
}

func (t *SpreadCompressionTool) Run(event types.MarketEvent) (types.ToolOutput, error) {
	now := time.Now().UTC()
	if t.Now != nil {
		now = t.Now()
	}
	rows := LoadRows(t.SnapshotPath, event.MarketID, t.Window, now)
	spreads := ExtractSpreads(rows)

	if len(spreads) < minSnapshotSamples {
		return types.ToolOutput{
			ToolName:     t.Name(),
			OutputVector: []float64{0, 0, 0, 0},
			Metadata:     map[string]interface{}{"confidence": 0.0, "sample_count": len(spreads)},
		}, nil
	}

	half := len(spreads) / 2
	firstHalf := mean(spreads[:half])
	secondHalf := mean(spreads[half:])

	// Negative trend means the spread is compressing.
	trend := secondHalf - firstHalf
	compression := 0.0
	if firstHalf != 0 {
		compression = secondHalf / firstHalf
	}

	return types.ToolOutput{
		ToolName:     t.Name(),
		OutputVector: []float64{mean(spreads), stdev(spreads), trend, compression},
		Metadata: map[string]interface{}{
			"sample_count": len(spreads),
		},
	}, nil
}
