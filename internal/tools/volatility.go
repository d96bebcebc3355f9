package tools

import (
	"math"
	"time"

	"oddsmith/internal/types"
)

// Minimum price points before the snapshot tools emit non-zero vectors.
const minSnapshotSamples = 3

// SnapshotVolatilityTool computes market behavior metrics for a single
// market from stored snapshot data. Pure math, read-only, no randomness.
//
// Output vector: [volatility, price_range, mean_spread, jump_rate, liquidity_proxy]
type SnapshotVolatilityTool struct {
	SnapshotPath string
	Window       time.Duration
	Now          func() time.Time // injectable for tests; defaults to time.Now
}

// NewSnapshotVolatilityTool builds the tool with a 2h lookback window.
func NewSnapshotVolatilityTool(snapshotPath string) *SnapshotVolatilityTool {
	return &SnapshotVolatilityTool{
		SnapshotPath: snapshotPath,
		Window:       2 * time.Hour,
	}
}

func (t *SnapshotVolatilityTool) Name() string { return "snapshot_volatility_tool" }

func (t *SnapshotVolatilityTool) Description() string {
	return "Computes volatility, price range, mean spread, jump rate, and liquidity proxy from local market snapshots."
}

func (t *SnapshotVolatilityTool) Run(event types.MarketEvent) (types.ToolOutput, error) {
	now := time.Now().UTC()
	if t.Now != nil {
		now = t.Now()
	}
	rows := LoadRows(t.SnapshotPath, event.MarketID, t.Window, now)
	prices := ExtractPrices(rows)

	if len(prices) < minSnapshotSamples {
		return types.ToolOutput{
			ToolName:     t.Name(),
			OutputVector: []float64{0, 0, 0, 0, 0},
			Metadata:     map[string]interface{}{"confidence": 0.0, "sample_count": len(prices)},
		}, nil
	}

	confidence := math.Min(1, float64(len(prices))/50)
	return types.ToolOutput{
		ToolName: t.Name(),
		OutputVector: []float64{
			stdev(prices),
			priceRange(prices),
			mean(ExtractSpreads(rows)),
			jumpRate(prices),
			mean(ExtractLiquidity(rows)),
		},
		Metadata: map[string]interface{}{
			"confidence":   confidence,
			"sample_count": len(prices),
		},
	}, nil
}

func priceRange(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	lo, hi := prices[0], prices[0]
	for _, p := range prices[1:] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return hi - lo
}

// jumpRate is the fraction of consecutive price moves larger than 0.05.
func jumpRate(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	jumps := 0
	for i := 1; i < len(prices); i++ {
		if math.Abs(prices[i]-prices[i-1]) > 0.05 {
			jumps++
		}
	}
	return float64(jumps) / float64(len(prices)-1)
}
