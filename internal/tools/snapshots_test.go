package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"oddsmith/internal/types"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

// writeSnapshots renders rows as JSONL for LoadRows fixtures.
func writeSnapshots(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func snapshotLine(marketID string, age time.Duration, lastPrice, yesBid, yesAsk float64) string {
	ts := fixedNow.Add(-age).Format(time.RFC3339)
	return fmt.Sprintf(`{"market_id":%q,"timestamp":%q,"last_price":%g,"yes_bid":%g,"yes_ask":%g}`,
		marketID, ts, lastPrice, yesBid, yesAsk)
}

func TestLoadRows_FiltersAndSorts(t *testing.T) {
	path := writeSnapshots(t, []string{
		snapshotLine("MKT-A", 10*time.Minute, 0.52, 0.51, 0.53),
		snapshotLine("MKT-B", 5*time.Minute, 0.70, 0.69, 0.71), // other market
		snapshotLine("MKT-A", 3*time.Hour, 0.40, 0.39, 0.41),   // outside window
		"not json",
		snapshotLine("MKT-A", 30*time.Minute, 0.48, 0.47, 0.49),
	})

	rows := LoadRows(path, "MKT-A", 2*time.Hour, fixedNow)
	if len(rows) != 2 {
		t.Fatalf("LoadRows = %d rows, want 2", len(rows))
	}
	if !rows[0].Timestamp.Before(rows[1].Timestamp) {
		t.Fatal("rows not sorted ascending by timestamp")
	}
	if *rows[0].LastPrice != 0.48 || *rows[1].LastPrice != 0.52 {
		t.Fatalf("unexpected rows: %v then %v", *rows[0].LastPrice, *rows[1].LastPrice)
	}
}

func TestLoadRows_MissingFileIsEmpty(t *testing.T) {
	if rows := LoadRows(filepath.Join(t.TempDir(), "absent.jsonl"), "MKT-A", time.Hour, fixedNow); rows != nil {
		t.Fatalf("LoadRows on missing file = %v, want nil", rows)
	}
}

func TestRowPrice_Priority(t *testing.T) {
	if p, ok := RowPrice(SnapshotRow{LastPrice: f(0.6), YesBid: f(0.1), YesAsk: f(0.2)}); !ok || p != 0.6 {
		t.Fatalf("RowPrice(last_price) = %v,%v, want 0.6", p, ok)
	}
	if p, ok := RowPrice(SnapshotRow{YesBid: f(0.4), YesAsk: f(0.6)}); !ok || p != 0.5 {
		t.Fatalf("RowPrice(midpoint) = %v,%v, want 0.5", p, ok)
	}
	if _, ok := RowPrice(SnapshotRow{}); ok {
		t.Fatal("RowPrice on empty row reported a price")
	}
	// Zero last_price falls through to the midpoint.
	if p, ok := RowPrice(SnapshotRow{LastPrice: f(0), YesBid: f(0.2), YesAsk: f(0.4)}); !ok || p != 0.3 {
		t.Fatalf("RowPrice(zero last_price) = %v,%v, want 0.3", p, ok)
	}
}

func TestStdev(t *testing.T) {
	if got := stdev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); got < 2.13 || got > 2.15 {
		t.Fatalf("stdev = %v, want ~2.138 (sample)", got)
	}
	if got := stdev([]float64{5}); got != 0 {
		t.Fatalf("stdev of one sample = %v, want 0", got)
	}
}

func TestSnapshotVolatilityTool_InsufficientSamples(t *testing.T) {
	path := writeSnapshots(t, []string{
		snapshotLine("MKT-A", 10*time.Minute, 0.52, 0.51, 0.53),
	})
	tool := NewSnapshotVolatilityTool(path)
	tool.Now = func() time.Time { return fixedNow }

	out, err := tool.Run(types.MarketEvent{MarketID: "MKT-A", CurrentPrice: 0.52})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.OutputVector) != 5 {
		t.Fatalf("vector length = %d, want 5", len(out.OutputVector))
	}
	for i, v := range out.OutputVector {
		if v != 0 {
			t.Fatalf("vector[%d] = %v, want 0 under the sample floor", i, v)
		}
	}
	if out.Metadata["confidence"] != 0.0 {
		t.Fatalf("confidence = %v, want 0", out.Metadata["confidence"])
	}
}

func TestSnapshotVolatilityTool_ComputesVector(t *testing.T) {
	path := writeSnapshots(t, []string{
		snapshotLine("MKT-A", 40*time.Minute, 0.40, 0.39, 0.41),
		snapshotLine("MKT-A", 30*time.Minute, 0.50, 0.49, 0.51),
		snapshotLine("MKT-A", 20*time.Minute, 0.60, 0.59, 0.61),
		snapshotLine("MKT-A", 10*time.Minute, 0.62, 0.61, 0.63),
	})
	tool := NewSnapshotVolatilityTool(path)
	tool.Now = func() time.Time { return fixedNow }

	out, err := tool.Run(types.MarketEvent{MarketID: "MKT-A", CurrentPrice: 0.62})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ToolName != "snapshot_volatility_tool" {
		t.Fatalf("ToolName = %q", out.ToolName)
	}
	vec := out.OutputVector
	if len(vec) != 5 {
		t.Fatalf("vector length = %d, want 5", len(vec))
	}
	if vec[0] <= 0 {
		t.Fatalf("volatility = %v, want positive", vec[0])
	}
	if got := vec[1]; got < 0.2199 || got > 0.2201 {
		t.Fatalf("price_range = %v, want 0.22", got)
	}
	// Moves: +0.10, +0.10, +0.02 so two of three clear the jump cutoff.
	if got := vec[3]; got < 0.666 || got > 0.667 {
		t.Fatalf("jump_rate = %v, want 2/3", got)
	}
	if out.Metadata["sample_count"] != 4 {
		t.Fatalf("sample_count = %v, want 4", out.Metadata["sample_count"])
	}
}

func TestSpreadCompressionTool_DetectsCompression(t *testing.T) {
	path := writeSnapshots(t, []string{
		snapshotLine("MKT-A", 40*time.Minute, 0.50, 0.45, 0.55), // spread 0.10
		snapshotLine("MKT-A", 30*time.Minute, 0.50, 0.46, 0.54), // spread 0.08
		snapshotLine("MKT-A", 20*time.Minute, 0.50, 0.48, 0.52), // spread 0.04
		snapshotLine("MKT-A", 10*time.Minute, 0.50, 0.49, 0.51), // spread 0.02
	})
	tool := NewSpreadCompressionTool(path)
	tool.Now = func() time.Time { return fixedNow }

	out, err := tool.Run(types.MarketEvent{MarketID: "MKT-A", CurrentPrice: 0.5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	vec := out.OutputVector
	if len(vec) != 4 {
		t.Fatalf("vector length = %d, want 4", len(vec))
	}
	if vec[2] >= 0 {
		t.Fatalf("spread_trend = %v, want negative for a compressing market", vec[2])
	}
	if vec[3] <= 0 || vec[3] >= 1 {
		t.Fatalf("compression_ratio = %v, want in (0,1)", vec[3])
	}
}

func TestSpreadCompressionTool_InsufficientSamples(t *testing.T) {
	tool := NewSpreadCompressionTool(filepath.Join(t.TempDir(), "absent.jsonl"))
	tool.Now = func() time.Time { return fixedNow }

	out, err := tool.Run(types.MarketEvent{MarketID: "MKT-A"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.OutputVector) != 4 {
		t.Fatalf("vector length = %d, want 4", len(out.OutputVector))
	}
	for i, v := range out.OutputVector {
		if v != 0 {
			t.Fatalf("vector[%d] = %v, want 0", i, v)
		}
	}
}
