package tools

// Shared snapshot plumbing for the built-in dataset tools: JSONL loading
// with market and time-window filtering, plus the standard price, spread,
// and liquidity extraction rules.

import (
	"bufio"
	"encoding/json"
	"math"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"oddsmith/internal/logging"
)

// SnapshotRow is one market snapshot line. Optional numeric fields are
// pointers so absent and zero are distinguishable.
type SnapshotRow struct {
	MarketID     string    `json:"market_id"`
	Timestamp    time.Time `json:"timestamp"`
	LastPrice    *float64  `json:"last_price,omitempty"`
	YesBid       *float64  `json:"yes_bid,omitempty"`
	YesAsk       *float64  `json:"yes_ask,omitempty"`
	OpenInterest *float64  `json:"open_interest,omitempty"`
	Volume       *float64  `json:"volume,omitempty"`
}

// LoadRows reads snapshot JSONL and returns rows for marketID no older than
// window relative to now, sorted ascending by timestamp. Malformed lines
// are skipped, never fatal.
func LoadRows(path, marketID string, window time.Duration, now time.Time) []SnapshotRow {
	f, err := os.Open(path)
	if err != nil {
		logging.L(logging.CategoryRegistry).Warn("snapshot file not readable",
			zap.String("path", path), zap.Error(err))
		return nil
	}
	defer f.Close()

	var matched []SnapshotRow
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row SnapshotRow
		if err := json.Unmarshal(line, &row); err != nil {
			continue
		}
		if row.MarketID != marketID || row.Timestamp.IsZero() {
			continue
		}
		if now.Sub(row.Timestamp) > window {
			continue
		}
		matched = append(matched, row)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	return matched
}

// RowPrice returns the usable price for a row.
// Priority: last_price > midpoint(yes_bid, yes_ask) > none.
func RowPrice(row SnapshotRow) (float64, bool) {
	if row.LastPrice != nil && *row.LastPrice > 0 {
		return *row.LastPrice, true
	}
	if row.YesBid != nil && row.YesAsk != nil && (*row.YesBid > 0 || *row.YesAsk > 0) {
		return (*row.YesBid + *row.YesAsk) / 2, true
	}
	return 0, false
}

// ExtractPrices applies RowPrice across rows.
func ExtractPrices(rows []SnapshotRow) []float64 {
	var prices []float64
	for _, r := range rows {
		if p, ok := RowPrice(r); ok {
			prices = append(prices, p)
		}
	}
	return prices
}

// ExtractSpreads returns yes_ask-yes_bid for rows carrying both sides.
func ExtractSpreads(rows []SnapshotRow) []float64 {
	var spreads []float64
	for _, r := range rows {
		if r.YesBid != nil && r.YesAsk != nil {
			spreads = append(spreads, *r.YesAsk-*r.YesBid)
		}
	}
	return spreads
}

// ExtractLiquidity returns open_interest where present, else volume.
func ExtractLiquidity(rows []SnapshotRow) []float64 {
	var values []float64
	for _, r := range rows {
		switch {
		case r.OpenInterest != nil:
			values = append(values, *r.OpenInterest)
		case r.Volume != nil:
			values = append(values, *r.Volume)
		}
	}
	return values
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
