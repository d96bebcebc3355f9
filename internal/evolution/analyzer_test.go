package evolution

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func makeRecords(n int, mutate func(i int, rec *ExecutionRecord)) []ExecutionRecord {
	records := make([]ExecutionRecord, n)
	for i := range records {
		records[i] = ExecutionRecord{
			RunID:      fmt.Sprintf("run-%03d", i),
			MarketID:   "MKT-1",
			FinalScore: 0.9,
			Threshold:  0.5,
			Rationale:  "",
		}
		if mutate != nil {
			mutate(i, &records[i])
		}
	}
	return records
}

func TestAnalyze_BelowFloorReturnsNil(t *testing.T) {
	records := makeRecords(4, func(i int, rec *ExecutionRecord) {
		rec.Rationale = "calculate the probability and convert implied odds"
	})
	if gap := NewAnalyzer().Analyze(records, 5, 0.5); gap != nil {
		t.Fatalf("Analyze below floor = %+v, want nil", gap)
	}
}

func TestDetectLowConfidence_AbstainsWhenScoresAreFarFromThreshold(t *testing.T) {
	records := makeRecords(10, func(i int, rec *ExecutionRecord) {
		rec.FinalScore = rec.Threshold + 0.2
	})
	if report := NewAnalyzer().detectLowConfidence(records); report != nil {
		t.Fatalf("detectLowConfidence = %+v, want nil when no close calls exist", report)
	}
}

func TestAnalyze_ImplicitCalculations(t *testing.T) {
	// Every record mentions calculation keywords, so the hit ratio is 1.0
	// and the pass reports priority 1.0.
	records := makeRecords(10, func(i int, rec *ExecutionRecord) {
		rec.Rationale = fmt.Sprintf("run %d: calculate the probability, then convert implied odds", i)
	})

	gap := NewAnalyzer().Analyze(records, 5, 0.5)
	if gap == nil {
		t.Fatal("Analyze returned nil, want an implicit-calculation gap")
	}
	if gap.Priority != 1.0 {
		t.Fatalf("Priority = %v, want 1.0", gap.Priority)
	}
	if gap.Evidence["runs_with_calculations"] != 10 {
		t.Fatalf("runs_with_calculations = %v, want 10", gap.Evidence["runs_with_calculations"])
	}
}

func TestAnalyze_LowConfidence(t *testing.T) {
	// 4 of 10 runs land within the close-call margin of the threshold.
	records := makeRecords(10, func(i int, rec *ExecutionRecord) {
		if i < 4 {
			rec.FinalScore = rec.Threshold + 0.03
		}
	})

	gap := NewAnalyzer().Analyze(records, 5, 0.4)
	if gap == nil {
		t.Fatal("Analyze returned nil, want a low-confidence gap")
	}
	want := math.Min(1, 0.4*1.2)
	if math.Abs(gap.Priority-want) > 1e-9 {
		t.Fatalf("Priority = %v, want %v", gap.Priority, want)
	}
	if gap.Evidence["close_call_count"] != 4 {
		t.Fatalf("close_call_count = %v, want 4", gap.Evidence["close_call_count"])
	}
}

func TestAnalyze_HighTokenUsage(t *testing.T) {
	// 20 baseline runs at 100 tokens plus 3 outliers. The p90 cut lands on
	// the smallest outlier, so the two larger ones count as high usage.
	outliers := []int{4000, 5000, 6000}
	records := makeRecords(23, func(i int, rec *ExecutionRecord) {
		rec.TotalTokensUsed = 100
		if i >= 20 {
			rec.TotalTokensUsed = outliers[i-20]
		}
	})

	report := NewAnalyzer().detectHighTokenUsage(records)
	if report == nil {
		t.Fatal("detectHighTokenUsage returned nil, want a report")
	}
	if report.Evidence["high_usage_count"] != 2 {
		t.Fatalf("high_usage_count = %v, want 2", report.Evidence["high_usage_count"])
	}
	if report.Priority < 0.4 || report.Priority > 1.0 {
		t.Fatalf("Priority = %v, want within [0.4, 1.0]", report.Priority)
	}
	if report.EstimatedTokenWaste <= 0 {
		t.Fatalf("EstimatedTokenWaste = %v, want positive", report.EstimatedTokenWaste)
	}
}

func TestAnalyze_RepeatedReasoning(t *testing.T) {
	records := makeRecords(10, func(i int, rec *ExecutionRecord) {
		rec.Rationale = "volume spike detected near resolution deadline"
	})

	report := NewAnalyzer().detectRepeatedReasoning(records)
	if report == nil {
		t.Fatal("detectRepeatedReasoning returned nil, want a report")
	}
	top, ok := report.Evidence["top_repeated_trigrams"].(map[string]int)
	if !ok {
		t.Fatalf("top_repeated_trigrams has type %T", report.Evidence["top_repeated_trigrams"])
	}
	if len(top) == 0 || len(top) > 5 {
		t.Fatalf("top trigram count = %d, want 1..5", len(top))
	}
	for gram, count := range top {
		if count != 10 {
			t.Fatalf("trigram %q count = %d, want 10", gram, count)
		}
	}
}

func TestAnalyze_NoGapBelowThreshold(t *testing.T) {
	// 3 of 10 close calls clears the pass floor (ratio 0.3) but yields
	// priority 0.36, under a 0.5 gate.
	records := makeRecords(10, func(i int, rec *ExecutionRecord) {
		if i < 3 {
			rec.FinalScore = rec.Threshold + 0.01
		}
	})
	if gap := NewAnalyzer().Analyze(records, 5, 0.5); gap != nil {
		t.Fatalf("Analyze = %+v, want nil below threshold", gap)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	records := makeRecords(12, func(i int, rec *ExecutionRecord) {
		rec.Rationale = "compute the weighted average and normalize the ratio"
		rec.TotalTokensUsed = 100 + i*10
		if i%3 == 0 {
			rec.FinalScore = rec.Threshold + 0.02
		}
	})

	a := NewAnalyzer()
	first := a.Analyze(records, 5, 0.3)
	second := a.Analyze(records, 5, 0.3)
	if first == nil || second == nil {
		t.Fatal("Analyze returned nil for a corpus with gaps")
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated analysis differs (-first +second):\n%s", diff)
	}
}

func TestAnalyze_EmptyRationalesSkipped(t *testing.T) {
	records := makeRecords(10, nil)
	if report := NewAnalyzer().detectImplicitCalculations(records); report != nil {
		t.Fatalf("detectImplicitCalculations on empty rationales = %+v, want nil", report)
	}
	if report := NewAnalyzer().detectRepeatedReasoning(records); report != nil {
		t.Fatalf("detectRepeatedReasoning on empty rationales = %+v, want nil", report)
	}
}
