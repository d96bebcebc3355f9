package evolution

// Gap analyzer: pure statistics over the execution log. No LLM calls.
// Four independent passes detect borderline predictions, token-cost
// outliers, repeated reasoning patterns, and implicit calculations that
// a dedicated tool could handle. Identical corpus and parameters always
// produce an identical report.

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"oddsmith/internal/logging"
)

// Keywords in rationale text that suggest the agent is doing arithmetic a
// deterministic tool should own.
var implicitCalcKeywords = []string{
	"probability",
	"convert",
	"implied odds",
	"calculate",
	"compute",
	"multiply",
	"divide",
	"percentage",
	"ratio",
	"normalize",
	"weighted average",
	"expected value",
}

// Pass tunables. These mirror the analysis floor semantics in config.
const (
	lowConfidenceMargin   = 0.05 // |score - threshold| within this is a close call
	lowConfidenceMinRatio = 0.3
	highCostMinSamples    = 3
	highCostMinOutliers   = 2
	trigramN              = 3
	trigramMinRepeated    = 2
	implicitMinRatio      = 0.4
)

var wordPattern = regexp.MustCompile(`\w+`)

// Analyzer runs the detection passes. Stateless and safe for concurrent
// use; it never mutates the corpus.
type Analyzer struct {
	log *zap.Logger
}

// NewAnalyzer creates a gap analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{log: logging.L(logging.CategoryEvolution)}
}

// Analyze runs every pass over the corpus and returns the highest-priority
// gap, or nil when the corpus is below the analysis floor or no gap clears
// gapThreshold.
func (a *Analyzer) Analyze(records []ExecutionRecord, minRuns int, gapThreshold float64) *GapReport {
	if len(records) < minRuns {
		a.log.Info("gap analyzer skipped: corpus below analysis floor",
			zap.Int("runs", len(records)), zap.Int("need", minRuns))
		return nil
	}

	passes := []struct {
		name string
		fn   func([]ExecutionRecord) *GapReport
	}{
		{"low_confidence", a.detectLowConfidence},
		{"high_token_usage", a.detectHighTokenUsage},
		{"repeated_reasoning", a.detectRepeatedReasoning},
		{"implicit_calculations", a.detectImplicitCalculations},
	}

	var best *GapReport
	for _, pass := range passes {
		report := a.runPass(pass.name, pass.fn, records)
		if report == nil {
			continue
		}
		if best == nil || report.Priority > best.Priority {
			best = report
		}
	}

	if best == nil {
		a.log.Info("gap analyzer: no gaps detected")
		return nil
	}
	if best.Priority < gapThreshold {
		a.log.Info("gap analyzer: best gap below threshold",
			zap.Float64("priority", best.Priority), zap.Float64("threshold", gapThreshold))
		return nil
	}

	a.log.Info("gap analyzer: detected gap",
		zap.String("problem", best.Problem), zap.Float64("priority", best.Priority))
	return best
}

// runPass isolates a single detection pass: a panic inside one pass must
// not prevent the other passes from running.
func (a *Analyzer) runPass(name string, fn func([]ExecutionRecord) *GapReport, records []ExecutionRecord) (report *GapReport) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("detection pass panicked", zap.String("pass", name), zap.Any("panic", r))
			report = nil
		}
	}()
	return fn(records)
}

// -----------------------------------------------------------------------------
// Pass 1: low-confidence runs (final score within the margin of threshold)
// -----------------------------------------------------------------------------

func (a *Analyzer) detectLowConfidence(records []ExecutionRecord) *GapReport {
	closeCalls := 0
	for _, rec := range records {
		if math.Abs(rec.FinalScore-rec.Threshold) <= lowConfidenceMargin {
			closeCalls++
		}
	}

	ratio := float64(closeCalls) / float64(len(records))
	if ratio < lowConfidenceMinRatio {
		return nil
	}

	return &GapReport{
		Problem: "High frequency of borderline predictions (score near threshold)",
		Evidence: map[string]interface{}{
			"close_call_count": closeCalls,
			"total_runs":       len(records),
			"ratio":            round4(ratio),
		},
		Priority: math.Min(1, ratio*1.2),
	}
}

// -----------------------------------------------------------------------------
// Pass 2: token-cost outliers above the 90th percentile
// -----------------------------------------------------------------------------

func (a *Analyzer) detectHighTokenUsage(records []ExecutionRecord) *GapReport {
	var tokenCounts []int
	for _, rec := range records {
		if rec.TotalTokensUsed > 0 {
			tokenCounts = append(tokenCounts, rec.TotalTokensUsed)
		}
	}
	if len(tokenCounts) < highCostMinSamples {
		return nil
	}

	sorted := append([]int(nil), tokenCounts...)
	sort.Ints(sorted)
	p90Idx := int(float64(len(sorted)) * 0.9)
	if p90Idx > len(sorted)-1 {
		p90Idx = len(sorted) - 1
	}
	p90 := sorted[p90Idx]

	var sum int
	for _, t := range tokenCounts {
		sum += t
	}
	meanTokens := float64(sum) / float64(len(tokenCounts))

	highCount := 0
	waste := 0.0
	for _, t := range tokenCounts {
		if t > p90 {
			highCount++
			waste += float64(t) - meanTokens
		}
	}
	if highCount < highCostMinOutliers {
		return nil
	}

	denom := math.Max(meanTokens*float64(len(tokenCounts)), 1)
	return &GapReport{
		Problem: "Repeated high token usage runs detected",
		Evidence: map[string]interface{}{
			"p90_tokens":       p90,
			"mean_tokens":      round1(meanTokens),
			"high_usage_count": highCount,
		},
		EstimatedTokenWaste: round1(waste),
		Priority:            math.Min(1, 0.4+(waste/denom)*0.6),
	}
}

// -----------------------------------------------------------------------------
// Pass 3: repeated reasoning trigrams across runs
// -----------------------------------------------------------------------------

func (a *Analyzer) detectRepeatedReasoning(records []ExecutionRecord) *GapReport {
	grams := map[string]int{}
	for _, rec := range records {
		if rec.Rationale == "" {
			continue
		}
		words := wordPattern.FindAllString(strings.ToLower(rec.Rationale), -1)
		for i := 0; i+trigramN <= len(words); i++ {
			grams[strings.Join(words[i:i+trigramN], " ")]++
		}
	}

	thresholdCount := float64(len(records)) * 0.5
	repeated := map[string]int{}
	for gram, count := range grams {
		if float64(count) >= thresholdCount {
			repeated[gram] = count
		}
	}
	if len(repeated) < trigramMinRepeated {
		return nil
	}

	// Top 5 by count, ties broken alphabetically so output is stable.
	keys := make([]string, 0, len(repeated))
	for gram := range repeated {
		keys = append(keys, gram)
	}
	sort.Slice(keys, func(i, j int) bool {
		if repeated[keys[i]] != repeated[keys[j]] {
			return repeated[keys[i]] > repeated[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > 5 {
		keys = keys[:5]
	}
	top := map[string]int{}
	totalRepeats := 0
	for _, count := range repeated {
		totalRepeats += count
	}
	for _, gram := range keys {
		top[gram] = repeated[gram]
	}

	return &GapReport{
		Problem: "Repeated reasoning patterns across runs suggest missing tooling",
		Evidence: map[string]interface{}{
			"top_repeated_trigrams": top,
			"unique_repeated_count": len(repeated),
		},
		// Rough estimate: each repeated trigram stands in for ~3 tokens.
		EstimatedTokenWaste: float64(totalRepeats * 3),
		Priority:            math.Min(1, float64(len(repeated))/10),
	}
}

// -----------------------------------------------------------------------------
// Pass 4: implicit calculations in rationale text
// -----------------------------------------------------------------------------

func (a *Analyzer) detectImplicitCalculations(records []ExecutionRecord) *GapReport {
	keywordHits := map[string]int{}
	runsWithHits := 0

	for _, rec := range records {
		rationale := strings.ToLower(rec.Rationale)
		if rationale == "" {
			continue
		}
		found := false
		for _, kw := range implicitCalcKeywords {
			if n := strings.Count(rationale, kw); n > 0 {
				keywordHits[kw] += n
				found = true
			}
		}
		if found {
			runsWithHits++
		}
	}

	ratio := float64(runsWithHits) / float64(len(records))
	if ratio < implicitMinRatio {
		return nil
	}

	totalHits := 0
	for _, n := range keywordHits {
		totalHits += n
	}

	return &GapReport{
		Problem: "Agent frequently performs implicit calculations that a tool could handle",
		Evidence: map[string]interface{}{
			"keyword_hits":           topKeywordHits(keywordHits, 5),
			"runs_with_calculations": runsWithHits,
			"total_runs":             len(records),
		},
		EstimatedTokenWaste: float64(totalHits * 5),
		Priority:            math.Min(1, ratio),
	}
}

// topKeywordHits returns the n highest-count keywords, ties broken
// alphabetically for stable output.
func topKeywordHits(hits map[string]int, n int) map[string]int {
	keys := make([]string, 0, len(hits))
	for kw := range hits {
		keys = append(keys, kw)
	}
	sort.Slice(keys, func(i, j int) bool {
		if hits[keys[i]] != hits[keys[j]] {
			return hits[keys[i]] > hits[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	top := map[string]int{}
	for _, kw := range keys {
		top[kw] = hits[kw]
	}
	return top
}

func round4(x float64) float64 { return math.Round(x*10000) / 10000 }
func round1(x float64) float64 { return math.Round(x*10) / 10 }

// String renders a gap report for CLI display.
func (g *GapReport) String() string {
	return fmt.Sprintf("%s (priority %.3f, est. waste %.1f tokens)",
		g.Problem, g.Priority, g.EstimatedTokenWaste)
}
