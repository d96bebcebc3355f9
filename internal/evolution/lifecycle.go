package evolution

// Tool lifecycle manager. Tracks per-tool performance aggregates in a
// JSONL ledger and deprecates tools after a configured run of consecutive
// underperformance. Deprecation is one-way: once a tool leaves the active
// pool it never returns without operator intervention.

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"oddsmith/internal/logging"
)

// Lifecycle manages tool performance records. Safe for concurrent use.
type Lifecycle struct {
	mu              sync.Mutex
	path            string
	deprecationRuns int
	records         map[string]*ToolLifecycleRecord
	log             *zap.Logger
}

// NewLifecycle opens the ledger at path, loading any existing records.
// Malformed ledger lines are skipped, not fatal.
func NewLifecycle(path string, deprecationRuns int) (*Lifecycle, error) {
	if deprecationRuns < 1 {
		deprecationRuns = 10
	}
	m := &Lifecycle{
		path:            path,
		deprecationRuns: deprecationRuns,
		records:         map[string]*ToolLifecycleRecord{},
		log:             logging.L(logging.CategoryLifecycle),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Lifecycle) load() error {
	f, err := os.Open(m.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening lifecycle ledger: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec ToolLifecycleRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			m.log.Warn("skipping malformed ledger line", zap.Error(err))
			continue
		}
		if rec.ToolName == "" {
			continue
		}
		cp := rec
		m.records[rec.ToolName] = &cp
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading lifecycle ledger: %w", err)
	}
	return nil
}

// persist rewrites the whole ledger. Called with the lock held. Write
// failures are logged, not returned: in-memory state is authoritative for
// the life of the process and a persistence miss must not fail the caller.
func (m *Lifecycle) persist() {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		m.log.Error("persisting lifecycle ledger", zap.Error(err))
		return
	}
	f, err := os.Create(m.path)
	if err != nil {
		m.log.Error("persisting lifecycle ledger", zap.Error(err))
		return
	}
	defer f.Close()

	names := make([]string, 0, len(m.records))
	for name := range m.records {
		names = append(names, name)
	}
	sort.Strings(names)

	w := bufio.NewWriter(f)
	for _, name := range names {
		data, err := json.Marshal(m.records[name])
		if err != nil {
			m.log.Error("encoding ledger record", zap.String("tool", name), zap.Error(err))
			continue
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		m.log.Error("persisting lifecycle ledger", zap.Error(err))
	}
}

// Register creates an active lifecycle record for a newly accepted tool.
// Registering an existing name is a no-op.
func (m *Lifecycle) Register(toolName, version string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[toolName]; ok {
		return
	}
	m.records[toolName] = &ToolLifecycleRecord{
		ToolName:  toolName,
		Version:   version,
		Status:    StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	m.persist()
	m.log.Info("tool registered in lifecycle ledger",
		zap.String("tool", toolName), zap.String("version", version))
}

// RecordUsage folds one run's observation into a tool's aggregates.
// scoreContribution below underperformThreshold extends the consecutive
// underperformance streak; at or above it the streak resets. A name without
// a record gets one created on first usage, so built-in tools are tracked
// without going through the accept path.
func (m *Lifecycle) RecordUsage(toolName string, scoreContribution float64, correct bool, latencyMs float64, underperformThreshold float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[toolName]
	if !ok {
		rec = &ToolLifecycleRecord{
			ToolName:  toolName,
			Version:   "0.1.0",
			Status:    StatusActive,
			CreatedAt: time.Now().UTC(),
		}
		m.records[toolName] = rec
		m.log.Info("lifecycle record created on first usage", zap.String("tool", toolName))
	}

	now := time.Now().UTC()
	rec.UsageCount++
	rec.TotalScoreContribution += scoreContribution
	rec.TotalPredictions++
	if correct {
		rec.CorrectPredictions++
	}
	rec.TotalLatencyMs += latencyMs
	rec.LastUsedAt = &now

	if scoreContribution < underperformThreshold {
		rec.ConsecutiveUnderperformance++
	} else {
		rec.ConsecutiveUnderperformance = 0
	}

	m.persist()
}

// CheckDeprecation deprecates the named tool when its underperformance
// streak has reached the configured limit. Returns true when the tool is
// deprecated after the call, whether by this call or earlier. Unknown
// names return false.
func (m *Lifecycle) CheckDeprecation(toolName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[toolName]
	if !ok {
		return false
	}
	if rec.Status == StatusDeprecated {
		return true
	}
	if rec.ConsecutiveUnderperformance >= m.deprecationRuns {
		rec.Status = StatusDeprecated
		m.persist()
		m.log.Warn("tool deprecated after sustained underperformance",
			zap.String("tool", toolName),
			zap.Int("consecutive_runs", rec.ConsecutiveUnderperformance))
		return true
	}
	return false
}

// ActiveTools returns the names of all non-deprecated tools, sorted.
func (m *Lifecycle) ActiveTools() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for name, rec := range m.records {
		if rec.Status == StatusActive {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Record returns a copy of one tool's lifecycle record.
func (m *Lifecycle) Record(toolName string) (ToolLifecycleRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[toolName]
	if !ok {
		return ToolLifecycleRecord{}, false
	}
	return *rec, true
}

// Records returns copies of every lifecycle record, sorted by tool name.
func (m *Lifecycle) Records() []ToolLifecycleRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ToolLifecycleRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolName < out[j].ToolName })
	return out
}
