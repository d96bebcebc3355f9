package evolution

// Execution log store: an append-only JSONL corpus of pipeline runs.
// Readers tolerate and skip malformed lines rather than failing the read.

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"oddsmith/internal/logging"
)

// staleWindow is how many trailing records are compared when checking for
// a repeated upstream-response fingerprint.
const staleWindow = 3

// Log is the append-only execution record store.
type Log struct {
	path string
	log  *zap.Logger
}

// NewLog opens a store at path. The file is created lazily on first append.
func NewLog(path string) *Log {
	return &Log{path: path, log: logging.L(logging.CategoryEvolution)}
}

// Path returns the backing file path.
func (l *Log) Path() string { return l.path }

// FingerprintResponse hashes a raw upstream payload for staleness
// detection. Stable across runs for identical payloads.
func FingerprintResponse(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Append writes one record to the log. Missing run IDs and timestamps are
// filled in. Returns the record as written.
func (l *Log) Append(rec ExecutionRecord) (ExecutionRecord, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	if rec.ResponseHash != "" {
		l.warnIfStale(rec.ResponseHash)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return rec, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return rec, fmt.Errorf("opening execution log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("encoding execution record: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return rec, fmt.Errorf("appending execution record: %w", err)
	}

	l.log.Info("execution logged",
		zap.String("run", rec.RunID),
		zap.String("market", rec.MarketID),
		zap.Float64("score", rec.FinalScore))
	return rec, nil
}

// Load reads every record in the log, skipping blank and malformed lines.
// A missing file yields an empty corpus.
func (l *Log) Load() ([]ExecutionRecord, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening execution log: %w", err)
	}
	defer f.Close()

	var records []ExecutionRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec ExecutionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("reading execution log: %w", err)
	}
	return records, nil
}

// warnIfStale logs a warning when the incoming response hash matches every
// hash in the last staleWindow records, which means the upstream feed has
// stopped updating.
func (l *Log) warnIfStale(currentHash string) {
	records, err := l.Load()
	if err != nil || len(records) < 2 {
		return
	}
	start := len(records) - staleWindow
	if start < 0 {
		start = 0
	}
	seen := 0
	for _, rec := range records[start:] {
		if rec.ResponseHash == "" {
			continue
		}
		if rec.ResponseHash != currentHash {
			return
		}
		seen++
	}
	if seen > 0 {
		l.log.Warn("stale upstream data: identical response hash in consecutive runs",
			zap.String("hash", currentHash[:8]),
			zap.Int("consecutive", seen+1))
	}
}
