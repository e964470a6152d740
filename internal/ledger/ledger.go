// Package ledger implements the append-only audit trail for the
// publishing pipeline. The ledger is the sole source of truth for
// compliance status: every terminal state transition lands here, and
// pipeline history can be reconstructed from the log alone.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trendmint/internal/common/errors"
	"trendmint/internal/common/metrics"

	"github.com/google/uuid"
)

// RecordType is the audit record type enum.
type RecordType string

const (
	RecordPublished             RecordType = "PUBLISHED"
	RecordFailed                RecordType = "FAILED"
	RecordStockError            RecordType = "STOCK_ERROR"
	RecordMintError             RecordType = "MINT_ERROR"
	RecordPotentialInfringement RecordType = "POTENTIAL_INFRINGEMENT"
	RecordTrademarkBlock        RecordType = "TRADEMARK_BLOCK"
	RecordInvalidRow            RecordType = "INVALID_ROW"
	RecordCopyrightReview       RecordType = "COPYRIGHT_REVIEW"
	RecordTakedownScanError     RecordType = "TAKEDOWN_SCAN_ERROR"
)

// Record is a single append-only audit entry. Records are never edited
// or deleted.
type Record struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      RecordType             `json:"type"`
	Keyword   string                 `json:"keyword"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Ledger is the audit sink consumed by the orchestrator and the
// takedown monitor.
type Ledger interface {
	Append(record Record) error
	HasPublished(keyword string, version int, target string) bool
	Published() []Record
	ReportByKeyword() map[string]KeywordReport
	Close() error
}

// KeywordReport aggregates revenue over PUBLISHED records.
type KeywordReport struct {
	TotalRevenue float64 `json:"totalRevenue"`
	Count        int     `json:"count"`
}

// FileLedger persists records as one JSON object per line. Appends are
// serialized under a mutex; logical per-keyword ordering is preserved by
// the monotonically increasing timestamps attached on append.
type FileLedger struct {
	mu        sync.Mutex
	file      *os.File
	lastStamp time.Time
	published map[string]Record            // publishedKey -> record
	report    map[string]KeywordReport
}

// Open creates or re-opens a ledger file, replaying existing records to
// rebuild the idempotency index and the report snapshot.
func Open(path string) (*FileLedger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	l := &FileLedger{
		file:      file,
		published: make(map[string]Record),
		report:    make(map[string]KeywordReport),
	}

	if err := l.replay(path); err != nil {
		file.Close()
		return nil, err
	}
	return l, nil
}

func (l *FileLedger) replay(path string) error {
	existing, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("replay ledger: %w", err)
	}
	defer existing.Close()

	scanner := bufio.NewScanner(existing)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if json.Unmarshal(line, &rec) != nil {
			// A torn trailing line from a crashed run is not fatal.
			continue
		}
		l.index(rec)
	}
	return scanner.Err()
}

func (l *FileLedger) index(rec Record) {
	if rec.Timestamp.After(l.lastStamp) {
		l.lastStamp = rec.Timestamp
	}
	if rec.Type != RecordPublished {
		return
	}

	l.published[publishedKey(rec.Keyword, payloadInt(rec.Payload, "version"), payloadString(rec.Payload, "target"))] = rec

	report := l.report[rec.Keyword]
	report.TotalRevenue += payloadFloat(rec.Payload, "price")
	report.Count++
	l.report[rec.Keyword] = report
}

// Append writes one record. A write failure is escalated as
// LEDGER_WRITE_ERROR; the ledger never fails silently.
func (l *FileLedger) Append(record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	// Keep per-keyword causal order even when the clock stalls.
	if !record.Timestamp.After(l.lastStamp) {
		record.Timestamp = l.lastStamp.Add(time.Microsecond)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return errors.NewLedgerWriteError(err)
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return errors.NewLedgerWriteError(err)
	}
	if err := l.file.Sync(); err != nil {
		return errors.NewLedgerWriteError(err)
	}

	l.index(record)
	metrics.LedgerAppends.Inc()
	return nil
}

// HasPublished reports whether a PUBLISHED record already exists for the
// (keyword, version, target) triple.
func (l *FileLedger) HasPublished(keyword string, version int, target string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.published[publishedKey(keyword, version, target)]
	return ok
}

// Published returns a snapshot of all PUBLISHED records, used by the
// takedown monitor.
func (l *FileLedger) Published() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, 0, len(l.published))
	for _, rec := range l.published {
		out = append(out, rec)
	}
	return out
}

// ReportByKeyword returns revenue aggregated over PUBLISHED records.
// Served from the in-memory snapshot, off the hot path.
func (l *FileLedger) ReportByKeyword() map[string]KeywordReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]KeywordReport, len(l.report))
	for keyword, report := range l.report {
		out[keyword] = report
	}
	return out
}

func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func publishedKey(keyword string, version int, target string) string {
	return fmt.Sprintf("%s#%d@%s", keyword, version, target)
}

func payloadString(payload map[string]interface{}, key string) string {
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}

func payloadInt(payload map[string]interface{}, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func payloadFloat(payload map[string]interface{}, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
