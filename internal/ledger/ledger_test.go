// internal/ledger/ledger_test.go
package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func openTestLedger(t *testing.T) (*FileLedger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, path
}

func publishedRecord(keyword string, version int, target string, price float64) Record {
	return Record{
		Type:    RecordPublished,
		Keyword: keyword,
		Payload: map[string]interface{}{
			"version":     version,
			"target":      target,
			"platformRef": "asset-123",
			"price":       price,
		},
	}
}

// ==========================
// Append & Identity Tests
// ==========================

func TestAppend_AssignsIDAndTimestamp(t *testing.T) {
	l, _ := openTestLedger(t)

	rec := publishedRecord("sunset", 1, "OPENSEA", 120)
	require.NoError(t, l.Append(rec))

	published := l.Published()
	require.Len(t, published, 1)
	assert.NotEmpty(t, published[0].ID)
	assert.False(t, published[0].Timestamp.IsZero())
}

func TestAppend_TimestampsAreStrictlyIncreasing(t *testing.T) {
	l, _ := openTestLedger(t)

	for i := 1; i <= 5; i++ {
		require.NoError(t, l.Append(publishedRecord("sunset", i, "OPENSEA", 100)))
	}

	published := l.Published()
	require.Len(t, published, 5)

	seen := make(map[time.Time]bool)
	for _, rec := range published {
		assert.False(t, seen[rec.Timestamp], "duplicate timestamp %v", rec.Timestamp)
		seen[rec.Timestamp] = true
	}
}

// ==========================
// Idempotency Index Tests
// ==========================

func TestHasPublished(t *testing.T) {
	l, _ := openTestLedger(t)

	require.NoError(t, l.Append(publishedRecord("sunset", 1, "OPENSEA", 120)))

	assert.True(t, l.HasPublished("sunset", 1, "OPENSEA"))
	assert.False(t, l.HasPublished("sunset", 2, "OPENSEA"))
	assert.False(t, l.HasPublished("sunset", 1, "SHUTTERSTOCK"))
	assert.False(t, l.HasPublished("sunrise", 1, "OPENSEA"))
}

func TestHasPublished_IgnoresNonPublishedRecords(t *testing.T) {
	l, _ := openTestLedger(t)

	require.NoError(t, l.Append(Record{
		Type:    RecordMintError,
		Keyword: "sunset",
		Payload: map[string]interface{}{"version": 1, "target": "OPENSEA"},
	}))

	assert.False(t, l.HasPublished("sunset", 1, "OPENSEA"))
}

// ==========================
// Replay Tests
// ==========================

func TestReplay_RebuildsIndexAndReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(publishedRecord("sunset", 1, "OPENSEA", 120)))
	require.NoError(t, first.Append(publishedRecord("sunset", 1, "SHUTTERSTOCK", 80)))
	require.NoError(t, first.Append(Record{
		Type:    RecordPotentialInfringement,
		Keyword: "mountain",
		Payload: map[string]interface{}{"version": 1},
	}))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	assert.True(t, second.HasPublished("sunset", 1, "OPENSEA"))
	assert.True(t, second.HasPublished("sunset", 1, "SHUTTERSTOCK"))
	assert.False(t, second.HasPublished("mountain", 1, "OPENSEA"))

	report := second.ReportByKeyword()
	require.Contains(t, report, "sunset")
	assert.Equal(t, 200.0, report["sunset"].TotalRevenue)
	assert.Equal(t, 2, report["sunset"].Count)
	assert.NotContains(t, report, "mountain")
}

func TestReplay_ToleratesTornTrailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(publishedRecord("sunset", 1, "OPENSEA", 120)))
	require.NoError(t, first.Close())

	appendRaw(t, path, `{"id":"torn","type":"PUBLI`)

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	assert.True(t, second.HasPublished("sunset", 1, "OPENSEA"))
	assert.Len(t, second.Published(), 1)
}

// ==========================
// Report Tests
// ==========================

func TestReportByKeyword_AggregatesOnlyPublished(t *testing.T) {
	l, _ := openTestLedger(t)

	require.NoError(t, l.Append(publishedRecord("sunset", 1, "OPENSEA", 120)))
	require.NoError(t, l.Append(publishedRecord("sunset", 2, "OPENSEA", 60)))
	require.NoError(t, l.Append(publishedRecord("forest", 1, "ADOBE_STOCK", 45)))
	require.NoError(t, l.Append(Record{
		Type:    RecordStockError,
		Keyword: "forest",
		Payload: map[string]interface{}{"version": 2, "target": "ADOBE_STOCK", "price": 999.0},
	}))

	report := l.ReportByKeyword()
	assert.Equal(t, 180.0, report["sunset"].TotalRevenue)
	assert.Equal(t, 2, report["sunset"].Count)
	assert.Equal(t, 45.0, report["forest"].TotalRevenue)
	assert.Equal(t, 1, report["forest"].Count)
}

// ==========================
// Failure Tests
// ==========================

func TestAppend_AfterCloseIsLedgerWriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	err = l.Append(publishedRecord("sunset", 1, "OPENSEA", 120))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGER_WRITE_ERROR")
}

func appendRaw(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(line)
	require.NoError(t, err)
}
