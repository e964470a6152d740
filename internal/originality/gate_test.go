// internal/originality/gate_test.go
package originality

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendmint/internal/common/errors"
	"trendmint/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

type stubSearcher struct {
	matches []MatchRecord
	err     error
	calls   int
}

func (s *stubSearcher) Search(ctx context.Context, image []byte) ([]MatchRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.matches, nil
}

func writeAsset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "asset.png")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

// ==========================
// Verdict Tests
// ==========================

func TestVerify_OriginalWhenNoMatches(t *testing.T) {
	searcher := &stubSearcher{}
	gate := NewGate(searcher, nil, time.Hour, logger.NewTestLogger(t))

	verdict, err := gate.Verify(context.Background(), writeAsset(t, "pixels"))
	require.NoError(t, err)
	assert.True(t, verdict.IsOriginal)
	assert.Empty(t, verdict.Matches)
}

func TestVerify_NotOriginalWhenMatchesFound(t *testing.T) {
	searcher := &stubSearcher{matches: []MatchRecord{
		{SourceURL: "https://example.com/a.png", SimilarityScore: 0.97},
	}}
	gate := NewGate(searcher, nil, time.Hour, logger.NewTestLogger(t))

	verdict, err := gate.Verify(context.Background(), writeAsset(t, "pixels"))
	require.NoError(t, err)
	assert.False(t, verdict.IsOriginal)
	assert.Len(t, verdict.Matches, 1)
}

func TestVerify_UnreadableFileIsValidationError(t *testing.T) {
	gate := NewGate(&stubSearcher{}, nil, time.Hour, logger.NewTestLogger(t))

	_, err := gate.Verify(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
}

func TestVerify_SearchOutageIsExternalServiceError(t *testing.T) {
	searcher := &stubSearcher{err: fmt.Errorf("connection refused")}
	gate := NewGate(searcher, nil, time.Hour, logger.NewTestLogger(t))

	_, err := gate.Verify(context.Background(), writeAsset(t, "pixels"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeExternalService, errors.CodeOf(err))
	assert.True(t, errors.IsRetryable(err))
}

// ==========================
// Cache Tests
// ==========================

func TestVerify_SingleSearchPerDistinctContent(t *testing.T) {
	searcher := &stubSearcher{matches: []MatchRecord{
		{SourceURL: "https://example.com/a.png", SimilarityScore: 0.9},
	}}
	gate := NewGate(searcher, setupTestRedis(t), time.Hour, logger.NewTestLogger(t))

	path := writeAsset(t, "pixels")
	for i := 0; i < 3; i++ {
		verdict, err := gate.Verify(context.Background(), path)
		require.NoError(t, err)
		assert.False(t, verdict.IsOriginal)
		assert.Len(t, verdict.Matches, 1)
	}

	assert.Equal(t, 1, searcher.calls, "identical content must be searched once")
}

func TestVerify_DistinctContentSearchedSeparately(t *testing.T) {
	searcher := &stubSearcher{}
	gate := NewGate(searcher, setupTestRedis(t), time.Hour, logger.NewTestLogger(t))

	_, err := gate.Verify(context.Background(), writeAsset(t, "first"))
	require.NoError(t, err)
	_, err = gate.Verify(context.Background(), writeAsset(t, "second"))
	require.NoError(t, err)

	assert.Equal(t, 2, searcher.calls)
}

func TestVerify_CacheHitServesWithoutSearch(t *testing.T) {
	path := writeAsset(t, "pixels")
	image, err := os.ReadFile(path)
	require.NoError(t, err)
	sum := sha256.Sum256(image)
	cacheKey := "verdict:" + hex.EncodeToString(sum[:])

	cached, err := json.Marshal(Verdict{IsOriginal: false, Matches: []MatchRecord{
		{SourceURL: "https://example.com/a.png", SimilarityScore: 0.92},
	}})
	require.NoError(t, err)

	client, mock := redismock.NewClientMock()
	mock.ExpectGet(cacheKey).SetVal(string(cached))

	searcher := &stubSearcher{}
	gate := NewGate(searcher, client, time.Hour, logger.NewTestLogger(t))

	verdict, err := gate.Verify(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, verdict.IsOriginal)
	assert.Zero(t, searcher.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerify_CacheOutageDegradesToSearch(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	srv.Close() // cache is down, gate must still work

	searcher := &stubSearcher{}
	gate := NewGate(searcher, client, time.Hour, logger.NewTestLogger(t))

	verdict, err := gate.Verify(context.Background(), writeAsset(t, "pixels"))
	require.NoError(t, err)
	assert.True(t, verdict.IsOriginal)
	assert.Equal(t, 1, searcher.calls)
}
