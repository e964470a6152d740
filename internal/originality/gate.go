// Package originality implements the compliance gate that precedes any
// publication attempt: a reverse-image search for duplicate works and a
// keyword trademark screen.
package originality

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"trendmint/internal/common/errors"
	"trendmint/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// MatchRecord is one reverse-image search hit.
type MatchRecord struct {
	SourceURL       string  `json:"sourceUrl"`
	SimilarityScore float64 `json:"similarityScore"`
}

// Verdict is the gate's decision for one asset. Computed once per
// distinct file content and never mutated.
type Verdict struct {
	IsOriginal bool          `json:"isOriginal"`
	Matches    []MatchRecord `json:"matches,omitempty"`
}

// Searcher is the external reverse-image search capability.
type Searcher interface {
	Search(ctx context.Context, image []byte) ([]MatchRecord, error)
}

// Gate decides whether an asset is safe to publish. Verdicts are cached
// in Redis keyed by the SHA-256 of the file bytes, so re-running the
// pipeline over unchanged files never re-queries the search service.
// The gate itself never deletes or discards a flagged file; that policy
// belongs to the orchestrator.
type Gate struct {
	searcher Searcher
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewGate(searcher Searcher, redisClient *redis.Client, cacheTTL time.Duration, log logger.Logger) *Gate {
	return &Gate{
		searcher: searcher,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "originality-gate"}),
	}
}

// Verify computes the originality verdict for the finalized binary at
// filePath. An unreachable search service surfaces as a retryable
// EXTERNAL_SERVICE_ERROR, distinct from a genuine duplicate match.
func (g *Gate) Verify(ctx context.Context, filePath string) (*Verdict, error) {
	image, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("unreadable asset file %s: %v", filePath, err))
	}

	sum := sha256.Sum256(image)
	cacheKey := "verdict:" + hex.EncodeToString(sum[:])

	if g.redis != nil {
		if val, err := g.redis.Get(ctx, cacheKey).Result(); err == nil {
			var verdict Verdict
			if json.Unmarshal([]byte(val), &verdict) == nil {
				return &verdict, nil
			}
		}
	}

	matches, err := g.searcher.Search(ctx, image)
	if err != nil {
		return nil, errors.NewExternalServiceError("originality-search", err)
	}

	verdict := &Verdict{
		IsOriginal: len(matches) == 0,
		Matches:    matches,
	}

	if g.redis != nil {
		data, _ := json.Marshal(verdict)
		if err := g.redis.Set(ctx, cacheKey, data, g.cacheTTL).Err(); err != nil {
			g.logger.Warn("verdict cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return verdict, nil
}
