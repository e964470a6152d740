// internal/pricing/engine_test.go
package pricing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendmint/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

type stubSales struct {
	recent      []Sale
	recentErr   error
	maxVelocity float64
	maxErr      error
}

func (s *stubSales) RecentSales(ctx context.Context, keyword string, windowDays int) ([]Sale, error) {
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	return s.recent, nil
}

func (s *stubSales) MaxVelocity(ctx context.Context, windowDays int) (float64, error) {
	if s.maxErr != nil {
		return 0, s.maxErr
	}
	return s.maxVelocity, nil
}

func salesOf(n int) []Sale {
	sales := make([]Sale, n)
	for i := range sales {
		sales[i] = Sale{Date: time.Now(), Keyword: "k", Price: 50, Platform: "OPENSEA"}
	}
	return sales
}

func newTestEngine(t *testing.T, sales SalesView) *Engine {
	return NewEngine(sales, logger.NewTestLogger(t))
}

// ==========================
// Quote Tests
// ==========================

func TestQuote_TopTrendNoSales(t *testing.T) {
	engine := newTestEngine(t, &stubSales{})

	// normSearch 1.0, normSales 0: 10 + 0.6*490 = 304
	quote := engine.Quote(context.Background(), "ai art", 5000, 5000)
	assert.Equal(t, 304.0, quote.Amount)
	assert.Equal(t, "ai art", quote.Keyword)
	assert.False(t, quote.ComputedAt.IsZero())
}

func TestQuote_MaxDemandHitsCeiling(t *testing.T) {
	engine := newTestEngine(t, &stubSales{recent: salesOf(7), maxVelocity: 1})

	quote := engine.Quote(context.Background(), "ai art", 5000, 5000)
	assert.Equal(t, 500.0, quote.Amount)
}

func TestQuote_ZeroDemandHitsFloor(t *testing.T) {
	engine := newTestEngine(t, &stubSales{})

	quote := engine.Quote(context.Background(), "obscure", 0, 5000)
	assert.Equal(t, 10.0, quote.Amount)
}

func TestQuote_AlwaysWithinBounds(t *testing.T) {
	tests := []struct {
		name         string
		searchVolume int
		maxVolume    int
		sales        SalesView
	}{
		{"cold keyword", 0, 1, &stubSales{}},
		{"hot keyword hot sales", 100000, 100000, &stubSales{recent: salesOf(50), maxVelocity: 2}},
		{"volume above batch max", 9000, 100, &stubSales{}},
		{"empty batch max", 500, 0, &stubSales{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote := newTestEngine(t, tt.sales).Quote(context.Background(), "k", tt.searchVolume, tt.maxVolume)
			assert.GreaterOrEqual(t, quote.Amount, 10.0)
			assert.LessOrEqual(t, quote.Amount, 500.0)
		})
	}
}

func TestQuote_MonotonicInSearchVolume(t *testing.T) {
	engine := newTestEngine(t, &stubSales{})

	low := engine.Quote(context.Background(), "k", 100, 5000)
	high := engine.Quote(context.Background(), "k", 4000, 5000)
	assert.Greater(t, high.Amount, low.Amount)
}

func TestQuote_SalesOutageDegradesToZeroSales(t *testing.T) {
	broken := &stubSales{
		recentErr: fmt.Errorf("connection refused"),
		maxErr:    fmt.Errorf("connection refused"),
	}
	engine := newTestEngine(t, broken)

	quote := engine.Quote(context.Background(), "ai art", 5000, 5000)
	assert.Equal(t, 304.0, quote.Amount, "pricing must not block on sales history")
}

// ==========================
// Per-Target Adjustment Tests
// ==========================

func TestForTarget(t *testing.T) {
	quote := PriceQuote{Amount: 300, Keyword: "k", ComputedAt: time.Now()}

	tests := []struct {
		name       string
		multiplier float64
		want       float64
	}{
		{"identity", 1.0, 300},
		{"premium target", 1.5, 450},
		{"discount target", 0.5, 150},
		{"re-clamped at ceiling", 2.0, 500},
		{"invalid multiplier falls back to identity", 0, 300},
		{"negative multiplier falls back to identity", -1, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adjusted := quote.ForTarget(tt.multiplier)
			assert.Equal(t, tt.want, adjusted.Amount)
			assert.Equal(t, quote.Keyword, adjusted.Keyword)
		})
	}

	// The source quote is never mutated.
	require.Equal(t, 300.0, quote.Amount)
}
