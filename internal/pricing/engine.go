// Package pricing derives a monetary price from demand signals: trend
// search volume and recent sales velocity.
package pricing

import (
	"context"
	"math"
	"time"

	"trendmint/internal/common/logger"
)

const (
	trendWeight = 0.6 // weight of trend popularity
	salesWeight = 0.4 // weight of recent sales

	basePrice   = 10.0
	priceSpread = 490.0
	minPrice    = 10.0
	maxPrice    = 500.0

	// Sales velocity is measured over a trailing window, in sales/day.
	velocityWindowDays = 7
)

// PriceQuote is an immutable price decision for one keyword. Re-issued,
// never mutated, when inputs change.
type PriceQuote struct {
	Amount     float64   `json:"amount"`
	Keyword    string    `json:"keyword"`
	ComputedAt time.Time `json:"computedAt"`
}

// ForTarget applies a per-platform multiplier and re-clamps. multiplier
// 1.0 (the default) returns an identical quote.
func (q PriceQuote) ForTarget(multiplier float64) PriceQuote {
	if multiplier <= 0 {
		multiplier = 1.0
	}
	adjusted := q
	adjusted.Amount = clamp(math.Round(q.Amount * multiplier))
	return adjusted
}

// SalesView is the read-only view over recorded sales consumed by the
// engine. The pipeline never writes through it.
type SalesView interface {
	RecentSales(ctx context.Context, keyword string, windowDays int) ([]Sale, error)
	MaxVelocity(ctx context.Context, windowDays int) (float64, error)
}

// Engine computes quotes. Pricing never blocks publication: a missing
// or corrupt sales history degrades to zero sales.
type Engine struct {
	sales  SalesView
	logger logger.Logger
}

func NewEngine(sales SalesView, log logger.Logger) *Engine {
	return &Engine{
		sales:  sales,
		logger: log.WithFields(map[string]interface{}{"component": "pricing-engine"}),
	}
}

// Quote derives the price for keyword. maxSearchVolume is the maximum
// search volume across all known keywords in the current batch.
func (e *Engine) Quote(ctx context.Context, keyword string, searchVolume, maxSearchVolume int) PriceQuote {
	if maxSearchVolume < 1 {
		maxSearchVolume = 1
	}
	normSearch := math.Min(1, float64(searchVolume)/float64(maxSearchVolume))

	velocity := e.salesVelocity(ctx, keyword)
	maxVelocity, err := e.sales.MaxVelocity(ctx, velocityWindowDays)
	if err != nil {
		e.logger.Warn("max sales velocity unavailable, assuming cold market", map[string]interface{}{
			"error": err.Error(),
		})
		maxVelocity = 0
	}
	// Floor at 1 sale/day so a market with no sales yet still prices.
	if maxVelocity < 1 {
		maxVelocity = 1
	}
	normSales := math.Min(1, velocity/maxVelocity)

	amount := clamp(math.Round(basePrice + (normSearch*trendWeight+normSales*salesWeight)*priceSpread))

	return PriceQuote{
		Amount:     amount,
		Keyword:    keyword,
		ComputedAt: time.Now().UTC(),
	}
}

func (e *Engine) salesVelocity(ctx context.Context, keyword string) float64 {
	recent, err := e.sales.RecentSales(ctx, keyword, velocityWindowDays)
	if err != nil {
		e.logger.Warn("sales history unavailable, treating as zero sales", map[string]interface{}{
			"keyword": keyword,
			"error":   err.Error(),
		})
		return 0
	}
	return float64(len(recent)) / float64(velocityWindowDays)
}

func clamp(amount float64) float64 {
	return math.Max(minPrice, math.Min(maxPrice, amount))
}
