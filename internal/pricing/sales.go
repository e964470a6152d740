// internal/pricing/sales.go
package pricing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trendmint/internal/common/logger"
)

// Sale is one recorded marketplace sale event.
type Sale struct {
	Date     time.Time `json:"date"`
	Keyword  string    `json:"keyword"`
	Price    float64   `json:"price"`
	Platform string    `json:"platform"`
}

// SalesStore persists sale events in PostgreSQL. The pipeline reads it
// through the SalesView interface; writes come from the external
// sales-recording collaborator.
type SalesStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSalesStore(db *sql.DB, log logger.Logger) *SalesStore {
	return &SalesStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "sales-store"}),
	}
}

// RecordSale appends one sale event.
func (s *SalesStore) RecordSale(ctx context.Context, keyword string, price float64, platform string) error {
	query := `INSERT INTO sales (date, keyword, price, platform) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, time.Now().UTC(), keyword, price, platform); err != nil {
		return fmt.Errorf("record sale: %w", err)
	}
	return nil
}

// RecentSales returns sales for keyword within the trailing window.
// Corrupt rows are skipped rather than failing the query.
func (s *SalesStore) RecentSales(ctx context.Context, keyword string, windowDays int) ([]Sale, error) {
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	query := `SELECT date, keyword, price, platform FROM sales WHERE keyword = $1 AND date > $2`

	rows, err := s.db.QueryContext(ctx, query, keyword, since)
	if err != nil {
		return nil, fmt.Errorf("query recent sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var sale Sale
		if err := rows.Scan(&sale.Date, &sale.Keyword, &sale.Price, &sale.Platform); err != nil {
			s.logger.Warn("skipping corrupt sale row", map[string]interface{}{
				"keyword": keyword,
				"error":   err.Error(),
			})
			continue
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan recent sales: %w", err)
	}
	return sales, nil
}

// MaxVelocity returns the highest sales/day over the trailing window
// across all keywords, or 0 when nothing has sold.
func (s *SalesStore) MaxVelocity(ctx context.Context, windowDays int) (float64, error) {
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	query := `SELECT COUNT(*) FROM sales WHERE date > $1 GROUP BY keyword ORDER BY COUNT(*) DESC LIMIT 1`

	var count int
	err := s.db.QueryRowContext(ctx, query, since).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("query max velocity: %w", err)
	}
	return float64(count) / float64(windowDays), nil
}
