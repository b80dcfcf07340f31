package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// AnalyticsRepository reads the data inventory.
type AnalyticsRepository struct {
	db DB
}

// NewAnalyticsRepository creates a new analytics repository.
func NewAnalyticsRepository(db DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Overview counts the rows of every storefront table, in schema order, and
// averages rating, discount and unit price over gift_recommender.
func (r *AnalyticsRepository) Overview(ctx context.Context) (*AnalyticsOverview, error) {
	out := &AnalyticsOverview{Tables: make([]TableCount, 0, len(Tables))}
	for _, t := range Tables {
		var n int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+t.Name).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.Name, err)
		}
		out.Tables = append(out.Tables, TableCount{Table: t.Name, Rows: n})
	}

	var rating, discount, price sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT AVG(rating), AVG(discount_pct), AVG(unit_price)
		FROM gift_recommender
	`).Scan(&rating, &discount, &price)
	if err != nil {
		return nil, fmt.Errorf("query gift averages: %w", err)
	}
	out.AvgRating = floatPtr(rating)
	out.AvgDiscount = floatPtr(discount)
	out.AvgPrice = floatPtr(price)
	return out, nil
}
