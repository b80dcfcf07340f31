package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SalesRepository computes the precomputed sales aggregates.
type SalesRepository struct {
	db DB
}

// NewSalesRepository creates a new sales repository.
func NewSalesRepository(db DB) *SalesRepository {
	return &SalesRepository{db: db}
}

const salesFrom = `
	FROM fact_sales fs
	LEFT JOIN dim_product dp ON fs.product_id = dp.product_id
	LEFT JOIN dim_customer dc ON fs.customer_id = dc.customer_id
`

func salesWhere(f SalesFilter, p *placeholders) string {
	where := ""
	add := func(clause string) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}
	if f.Category != "" {
		add("dp.category = " + p.add(f.Category))
	}
	if f.Channel != "" {
		add("fs.channel = " + p.add(f.Channel))
	}
	if f.Country != "" {
		add("dc.country_code = " + p.add(f.Country))
	}
	if f.Month != "" {
		add("substr(fs.order_date, 1, 7) = " + p.add(f.Month))
	}
	return where
}

// Summary returns order count, revenue, profit and average order value.
func (r *SalesRepository) Summary(ctx context.Context, f SalesFilter) (SalesSummary, error) {
	var p placeholders
	query := `SELECT COUNT(*), SUM(fs.total_amount), SUM(fs.total_amount - fs.cost_amount), AVG(fs.total_amount)` +
		salesFrom + salesWhere(f, &p)

	var (
		s                       SalesSummary
		revenue, profit, avgOrd sql.NullFloat64
	)
	if err := r.db.QueryRowContext(ctx, query, p.args...).Scan(&s.Orders, &revenue, &profit, &avgOrd); err != nil {
		return SalesSummary{}, fmt.Errorf("query sales summary: %w", err)
	}
	s.Revenue = revenue.Float64
	s.Profit = profit.Float64
	s.AvgOrder = avgOrd.Float64
	return s, nil
}

// RevenueBy groups revenue by a dimension. Dimensions are fixed expressions,
// never caller input.
type RevenueBy string

const (
	ByCategory  RevenueBy = "dp.category"
	ByProduct   RevenueBy = "dp.product_name"
	ByChannel   RevenueBy = "fs.channel"
	ByCountry   RevenueBy = "dc.country_code"
	ByMonth     RevenueBy = "substr(fs.order_date, 1, 7)"
	ByPromotion RevenueBy = "fs.promotion_code"
	ByLoyalty   RevenueBy = "dc.loyalty_tier"
)

// Revenue aggregates revenue, order count and units by dimension. Rows are
// ordered by revenue descending, except months which are chronological.
// A limit of zero returns every group.
func (r *SalesRepository) Revenue(ctx context.Context, by RevenueBy, f SalesFilter, limit int) ([]RevenueRow, error) {
	var p placeholders
	query := `SELECT ` + string(by) + ` AS dim, SUM(fs.total_amount) AS revenue, COUNT(*) AS orders,
		SUM(fs.quantity_sold) AS units` + salesFrom + salesWhere(f, &p) + `
		GROUP BY ` + string(by)
	if by == ByMonth {
		query += ` ORDER BY dim ASC`
	} else {
		query += ` ORDER BY revenue DESC NULLS LAST, dim ASC`
	}
	if limit > 0 {
		query += ` LIMIT ` + p.add(limit)
	}

	rows, err := r.db.QueryContext(ctx, query, p.args...)
	if err != nil {
		return nil, fmt.Errorf("query revenue by %s: %w", by, err)
	}
	defer rows.Close()

	var out []RevenueRow
	for rows.Next() {
		var (
			key            sql.NullString
			revenue, units sql.NullFloat64
			row            RevenueRow
		)
		if err := rows.Scan(&key, &revenue, &row.Orders, &units); err != nil {
			return nil, fmt.Errorf("scan revenue row: %w", err)
		}
		row.Key = str(key)
		row.Revenue = revenue.Float64
		row.Units = units.Float64
		out = append(out, row)
	}
	return out, rows.Err()
}

// Context assembles every aggregate the sales assistant uses. Category,
// product, country and promotion lists are capped at five rows and months
// at the latest twelve.
func (r *SalesRepository) Context(ctx context.Context, f SalesFilter) (*SalesContext, error) {
	summary, err := r.Summary(ctx, f)
	if err != nil {
		return nil, err
	}
	sc := &SalesContext{Summary: summary}

	for _, q := range []struct {
		by    RevenueBy
		limit int
		dest  *[]RevenueRow
	}{
		{ByCategory, 5, &sc.ByCategory},
		{ByProduct, 5, &sc.TopProducts},
		{ByChannel, 0, &sc.ByChannel},
		{ByCountry, 5, &sc.ByCountry},
		{ByMonth, 0, &sc.ByMonth},
		{ByPromotion, 5, &sc.ByPromotion},
		{ByLoyalty, 0, &sc.ByLoyalty},
	} {
		rows, err := r.Revenue(ctx, q.by, f, q.limit)
		if err != nil {
			return nil, err
		}
		*q.dest = rows
	}

	if n := len(sc.ByMonth); n > 12 {
		sc.ByMonth = sc.ByMonth[n-12:]
	}
	return sc, nil
}

// FilterOptions lists the distinct values for each sales filter.
func (r *SalesRepository) FilterOptions(ctx context.Context) (*SalesFilterOptions, error) {
	opts := &SalesFilterOptions{}
	for _, q := range []struct {
		query string
		dest  *[]string
	}{
		{`SELECT DISTINCT category FROM dim_product WHERE category IS NOT NULL ORDER BY category`, &opts.Categories},
		{`SELECT DISTINCT channel FROM fact_sales WHERE channel IS NOT NULL ORDER BY channel`, &opts.Channels},
		{`SELECT DISTINCT country_code FROM dim_customer WHERE country_code IS NOT NULL ORDER BY country_code`, &opts.Countries},
		{`SELECT DISTINCT substr(order_date, 1, 7) AS month FROM fact_sales WHERE order_date IS NOT NULL ORDER BY month`, &opts.Months},
	} {
		values, err := queryStrings(ctx, r.db, q.query)
		if err != nil {
			return nil, fmt.Errorf("query filter options: %w", err)
		}
		*q.dest = values
	}
	return opts, nil
}

func queryStrings(ctx context.Context, db DB, query string, args ...interface{}) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, str(v))
	}
	return out, rows.Err()
}
