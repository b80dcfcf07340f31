package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LogisticsRepository reads supply chain, routing and delivery telemetry.
type LogisticsRepository struct {
	db DB
}

// NewLogisticsRepository creates a new logistics repository.
func NewLogisticsRepository(db DB) *LogisticsRepository {
	return &LogisticsRepository{db: db}
}

// SupplyChain returns every supply_chain row joined with its product name.
func (r *LogisticsRepository) SupplyChain(ctx context.Context) ([]SupplyRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sc.product_id, dp.product_name, sc.vendor_lead_time_days, sc.stock_level,
			sc.delay_reason, sc.region, sc.cost_per_unit
		FROM supply_chain sc
		JOIN dim_product dp ON sc.product_id = dp.product_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query supply chain: %w", err)
	}
	defer rows.Close()

	var out []SupplyRow
	for rows.Next() {
		var (
			row                       SupplyRow
			name, reason, region      sql.NullString
			leadTime, stock, costUnit sql.NullFloat64
		)
		if err := rows.Scan(&row.ProductID, &name, &leadTime, &stock, &reason, &region, &costUnit); err != nil {
			return nil, fmt.Errorf("scan supply row: %w", err)
		}
		row.ProductName = str(name)
		row.LeadTimeDays = leadTime.Float64
		row.StockLevel = stock.Float64
		row.DelayReason = str(reason)
		row.Region = str(region)
		row.CostPerUnit = costUnit.Float64
		out = append(out, row)
	}
	return out, rows.Err()
}

// Routing returns the routing row for a region.
func (r *LogisticsRepository) Routing(ctx context.Context, region string) (*RoutingRow, error) {
	var (
		row                     RoutingRow
		count, p95, failureRate sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT region, request_count_per_min, p95_latency_ms, failure_rate
		FROM global_routing WHERE region = $1
	`, region).Scan(&row.Region, &count, &p95, &failureRate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query routing: %w", err)
	}
	row.RequestCountPerMin = count.Float64
	row.P95LatencyMs = p95.Float64
	row.FailureRate = failureRate.Float64
	return &row, nil
}

// SuccessRate returns the share of love notes delivered to a region, or nil
// when the region has no telemetry.
func (r *LogisticsRepository) SuccessRate(ctx context.Context, region string) (*float64, error) {
	var rate sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT AVG(CASE WHEN delivery_status = 'delivered' THEN 1.0 ELSE 0.0 END)
		FROM love_notes_telemetry WHERE region_destination = $1
	`, region).Scan(&rate)
	if err != nil {
		return nil, fmt.Errorf("query success rate: %w", err)
	}
	return floatPtr(rate), nil
}

// DeliveryByRegion aggregates telemetry per destination, slowest first.
func (r *LogisticsRepository) DeliveryByRegion(ctx context.Context) ([]RegionDelivery, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT region_destination, AVG(latency_ms) AS avg_latency,
			AVG(CASE WHEN delivery_status = 'delivered' THEN 1.0 ELSE 0.0 END) AS success_rate
		FROM love_notes_telemetry
		GROUP BY region_destination
		ORDER BY avg_latency DESC NULLS LAST
	`)
	if err != nil {
		return nil, fmt.Errorf("query delivery by region: %w", err)
	}
	defer rows.Close()

	var out []RegionDelivery
	for rows.Next() {
		var (
			region        sql.NullString
			latency, rate sql.NullFloat64
		)
		if err := rows.Scan(&region, &latency, &rate); err != nil {
			return nil, fmt.Errorf("scan delivery row: %w", err)
		}
		out = append(out, RegionDelivery{Region: str(region), AvgLatency: latency.Float64, SuccessRate: rate.Float64})
	}
	return out, rows.Err()
}

// RiskiestRoutes returns the routing rows with the highest failure rate.
func (r *LogisticsRepository) RiskiestRoutes(ctx context.Context, limit int) ([]RoutingRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT region, request_count_per_min, p95_latency_ms, failure_rate
		FROM global_routing
		ORDER BY failure_rate DESC NULLS LAST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	var out []RoutingRow
	for rows.Next() {
		var (
			row                     RoutingRow
			region                  sql.NullString
			count, p95, failureRate sql.NullFloat64
		)
		if err := rows.Scan(&region, &count, &p95, &failureRate); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		row.Region = str(region)
		row.RequestCountPerMin = count.Float64
		row.P95LatencyMs = p95.Float64
		row.FailureRate = failureRate.Float64
		out = append(out, row)
	}
	return out, rows.Err()
}

// Regions lists distinct routing regions alphabetically.
func (r *LogisticsRepository) Regions(ctx context.Context, limit int) ([]string, error) {
	regions, err := queryStrings(ctx, r.db,
		`SELECT DISTINCT region FROM global_routing WHERE region IS NOT NULL ORDER BY region LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query regions: %w", err)
	}
	return regions, nil
}
