package storage

import (
	"context"
	"fmt"
)

// Table describes one storefront table: its DDL column list in load order.
type Table struct {
	Name    string
	Columns []Column
	// Ordinal names a column the loader fills with each row's 1-based
	// position in the source file. It is not read from the CSV.
	Ordinal string
}

// Column is a table column and its portable SQL type.
type Column struct {
	Name string
	Type string
}

const (
	colText   = "TEXT"
	colNumber = "DOUBLE PRECISION"
	colInt    = "INTEGER"
)

// Tables lists the storefront schema in dependency order. The column types
// are accepted by both SQLite and Postgres.
var Tables = []Table{
	{Name: "dim_customer", Columns: []Column{
		{"customer_id", colText}, {"first_name", colText}, {"last_name", colText},
		{"city", colText}, {"state_province", colText}, {"country_code", colText},
		{"age_band", colText}, {"preferred_language", colText}, {"loyalty_tier", colText},
		{"consent_marketing", colText},
	}},
	{Name: "dim_product", Columns: []Column{
		{"product_id", colText}, {"product_name", colText}, {"brand", colText},
		{"category", colText}, {"subcategory", colText}, {"flavor", colText},
		{"unit_price", colNumber},
	}},
	{Name: "fact_sales", Columns: []Column{
		{"sale_id", colText}, {"order_date", colText}, {"customer_id", colText},
		{"product_id", colText}, {"channel", colText}, {"promotion_code", colText},
		{"quantity_sold", colInt}, {"total_amount", colNumber}, {"cost_amount", colNumber},
	}},
	{Name: "gift_recommender", Columns: []Column{
		{"customer_id", colText}, {"product_name", colText}, {"product_category", colText},
		{"product_subcategory", colText}, {"brand", colText}, {"gift_persona", colText},
		{"delivery_speed", colText}, {"rating", colNumber}, {"discount_pct", colNumber},
		{"list_price", colNumber}, {"unit_price", colNumber}, {"returned_flag", colText},
		{"event_ts", colText}, {"event_type", colText}, {"avg_order_value_user", colNumber},
		{"row_num", colInt},
	}, Ordinal: "row_num"},
	{Name: "supply_chain", Columns: []Column{
		{"product_id", colText}, {"vendor_lead_time_days", colNumber}, {"stock_level", colNumber},
		{"delay_reason", colText}, {"region", colText}, {"cost_per_unit", colNumber},
	}},
	{Name: "matchmaking", Columns: []Column{
		{"user_id", colText}, {"age", colInt}, {"location_region", colText},
		{"openness", colNumber}, {"conscientiousness", colNumber}, {"extraversion", colNumber},
		{"agreeableness", colNumber}, {"neuroticism", colNumber}, {"interests", colText},
	}},
	{Name: "global_routing", Columns: []Column{
		{"region", colText}, {"request_count_per_min", colNumber},
		{"p95_latency_ms", colNumber}, {"failure_rate", colNumber},
	}},
	{Name: "love_notes_telemetry", Columns: []Column{
		{"note_id", colText}, {"region_destination", colText},
		{"latency_ms", colNumber}, {"delivery_status", colText},
	}},
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_fact_sales_customer_id ON fact_sales(customer_id)",
	"CREATE INDEX IF NOT EXISTS idx_fact_sales_product_id ON fact_sales(product_id)",
	"CREATE INDEX IF NOT EXISTS idx_gift_recommender_customer_id ON gift_recommender(customer_id)",
	"CREATE INDEX IF NOT EXISTS idx_gift_recommender_product_name ON gift_recommender(product_name)",
	"CREATE INDEX IF NOT EXISTS idx_supply_chain_product_id ON supply_chain(product_id)",
	"CREATE INDEX IF NOT EXISTS idx_matchmaking_user_id ON matchmaking(user_id)",
}

// TableByName returns the schema entry for a table.
func TableByName(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Migrate creates every storefront table and index that does not exist yet.
func Migrate(ctx context.Context, db DB) error {
	for _, t := range Tables {
		if _, err := db.ExecContext(ctx, createTableSQL(t)); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func createTableSQL(t Table) string {
	sql := "CREATE TABLE IF NOT EXISTS " + t.Name + " ("
	for i, c := range t.Columns {
		if i > 0 {
			sql += ", "
		}
		sql += c.Name + " " + c.Type
	}
	return sql + ")"
}
