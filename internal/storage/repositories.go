package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ProductRepository reads the product master.
type ProductRepository struct {
	db DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `product_id, product_name, brand, category, subcategory, flavor, unit_price`

// ListAll returns every product in catalog order (by product_id).
func (r *ProductRepository) ListAll(ctx context.Context) ([]Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM dim_product ORDER BY product_id`)
}

// List returns up to limit products in catalog order.
func (r *ProductRepository) List(ctx context.Context, limit int) ([]Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM dim_product ORDER BY product_id LIMIT $1`, limit)
}

// GetByID retrieves a product by ID.
func (r *ProductRepository) GetByID(ctx context.Context, productID string) (*Product, error) {
	products, err := r.query(ctx, `SELECT `+productColumns+` FROM dim_product WHERE product_id = $1`, productID)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNotFound
	}
	return &products[0], nil
}

func (r *ProductRepository) query(ctx context.Context, query string, args ...interface{}) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var (
			p                                          Product
			name, brand, category, subcategory, flavor sql.NullString
			price                                      sql.NullFloat64
		)
		if err := rows.Scan(&p.ProductID, &name, &brand, &category, &subcategory, &flavor, &price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.ProductName = str(name)
		p.Brand = str(brand)
		p.Category = str(category)
		p.Subcategory = str(subcategory)
		p.Flavor = str(flavor)
		p.UnitPrice = floatPtr(price)
		products = append(products, p)
	}
	return products, rows.Err()
}

// CustomerRepository reads customer profiles.
type CustomerRepository struct {
	db DB
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(db DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

const customerColumns = `customer_id, first_name, last_name, city, state_province, country_code,
	age_band, preferred_language, loyalty_tier, consent_marketing`

// GetByID retrieves a customer by ID.
func (r *CustomerRepository) GetByID(ctx context.Context, customerID string) (*Customer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM dim_customer WHERE customer_id = $1`, customerID)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// List returns up to limit customers ordered by ID.
func (r *CustomerRepository) List(ctx context.Context, limit int) ([]Customer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+customerColumns+` FROM dim_customer ORDER BY customer_id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomer(row rowScanner) (*Customer, error) {
	var (
		c                                                  Customer
		first, last, city, state, country, age, lang, tier sql.NullString
		consent                                            sql.NullString
	)
	if err := row.Scan(&c.CustomerID, &first, &last, &city, &state, &country,
		&age, &lang, &tier, &consent); err != nil {
		return nil, err
	}
	c.FirstName = str(first)
	c.LastName = str(last)
	c.City = str(city)
	c.StateProvince = str(state)
	c.CountryCode = str(country)
	c.AgeBand = str(age)
	c.PreferredLanguage = str(lang)
	c.LoyaltyTier = str(tier)
	c.ConsentMarketing = str(consent)
	return &c, nil
}

// GiftRepository reads gift_recommender behavioral events.
type GiftRepository struct {
	db DB
}

// NewGiftRepository creates a new gift repository.
func NewGiftRepository(db DB) *GiftRepository {
	return &GiftRepository{db: db}
}

// BehaviorSignals returns every behavioral row in load order for the
// search corpus.
func (r *GiftRepository) BehaviorSignals(ctx context.Context) ([]BehaviorSignal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_name, product_category, product_subcategory, brand,
			gift_persona, delivery_speed, rating, event_type
		FROM gift_recommender
		ORDER BY row_num
	`)
	if err != nil {
		return nil, fmt.Errorf("query behavior signals: %w", err)
	}
	defer rows.Close()

	var signals []BehaviorSignal
	for rows.Next() {
		var (
			name, category, subcategory, brand, persona, delivery, event sql.NullString
			rating                                                       sql.NullFloat64
		)
		if err := rows.Scan(&name, &category, &subcategory, &brand, &persona, &delivery, &rating, &event); err != nil {
			return nil, fmt.Errorf("scan behavior signal: %w", err)
		}
		signals = append(signals, BehaviorSignal{
			ProductName:        str(name),
			ProductCategory:    str(category),
			ProductSubcategory: str(subcategory),
			Brand:              str(brand),
			Persona:            str(persona),
			Delivery:           str(delivery),
			Rating:             floatPtr(rating),
			EventType:          str(event),
		})
	}
	return signals, rows.Err()
}

// CustomerSignals computes the customer's average order value and the most
// frequent persona, delivery speed and category in their history. Mode ties
// break by value ascending.
func (r *GiftRepository) CustomerSignals(ctx context.Context, customerID string) (*CustomerSignals, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT AVG(avg_order_value_user) FROM gift_recommender WHERE customer_id = $1`,
		customerID,
	).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("query average order value: %w", err)
	}

	signals := &CustomerSignals{AvgOrderValue: floatPtr(avg)}
	for column, dest := range map[string]*string{
		"gift_persona":     &signals.TopPersona,
		"delivery_speed":   &signals.TopDelivery,
		"product_category": &signals.TopCategory,
	} {
		value, err := r.mode(ctx, customerID, column)
		if err != nil {
			return nil, err
		}
		*dest = value
	}
	return signals, nil
}

func (r *GiftRepository) mode(ctx context.Context, customerID, column string) (string, error) {
	query := fmt.Sprintf(`
		SELECT %[1]s FROM gift_recommender
		WHERE customer_id = $1 AND %[1]s IS NOT NULL AND %[1]s <> ''
		GROUP BY %[1]s
		ORDER BY COUNT(*) DESC, %[1]s ASC
		LIMIT 1
	`, column)

	var value sql.NullString
	err := r.db.QueryRowContext(ctx, query, customerID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query top %s: %w", column, err)
	}
	return str(value), nil
}

const candidateGroupBy = `product_name, product_category, unit_price, gift_persona, delivery_speed`

// PersonalHistory returns the customer's own non-returned purchases grouped
// by product, most recent first.
func (r *GiftRepository) PersonalHistory(ctx context.Context, customerID string, limit int) ([]CandidateRow, error) {
	query := `
		SELECT product_name, product_category, unit_price, AVG(rating) AS rating,
			AVG(discount_pct) AS discount_pct, AVG(list_price) AS list_price,
			gift_persona, delivery_speed, MAX(event_ts) AS last_event
		FROM gift_recommender
		WHERE customer_id = $1
			AND (returned_flag = 'False' OR returned_flag IS NULL)
		GROUP BY ` + candidateGroupBy + `
		ORDER BY last_event DESC NULLS LAST, rating DESC NULLS LAST
		LIMIT $2
	`
	return r.queryCandidates(ctx, query, true, customerID, limit)
}

// CohortFilter narrows the cohort tier. Empty optional fields are not applied.
type CohortFilter struct {
	ExcludeCustomerID string
	LoyaltyTier       string
	AgeBand           string
	CountryCode       string
	Category          string
}

// Cohort returns rows from customers sharing the loyalty tier, optionally
// narrowed by age band, country and category, best rated first.
func (r *GiftRepository) Cohort(ctx context.Context, f CohortFilter, limit int) ([]CandidateRow, error) {
	var p placeholders
	query := `
		SELECT gr.product_name, gr.product_category, gr.unit_price, AVG(gr.rating) AS rating,
			AVG(gr.discount_pct) AS discount_pct, AVG(gr.list_price) AS list_price,
			gr.gift_persona, gr.delivery_speed
		FROM gift_recommender gr
		JOIN dim_customer dc ON gr.customer_id = dc.customer_id
		WHERE dc.loyalty_tier = ` + p.add(f.LoyaltyTier)
	if f.ExcludeCustomerID != "" {
		query += ` AND gr.customer_id <> ` + p.add(f.ExcludeCustomerID)
	}
	if f.AgeBand != "" {
		query += ` AND dc.age_band = ` + p.add(f.AgeBand)
	}
	if f.CountryCode != "" {
		query += ` AND dc.country_code = ` + p.add(f.CountryCode)
	}
	if f.Category != "" {
		query += ` AND gr.product_category = ` + p.add(f.Category)
	}
	query += `
		GROUP BY gr.product_name, gr.product_category, gr.unit_price, gr.gift_persona, gr.delivery_speed
		ORDER BY rating DESC NULLS LAST
		LIMIT ` + p.add(limit)

	return r.queryCandidates(ctx, query, false, p.args...)
}

// ByPersona returns rows for a gift persona, best rated first.
func (r *GiftRepository) ByPersona(ctx context.Context, persona string, limit int) ([]CandidateRow, error) {
	query := `
		SELECT product_name, product_category, unit_price, AVG(rating) AS rating,
			AVG(discount_pct) AS discount_pct, AVG(list_price) AS list_price,
			gift_persona, delivery_speed
		FROM gift_recommender
		WHERE gift_persona = $1
		GROUP BY ` + candidateGroupBy + `
		ORDER BY rating DESC NULLS LAST
		LIMIT $2
	`
	return r.queryCandidates(ctx, query, false, persona, limit)
}

// Global returns the best rated rows across all customers.
func (r *GiftRepository) Global(ctx context.Context, limit int) ([]CandidateRow, error) {
	query := `
		SELECT product_name, product_category, unit_price, AVG(rating) AS rating,
			AVG(discount_pct) AS discount_pct, AVG(list_price) AS list_price,
			gift_persona, delivery_speed
		FROM gift_recommender
		GROUP BY ` + candidateGroupBy + `
		ORDER BY rating DESC NULLS LAST
		LIMIT $1
	`
	return r.queryCandidates(ctx, query, false, limit)
}

func (r *GiftRepository) queryCandidates(ctx context.Context, query string, withLastEvent bool, args ...interface{}) ([]CandidateRow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []CandidateRow
	for rows.Next() {
		var (
			name, category, persona, delivery, lastEvent sql.NullString
			price, rating, discount, listPrice           sql.NullFloat64
		)
		dest := []interface{}{&name, &category, &price, &rating, &discount, &listPrice, &persona, &delivery}
		if withLastEvent {
			dest = append(dest, &lastEvent)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, CandidateRow{
			ProductName:     str(name),
			ProductCategory: str(category),
			UnitPrice:       floatPtr(price),
			Rating:          floatPtr(rating),
			DiscountPct:     floatPtr(discount),
			ListPrice:       floatPtr(listPrice),
			Persona:         str(persona),
			Delivery:        str(delivery),
			LastEvent:       str(lastEvent),
		})
	}
	return candidates, rows.Err()
}

// RecentEvents returns the customer's latest events, newest first.
func (r *GiftRepository) RecentEvents(ctx context.Context, customerID string, limit int) ([]GiftEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_type, product_name, gift_persona, delivery_speed, rating
		FROM gift_recommender
		WHERE customer_id = $1
		ORDER BY event_ts DESC NULLS LAST
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var events []GiftEvent
	for rows.Next() {
		var (
			eventType, name, persona, delivery sql.NullString
			rating                             sql.NullFloat64
		)
		if err := rows.Scan(&eventType, &name, &persona, &delivery, &rating); err != nil {
			return nil, fmt.Errorf("scan recent event: %w", err)
		}
		events = append(events, GiftEvent{
			EventType:   str(eventType),
			ProductName: str(name),
			Persona:     str(persona),
			Delivery:    str(delivery),
			Rating:      floatPtr(rating),
		})
	}
	return events, rows.Err()
}

// ConciergeMatches returns individual gifts within budget that match the
// persona and delivery speed exactly, best rated first.
func (r *GiftRepository) ConciergeMatches(ctx context.Context, budget float64, persona, delivery string, limit int) ([]ConciergeRow, error) {
	return r.queryConcierge(ctx, `
		SELECT product_name, product_category, unit_price, rating, delivery_speed
		FROM gift_recommender
		WHERE list_price <= $1 AND gift_persona = $2 AND delivery_speed = $3
		ORDER BY rating DESC NULLS LAST
		LIMIT $4
	`, budget, persona, delivery, limit)
}

// ConciergeWithinBudget returns grouped gifts within budget regardless of
// persona, best rated first.
func (r *GiftRepository) ConciergeWithinBudget(ctx context.Context, budget float64, limit int) ([]ConciergeRow, error) {
	return r.queryConcierge(ctx, `
		SELECT product_name, product_category, unit_price, AVG(rating) AS rating, delivery_speed
		FROM gift_recommender
		WHERE list_price <= $1
		GROUP BY product_name, product_category, unit_price, delivery_speed
		ORDER BY rating DESC NULLS LAST
		LIMIT $2
	`, budget, limit)
}

func (r *GiftRepository) queryConcierge(ctx context.Context, query string, args ...interface{}) ([]ConciergeRow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query concierge: %w", err)
	}
	defer rows.Close()

	var out []ConciergeRow
	for rows.Next() {
		var (
			name, category, delivery sql.NullString
			price, rating            sql.NullFloat64
		)
		if err := rows.Scan(&name, &category, &price, &rating, &delivery); err != nil {
			return nil, fmt.Errorf("scan concierge row: %w", err)
		}
		out = append(out, ConciergeRow{
			ProductName:     str(name),
			ProductCategory: str(category),
			UnitPrice:       floatPtr(price),
			Rating:          floatPtr(rating),
			Delivery:        str(delivery),
		})
	}
	return out, rows.Err()
}
