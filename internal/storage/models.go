// Package storage provides database models and repositories for giftlab.
package storage

// Product is a row of the product master (dim_product).
type Product struct {
	ProductID   string   `json:"productId"`
	ProductName string   `json:"productName"`
	Brand       string   `json:"brand,omitempty"`
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	Flavor      string   `json:"flavor,omitempty"`
	UnitPrice   *float64 `json:"unitPrice,omitempty"`
}

// BehaviorSignal is the subset of a gift_recommender event used to describe
// a product in the search corpus.
type BehaviorSignal struct {
	ProductName        string
	ProductCategory    string
	ProductSubcategory string
	Brand              string
	Persona            string
	Delivery           string
	Rating             *float64
	EventType          string
}

// CandidateRow is one grouped gift_recommender row returned by a
// recommendation retrieval tier.
type CandidateRow struct {
	ProductName     string   `json:"productName"`
	ProductCategory string   `json:"productCategory"`
	UnitPrice       *float64 `json:"unitPrice,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	DiscountPct     *float64 `json:"discountPct,omitempty"`
	ListPrice       *float64 `json:"listPrice,omitempty"`
	Persona         string   `json:"persona,omitempty"`
	Delivery        string   `json:"delivery,omitempty"`
	LastEvent       string   `json:"lastEvent,omitempty"`
}

// Customer is a row of dim_customer.
type Customer struct {
	CustomerID        string `json:"customerId"`
	FirstName         string `json:"firstName,omitempty"`
	LastName          string `json:"lastName,omitempty"`
	City              string `json:"city,omitempty"`
	StateProvince     string `json:"stateProvince,omitempty"`
	CountryCode       string `json:"countryCode,omitempty"`
	AgeBand           string `json:"ageBand,omitempty"`
	PreferredLanguage string `json:"preferredLanguage,omitempty"`
	LoyaltyTier       string `json:"loyaltyTier,omitempty"`
	ConsentMarketing  string `json:"consentMarketing,omitempty"`
}

// CustomerSignals summarises a customer's own gifting history.
// Empty strings and nil pointers mean the customer has no such signal.
type CustomerSignals struct {
	AvgOrderValue *float64
	TopPersona    string
	TopDelivery   string
	TopCategory   string
}

// GiftEvent is a recent gift_recommender event for a customer.
type GiftEvent struct {
	EventType   string   `json:"eventType,omitempty"`
	ProductName string   `json:"productName,omitempty"`
	Persona     string   `json:"persona,omitempty"`
	Delivery    string   `json:"delivery,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
}

// ConciergeRow is a gift matching a budget search.
type ConciergeRow struct {
	ProductName     string   `json:"productName"`
	ProductCategory string   `json:"productCategory"`
	UnitPrice       *float64 `json:"unitPrice,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	Delivery        string   `json:"delivery,omitempty"`
}

// SupplyRow joins supply_chain with the product name.
type SupplyRow struct {
	ProductID    string  `json:"productId"`
	ProductName  string  `json:"productName"`
	LeadTimeDays float64 `json:"leadTimeDays"`
	StockLevel   float64 `json:"stockLevel"`
	DelayReason  string  `json:"delayReason"`
	Region       string  `json:"region,omitempty"`
	CostPerUnit  float64 `json:"costPerUnit"`
}

// RoutingRow is a row of global_routing.
type RoutingRow struct {
	Region             string  `json:"region"`
	RequestCountPerMin float64 `json:"requestCountPerMin"`
	P95LatencyMs       float64 `json:"p95LatencyMs"`
	FailureRate        float64 `json:"failureRate"`
}

// RegionDelivery aggregates love_notes_telemetry for one destination region.
type RegionDelivery struct {
	Region      string  `json:"region"`
	AvgLatency  float64 `json:"avgLatencyMs"`
	SuccessRate float64 `json:"successRate"`
}

// SalesFilter narrows the sales aggregates. Empty fields do not filter.
type SalesFilter struct {
	Category string `json:"category,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Country  string `json:"country,omitempty"`
	Month    string `json:"month,omitempty"` // YYYY-MM
}

// SalesSummary holds the overall sales figures.
type SalesSummary struct {
	Orders   int     `json:"orders"`
	Revenue  float64 `json:"revenue"`
	Profit   float64 `json:"profit"`
	AvgOrder float64 `json:"avgOrder"`
}

// RevenueRow is a revenue aggregate keyed by one dimension value.
type RevenueRow struct {
	Key     string  `json:"key"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
	Units   float64 `json:"units,omitempty"`
}

// SalesContext bundles the precomputed aggregates the sales assistant reads.
type SalesContext struct {
	Summary     SalesSummary `json:"summary"`
	ByCategory  []RevenueRow `json:"byCategory"`
	TopProducts []RevenueRow `json:"topProducts"`
	ByChannel   []RevenueRow `json:"byChannel"`
	ByCountry   []RevenueRow `json:"byCountry"`
	ByMonth     []RevenueRow `json:"byMonth"` // chronological
	ByPromotion []RevenueRow `json:"byPromotion"`
	ByLoyalty   []RevenueRow `json:"byLoyalty"`
}

// SalesFilterOptions lists the distinct values each sales filter accepts.
type SalesFilterOptions struct {
	Categories []string `json:"categories"`
	Channels   []string `json:"channels"`
	Countries  []string `json:"countries"`
	Months     []string `json:"months"`
}

// MatchProfile is a row of the matchmaking dataset. Personality traits are
// on a 0 to 1 scale; Interests is a comma separated list.
type MatchProfile struct {
	UserID            string   `json:"userId"`
	Age               *int     `json:"age,omitempty"`
	LocationRegion    string   `json:"locationRegion,omitempty"`
	Openness          *float64 `json:"openness,omitempty"`
	Conscientiousness *float64 `json:"conscientiousness,omitempty"`
	Extraversion      *float64 `json:"extraversion,omitempty"`
	Agreeableness     *float64 `json:"agreeableness,omitempty"`
	Neuroticism       *float64 `json:"neuroticism,omitempty"`
	Interests         string   `json:"interests,omitempty"`
}

// TableCount is the number of rows in one storefront table.
type TableCount struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

// AnalyticsOverview is the data inventory dashboard: row counts per table
// and gift_recommender averages. Averages are nil when there are no rows.
type AnalyticsOverview struct {
	Tables      []TableCount `json:"tables"`
	AvgRating   *float64     `json:"avgRating"`
	AvgDiscount *float64     `json:"avgDiscount"`
	AvgPrice    *float64     `json:"avgPrice"`
}
