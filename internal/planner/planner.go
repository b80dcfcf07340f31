// Package planner answers the storefront's operational questions: which gift
// fits a budget, how risky its supply is, how reliable delivery to a region
// looks, and what an order costs after loyalty discounts.
package planner

import (
	"context"
	"math"

	"github.com/cupid-chocolate/giftlab/internal/generation"
	"github.com/cupid-chocolate/giftlab/internal/observability"
	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// Default limits.
const (
	DefaultConciergeLimit = 5
	PlanPicks             = 3
	DefaultAlertLimit     = 10
	RiskiestRouteLimit    = 5
)

// GiftStore finds gifts within a budget.
type GiftStore interface {
	ConciergeMatches(ctx context.Context, budget float64, persona, delivery string, limit int) ([]storage.ConciergeRow, error)
	ConciergeWithinBudget(ctx context.Context, budget float64, limit int) ([]storage.ConciergeRow, error)
}

// LogisticsStore reads supply and delivery data.
type LogisticsStore interface {
	SupplyChain(ctx context.Context) ([]storage.SupplyRow, error)
	Routing(ctx context.Context, region string) (*storage.RoutingRow, error)
	SuccessRate(ctx context.Context, region string) (*float64, error)
	DeliveryByRegion(ctx context.Context) ([]storage.RegionDelivery, error)
	RiskiestRoutes(ctx context.Context, limit int) ([]storage.RoutingRow, error)
}

// ProductStore looks up products by id.
type ProductStore interface {
	GetByID(ctx context.Context, productID string) (*storage.Product, error)
}

// Summarizer writes the short plan summary.
type Summarizer interface {
	Summary(ctx context.Context, d generation.PlanDetails) generation.Result
}

// Planner serves concierge, plan, risk, delivery and quote requests.
type Planner struct {
	gifts      GiftStore
	logistics  LogisticsStore
	products   ProductStore
	summarizer Summarizer
	logger     *observability.Logger
}

// New creates a planner.
func New(gifts GiftStore, logistics LogisticsStore, products ProductStore, summarizer Summarizer, logger *observability.Logger) *Planner {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Planner{
		gifts:      gifts,
		logistics:  logistics,
		products:   products,
		summarizer: summarizer,
		logger:     logger.WithComponent("planner"),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
