// Package recommend retrieves candidate gifts for a customer through a chain
// of increasingly generic tiers, scores them and attaches short reasons.
package recommend

import (
	"context"
	"errors"
	"fmt"

	"github.com/cupid-chocolate/giftlab/internal/observability"
	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// Tier names the retrieval step that produced a candidate set.
type Tier string

// Tiers in the order they are tried.
const (
	TierPersonal Tier = "personal"
	TierCohort   Tier = "cohort"
	TierPersona  Tier = "persona"
	TierGlobal   Tier = "global"
	// TierNone is reported when every tier came back empty.
	TierNone Tier = "none"
)

// Candidate is one recommendable product for a customer.
type Candidate struct {
	ProductName     string   `json:"productName"`
	ProductCategory string   `json:"productCategory"`
	UnitPrice       *float64 `json:"unitPrice,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	DiscountPct     *float64 `json:"discountPct,omitempty"`
	ListPrice       *float64 `json:"listPrice,omitempty"`
	Persona         string   `json:"persona,omitempty"`
	Delivery        string   `json:"delivery,omitempty"`
	LastEvent       string   `json:"lastEvent,omitempty"`
	Tier            Tier     `json:"tier"`
}

// GiftStore is the behavioral data the tiers query.
type GiftStore interface {
	CustomerSignals(ctx context.Context, customerID string) (*storage.CustomerSignals, error)
	PersonalHistory(ctx context.Context, customerID string, limit int) ([]storage.CandidateRow, error)
	Cohort(ctx context.Context, f storage.CohortFilter, limit int) ([]storage.CandidateRow, error)
	ByPersona(ctx context.Context, persona string, limit int) ([]storage.CandidateRow, error)
	Global(ctx context.Context, limit int) ([]storage.CandidateRow, error)
}

// CustomerStore looks up customer profiles.
type CustomerStore interface {
	GetByID(ctx context.Context, customerID string) (*storage.Customer, error)
}

// Retrieval is the outcome of running the tier chain.
type Retrieval struct {
	Tier       Tier
	Candidates []Candidate
	Signals    storage.CustomerSignals
	// Customer is nil when no profile exists.
	Customer *storage.Customer
}

// TierChain runs personal, cohort, persona and global retrieval in order and
// stops at the first tier that yields rows.
type TierChain struct {
	gifts     GiftStore
	customers CustomerStore
	logger    *observability.Logger
}

// NewTierChain creates a tier chain.
func NewTierChain(gifts GiftStore, customers CustomerStore, logger *observability.Logger) *TierChain {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &TierChain{gifts: gifts, customers: customers, logger: logger}
}

// Retrieve returns up to limit candidates for customerID.
func (c *TierChain) Retrieve(ctx context.Context, customerID string, limit int) (*Retrieval, error) {
	signals, err := c.gifts.CustomerSignals(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("customer signals: %w", err)
	}

	customer, err := c.customers.GetByID(ctx, customerID)
	if errors.Is(err, storage.ErrNotFound) {
		customer, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("customer profile: %w", err)
	}

	out := &Retrieval{Tier: TierNone, Signals: *signals, Customer: customer}

	type step struct {
		tier Tier
		run  func() ([]storage.CandidateRow, error)
	}
	steps := []step{
		{TierPersonal, func() ([]storage.CandidateRow, error) {
			return c.gifts.PersonalHistory(ctx, customerID, limit)
		}},
	}
	if customer != nil && customer.LoyaltyTier != "" {
		filter := storage.CohortFilter{
			ExcludeCustomerID: customerID,
			LoyaltyTier:       customer.LoyaltyTier,
			AgeBand:           customer.AgeBand,
			CountryCode:       customer.CountryCode,
			Category:          signals.TopCategory,
		}
		steps = append(steps, step{TierCohort, func() ([]storage.CandidateRow, error) {
			return c.gifts.Cohort(ctx, filter, limit)
		}})
	}
	if signals.TopPersona != "" {
		steps = append(steps, step{TierPersona, func() ([]storage.CandidateRow, error) {
			return c.gifts.ByPersona(ctx, signals.TopPersona, limit)
		}})
	}
	steps = append(steps, step{TierGlobal, func() ([]storage.CandidateRow, error) {
		return c.gifts.Global(ctx, limit)
	}})

	for _, s := range steps {
		rows, err := s.run()
		if err != nil {
			return nil, fmt.Errorf("%s tier: %w", s.tier, err)
		}
		if len(rows) == 0 {
			continue
		}
		out.Tier = s.tier
		out.Candidates = toCandidates(rows, s.tier)
		break
	}

	c.logger.WithContext(ctx).Debug().
		Str("customer_id", customerID).
		Str("tier", string(out.Tier)).
		Int("candidates", len(out.Candidates)).
		Msg("Candidates retrieved")
	return out, nil
}

func toCandidates(rows []storage.CandidateRow, tier Tier) []Candidate {
	out := make([]Candidate, len(rows))
	for i, r := range rows {
		out[i] = Candidate{
			ProductName:     r.ProductName,
			ProductCategory: r.ProductCategory,
			UnitPrice:       r.UnitPrice,
			Rating:          r.Rating,
			DiscountPct:     r.DiscountPct,
			ListPrice:       r.ListPrice,
			Persona:         r.Persona,
			Delivery:        r.Delivery,
			LastEvent:       r.LastEvent,
			Tier:            tier,
		}
	}
	return out
}
