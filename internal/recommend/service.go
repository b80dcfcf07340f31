package recommend

import (
	"context"

	"github.com/cupid-chocolate/giftlab/internal/generation"
	"github.com/cupid-chocolate/giftlab/internal/observability"
)

// DefaultLimit is used when a request asks for zero or fewer results.
const DefaultLimit = 5

// Result is a ranked, explained recommendation list.
type Result struct {
	CustomerID        string            `json:"customerId"`
	Tier              Tier              `json:"tier"`
	Recommendations   []Recommendation  `json:"recommendations"`
	ExplanationSource generation.Source `json:"explanationSource"`
	ExplanationError  string            `json:"explanationError,omitempty"`
}

// Explainer writes one reason per recommendation.
type Explainer interface {
	Reasons(ctx context.Context, customer generation.ReasonCustomer, items []generation.ReasonItem) generation.ReasonsResult
}

// Service combines retrieval, scoring and explanation.
type Service struct {
	chain        *TierChain
	scorer       *Scorer
	explainer    Explainer
	defaultLimit int
	logger       *observability.Logger
}

// NewService creates a recommendation service.
func NewService(chain *TierChain, scorer *Scorer, explainer Explainer, defaultLimit int, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Service{
		chain:        chain,
		scorer:       scorer,
		explainer:    explainer,
		defaultLimit: defaultLimit,
		logger:       logger.WithComponent("recommend"),
	}
}

// Recommend returns up to limit explained recommendations for customerID.
// A customer with no data anywhere gets an empty list, not an error.
func (s *Service) Recommend(ctx context.Context, customerID string, limit int) (*Result, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}

	retrieval, err := s.chain.Retrieve(ctx, customerID, limit)
	if err != nil {
		return nil, err
	}

	recs := s.scorer.Score(retrieval.Candidates, retrieval.Signals, limit)

	var customer generation.ReasonCustomer
	if retrieval.Customer != nil {
		customer = generation.ReasonCustomer{
			LoyaltyTier:       retrieval.Customer.LoyaltyTier,
			PreferredLanguage: retrieval.Customer.PreferredLanguage,
		}
	}
	items := make([]generation.ReasonItem, len(recs))
	for i, r := range recs {
		items[i] = generation.ReasonItem{
			ProductName: r.ProductName,
			Category:    r.ProductCategory,
			Price:       r.UnitPrice,
			Rating:      r.Rating,
			Persona:     r.Persona,
			Delivery:    r.Delivery,
		}
	}

	reasons := s.explainer.Reasons(ctx, customer, items)
	for i := range recs {
		if i < len(reasons.Reasons) {
			recs[i].Why = reasons.Reasons[i]
		}
		recs[i].Source = reasons.Source
	}

	s.logger.WithContext(ctx).Debug().
		Str("customer_id", customerID).
		Str("tier", string(retrieval.Tier)).
		Int("recommendations", len(recs)).
		Str("explanation_source", string(reasons.Source)).
		Msg("Recommendations ready")

	return &Result{
		CustomerID:        customerID,
		Tier:              retrieval.Tier,
		Recommendations:   recs,
		ExplanationSource: reasons.Source,
		ExplanationError:  reasons.Err,
	}, nil
}
