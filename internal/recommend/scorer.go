package recommend

import (
	"math"
	"sort"

	"github.com/cupid-chocolate/giftlab/internal/config"
	"github.com/cupid-chocolate/giftlab/internal/generation"
	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// Neutral values used when a signal is missing or carries no spread.
const (
	neutralRating   = 0.5
	neutralDiscount = 0.2
	neutralPrice    = 0.5
	personaHit      = 1.0
	personaMiss     = 0.4
	deliveryHit     = 1.0
	deliveryMiss    = 0.5
)

// Recommendation is a scored candidate.
type Recommendation struct {
	Candidate
	AIRating float64 `json:"aiRating"`
	Why      string  `json:"why,omitempty"`
	// Source tells whether Why was generated or templated.
	Source generation.Source `json:"source,omitempty"`
}

// ScorerConfig holds the blend weights.
type ScorerConfig struct {
	Rating   float64
	Discount float64
	Price    float64
	Persona  float64
	Delivery float64
}

// DefaultScorerConfig returns the standard weights.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{Rating: 0.45, Discount: 0.20, Price: 0.20, Persona: 0.10, Delivery: 0.05}
}

// ScorerConfigFrom converts configured weights.
func ScorerConfigFrom(w config.WeightsConfig) ScorerConfig {
	return ScorerConfig{Rating: w.Rating, Discount: w.Discount, Price: w.Price, Persona: w.Persona, Delivery: w.Delivery}
}

// Scorer ranks candidates for one customer.
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer creates a scorer with cfg.
func NewScorer(cfg ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// span is the observed range of one signal, with defaults for empty sets.
type span struct {
	min, max float64
}

func spanOf(values []*float64, lo, hi float64) span {
	s := span{min: math.Inf(1), max: math.Inf(-1)}
	seen := false
	for _, v := range values {
		if v == nil {
			continue
		}
		seen = true
		s.min = math.Min(s.min, *v)
		s.max = math.Max(s.max, *v)
	}
	if !seen {
		return span{min: lo, max: hi}
	}
	return s
}

// norm min-max normalises v, or returns fallback when v is missing or the
// span is flat.
func (s span) norm(v *float64, fallback float64) float64 {
	if v == nil || s.max == s.min {
		return fallback
	}
	return (*v - s.min) / (s.max - s.min)
}

// Score rates every candidate, drops repeated (name, category) pairs keeping
// the first, and returns the best limit by ai rating. Ties keep input order.
func (s *Scorer) Score(candidates []Candidate, signals storage.CustomerSignals, limit int) []Recommendation {
	ratings := make([]*float64, len(candidates))
	discounts := make([]*float64, len(candidates))
	prices := make([]*float64, len(candidates))
	for i, c := range candidates {
		ratings[i], discounts[i], prices[i] = c.Rating, c.DiscountPct, c.UnitPrice
	}
	ratingSpan := spanOf(ratings, 0, 5)
	discountSpan := spanOf(discounts, 0, 50)
	priceSpan := spanOf(prices, 0, 1)

	var target float64
	if signals.AvgOrderValue != nil {
		target = *signals.AvgOrderValue
	}

	type key struct{ name, category string }
	seen := make(map[key]struct{}, len(candidates))

	out := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		if c.ProductName != "" {
			k := key{c.ProductName, c.ProductCategory}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}

		var priceFit float64
		switch {
		case target != 0 && c.UnitPrice != nil && *c.UnitPrice != 0:
			priceFit = 1 - math.Min(math.Abs(*c.UnitPrice-target)/target, 1)
		case c.UnitPrice == nil || priceSpan.max == priceSpan.min:
			priceFit = neutralPrice
		default:
			// Cheaper is better without a target.
			priceFit = 1 - priceSpan.norm(c.UnitPrice, 0)
		}

		personaMatch := personaMiss
		if c.Persona != "" && c.Persona == signals.TopPersona {
			personaMatch = personaHit
		}
		deliveryMatch := deliveryMiss
		if c.Delivery != "" && c.Delivery == signals.TopDelivery {
			deliveryMatch = deliveryHit
		}

		score := s.cfg.Rating*ratingSpan.norm(c.Rating, neutralRating) +
			s.cfg.Discount*discountSpan.norm(c.DiscountPct, neutralDiscount) +
			s.cfg.Price*priceFit +
			s.cfg.Persona*personaMatch +
			s.cfg.Delivery*deliveryMatch

		out = append(out, Recommendation{Candidate: c, AIRating: round2(score * 5)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AIRating > out[j].AIRating
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
