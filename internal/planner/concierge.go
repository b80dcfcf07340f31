package planner

import (
	"context"
	"fmt"

	"github.com/cupid-chocolate/giftlab/internal/generation"
	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// ConciergeRequest describes the gift being looked for.
type ConciergeRequest struct {
	Budget        float64 `json:"budget"`
	Persona       string  `json:"persona"`
	DeliverySpeed string  `json:"deliverySpeed"`
}

// PlanRequest adds the destination region to a concierge request.
type PlanRequest struct {
	ConciergeRequest
	Region string `json:"region,omitempty"`
}

// Step is one fixed stage of an experience plan.
type Step struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// PlanSteps are the stages every experience plan walks through.
var PlanSteps = []Step{
	{Title: "Select the gift", Detail: "Pick a top-rated gift that matches the recipient persona."},
	{Title: "Confirm inventory", Detail: "Check supply chain risk and stock levels before finalizing."},
	{Title: "Lock delivery", Detail: "Choose the delivery window and validate regional reliability."},
	{Title: "Personalize the moment", Detail: "Add a note and a follow-up touchpoint after delivery."},
}

// Plan is a complete Valentine experience plan.
type Plan struct {
	Recommendations []storage.ConciergeRow `json:"recommendations"`
	TopGift         string                 `json:"topGift,omitempty"`
	// RiskScore is nil when there is no top gift or it has no supply data.
	RiskScore *float64          `json:"riskScore"`
	Delivery  DeliveryMetrics   `json:"delivery"`
	Steps     []Step            `json:"steps"`
	Summary   generation.Result `json:"summary"`
}

// Concierge returns gifts within budget matching persona and delivery speed
// exactly, best rated first. When nothing matches it falls back to any gift
// within budget.
func (p *Planner) Concierge(ctx context.Context, req ConciergeRequest, limit int) ([]storage.ConciergeRow, error) {
	if limit <= 0 {
		limit = DefaultConciergeLimit
	}

	rows, err := p.gifts.ConciergeMatches(ctx, req.Budget, req.Persona, req.DeliverySpeed, limit)
	if err != nil {
		return nil, fmt.Errorf("concierge: %w", err)
	}
	if len(rows) > 0 {
		return rows, nil
	}

	p.logger.WithContext(ctx).Debug().
		Float64("budget", req.Budget).
		Str("persona", req.Persona).
		Str("delivery", req.DeliverySpeed).
		Msg("No exact concierge match, widening to budget")

	rows, err = p.gifts.ConciergeWithinBudget(ctx, req.Budget, limit)
	if err != nil {
		return nil, fmt.Errorf("concierge: %w", err)
	}
	if rows == nil {
		rows = []storage.ConciergeRow{}
	}
	return rows, nil
}

// ExperiencePlan picks the top gifts, checks supply risk for the best one and
// delivery reliability for the region, and writes a short summary.
func (p *Planner) ExperiencePlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	picks, err := p.Concierge(ctx, req.ConciergeRequest, PlanPicks)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Recommendations: picks, Steps: PlanSteps}
	if len(picks) > 0 {
		plan.TopGift = picks[0].ProductName
	}

	risks, err := p.RiskMap(ctx)
	if err != nil {
		return nil, err
	}
	if risk, ok := risks[plan.TopGift]; ok && plan.TopGift != "" {
		plan.RiskScore = &risk
	}

	plan.Delivery, err = p.Delivery(ctx, req.Region)
	if err != nil {
		return nil, err
	}

	plan.Summary = p.summarizer.Summary(ctx, generation.PlanDetails{
		Budget:        req.Budget,
		Persona:       req.Persona,
		DeliverySpeed: req.DeliverySpeed,
		Region:        req.Region,
		TopGift:       plan.TopGift,
	})
	return plan, nil
}
