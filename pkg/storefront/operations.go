package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cupid-chocolate/giftlab/internal/generation"
	"github.com/cupid-chocolate/giftlab/internal/match"
	"github.com/cupid-chocolate/giftlab/internal/planner"
	"github.com/cupid-chocolate/giftlab/internal/recommend"
	"github.com/cupid-chocolate/giftlab/internal/search"
	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// RecommendResult is a ranked, explained recommendation list.
type RecommendResult = recommend.Result

// Kind selects what GenerateText writes.
type Kind string

// Generation kinds.
const (
	KindReasons Kind = "reasons"
	KindSummary Kind = "summary"
	KindLetter  Kind = "letter"
	KindChat    Kind = "chat"
)

// ErrUnknownKind is returned by GenerateText for an unsupported kind.
var ErrUnknownKind = errors.New("unknown generation kind")

// GenerateInput carries the fields each kind reads.
type GenerateInput struct {
	// Reasons.
	Customer generation.ReasonCustomer `json:"customer"`
	Items    []generation.ReasonItem   `json:"items,omitempty"`
	// Summary.
	Plan generation.PlanDetails `json:"plan"`
	// Letter.
	CustomerID string `json:"customerId,omitempty"`
	Tone       string `json:"tone,omitempty"`
	// Chat.
	Question string              `json:"question,omitempty"`
	Filter   storage.SalesFilter `json:"filter"`
}

// Letter is a love letter together with the data it was written from.
type Letter struct {
	Customer *storage.Customer   `json:"customer"`
	Events   []storage.GiftEvent `json:"events"`
	Letter   generation.Result   `json:"letter"`
}

// SalesOverview is the sales dashboard.
type SalesOverview struct {
	Filter  storage.SalesFilter         `json:"filter"`
	Sales   *storage.SalesContext       `json:"sales"`
	Options *storage.SalesFilterOptions `json:"options"`
}

// Search returns the products most similar to query.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	return e.search.Search(ctx, query, limit)
}

// Recommend returns explained recommendations for a customer.
func (e *Engine) Recommend(ctx context.Context, customerID string, limit int) (*RecommendResult, error) {
	return e.recommender.Recommend(ctx, customerID, limit)
}

// GenerateText runs one generation kind. Reasons are returned one per line.
func (e *Engine) GenerateText(ctx context.Context, kind Kind, in GenerateInput) (generation.Result, error) {
	switch kind {
	case KindReasons:
		res := e.generator.Reasons(ctx, in.Customer, in.Items)
		return generation.Result{Text: strings.Join(res.Reasons, "\n"), Source: res.Source, Err: res.Err}, nil
	case KindSummary:
		return e.generator.Summary(ctx, in.Plan), nil
	case KindLetter:
		l, err := e.LoveLetter(ctx, in.CustomerID, in.Tone)
		if err != nil {
			return generation.Result{}, err
		}
		return l.Letter, nil
	case KindChat:
		return e.SalesChat(ctx, in.Question, in.Filter)
	default:
		return generation.Result{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// LoveLetter writes a letter for a customer from their profile and three
// most recent events. An unknown customer gets the not-found text.
func (e *Engine) LoveLetter(ctx context.Context, customerID, tone string) (*Letter, error) {
	customer, err := e.customers.GetByID(ctx, customerID)
	if errors.Is(err, storage.ErrNotFound) {
		customer, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("love letter: %w", err)
	}

	events, err := e.gifts.RecentEvents(ctx, customerID, LetterEvents)
	if err != nil {
		return nil, fmt.Errorf("love letter: %w", err)
	}
	if events == nil {
		events = []storage.GiftEvent{}
	}

	return &Letter{
		Customer: customer,
		Events:   events,
		Letter:   e.generator.Letter(ctx, customer, events, tone),
	}, nil
}

// ExperiencePlan builds a Valentine experience plan.
func (e *Engine) ExperiencePlan(ctx context.Context, req planner.PlanRequest) (*planner.Plan, error) {
	return e.planner.ExperiencePlan(ctx, req)
}

// Concierge finds gifts within a budget.
func (e *Engine) Concierge(ctx context.Context, req planner.ConciergeRequest, limit int) ([]storage.ConciergeRow, error) {
	return e.planner.Concierge(ctx, req, limit)
}

// SupplyChainAlerts returns the riskiest supply rows.
func (e *Engine) SupplyChainAlerts(ctx context.Context, limit int) ([]planner.Alert, error) {
	return e.planner.SupplyChainAlerts(ctx, limit)
}

// Quote prices an order line. It returns nil for an unknown product.
func (e *Engine) Quote(ctx context.Context, productID string, quantity int, loyaltyTier string) (*planner.Quote, error) {
	return e.planner.Quote(ctx, productID, quantity, loyaltyTier)
}

// SalesChat answers a question about the filtered sales figures.
func (e *Engine) SalesChat(ctx context.Context, question string, f storage.SalesFilter) (generation.Result, error) {
	if strings.TrimSpace(question) == "" {
		return e.generator.Chat(ctx, question, nil), nil
	}
	sc, err := e.sales.Context(ctx, f)
	if err != nil {
		return generation.Result{}, fmt.Errorf("sales chat: %w", err)
	}
	return e.generator.Chat(ctx, question, sc), nil
}

// SalesOverview returns the filtered sales aggregates and the values each
// filter accepts.
func (e *Engine) SalesOverview(ctx context.Context, f storage.SalesFilter) (*SalesOverview, error) {
	sc, err := e.sales.Context(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("sales overview: %w", err)
	}
	opts, err := e.sales.FilterOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("sales overview: %w", err)
	}
	return &SalesOverview{Filter: f, Sales: sc, Options: opts}, nil
}

// LoveMetrics returns the global delivery dashboard.
func (e *Engine) LoveMetrics(ctx context.Context) (*planner.LoveMetrics, error) {
	return e.planner.LoveMetrics(ctx)
}

// Customers lists customers by id.
func (e *Engine) Customers(ctx context.Context, limit int) ([]storage.Customer, error) {
	return e.customers.List(ctx, orDefault(limit, DefaultListLimit))
}

// Products lists products by id.
func (e *Engine) Products(ctx context.Context, limit int) ([]storage.Product, error) {
	return e.products.List(ctx, orDefault(limit, DefaultListLimit))
}

// Regions lists routing regions alphabetically.
func (e *Engine) Regions(ctx context.Context, limit int) ([]string, error) {
	return e.logistics.Regions(ctx, orDefault(limit, DefaultListLimit))
}

// MatchProfiles lists matchmaking profiles by user id.
func (e *Engine) MatchProfiles(ctx context.Context, limit int) ([]storage.MatchProfile, error) {
	return e.matcher.Profiles(ctx, orDefault(limit, DefaultListLimit))
}

// Compatibility scores two matchmaking users. It returns nil when either
// user is unknown.
func (e *Engine) Compatibility(ctx context.Context, userA, userB string) (*match.Result, error) {
	return e.matcher.Compatibility(ctx, userA, userB)
}

// AnalyticsOverview returns row counts per table and gift averages.
func (e *Engine) AnalyticsOverview(ctx context.Context) (*storage.AnalyticsOverview, error) {
	overview, err := e.analytics.Overview(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics overview: %w", err)
	}
	return overview, nil
}
