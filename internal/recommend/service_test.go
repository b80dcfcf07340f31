package recommend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cupid-chocolate/giftlab/internal/generation"
	"github.com/cupid-chocolate/giftlab/internal/recommend"
	"github.com/cupid-chocolate/giftlab/internal/storage"
	"github.com/cupid-chocolate/giftlab/internal/storage/storagetest"
)

// stubExplainer returns canned reasons and records what it was asked.
type stubExplainer struct {
	reasons  []string
	source   generation.Source
	err      string
	customer generation.ReasonCustomer
	items    []generation.ReasonItem
}

func (s *stubExplainer) Reasons(_ context.Context, customer generation.ReasonCustomer, items []generation.ReasonItem) generation.ReasonsResult {
	s.customer, s.items = customer, items
	return generation.ReasonsResult{Reasons: s.reasons, Source: s.source, Err: s.err}
}

func newService(t *testing.T, seeded bool, explainer recommend.Explainer) *recommend.Service {
	t.Helper()
	var db storage.DB
	if seeded {
		db = storagetest.NewSeededDB(t)
	} else {
		db = storagetest.NewDB(t)
	}
	chain := recommend.NewTierChain(storage.NewGiftRepository(db), storage.NewCustomerRepository(db), nil)
	scorer := recommend.NewScorer(recommend.DefaultScorerConfig())
	return recommend.NewService(chain, scorer, explainer, 0, nil)
}

func TestService_RecommendHeuristic(t *testing.T) {
	gen := generation.NewGenerator(generation.NewClient(generation.ClientConfig{}), nil)
	svc := newService(t, true, gen)

	res, err := svc.Recommend(context.Background(), "C001", 5)
	require.NoError(t, err)
	assert.Equal(t, "C001", res.CustomerID)
	assert.Equal(t, recommend.TierPersonal, res.Tier)
	assert.Equal(t, generation.SourceHeuristic, res.ExplanationSource)
	assert.Empty(t, res.ExplanationError)

	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, "Dark Truffle", res.Recommendations[0].ProductName)
	for _, r := range res.Recommendations {
		assert.NotEmpty(t, r.Why)
		assert.Equal(t, generation.SourceHeuristic, r.Source)
		assert.Equal(t, recommend.TierPersonal, r.Tier)
		assert.GreaterOrEqual(t, r.AIRating, 0.0)
		assert.LessOrEqual(t, r.AIRating, 5.0)
	}
	assert.Equal(t, "High rating (4.8), popular for romantic gifts, supports express delivery.",
		res.Recommendations[0].Why)
}

func TestService_PassesProfileAndItems(t *testing.T) {
	stub := &stubExplainer{reasons: []string{"one", "two", "three"}, source: generation.SourceLLM}
	svc := newService(t, true, stub)

	res, err := svc.Recommend(context.Background(), "C005", 2)
	require.NoError(t, err)
	assert.Equal(t, recommend.TierCohort, res.Tier)
	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, "one", res.Recommendations[0].Why)
	assert.Equal(t, "two", res.Recommendations[1].Why)
	assert.Equal(t, generation.SourceLLM, res.ExplanationSource)
	for _, r := range res.Recommendations {
		assert.Equal(t, generation.SourceLLM, r.Source)
	}

	assert.Equal(t, generation.ReasonCustomer{LoyaltyTier: "Gold", PreferredLanguage: "en"}, stub.customer)
	require.Len(t, stub.items, 2)
	assert.Equal(t, res.Recommendations[0].ProductName, stub.items[0].ProductName)
	assert.Equal(t, res.Recommendations[0].ProductCategory, stub.items[0].Category)
}

func TestService_ExplanationFailureIsReported(t *testing.T) {
	stub := &stubExplainer{source: generation.SourceHeuristic, err: "HTTP 503: Service Unavailable"}
	svc := newService(t, true, stub)

	res, err := svc.Recommend(context.Background(), "C999", 3)
	require.NoError(t, err)
	assert.Equal(t, recommend.TierGlobal, res.Tier)
	assert.Len(t, res.Recommendations, 3)
	assert.Equal(t, "HTTP 503: Service Unavailable", res.ExplanationError)
	for _, r := range res.Recommendations {
		assert.Empty(t, r.Why)
	}
	assert.Equal(t, generation.ReasonCustomer{}, stub.customer)
}

func TestService_EmptyData(t *testing.T) {
	gen := generation.NewGenerator(generation.NewClient(generation.ClientConfig{}), nil)
	svc := newService(t, false, gen)

	res, err := svc.Recommend(context.Background(), "C001", 0)
	require.NoError(t, err)
	assert.Equal(t, recommend.TierNone, res.Tier)
	assert.NotNil(t, res.Recommendations)
	assert.Empty(t, res.Recommendations)
}

func TestService_DefaultLimit(t *testing.T) {
	stub := &stubExplainer{source: generation.SourceHeuristic}
	svc := newService(t, true, stub)

	res, err := svc.Recommend(context.Background(), "C004", 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Recommendations), recommend.DefaultLimit)
	assert.NotEmpty(t, res.Recommendations)
}
