package storefront_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cupid-chocolate/giftlab/internal/config"
	"github.com/cupid-chocolate/giftlab/internal/generation"
	"github.com/cupid-chocolate/giftlab/internal/planner"
	"github.com/cupid-chocolate/giftlab/internal/recommend"
	"github.com/cupid-chocolate/giftlab/internal/storage"
	"github.com/cupid-chocolate/giftlab/internal/storage/storagetest"
	"github.com/cupid-chocolate/giftlab/pkg/storefront"
)

func newEngine(t *testing.T, db *sql.DB, cfg *config.Config) *storefront.Engine {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	e, err := storefront.New(context.Background(), cfg, storefront.WithDB(db))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngine_SearchAndRecommend(t *testing.T) {
	e := newEngine(t, storagetest.NewSeededDB(t), nil)
	ctx := context.Background()

	hits, err := e.Search(ctx, "raspberry", 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "P001", hits[0].Record.ProductID)

	res, err := e.Recommend(ctx, "C001", 5)
	require.NoError(t, err)
	assert.Equal(t, recommend.TierPersonal, res.Tier)
	assert.Equal(t, generation.SourceHeuristic, res.ExplanationSource)
	require.NotEmpty(t, res.Recommendations)
	assert.Equal(t, "Dark Truffle", res.Recommendations[0].ProductName)
}

func TestEngine_EmptyDatabase(t *testing.T) {
	e := newEngine(t, storagetest.NewDB(t), nil)
	ctx := context.Background()

	hits, err := e.Search(ctx, "chocolate", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	res, err := e.Recommend(ctx, "C001", 5)
	require.NoError(t, err)
	assert.Equal(t, recommend.TierNone, res.Tier)
	assert.Empty(t, res.Recommendations)

	alerts, err := e.SupplyChainAlerts(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEngine_InvalidateIndex(t *testing.T) {
	db := storagetest.NewSeededDB(t)
	e := newEngine(t, db, nil)
	ctx := context.Background()

	hits, err := e.Search(ctx, "hazelnut", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	storagetest.Seed(t, db, map[string]string{
		"dim_product": "product_id,product_name,brand,category,subcategory,flavor,unit_price\n" +
			"P010,Praline Crunch,Cupid,Pralines,Milk,Hazelnut,9\n",
	})

	// The cached index still reflects the old catalog.
	hits, err = e.Search(ctx, "hazelnut", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	e.InvalidateIndex()
	hits, err = e.Search(ctx, "hazelnut", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "P010", hits[0].Record.ProductID)
}

func TestEngine_GenerateText(t *testing.T) {
	e := newEngine(t, storagetest.NewSeededDB(t), nil)
	ctx := context.Background()
	assert.False(t, e.RemoteGeneration())

	res, err := e.GenerateText(ctx, storefront.KindReasons, storefront.GenerateInput{
		Items: []generation.ReasonItem{{ProductName: "A"}, {ProductName: "B"}},
	})
	require.NoError(t, err)
	assert.Equal(t, generation.SourceHeuristic, res.Source)
	assert.Len(t, strings.Split(res.Text, "\n"), 2)

	res, err = e.GenerateText(ctx, storefront.KindSummary, storefront.GenerateInput{})
	require.NoError(t, err)
	assert.Equal(t, generation.HeuristicSummary(generation.PlanDetails{}), res.Text)

	res, err = e.GenerateText(ctx, storefront.KindLetter, storefront.GenerateInput{CustomerID: "C001"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Text, "Dear Ava,"))

	res, err = e.GenerateText(ctx, storefront.KindChat, storefront.GenerateInput{Question: "top products"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Text, "Top products by revenue"))

	_, err = e.GenerateText(ctx, storefront.Kind("poem"), storefront.GenerateInput{})
	assert.ErrorIs(t, err, storefront.ErrUnknownKind)
}

func TestEngine_LoveLetter(t *testing.T) {
	e := newEngine(t, storagetest.NewSeededDB(t), nil)
	ctx := context.Background()

	l, err := e.LoveLetter(ctx, "C001", "")
	require.NoError(t, err)
	require.NotNil(t, l.Customer)
	assert.Equal(t, "Ava", l.Customer.FirstName)
	require.Len(t, l.Events, 3)
	assert.Equal(t, "White Bouquet", l.Events[0].ProductName)
	assert.Equal(t, generation.SourceHeuristic, l.Letter.Source)

	l, err = e.LoveLetter(ctx, "C999", "")
	require.NoError(t, err)
	assert.Nil(t, l.Customer)
	assert.Empty(t, l.Events)
	assert.Equal(t, generation.CustomerNotFoundText, l.Letter.Text)
}

func TestEngine_Sales(t *testing.T) {
	e := newEngine(t, storagetest.NewSeededDB(t), nil)
	ctx := context.Background()

	o, err := e.SalesOverview(ctx, storage.SalesFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, o.Sales.Summary.Orders)
	assert.InDelta(t, 174.0, o.Sales.Summary.Revenue, 1e-9)
	assert.Equal(t, []string{"online", "retail"}, o.Options.Channels)

	o, err = e.SalesOverview(ctx, storage.SalesFilter{Channel: "retail"})
	require.NoError(t, err)
	assert.Equal(t, 2, o.Sales.Summary.Orders)

	res, err := e.SalesChat(ctx, " ", storage.SalesFilter{})
	require.NoError(t, err)
	assert.Equal(t, generation.EmptyQuestionText, res.Text)

	res, err = e.SalesChat(ctx, "how are we doing", storage.SalesFilter{})
	require.NoError(t, err)
	assert.Equal(t, "Overall revenue is 174.00 with profit 95.00.", res.Text)
}

func TestEngine_PlannerAndListings(t *testing.T) {
	e := newEngine(t, storagetest.NewSeededDB(t), nil)
	ctx := context.Background()

	picks, err := e.Concierge(ctx, planner.ConciergeRequest{Budget: 40, Persona: "romantic", DeliverySpeed: "express"}, 0)
	require.NoError(t, err)
	assert.Len(t, picks, 2)

	plan, err := e.ExperiencePlan(ctx, planner.PlanRequest{
		ConciergeRequest: planner.ConciergeRequest{Budget: 40, Persona: "romantic", DeliverySpeed: "express"},
		Region:           "eu-west",
	})
	require.NoError(t, err)
	assert.Equal(t, "White Bouquet", plan.TopGift)
	require.NotNil(t, plan.Delivery.SuccessRate)
	assert.InDelta(t, 0.5, *plan.Delivery.SuccessRate, 1e-9)

	q, err := e.Quote(ctx, "P003", 2, "Gold")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.InDelta(t, 45.0, q.Total, 1e-9)

	q, err = e.Quote(ctx, "nope", 2, "Gold")
	require.NoError(t, err)
	assert.Nil(t, q)

	m, err := e.LoveMetrics(ctx)
	require.NoError(t, err)
	assert.Len(t, m.Routing, 3)

	customers, err := e.Customers(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, customers, 2)

	products, err := e.Products(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, products, 3)

	regions, err := e.Regions(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"ap-south", "eu-west", "us-east"}, regions)

	profiles, err := e.MatchProfiles(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, profiles, 4)

	require.NoError(t, e.Ping(ctx))
}

func TestEngine_RemoteGenerationIsCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "A sweet plan."}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Generation.OpenAI.APIKey = "sk-test"
	cfg.Generation.OpenAI.BaseURL = srv.URL
	e := newEngine(t, storagetest.NewSeededDB(t), cfg)
	assert.True(t, e.RemoteGeneration())

	in := storefront.GenerateInput{Plan: generation.PlanDetails{Budget: 40, Persona: "romantic"}}
	for i := 0; i < 2; i++ {
		res, err := e.GenerateText(context.Background(), storefront.KindSummary, in)
		require.NoError(t, err)
		assert.Equal(t, generation.Result{Text: "A sweet plan.", Source: generation.SourceLLM}, res)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestEngine_CompatibilityAndAnalytics(t *testing.T) {
	e := newEngine(t, storagetest.NewSeededDB(t), nil)
	ctx := context.Background()

	res, err := e.Compatibility(ctx, "U002", "U001")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.InDelta(t, 86, res.Score, 1e-9)
	assert.Equal(t, []string{"chocolate", "jazz"}, res.Overlap)

	res, err = e.Compatibility(ctx, "U002", "nobody")
	require.NoError(t, err)
	assert.Nil(t, res)

	overview, err := e.AnalyticsOverview(ctx)
	require.NoError(t, err)
	assert.Len(t, overview.Tables, len(storage.Tables))
	require.NotNil(t, overview.AvgRating)
	assert.InDelta(t, 25.3/6, *overview.AvgRating, 1e-9)
}
