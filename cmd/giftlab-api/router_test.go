package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cupid-chocolate/giftlab/cmd/giftlab-api/middleware"
	"github.com/cupid-chocolate/giftlab/internal/config"
	"github.com/cupid-chocolate/giftlab/internal/observability"
	"github.com/cupid-chocolate/giftlab/internal/storage/storagetest"
	"github.com/cupid-chocolate/giftlab/pkg/storefront"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.AllowedOrigins = []string{"https://shop.example"}

	engine, err := storefront.New(context.Background(), cfg, storefront.WithDB(storagetest.NewSeededDB(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	srv := httptest.NewServer(NewRouter(observability.NopLogger(), engine, cfg.Server))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestRouter_HealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])
}

func TestRouter_Search(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=raspberry&limit=3", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "raspberry", body["query"])

	results, ok := body["results"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, results)
	first := results[0].(map[string]interface{})["record"].(map[string]interface{})
	assert.Equal(t, "P001", first["productId"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=raspberry&limit=9223372036854775807", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["results"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=x&limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid limit", body["error"])
}

func TestRouter_Recommendations(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/customers/C001/recommendations", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "C001", body["customerId"])
	assert.Equal(t, "personal", body["tier"])
	assert.Equal(t, "heuristic", body["explanationSource"])

	recs := body["recommendations"].([]interface{})
	require.Len(t, recs, 2)
	assert.Equal(t, "Dark Truffle", recs[0].(map[string]interface{})["productName"])
}

func TestRouter_Listings(t *testing.T) {
	srv := newTestServer(t)

	_, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/customers?limit=2", "")
	assert.Len(t, body["customers"], 2)

	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/products", "")
	assert.Len(t, body["products"], 3)

	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/regions", "")
	assert.ElementsMatch(t, []interface{}{"ap-south", "eu-west", "us-east"}, body["regions"])
}

func TestRouter_Generate(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/generate/summary",
		`{"plan":{"budget":40,"persona":"romantic","delivery_speed":"express"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "heuristic", body["source"])
	assert.NotEmpty(t, body["text"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/generate/poem", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "poem", body["detail"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/generate/chat", `{"unknown":true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_Letters(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/letters", `{"customerId":"C001"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["events"], 3)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/letters", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "customerId is required", body["error"])
}

func TestRouter_Planner(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/concierge", `{"budget":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "budget must be positive", body["error"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/concierge",
		`{"budget":30,"persona":"romantic","deliverySpeed":"express","limit":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["recommendations"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/plans",
		`{"budget":30,"persona":"romantic","deliverySpeed":"express","region":"us-east"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["steps"], 4)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/supply-chain/alerts?limit=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	alerts := body["alerts"].([]interface{})
	require.Len(t, alerts, 1)
	assert.Equal(t, "Dark Truffle", alerts[0].(map[string]interface{})["productName"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/love-metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_Quote(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/quotes",
		`{"productId":"P001","quantity":6,"loyaltyTier":"Gold"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 67.5, body["total"], 1e-9)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/quotes", `{"productId":"P404","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "P404", body["detail"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/quotes", `{"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_Sales(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sales/overview?channel=retail", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := body["sales"].(map[string]interface{})["summary"].(map[string]interface{})
	assert.EqualValues(t, 2, summary["orders"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sales/chat", `{"question":"How did we do?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["text"])
}

func TestRouter_Matchmaking(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/matchmaking/profiles?limit=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["profiles"], 2)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/compatibility", `{"userA":"U001","userB":"U002"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 86.0, body["score"], 1e-9)
	assert.Equal(t, []interface{}{"chocolate", "jazz"}, body["overlap"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/compatibility", `{"userA":"U001","userB":"U404"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "user not found", body["error"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/compatibility", `{"userA":"U001"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_Analytics(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/analytics/overview", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tables, ok := body["tables"].([]interface{})
	require.True(t, ok)
	assert.Len(t, tables, 8)
	assert.NotNil(t, body["avgRating"])
}

func TestRouter_InvalidateIndex(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/admin/index/invalidate", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRouter_TraceID(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/health", "")
	assert.NotEmpty(t, resp.Header.Get(middleware.TraceHeader))

	const traceID = "6f1c1e8e-3d0a-4a55-9d7b-4d8f0c2b7a11"
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.TraceHeader, traceID)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, traceID, resp2.Header.Get(middleware.TraceHeader))
}

func TestRouter_CORS(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/search", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://shop.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://shop.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
