package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cupid-chocolate/giftlab/cmd/giftlab-api/handlers"
	"github.com/cupid-chocolate/giftlab/cmd/giftlab-api/middleware"
	"github.com/cupid-chocolate/giftlab/internal/config"
	"github.com/cupid-chocolate/giftlab/internal/observability"
	"github.com/cupid-chocolate/giftlab/pkg/storefront"
)

// readyTimeout bounds the database ping behind /ready.
const readyTimeout = 2 * time.Second

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, engine *storefront.Engine, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.TraceID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.WriteTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.WriteTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"giftlab"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := engine.Ping(ctx); err != nil {
			logger.WithContext(r.Context()).Warn().Err(err).Msg("Readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	h := handlers.New(logger, engine)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", h.Search)
		r.Get("/products", h.Products)
		r.Get("/regions", h.Regions)

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.Customers)
			r.Get("/{customerId}/recommendations", h.Recommendations)
		})

		r.Post("/generate/{kind}", h.Generate)
		r.Post("/letters", h.Letter)

		r.Post("/concierge", h.Concierge)
		r.Post("/plans", h.Plan)
		r.Get("/supply-chain/alerts", h.Alerts)
		r.Post("/quotes", h.Quote)
		r.Get("/love-metrics", h.LoveMetrics)
		r.Get("/analytics/overview", h.Analytics)

		r.Get("/matchmaking/profiles", h.MatchProfiles)
		r.Post("/compatibility", h.Compatibility)

		r.Route("/sales", func(r chi.Router) {
			r.Get("/overview", h.SalesOverview)
			r.Post("/chat", h.SalesChat)
		})

		r.Post("/admin/index/invalidate", h.InvalidateIndex)
	})

	return r
}
