package handlers

import (
	"net/http"

	"github.com/cupid-chocolate/giftlab/internal/planner"
	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// ConciergeRequest is the body of POST /concierge.
type ConciergeRequest struct {
	planner.ConciergeRequest
	Limit int `json:"limit,omitempty"`
}

// QuoteRequest is the body of POST /quotes.
type QuoteRequest struct {
	ProductID   string `json:"productId"`
	Quantity    int    `json:"quantity"`
	LoyaltyTier string `json:"loyaltyTier,omitempty"`
}

// Concierge handles POST /concierge.
func (h *Handler) Concierge(w http.ResponseWriter, r *http.Request) {
	var req ConciergeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Budget <= 0 {
		h.writeError(w, http.StatusBadRequest, "budget must be positive", "")
		return
	}

	picks, err := h.engine.Concierge(r.Context(), req.ConciergeRequest, req.Limit)
	if err != nil {
		h.internalError(w, r, "concierge failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]storage.ConciergeRow{"recommendations": picks})
}

// Plan handles POST /plans.
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	var req planner.PlanRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Budget <= 0 {
		h.writeError(w, http.StatusBadRequest, "budget must be positive", "")
		return
	}

	plan, err := h.engine.ExperiencePlan(r.Context(), req)
	if err != nil {
		h.internalError(w, r, "experience plan failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, plan)
}

// Alerts handles GET /supply-chain/alerts?limit=.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	alerts, err := h.engine.SupplyChainAlerts(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, "supply chain alerts failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]planner.Alert{"alerts": alerts})
}

// Quote handles POST /quotes.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "productId is required", "")
		return
	}

	quote, err := h.engine.Quote(r.Context(), req.ProductID, req.Quantity, req.LoyaltyTier)
	if err != nil {
		h.internalError(w, r, "quote failed", err)
		return
	}
	if quote == nil {
		h.writeError(w, http.StatusNotFound, "product not found", req.ProductID)
		return
	}
	h.writeJSON(w, http.StatusOK, quote)
}

// LoveMetrics handles GET /love-metrics.
func (h *Handler) LoveMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.engine.LoveMetrics(r.Context())
	if err != nil {
		h.internalError(w, r, "love metrics failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}
