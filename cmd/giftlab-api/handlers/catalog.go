package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cupid-chocolate/giftlab/internal/search"
)

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Query   string       `json:"query"`
	Results []search.Hit `json:"results"`
}

// Search handles GET /search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	query := r.URL.Query().Get("q")

	hits, err := h.engine.Search(r.Context(), query, limit)
	if err != nil {
		h.internalError(w, r, "search failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, SearchResponse{Query: query, Results: hits})
}

// Customers handles GET /customers.
func (h *Handler) Customers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	customers, err := h.engine.Customers(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, "list customers failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"customers": nonNil(customers)})
}

// Products handles GET /products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	products, err := h.engine.Products(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, "list products failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"products": nonNil(products)})
}

// Regions handles GET /regions.
func (h *Handler) Regions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.engine.Regions(r.Context(), 0)
	if err != nil {
		h.internalError(w, r, "list regions failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"regions": nonNil(regions)})
}

// Recommendations handles GET /customers/{customerId}/recommendations.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	customerID := chi.URLParam(r, "customerId")

	res, err := h.engine.Recommend(r.Context(), customerID, limit)
	if err != nil {
		h.internalError(w, r, "recommendation failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// InvalidateIndex handles POST /admin/index/invalidate.
func (h *Handler) InvalidateIndex(w http.ResponseWriter, r *http.Request) {
	h.engine.InvalidateIndex()
	h.logger.WithContext(r.Context()).Info().Msg("Search index invalidated")
	w.WriteHeader(http.StatusNoContent)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
