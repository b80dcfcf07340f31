package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cupid-chocolate/giftlab/internal/storage"
	"github.com/cupid-chocolate/giftlab/pkg/storefront"
)

// LetterRequest is the body of POST /letters.
type LetterRequest struct {
	CustomerID string `json:"customerId"`
	Tone       string `json:"tone,omitempty"`
}

// ChatRequest is the body of POST /sales/chat.
type ChatRequest struct {
	Question string              `json:"question"`
	Filter   storage.SalesFilter `json:"filter"`
}

// Generate handles POST /generate/{kind}.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	kind := storefront.Kind(chi.URLParam(r, "kind"))

	var in storefront.GenerateInput
	if err := decodeBody(w, r, &in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.engine.GenerateText(r.Context(), kind, in)
	if errors.Is(err, storefront.ErrUnknownKind) {
		h.writeError(w, http.StatusNotFound, "unknown generation kind", string(kind))
		return
	}
	if err != nil {
		h.internalError(w, r, "generation failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Letter handles POST /letters.
func (h *Handler) Letter(w http.ResponseWriter, r *http.Request) {
	var req LetterRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.CustomerID == "" {
		h.writeError(w, http.StatusBadRequest, "customerId is required", "")
		return
	}

	letter, err := h.engine.LoveLetter(r.Context(), req.CustomerID, req.Tone)
	if err != nil {
		h.internalError(w, r, "love letter failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, letter)
}

// SalesChat handles POST /sales/chat.
func (h *Handler) SalesChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.engine.SalesChat(r.Context(), req.Question, req.Filter)
	if err != nil {
		h.internalError(w, r, "sales chat failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// SalesOverview handles GET /sales/overview?category=&channel=&country=&month=.
func (h *Handler) SalesOverview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.SalesFilter{
		Category: q.Get("category"),
		Channel:  q.Get("channel"),
		Country:  q.Get("country"),
		Month:    q.Get("month"),
	}

	overview, err := h.engine.SalesOverview(r.Context(), f)
	if err != nil {
		h.internalError(w, r, "sales overview failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, overview)
}
