// Package handlers provides HTTP handlers for the giftlab API.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cupid-chocolate/giftlab/internal/observability"
	"github.com/cupid-chocolate/giftlab/pkg/storefront"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves every storefront route.
type Handler struct {
	logger *observability.Logger
	engine *storefront.Engine
}

// New creates a handler over engine.
func New(logger *observability.Logger, engine *storefront.Engine) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handler{logger: logger, engine: engine}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	h.writeJSON(w, status, resp)
}

// internalError logs err and answers 500.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.logger.WithContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(message)
	h.writeError(w, http.StatusInternalServerError, message, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// queryLimit reads the limit query parameter. Missing means zero, which the
// engine replaces with its default.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer")
	}
	return n, nil
}
