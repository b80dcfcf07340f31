package handlers

import (
	"net/http"
	"strings"
)

// CompatibilityRequest is the body of POST /compatibility.
type CompatibilityRequest struct {
	UserA string `json:"userA"`
	UserB string `json:"userB"`
}

// MatchProfiles handles GET /matchmaking/profiles.
func (h *Handler) MatchProfiles(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	profiles, err := h.engine.MatchProfiles(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, "list profiles failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": nonNil(profiles)})
}

// Compatibility handles POST /compatibility.
func (h *Handler) Compatibility(w http.ResponseWriter, r *http.Request) {
	var req CompatibilityRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.UserA) == "" || strings.TrimSpace(req.UserB) == "" {
		h.writeError(w, http.StatusBadRequest, "userA and userB are required", "")
		return
	}

	res, err := h.engine.Compatibility(r.Context(), req.UserA, req.UserB)
	if err != nil {
		h.internalError(w, r, "compatibility failed", err)
		return
	}
	if res == nil {
		h.writeError(w, http.StatusNotFound, "user not found", req.UserA+", "+req.UserB)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Analytics handles GET /analytics/overview.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	overview, err := h.engine.AnalyticsOverview(r.Context())
	if err != nil {
		h.internalError(w, r, "analytics overview failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, overview)
}
