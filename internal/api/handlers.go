// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/verdantlabs/actionrank/internal/metrics"
	"github.com/verdantlabs/actionrank/internal/persona"
	"github.com/verdantlabs/actionrank/internal/recommend"
	"github.com/verdantlabs/actionrank/internal/storage"
	"github.com/verdantlabs/actionrank/internal/validation"
)

// Handler holds the dependencies for all API handlers.
type Handler struct {
	engine *recommend.Engine
	store  *storage.Store
	logger zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(engine *recommend.Engine, store *storage.Store, logger zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		store:  store,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Recommendations handles POST /api/v1/recommendations.
// Accepts archetype scores or an explicit persona, optional inline
// candidates, and context flags; returns the ranked top-k actions.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req RecommendationsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	h.recommend(rw, r, req.ToEngineRequest())
}

// RecommendationsForUser handles GET /api/v1/recommendations/user/{userID}.
// Ranks the stored catalog against the user's stored persona and history.
// The optional "k" query parameter overrides the configured default.
func (h *Handler) RecommendationsForUser(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		rw.BadRequest("userID path parameter is required")
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			rw.BadRequest("k must be a non-negative integer")
			return
		}
		k = parsed
	}

	req := recommend.Request{
		UserID: userID,
		K:      k,
		Flags: persona.ContextFlags{
			SprintWeek: r.URL.Query().Get("sprint_week") == "true",
			MonthEnd:   r.URL.Query().Get("month_end") == "true",
		},
	}

	h.recommend(rw, r, req)
}

// recommend runs the engine and maps pipeline errors to API responses.
func (h *Handler) recommend(rw *ResponseWriter, r *http.Request, req recommend.Request) {
	start := time.Now()

	resp, err := h.engine.Recommend(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, recommend.ErrNoPersona):
			metrics.RecordRecommendation("no_persona", 0, 0)
			rw.Error(http.StatusUnprocessableEntity, ErrCodeNoPersona,
				"No persona available: supply archetype scores, a persona vector, or a user with a stored persona")
		case errors.Is(err, recommend.ErrNoCatalog):
			metrics.RecordRecommendation("no_catalog", 0, 0)
			rw.Error(http.StatusNotFound, ErrCodeNoCatalog,
				"No candidates available: supply inline candidates or store a catalog")
		case recommend.IsValidation(err):
			metrics.RecordRecommendation("error", 0, 0)
			rw.ValidationError(err.Error(), nil)
		default:
			metrics.RecordRecommendation("error", 0, 0)
			h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Recommendation failed")
			rw.InternalError("Recommendation failed")
		}
		return
	}

	metrics.RecordRecommendation("ok", resp.TotalCandidates, time.Since(start))
	rw.Success(resp)
}

// MapPersona handles POST /api/v1/persona.
// Maps archetype quiz scores to a persona vector. When a user ID is
// supplied, the vector is persisted to that user's state.
func (h *Handler) MapPersona(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req PersonaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	vec := persona.Map(req.Archetypes)
	metrics.RecordPersonaMapping()

	if req.UserID != "" {
		if _, err := h.store.SetPersona(r.Context(), req.UserID, vec, req.Interests); err != nil {
			rw.StorageError(err)
			return
		}
		h.engine.InvalidateUser(req.UserID)
	}

	rw.Success(map[string]interface{}{
		"persona":   vec,
		"persisted": req.UserID != "",
	})
}

// AppendEvents handles POST /api/v1/users/{userID}/events.
// Appends shown/done/dismissed interaction events to the user's history.
func (h *Handler) AppendEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "userID")

	var req EventsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	state, err := h.store.AppendEvents(r.Context(), userID, req.ToEvents())
	if err != nil {
		rw.StorageError(err)
		return
	}
	h.engine.InvalidateUser(userID)

	rw.Created(map[string]interface{}{
		"user_id":     state.UserID,
		"event_count": len(state.Events),
		"appended":    len(req.Events),
	})
}

// GetUserState handles GET /api/v1/users/{userID}/state.
func (h *Handler) GetUserState(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "userID")

	state, err := h.store.GetState(r.Context(), userID)
	if err != nil {
		rw.StorageError(err)
		return
	}

	rw.Success(state)
}

// DeleteUserState handles DELETE /api/v1/users/{userID}/state.
// Resets the user's persona and interaction history.
func (h *Handler) DeleteUserState(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "userID")

	if err := h.store.DeleteState(r.Context(), userID); err != nil {
		rw.StorageError(err)
		return
	}
	h.engine.InvalidateUser(userID)

	rw.NoContent()
}

// GetCatalog handles GET /api/v1/catalog.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	actions, err := h.store.ListActions(r.Context())
	if err != nil {
		rw.StorageError(err)
		return
	}
	if actions == nil {
		actions = []recommend.Action{}
	}

	rw.Success(map[string]interface{}{
		"actions": actions,
		"count":   len(actions),
	})
}

// PutCatalog handles PUT /api/v1/catalog.
// Replaces the stored action catalog atomically.
func (h *Handler) PutCatalog(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CatalogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	if err := h.store.ReplaceCatalog(r.Context(), req.Actions); err != nil {
		if recommend.IsValidation(err) {
			rw.ValidationError(err.Error(), nil)
			return
		}
		rw.StorageError(err)
		return
	}
	// Catalog changes stale every cached ranking
	h.engine.InvalidateAll()

	rw.Success(map[string]interface{}{
		"count": len(req.Actions),
	})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	users, err := h.store.CountUsers(r.Context())
	if err != nil {
		rw.StorageError(err)
		return
	}
	metrics.StoreUserStates.Set(float64(users))

	rw.Success(map[string]interface{}{
		"engine": h.engine.GetStats(),
		"users":  users,
	})
}

// Health handles GET /api/v1/health.
// Reports liveness plus a storage round-trip check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	status := "healthy"
	checks := map[string]string{"store": "ok"}
	if _, err := h.store.CountUsers(r.Context()); err != nil {
		status = "degraded"
		checks["store"] = err.Error()
	}

	data := map[string]interface{}{
		"status": status,
		"checks": checks,
	}
	if status != "healthy" {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service degraded", data)
		return
	}
	rw.Success(data)
}

// HealthLive handles GET /api/v1/health/live. Process liveness only.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady handles GET /api/v1/health/ready. Readiness includes storage.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.Health(w, r)
}
