// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/verdantlabs/actionrank/internal/logging"
)

// RequestID middleware generates a unique ID for each request and adds it
// to the response header and the request context for log correlation.
// An X-Request-ID header from an upstream proxy is honored.
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}

		// Add to response header for client visibility
		w.Header().Set("X-Request-ID", requestID)

		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		next(w, r.WithContext(ctx))
	}
}

// routeContext returns the matched chi route pattern, or "" when the
// request did not pass through a chi router.
func routeContext(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
