// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verdantlabs/actionrank/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router wires handlers and middleware into the HTTP surface.
type Router struct {
	handler *Handler
	mw      *Middleware
}

// NewRouter creates a router from a handler and middleware factory.
func NewRouter(handler *Handler, mw *Middleware) *Router {
	if mw == nil {
		mw = NewMiddleware(nil)
	}
	return &Router{handler: handler, mw: mw}
}

// Setup configures all HTTP routes using the Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.mw.CORS()) // CORS must be global to handle OPTIONS preflight

	// Health endpoints: permissive rate limiting for monitoring tools
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.mw.RateLimitHealth())
		r.Use(SecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Core API endpoints
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.mw.RateLimit())
		r.Use(SecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Post("/recommendations", router.handler.Recommendations)
		r.Get("/recommendations/user/{userID}", router.handler.RecommendationsForUser)
		r.Post("/persona", router.handler.MapPersona)
		r.Get("/stats", router.handler.Stats)
		r.Get("/catalog", router.handler.GetCatalog)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/state", router.handler.GetUserState)
			// Mutations get stricter limits
			r.With(router.mw.RateLimitWrite()).Post("/events", router.handler.AppendEvents)
			r.With(router.mw.RateLimitWrite()).Delete("/state", router.handler.DeleteUserState)
		})

		r.With(router.mw.RateLimitWrite()).Put("/catalog", router.handler.PutCatalog)
	})

	// Prometheus scrape endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
