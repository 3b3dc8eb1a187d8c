// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - API endpoint latency and throughput
// - Recommendation pipeline performance
// - Response cache efficiency
// - Storage operation performance

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Recommendation Pipeline Metrics
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"outcome"}, // "ok", "no_persona", "no_catalog", "error"
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "End-to-end recommendation pipeline duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	RecommendationCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_candidates",
			Help:    "Number of candidates scored per recommendation request",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	RerankDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rerank_duration_seconds",
			Help:    "Reranker pass duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"reranker"},
	)

	PersonaMappingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "persona_mappings_total",
			Help: "Total number of archetype-to-persona mappings performed",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "response"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	// Storage Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of BadgerDB store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "get_state", "put_state", "append_events", "list_actions", ...
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operation_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"operation"},
	)

	StoreUserStates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_user_states",
			Help: "Current number of stored user state records",
		},
	)

	StoreStatesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_states_pruned_total",
			Help: "Total number of user states rewritten by event retention cleanup",
		},
	)

	StoreCleanupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_cleanup_last_success_timestamp",
			Help: "Unix timestamp of last successful retention cleanup",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRecommendation records one pass through the recommendation pipeline.
func RecordRecommendation(outcome string, candidates int, duration time.Duration) {
	RecommendationsTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		RecommendationDuration.Observe(duration.Seconds())
		RecommendationCandidates.Observe(float64(candidates))
	}
}

// RecordRerank records a reranker pass.
func RecordRerank(name string, duration time.Duration) {
	RerankDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit for the given cache type.
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for the given cache type.
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordCacheEvictions records n entries evicted from the given cache.
func RecordCacheEvictions(cacheType string, n int) {
	if n > 0 {
		CacheEvictions.WithLabelValues(cacheType).Add(float64(n))
	}
}

// RecordPersonaMapping records one archetype-to-persona mapping.
func RecordPersonaMapping() {
	PersonaMappingsTotal.Inc()
}

// SetStoredUserStates updates the stored user state gauge.
func SetStoredUserStates(n int) {
	StoreUserStates.Set(float64(n))
}

// RecordStoreOperation records a store operation metric
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(operation).Inc()
	}
}

// RecordCleanup records a retention cleanup run.
func RecordCleanup(pruned int, err error) {
	if err != nil {
		StoreOperationErrors.WithLabelValues("cleanup").Inc()
		return
	}
	StoreStatesPruned.Add(float64(pruned))
	StoreCleanupLastSuccess.Set(float64(time.Now().Unix()))
}
