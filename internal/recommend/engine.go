// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/verdantlabs/actionrank/internal/metrics"
	"github.com/verdantlabs/actionrank/internal/persona"
)

// Engine orchestrates the persona, scoring and reranking stages and serves
// recommendation requests. It is safe for concurrent use.
type Engine struct {
	config  *Config
	logger  zerolog.Logger
	deriver *persona.Deriver
	scorer  *Scorer

	rerankers []Reranker
	rrMu      sync.RWMutex

	// Providers, typically backed by the storage layer.
	states  StateProvider
	catalog CatalogProvider

	// Response cache keyed by user, K and calendar flags.
	cache   map[string]cacheEntry
	cacheMu sync.RWMutex

	requestCount atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	errorCount   atomic.Int64
}

// cacheEntry holds a cached recommendation response.
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Stats is a snapshot of engine counters for observability endpoints.
type Stats struct {
	RequestCount int64 `json:"request_count"`
	CacheHits    int64 `json:"cache_hits"`
	CacheMisses  int64 `json:"cache_misses"`
	ErrorCount   int64 `json:"error_count"`
}

// NewEngine creates a recommendation engine. The clock is forwarded to the
// scorer; pass nil for wall-clock time.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, logger zerolog.Logger, now func() time.Time) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		config:  cfg,
		logger:  logger.With().Str("component", "recommend").Logger(),
		deriver: persona.NewDeriver(cfg.MetaDeltas),
		scorer:  NewScorer(now),
		cache:   make(map[string]cacheEntry),
	}, nil
}

// SetStateProvider sets the user state source.
func (e *Engine) SetStateProvider(sp StateProvider) {
	e.states = sp
}

// SetCatalogProvider sets the catalog source used when requests carry no
// inline candidates.
func (e *Engine) SetCatalogProvider(cp CatalogProvider) {
	e.catalog = cp
}

// RegisterReranker adds a reranker to the post-processing pipeline.
func (e *Engine) RegisterReranker(rr Reranker) {
	e.rrMu.Lock()
	defer e.rrMu.Unlock()

	e.rerankers = append(e.rerankers, rr)
	e.logger.Info().
		Str("reranker", rr.Name()).
		Msg("registered reranker")
}

// Recommend generates a ranked action list for a request.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	e.requestCount.Add(1)

	req = e.prepareRequest(req)
	logger := e.createRequestLogger(req)
	logger.Debug().Msg("processing recommendation request")

	if resp := e.tryGetCachedResponse(req, start, logger); resp != nil {
		return resp, nil
	}

	vec, err := e.resolvePersona(ctx, req)
	if err != nil {
		e.errorCount.Add(1)
		return nil, fmt.Errorf("resolve persona: %w", err)
	}

	weights := e.deriver.Derive(vec, req.Flags)

	candidates, err := e.getCandidates(ctx, req)
	if err != nil {
		e.errorCount.Add(1)
		return nil, fmt.Errorf("get candidates: %w", err)
	}

	if len(candidates) == 0 {
		logger.Debug().Msg("no candidates available")
		return e.emptyResponse(req, weights, start), nil
	}

	user, err := e.loadUserState(ctx, req.UserID)
	if err != nil {
		e.errorCount.Add(1)
		return nil, fmt.Errorf("load user state: %w", err)
	}

	scored := e.scoreCandidates(candidates, user, weights)
	scored = e.rankAndTruncate(ctx, scored, req.K)

	resp := e.buildResponse(req, scored, weights, len(candidates), start)
	e.cacheResponse(req, resp)

	logger.Debug().
		Int("candidates", len(candidates)).
		Int("returned", len(scored)).
		Int64("latency_ms", resp.Metadata.LatencyMS).
		Msg("recommendation complete")

	return resp, nil
}

// prepareRequest applies defaults and generates a request ID if needed.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) prepareRequest(req Request) Request {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	if req.K <= 0 {
		req.K = e.config.Limits.DefaultK
	}
	if req.K > e.config.Limits.MaxK {
		req.K = e.config.Limits.MaxK
	}

	return req
}

// createRequestLogger creates a logger with request context.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) createRequestLogger(req Request) zerolog.Logger {
	return e.logger.With().
		Str("request_id", req.RequestID).
		Str("user_id", req.UserID).
		Logger()
}

// resolvePersona picks the persona vector for a request: an inline vector
// wins, then inline quiz scores, then the stored persona of the user.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) resolvePersona(ctx context.Context, req Request) (persona.Vector, error) {
	if req.Persona != nil {
		return *req.Persona, nil
	}
	if len(req.Archetypes) > 0 {
		metrics.RecordPersonaMapping()
		return persona.Map(req.Archetypes), nil
	}
	if req.UserID != "" && e.states != nil {
		state, err := e.states.GetState(ctx, req.UserID)
		if err != nil {
			return persona.Vector{}, err
		}
		if state.Persona != nil {
			return *state.Persona, nil
		}
	}
	return persona.Vector{}, ErrNoPersona
}

// getCandidates returns the candidate set, validating every entry.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) getCandidates(ctx context.Context, req Request) ([]Action, error) {
	if len(req.Candidates) > 0 {
		if len(req.Candidates) > e.config.Limits.MaxCandidates {
			return nil, &ValidationError{
				Field:  "candidates",
				Reason: fmt.Sprintf("at most %d candidates allowed", e.config.Limits.MaxCandidates),
			}
		}
		for i := range req.Candidates {
			if err := ValidateAction(req.Candidates[i]); err != nil {
				return nil, fmt.Errorf("candidate %d: %w", i, err)
			}
		}
		return req.Candidates, nil
	}

	if e.catalog == nil {
		return nil, ErrNoCatalog
	}

	actions, err := e.catalog.ListActions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	if len(actions) == 0 {
		return nil, ErrNoCatalog
	}
	return actions, nil
}

// loadUserState fetches stored state, or a zero state for anonymous requests.
func (e *Engine) loadUserState(ctx context.Context, userID string) (UserState, error) {
	if userID == "" || e.states == nil {
		return UserState{}, nil
	}
	return e.states.GetState(ctx, userID)
}

// scoreCandidates scores every candidate against the user and weights.
func (e *Engine) scoreCandidates(candidates []Action, user UserState, weights persona.Weights) []ScoredAction {
	categoryOf := make(map[string]string, len(candidates))
	for i := range candidates {
		categoryOf[candidates[i].ID] = candidates[i].Category
	}
	shownByCategory := user.ShownByCategory(categoryOf)

	scored := make([]ScoredAction, 0, len(candidates))
	for i := range candidates {
		scored = append(scored, e.scorer.Score(candidates[i], user, weights, shownByCategory))
	}
	return scored
}

// rankAndTruncate sorts by score, applies rerankers and cuts to k.
// The sort is stable so equal scores keep catalog order.
func (e *Engine) rankAndTruncate(ctx context.Context, scored []ScoredAction, k int) []ScoredAction {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	scored = e.applyRerankers(ctx, scored, k)

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// applyRerankers applies post-processing rerankers to the scored actions.
func (e *Engine) applyRerankers(ctx context.Context, items []ScoredAction, k int) []ScoredAction {
	e.rrMu.RLock()
	rerankers := e.rerankers
	e.rrMu.RUnlock()

	for _, rr := range rerankers {
		start := time.Now()
		items = rr.Rerank(ctx, items, k)
		metrics.RecordRerank(rr.Name(), time.Since(start))
	}
	return items
}

// buildResponse constructs the final response.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) buildResponse(req Request, items []ScoredAction, weights persona.Weights, totalCandidates int, start time.Time) *Response {
	return &Response{
		Items:           items,
		TotalCandidates: totalCandidates,
		Weights:         weights,
		Metadata: ResponseMetadata{
			RequestID: req.RequestID,
			UserID:    req.UserID,
			LatencyMS: time.Since(start).Milliseconds(),
			Timestamp: time.Now(),
		},
	}
}

// emptyResponse returns an empty response for cases with no candidates.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) emptyResponse(req Request, weights persona.Weights, start time.Time) *Response {
	return e.buildResponse(req, []ScoredAction{}, weights, 0, start)
}

// GetConfig returns a copy of the current configuration.
func (e *Engine) GetConfig() *Config {
	return e.config.Clone()
}

// GetStats returns a snapshot of the engine counters.
func (e *Engine) GetStats() Stats {
	return Stats{
		RequestCount: e.requestCount.Load(),
		CacheHits:    e.cacheHits.Load(),
		CacheMisses:  e.cacheMisses.Load(),
		ErrorCount:   e.errorCount.Load(),
	}
}

// InvalidateUser drops cached responses for a user. Called after events or
// persona writes so stale rankings are not served.
func (e *Engine) InvalidateUser(userID string) {
	if userID == "" {
		return
	}

	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	prefix := "rec:" + userID + ":"
	for key := range e.cache {
		if strings.HasPrefix(key, prefix) {
			delete(e.cache, key)
		}
	}
}

// InvalidateAll drops every cached response. Called after catalog
// replacement, which stales rankings for all users.
func (e *Engine) InvalidateAll() {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache = make(map[string]cacheEntry)
}

// cacheable reports whether a request can be served from cache. Requests
// with inline personas, scores or candidates bypass the cache.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) cacheable(req Request) bool {
	return e.config.Cache.Enabled &&
		req.UserID != "" &&
		req.Persona == nil &&
		len(req.Archetypes) == 0 &&
		len(req.Candidates) == 0
}

// cacheKey generates a cache key for a request.
//
//nolint:gocritic // hugeParam: req passed by value for simplicity
func (e *Engine) cacheKey(req Request) string {
	return fmt.Sprintf("rec:%s:%d:%t:%t", req.UserID, req.K, req.Flags.SprintWeek, req.Flags.MonthEnd)
}

// tryGetCachedResponse attempts to retrieve a cached response.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) tryGetCachedResponse(req Request, start time.Time, logger zerolog.Logger) *Response {
	if !e.cacheable(req) {
		return nil
	}

	resp := e.checkCache(e.cacheKey(req))
	if resp == nil {
		e.cacheMisses.Add(1)
		metrics.RecordCacheMiss("response")
		return nil
	}

	e.cacheHits.Add(1)
	metrics.RecordCacheHit("response")
	resp.Metadata.CacheHit = true
	resp.Metadata.LatencyMS = time.Since(start).Milliseconds()
	logger.Debug().Msg("cache hit")
	return resp
}

// checkCache returns a copy of a valid cached response, or nil.
func (e *Engine) checkCache(key string) *Response {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()

	entry, ok := e.cache[key]
	if !ok {
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		return nil
	}

	items := make([]ScoredAction, len(entry.response.Items))
	copy(items, entry.response.Items)

	return &Response{
		Items:           items,
		TotalCandidates: entry.response.TotalCandidates,
		Weights:         entry.response.Weights,
		Metadata:        entry.response.Metadata,
	}
}

// cacheResponse stores the response in cache when the request is cacheable.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) cacheResponse(req Request, resp *Response) {
	if !e.cacheable(req) {
		return
	}

	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	if len(e.cache) >= e.config.Cache.MaxEntries {
		e.evictExpiredLocked()
	}

	e.cache[e.cacheKey(req)] = cacheEntry{
		response:  resp,
		expiresAt: time.Now().Add(e.config.Cache.TTL),
	}
}

// evictExpiredLocked removes expired cache entries.
// Must be called with cacheMu held.
func (e *Engine) evictExpiredLocked() {
	now := time.Now()
	evicted := 0
	for key, entry := range e.cache {
		if now.After(entry.expiresAt) {
			delete(e.cache, key)
			evicted++
		}
	}
	metrics.RecordCacheEvictions("response", evicted)
}
