// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

// Package recommend implements the persona-driven action recommendation engine.
//
// # Architecture
//
// A recommendation request flows through three stages:
//
//   - Persona resolution: an inline vector, inline quiz scores, or the
//     user's stored persona (see the persona package)
//   - Scoring: each candidate action receives utility, effort, fit,
//     novelty, recency and diversity sub-scores, combined under the
//     derived weight vector
//   - Reranking: registered rerankers (MMR) rebalance the sorted list
//     for diversity before truncation to K
//
// # Design Principles
//
//   - Deterministic: the scorer clock is injected, so the same state and
//     candidates always produce the same ranking
//   - Auditable: every response carries the derived weights and per-action
//     sub-score breakdowns
//   - Observable: request, cache and error counters are exposed
//
// # Usage
//
//	cfg := recommend.DefaultConfig()
//	engine, err := recommend.NewEngine(cfg, logger, nil)
//
//	engine.SetStateProvider(store)
//	engine.SetCatalogProvider(store)
//	engine.RegisterReranker(reranking.NewMMR(cfg.Diversity.MMRLambda))
//
//	resp, err := engine.Recommend(ctx, recommend.Request{
//	    UserID: userID,
//	    K:      10,
//	})
//
// # Thread Safety
//
// The engine is safe for concurrent use. The scorer and persona deriver
// are stateless; the response cache is guarded by a read-write lock.
package recommend
