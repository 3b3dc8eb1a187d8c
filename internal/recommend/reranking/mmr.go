// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

// Package reranking implements post-processing algorithms for recommendation diversity.
package reranking

import (
	"context"
	"math"

	"github.com/verdantlabs/actionrank/internal/recommend"
)

// maxRerankSize caps k so a hostile request cannot force huge
// allocations. k is also bounded by len(items).
const maxRerankSize = 10000

// MMR implements Maximal Marginal Relevance reranking. Each round it
// picks the candidate maximizing
//
//	lambda * score(i) - (1-lambda) * max(sim(i, s)) over selected s
//
// where sim is Jaccard similarity over action tags. Lambda 1 is pure
// relevance, lambda 0 pure diversity.
//
// Reference:
// Carbonell, J., & Goldstein, J. (1998). "The Use of MMR, Diversity-Based
// Reranking for Reordering Documents and Producing Summaries." SIGIR 1998.
type MMR struct {
	lambda float64
}

// NewMMR creates a new MMR reranker. Lambda is clamped to [0, 1].
func NewMMR(lambda float64) *MMR {
	return &MMR{lambda: math.Min(math.Max(lambda, 0), 1)}
}

// Name returns the reranker identifier.
func (m *MMR) Name() string {
	return "mmr"
}

// Rerank diversifies items down to min(k, len(items)) entries. Ties
// break toward input order, so equal-scored items keep their ranking.
func (m *MMR) Rerank(ctx context.Context, items []recommend.ScoredAction, k int) []recommend.ScoredAction {
	if len(items) == 0 || k <= 0 {
		return items
	}
	if k > maxRerankSize {
		k = maxRerankSize
	}
	if k > len(items) {
		k = len(items)
	}

	// Pure relevance needs no similarity work.
	if m.lambda >= 1.0 {
		return items[:k]
	}

	sim := tagSimMatrix(items)
	chosen := make([]bool, len(items))
	picked := make([]int, 0, k)
	out := make([]recommend.ScoredAction, 0, k)

	for len(out) < k {
		best, bestScore := -1, math.Inf(-1)

		for i := range items {
			if chosen[i] {
				continue
			}

			penalty := 0.0
			for _, p := range picked {
				if sim[i][p] > penalty {
					penalty = sim[i][p]
				}
			}

			// Strict > keeps the earliest candidate on ties.
			s := m.lambda*items[i].Score - (1-m.lambda)*penalty
			if s > bestScore {
				best, bestScore = i, s
			}
		}

		if best < 0 {
			break
		}
		chosen[best] = true
		picked = append(picked, best)
		out = append(out, items[best])
	}

	return out
}

// tagSimMatrix computes pairwise Jaccard similarity over action tags.
func tagSimMatrix(items []recommend.ScoredAction) [][]float64 {
	n := len(items)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := recommend.Jaccard(items[i].Action.Tags, items[j].Action.Tags)
			sim[i][j], sim[j][i] = s, s
		}
	}
	return sim
}

var _ recommend.Reranker = (*MMR)(nil)
