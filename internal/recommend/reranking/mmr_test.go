// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package reranking

import (
	"context"
	"testing"

	"github.com/verdantlabs/actionrank/internal/recommend"
)

func TestNewMMR(t *testing.T) {
	tests := []struct {
		name       string
		lambda     float64
		wantLambda float64
	}{
		{"normal value", 0.7, 0.7},
		{"zero value", 0.0, 0.0},
		{"one value", 1.0, 1.0},
		{"negative clamped to zero", -0.5, 0.0},
		{"above one clamped to one", 1.5, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mmr := NewMMR(tt.lambda)
			if mmr == nil {
				t.Fatal("NewMMR() returned nil")
			}
			if mmr.lambda != tt.wantLambda {
				t.Errorf("lambda = %f, want %f", mmr.lambda, tt.wantLambda)
			}
		})
	}
}

func TestMMR_Name(t *testing.T) {
	mmr := NewMMR(0.7)
	if mmr.Name() != "mmr" {
		t.Errorf("Name() = %q, want %q", mmr.Name(), "mmr")
	}
}

func scoredAction(id string, score float64, tags ...string) recommend.ScoredAction {
	return recommend.ScoredAction{
		Action: recommend.Action{ID: id, Category: "energy", Tags: tags},
		Score:  score,
	}
}

func TestMMR_Rerank_Cardinality(t *testing.T) {
	items := []recommend.ScoredAction{
		scoredAction("a", 1.0, "bike"),
		scoredAction("b", 0.9, "bike"),
		scoredAction("c", 0.85, "food"),
		scoredAction("d", 0.8, "bike"),
		scoredAction("e", 0.75, "home"),
		scoredAction("f", 0.7, "food"),
	}

	tests := []struct {
		name    string
		lambda  float64
		k       int
		wantLen int
	}{
		{"pure relevance", 1.0, 3, 3},
		{"balanced", 0.7, 3, 3},
		{"pure diversity", 0.0, 4, 4},
		{"k larger than items", 0.7, 10, 6},
		{"k equal to items", 0.7, 6, 6},
		{"k zero returns input", 0.7, 0, 6},
		{"k negative returns input", 0.7, -1, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mmr := NewMMR(tt.lambda)
			result := mmr.Rerank(context.Background(), items, tt.k)

			if len(result) != tt.wantLen {
				t.Errorf("len(result) = %d, want %d", len(result), tt.wantLen)
			}
		})
	}
}

func TestMMR_Rerank_EmptyInput(t *testing.T) {
	mmr := NewMMR(0.7)
	result := mmr.Rerank(context.Background(), nil, 5)
	if len(result) != 0 {
		t.Errorf("expected empty result, got %d items", len(result))
	}
}

func TestMMR_Rerank_PureRelevance(t *testing.T) {
	items := []recommend.ScoredAction{
		scoredAction("a", 1.0, "bike"),
		scoredAction("b", 0.9, "bike"),
		scoredAction("c", 0.5, "food"),
	}

	mmr := NewMMR(1.0)
	result := mmr.Rerank(context.Background(), items, 2)

	if result[0].Action.ID != "a" || result[1].Action.ID != "b" {
		t.Errorf("pure relevance changed order: %s, %s", result[0].Action.ID, result[1].Action.ID)
	}
}

func TestMMR_Rerank_DiversityEffect(t *testing.T) {
	// The top scorers all share tags; a diversity-aware selection should
	// pull in a dissimilar action before the third look-alike.
	items := []recommend.ScoredAction{
		scoredAction("a", 1.0, "commute", "bike"),
		scoredAction("b", 0.95, "commute", "bike"),
		scoredAction("c", 0.9, "commute", "bike"),
		scoredAction("d", 0.5, "food", "veggie"),
		scoredAction("e", 0.4, "home", "heating"),
	}

	t.Run("pure relevance keeps look-alikes", func(t *testing.T) {
		result := NewMMR(1.0).Rerank(context.Background(), items, 3)
		for i, want := range []string{"a", "b", "c"} {
			if result[i].Action.ID != want {
				t.Errorf("result[%d] = %s, want %s", i, result[i].Action.ID, want)
			}
		}
	})

	t.Run("pure diversity avoids repeats", func(t *testing.T) {
		result := NewMMR(0.0).Rerank(context.Background(), items, 3)

		// First pick is the top scorer, after that selection is driven
		// entirely by dissimilarity to what is already chosen.
		if result[0].Action.ID != "a" {
			t.Fatalf("first pick = %s, want a", result[0].Action.ID)
		}
		for i, item := range result[1:] {
			if item.Action.ID == "b" || item.Action.ID == "c" {
				t.Errorf("pick %d = %s, identical tags to first pick", i+2, item.Action.ID)
			}
		}
	})
}

func TestMMR_Rerank_TieBreakByInputOrder(t *testing.T) {
	items := []recommend.ScoredAction{
		scoredAction("first", 0.5, "x"),
		scoredAction("second", 0.5, "y"),
		scoredAction("third", 0.5, "z"),
	}

	result := NewMMR(0.5).Rerank(context.Background(), items, 1)
	if result[0].Action.ID != "first" {
		t.Errorf("tie broken to %s, want first", result[0].Action.ID)
	}
}

func TestMMR_Rerank_NegativeScores(t *testing.T) {
	// Scores below zero must still be selectable; the result keeps the
	// requested cardinality.
	items := []recommend.ScoredAction{
		scoredAction("a", -0.1, "x"),
		scoredAction("b", -0.5, "y"),
		scoredAction("c", -0.9, "z"),
	}

	result := NewMMR(0.7).Rerank(context.Background(), items, 3)
	if len(result) != 3 {
		t.Fatalf("len(result) = %d, want 3", len(result))
	}
	if result[0].Action.ID != "a" {
		t.Errorf("first pick = %s, want a", result[0].Action.ID)
	}
}

func TestMMR_Rerank_DoesNotMutateScores(t *testing.T) {
	items := []recommend.ScoredAction{
		scoredAction("a", 1.0, "x"),
		scoredAction("b", 0.9, "x"),
	}

	result := NewMMR(0.3).Rerank(context.Background(), items, 2)
	for _, item := range result {
		if item.Action.ID == "a" && item.Score != 1.0 {
			t.Errorf("score mutated: %v", item.Score)
		}
		if item.Action.ID == "b" && item.Score != 0.9 {
			t.Errorf("score mutated: %v", item.Score)
		}
	}
}
