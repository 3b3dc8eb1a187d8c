// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package recommend

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/verdantlabs/actionrank/internal/persona"
)

// EventType classifies user-action interaction events.
type EventType string

const (
	// EventShown records that an action card was displayed to the user.
	EventShown EventType = "shown"
	// EventDone records that the user completed the action.
	EventDone EventType = "done"
	// EventDismissed records that the user swiped the action away.
	EventDismissed EventType = "dismissed"
)

// Valid reports whether the event type is known.
func (t EventType) Valid() bool {
	return t == EventShown || t == EventDone || t == EventDismissed
}

// Event is a single user-action interaction.
type Event struct {
	// ActionID identifies the action the event refers to.
	ActionID string `json:"action_id" validate:"required"`

	// Type classifies the interaction.
	Type EventType `json:"type" validate:"required"`

	// Timestamp is when the interaction occurred.
	Timestamp time.Time `json:"timestamp"`
}

// UserState is everything the scorer knows about a user's history.
type UserState struct {
	// UserID is the user identifier.
	UserID string `json:"user_id"`

	// Persona is the stored persona vector, set after the quiz is mapped.
	Persona *persona.Vector `json:"persona,omitempty"`

	// Interests are profile tags used for fit scoring.
	Interests []string `json:"interests,omitempty"`

	// Events is the interaction history, append-only in arrival order.
	Events []Event `json:"events"`

	// UpdatedAt is when the state was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// ShownCount returns how many times the action was shown.
func (u *UserState) ShownCount(actionID string) int {
	n := 0
	for _, ev := range u.Events {
		if ev.ActionID == actionID && ev.Type == EventShown {
			n++
		}
	}
	return n
}

// LastEventAt returns the timestamp of the most recent event for the action,
// regardless of type. The second return is false if the action has no events.
func (u *UserState) LastEventAt(actionID string) (time.Time, bool) {
	var last time.Time
	found := false
	for _, ev := range u.Events {
		if ev.ActionID == actionID && ev.Timestamp.After(last) {
			last = ev.Timestamp
			found = true
		}
	}
	return last, found
}

// DismissedWithin reports whether the action was dismissed in the window
// ending at now.
func (u *UserState) DismissedWithin(actionID string, window time.Duration, now time.Time) bool {
	cutoff := now.Add(-window)
	for _, ev := range u.Events {
		if ev.ActionID == actionID && ev.Type == EventDismissed &&
			!ev.Timestamp.Before(cutoff) && !ev.Timestamp.After(now) {
			return true
		}
	}
	return false
}

// ShownByCategory counts shown events per category, resolving action IDs
// through the given catalog index.
func (u *UserState) ShownByCategory(categoryOf map[string]string) map[string]int {
	counts := make(map[string]int)
	for _, ev := range u.Events {
		if ev.Type != EventShown {
			continue
		}
		if cat, ok := categoryOf[ev.ActionID]; ok {
			counts[cat]++
		}
	}
	return counts
}

// ActionMetrics holds the per-occurrence impact estimates for an action.
type ActionMetrics struct {
	// MoneySavedPKR is the estimated money saved, in PKR.
	MoneySavedPKR float64 `json:"money_saved_pkr"`

	// TimeSavedMin is the estimated time saved, in minutes.
	TimeSavedMin float64 `json:"time_saved_min"`

	// CO2SavedKG is the estimated carbon avoided, in kilograms.
	CO2SavedKG float64 `json:"co2_saved_kg"`
}

// Action is a candidate climate action from the catalog.
type Action struct {
	// ID is the unique action identifier.
	ID string `json:"id" validate:"required"`

	// Title is the display title.
	Title string `json:"title"`

	// Category groups related actions (transport, food, energy, ...).
	Category string `json:"category" validate:"required"`

	// Tags describe the action for fit and diversity computation.
	Tags []string `json:"tags,omitempty"`

	// Effort is the subjective effort level, non-negative.
	Effort float64 `json:"effort" validate:"gte=0"`

	// Metrics are the estimated impact values.
	Metrics ActionMetrics `json:"metrics"`
}

// ScoredAction is an action with its computed recommendation score.
type ScoredAction struct {
	// Action is the candidate metadata.
	Action Action `json:"action"`

	// Score is the combined recommendation score (higher is better).
	Score float64 `json:"score"`

	// Scores is a breakdown of the sub-scores that produced Score.
	Scores map[string]float64 `json:"scores,omitempty"`

	// Penalized indicates the recent-dismissal penalty was applied.
	Penalized bool `json:"penalized,omitempty"`
}

// Request is a recommendation request.
type Request struct {
	// UserID selects the stored user state. Optional when Persona or
	// Archetypes and Candidates are supplied inline.
	UserID string `json:"user_id,omitempty"`

	// Archetypes are raw quiz scores, mapped to a persona when Persona
	// is not set.
	Archetypes persona.Scores `json:"archetypes,omitempty"`

	// Persona overrides any stored or mapped persona vector.
	Persona *persona.Vector `json:"persona,omitempty"`

	// Flags carry the calendar signals for weight derivation.
	Flags persona.ContextFlags `json:"flags"`

	// Candidates overrides the catalog as the candidate set.
	Candidates []Action `json:"candidates,omitempty"`

	// K is the number of recommendations to return.
	// Defaults to Config.Limits.DefaultK if zero.
	K int `json:"k,omitempty"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// Response is a recommendation response.
type Response struct {
	// Items is the ordered list of recommended actions.
	Items []ScoredAction `json:"items"`

	// TotalCandidates is the number of candidates considered.
	TotalCandidates int `json:"total_candidates"`

	// Weights are the derived weights used for scoring.
	Weights persona.Weights `json:"weights"`

	// Metadata contains timing and diagnostic information.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata contains timing and diagnostic information.
type ResponseMetadata struct {
	// RequestID is the unique request identifier.
	RequestID string `json:"request_id"`

	// UserID is the user the recommendations are for.
	UserID string `json:"user_id,omitempty"`

	// LatencyMS is the total recommendation latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// CacheHit indicates whether the result was served from cache.
	CacheHit bool `json:"cache_hit"`

	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`
}

// Reranker modifies a ranked list for diversity or other objectives.
type Reranker interface {
	// Name returns the reranker identifier (e.g., "mmr").
	Name() string

	// Rerank modifies the order of scored actions to optimize a secondary
	// objective. The input is already sorted by relevance. Returns up to k
	// actions with potentially reordered rankings.
	Rerank(ctx context.Context, items []ScoredAction, k int) []ScoredAction
}

// StateProvider supplies stored user state.
// This is typically implemented by the storage layer.
type StateProvider interface {
	// GetState returns the state for a user. A user with no history
	// yields a zero-valued state, not an error.
	GetState(ctx context.Context, userID string) (UserState, error)
}

// CatalogProvider supplies the action catalog used as the default
// candidate set.
type CatalogProvider interface {
	// ListActions returns all catalog actions.
	ListActions(ctx context.Context) ([]Action, error)
}

// Jaccard computes the Jaccard similarity of two tag lists, matching
// case-insensitively. An empty union yields 0.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[strings.ToLower(t)] = struct{}{}
	}

	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[strings.ToLower(t)] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

// ValidateAction checks a candidate for scorability.
// Returns a *ValidationError describing the first problem found.
func ValidateAction(a Action) error {
	if a.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if a.Category == "" {
		return &ValidationError{Field: "category", Reason: "must not be empty"}
	}
	if a.Effort < 0 {
		return &ValidationError{Field: "effort", Reason: "must be non-negative"}
	}
	for _, m := range []struct {
		name string
		val  float64
	}{
		{"metrics.money_saved_pkr", a.Metrics.MoneySavedPKR},
		{"metrics.time_saved_min", a.Metrics.TimeSavedMin},
		{"metrics.co2_saved_kg", a.Metrics.CO2SavedKG},
	} {
		if math.IsNaN(m.val) || math.IsInf(m.val, 0) {
			return &ValidationError{Field: m.name, Reason: "must be finite"}
		}
	}
	return nil
}
