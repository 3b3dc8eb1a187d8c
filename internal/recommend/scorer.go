// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package recommend

import (
	"math"
	"time"

	"github.com/verdantlabs/actionrank/internal/persona"
)

// Scoring constants. The dismissal penalty is part of the product contract:
// an action dismissed in the last 30 days scores at exactly 70% of what it
// would otherwise.
const (
	// dismissalWindow is how long a dismissal suppresses an action.
	dismissalWindow = 30 * 24 * time.Hour

	// dismissalPenalty is the multiplier applied inside the window.
	dismissalPenalty = 0.7

	// recencyTimescale controls how fast an action recovers after any
	// event. At one timescale the recency sub-score reaches ~63%.
	recencyTimescale = 14 * 24 * time.Hour

	// Metric saturation scales. A metric at its scale value squashes
	// to 0.5; beyond it returns diminish.
	moneyScalePKR = 50.0
	timeScaleMin  = 30.0
	co2ScaleKG    = 5.0
)

// Sub-score keys used in ScoredAction.Scores breakdowns.
const (
	SubScoreUtility   = "utility"
	SubScoreEffort    = "effort"
	SubScoreFit       = "fit"
	SubScoreNovelty   = "novelty"
	SubScoreRecency   = "recency"
	SubScoreDiversity = "diversity"
)

// Scorer computes recommendation scores for candidate actions.
// The clock is injected so rankings are reproducible in tests.
// A Scorer is stateless and safe for concurrent use.
type Scorer struct {
	now func() time.Time
}

// NewScorer creates a Scorer. A nil clock defaults to time.Now.
func NewScorer(now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{now: now}
}

// Score computes the combined score for one candidate.
//
// The combined formula is
//
//	avg(wPKR, wTime, wCO2)*U - wEffort*E + wFit*F + wNovelty*N + wRecency*RC + wDiversity*D
//
// where U is the squashed impact utility, E the effort penalty, F the
// tag-interest fit, N the novelty, RC the recency recovery and D the
// category diversity. If the user dismissed the action within the last
// 30 days the result is multiplied by 0.7.
//
//nolint:gocritic // hugeParam: action and user passed by value for immutability
func (s *Scorer) Score(action Action, user UserState, w persona.Weights, shownByCategory map[string]int) ScoredAction {
	now := s.now()

	u := s.utility(action.Metrics)
	e := s.effortPenalty(action.Effort)
	f := Jaccard(action.Tags, user.Interests)
	n := s.novelty(&user, action.ID)
	rc := s.recency(&user, action.ID, now)
	d := s.diversity(shownByCategory, action.Category)

	impactWeight := (w.PKR + w.Time + w.CO2) / 3

	score := impactWeight*u - w.Effort*e + w.Fit*f + w.Novelty*n + w.Recency*rc + w.Diversity*d

	penalized := user.DismissedWithin(action.ID, dismissalWindow, now)
	if penalized {
		score *= dismissalPenalty
	}

	return ScoredAction{
		Action:    action,
		Score:     score,
		Penalized: penalized,
		Scores: map[string]float64{
			SubScoreUtility:   u,
			SubScoreEffort:    e,
			SubScoreFit:       f,
			SubScoreNovelty:   n,
			SubScoreRecency:   rc,
			SubScoreDiversity: d,
		},
	}
}

// utility blends the squashed impact metrics into a [0, 1) value.
func (s *Scorer) utility(m ActionMetrics) float64 {
	return (squash(m.MoneySavedPKR/moneyScalePKR) +
		squash(m.TimeSavedMin/timeScaleMin) +
		squash(m.CO2SavedKG/co2ScaleKG)) / 3
}

// effortPenalty maps effort monotonically into [0, 1).
func (s *Scorer) effortPenalty(effort float64) float64 {
	return squash(effort)
}

// novelty decays with how often the action has been shown.
func (s *Scorer) novelty(user *UserState, actionID string) float64 {
	return 1 / (1 + float64(user.ShownCount(actionID)))
}

// recency rewards actions that have rested since their last event.
// An action with no history is fully rested.
func (s *Scorer) recency(user *UserState, actionID string, now time.Time) float64 {
	last, ok := user.LastEventAt(actionID)
	if !ok {
		return 1.0
	}
	age := now.Sub(last)
	if age < 0 {
		age = 0
	}
	return 1 - math.Exp(-float64(age)/float64(recencyTimescale))
}

// diversity decays with how often the action's category has been shown.
func (s *Scorer) diversity(shownByCategory map[string]int, category string) float64 {
	return 1 / (1 + float64(shownByCategory[category]))
}

// squash maps [0, inf) into [0, 1) with diminishing returns.
// Negative inputs clamp to 0.
func squash(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return x / (1 + x)
}
