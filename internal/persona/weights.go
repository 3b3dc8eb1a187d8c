// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package persona

// Weights is the scoring weight vector derived from a persona vector and
// calendar signals. Values are multipliers, not probabilities; context
// boosts and meta-archetype deltas can push individual fields above 1 or
// below 0 and the scorer tolerates both.
type Weights struct {
	// PKR weights the money-saved metric (price-to-krona return).
	PKR float64 `json:"pkr"`
	// Time weights the time-saved metric.
	Time float64 `json:"time"`
	// CO2 weights the carbon-avoided metric.
	CO2 float64 `json:"co2"`
	// Effort scales the effort penalty.
	Effort float64 `json:"effort"`
	// Novelty rewards actions the user has rarely seen.
	Novelty float64 `json:"novelty"`
	// Recency rewards actions that have rested since their last event.
	Recency float64 `json:"recency"`
	// Diversity rewards under-shown categories.
	Diversity float64 `json:"diversity"`
	// Fit weights tag overlap between the action and the user's interests.
	Fit float64 `json:"fit"`
}

// BaseWeights returns the neutral starting weights applied before any
// persona deltas or calendar boosts.
func BaseWeights() Weights {
	return Weights{
		PKR:       1.0,
		Time:      1.0,
		CO2:       1.0,
		Effort:    1.0,
		Novelty:   0.7,
		Recency:   0.8,
		Diversity: 0.6,
		Fit:       1.0,
	}
}

// Calendar boost constants.
const (
	// sprintTimeBoost is added to the time weight during a sprint week,
	// when users favor quick wins.
	sprintTimeBoost = 0.4
	// monthEndPKRBoost is added to the money weight near month end, when
	// budgets are tight.
	monthEndPKRBoost = 0.2
)

// ContextFlags carries the calendar signals that adjust derived weights.
type ContextFlags struct {
	// SprintWeek is set during a challenge sprint week.
	SprintWeek bool `json:"sprint_week"`
	// MonthEnd is set during the last days of a calendar month.
	MonthEnd bool `json:"month_end"`
}

// MetaDeltaMode selects how meta-archetype delta intensity is resolved
// against the persona vector.
type MetaDeltaMode string

const (
	// MetaDeltasLegacy resolves delta intensity by looking up the
	// meta-archetype display name as a persona dimension. Display names
	// are not dimensions, so the lookup always misses and the deltas are
	// inert. This is the default because it preserves the ranking output
	// shipped to users so far.
	MetaDeltasLegacy MetaDeltaMode = "legacy"

	// MetaDeltasLive resolves delta intensity through the dimension alias
	// of each meta-archetype, making the deltas scale with the persona.
	MetaDeltasLive MetaDeltaMode = "live"
)

// Valid reports whether the mode is a known MetaDeltaMode.
func (m MetaDeltaMode) Valid() bool {
	return m == MetaDeltasLegacy || m == MetaDeltasLive
}

// metaArchetype is a behavioral overlay with weight deltas that scale with
// how strongly the persona expresses its dimension.
type metaArchetype struct {
	// name is the display name used as the lookup key in legacy mode.
	name string
	// dimension is the persona dimension the overlay reads in live mode.
	dimension string
	// deltas are added to the weights, scaled by the resolved intensity.
	deltas Weights
}

var metaArchetypes = []metaArchetype{
	{
		name:      "TimeSaver",
		dimension: "time",
		deltas:    Weights{Time: 0.8, Effort: 0.4, PKR: 0.2},
	},
	{
		name:      "MoneyMax",
		dimension: "money",
		deltas:    Weights{PKR: 0.9, Effort: 0.2, CO2: -0.1},
	},
	{
		name:      "EcoGuardian",
		dimension: "carbon",
		deltas:    Weights{CO2: 1.0, Novelty: 0.2},
	},
	{
		name:      "SocialSharer",
		dimension: "social",
		deltas:    Weights{Diversity: 0.5, Novelty: 0.4, Fit: 0.2},
	},
}

// Deriver derives scoring weights from persona vectors. It is stateless and
// safe for concurrent use.
type Deriver struct {
	mode MetaDeltaMode
}

// NewDeriver creates a Deriver with the given meta-delta mode. An empty or
// unknown mode falls back to legacy resolution.
func NewDeriver(mode MetaDeltaMode) *Deriver {
	if !mode.Valid() {
		mode = MetaDeltasLegacy
	}
	return &Deriver{mode: mode}
}

// Mode returns the deriver's meta-delta mode.
func (d *Deriver) Mode() MetaDeltaMode {
	return d.mode
}

// Derive produces the weight vector for a persona under the given calendar
// signals. The same inputs always produce identical weights.
func (d *Deriver) Derive(vec Vector, flags ContextFlags) Weights {
	w := BaseWeights()

	for _, m := range metaArchetypes {
		intensity := d.intensity(vec, m)
		if intensity == 0 {
			continue
		}
		w = w.addScaled(m.deltas, intensity)
	}

	if flags.SprintWeek {
		w.Time += sprintTimeBoost
	}
	if flags.MonthEnd {
		w.PKR += monthEndPKRBoost
	}

	return w
}

// intensity resolves how strongly the persona expresses a meta-archetype.
func (d *Deriver) intensity(vec Vector, m metaArchetype) float64 {
	key := m.name
	if d.mode == MetaDeltasLive {
		key = m.dimension
	}
	val, _ := vec.Dimension(key)
	return val
}

// addScaled returns w with delta*f added field-wise.
func (w Weights) addScaled(delta Weights, f float64) Weights {
	return Weights{
		PKR:       w.PKR + delta.PKR*f,
		Time:      w.Time + delta.Time*f,
		CO2:       w.CO2 + delta.CO2*f,
		Effort:    w.Effort + delta.Effort*f,
		Novelty:   w.Novelty + delta.Novelty*f,
		Recency:   w.Recency + delta.Recency*f,
		Diversity: w.Diversity + delta.Diversity*f,
		Fit:       w.Fit + delta.Fit*f,
	}
}
