// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

// Package persona maps quiz archetype scores onto the motivation model that
// drives recommendation scoring.
//
// The quiz produces a score per archetype (Catalyst, Navigator, ...). The
// Mapper projects those scores through a fixed bridge matrix into a
// nine-dimensional persona vector describing what actually motivates the
// user: saving money, saving time, comfort, health, carbon impact, mastery,
// social connection, certainty, and streak momentum. The Deriver then turns
// a persona vector plus calendar signals into the weight vector consumed by
// the scorer.
package persona

// Archetype identifies one of the eight quiz result archetypes.
type Archetype string

// The eight quiz archetypes.
const (
	ArchetypeCatalyst   Archetype = "Catalyst"
	ArchetypeNavigator  Archetype = "Navigator"
	ArchetypeGuardian   Archetype = "Guardian"
	ArchetypePathfinder Archetype = "Pathfinder"
	ArchetypeHarmonizer Archetype = "Harmonizer"
	ArchetypeBuilder    Archetype = "Builder"
	ArchetypeVisionary  Archetype = "Visionary"
	ArchetypeSteward    Archetype = "Steward"
)

// Archetypes lists all known archetypes in canonical order.
func Archetypes() []Archetype {
	return []Archetype{
		ArchetypeCatalyst,
		ArchetypeNavigator,
		ArchetypeGuardian,
		ArchetypePathfinder,
		ArchetypeHarmonizer,
		ArchetypeBuilder,
		ArchetypeVisionary,
		ArchetypeSteward,
	}
}

// Scores holds the raw quiz score per archetype. Missing archetypes are
// treated as zero; negative scores are clamped to zero during mapping.
type Scores map[Archetype]float64

// Vector is the nine-dimensional persona motivation vector. A mapped vector
// is normalized so its components sum to 1 (all-zero input stays all-zero).
type Vector struct {
	Money     float64 `json:"money"`
	Time      float64 `json:"time"`
	Comfort   float64 `json:"comfort"`
	Health    float64 `json:"health"`
	Carbon    float64 `json:"carbon"`
	Mastery   float64 `json:"mastery"`
	Social    float64 `json:"social"`
	Certainty float64 `json:"certainty"`
	Streak    float64 `json:"streak"`
}

// normFloor guards the normalization divisor against division by zero.
const normFloor = 1e-6

// bridge is the fixed archetype-to-motivation projection. Each row sums
// to 1.0 so a single-archetype result maps directly onto its row.
var bridge = map[Archetype]Vector{
	ArchetypeCatalyst:   {Money: 0.10, Time: 0.12, Comfort: 0.08, Health: 0.10, Carbon: 0.12, Mastery: 0.10, Social: 0.13, Certainty: 0.05, Streak: 0.20},
	ArchetypeNavigator:  {Money: 0.12, Time: 0.15, Comfort: 0.08, Health: 0.08, Carbon: 0.10, Mastery: 0.12, Social: 0.05, Certainty: 0.20, Streak: 0.10},
	ArchetypeGuardian:   {Money: 0.10, Time: 0.08, Comfort: 0.14, Health: 0.22, Carbon: 0.10, Mastery: 0.06, Social: 0.06, Certainty: 0.14, Streak: 0.10},
	ArchetypePathfinder: {Money: 0.08, Time: 0.10, Comfort: 0.06, Health: 0.10, Carbon: 0.10, Mastery: 0.22, Social: 0.12, Certainty: 0.06, Streak: 0.16},
	ArchetypeHarmonizer: {Money: 0.08, Time: 0.08, Comfort: 0.12, Health: 0.10, Carbon: 0.12, Mastery: 0.08, Social: 0.24, Certainty: 0.08, Streak: 0.10},
	ArchetypeBuilder:    {Money: 0.22, Time: 0.14, Comfort: 0.10, Health: 0.06, Carbon: 0.08, Mastery: 0.14, Social: 0.06, Certainty: 0.10, Streak: 0.10},
	ArchetypeVisionary:  {Money: 0.06, Time: 0.08, Comfort: 0.06, Health: 0.08, Carbon: 0.24, Mastery: 0.12, Social: 0.10, Certainty: 0.06, Streak: 0.20},
	ArchetypeSteward:    {Money: 0.10, Time: 0.08, Comfort: 0.10, Health: 0.12, Carbon: 0.20, Mastery: 0.08, Social: 0.08, Certainty: 0.16, Streak: 0.08},
}

// Bridge returns the bridge row for an archetype.
// The second return is false for unknown archetypes.
func Bridge(a Archetype) (Vector, bool) {
	row, ok := bridge[a]
	return row, ok
}

// Sum returns the sum of all vector components.
func (v Vector) Sum() float64 {
	return v.Money + v.Time + v.Comfort + v.Health + v.Carbon +
		v.Mastery + v.Social + v.Certainty + v.Streak
}

// Normalized returns the vector scaled so its components sum to 1.
// The divisor is floored at normFloor, so a zero vector stays zero
// rather than producing NaN.
func (v Vector) Normalized() Vector {
	sum := v.Sum()
	if sum < normFloor {
		sum = normFloor
	}
	return v.Scale(1 / sum)
}

// Scale returns the vector with every component multiplied by f.
func (v Vector) Scale(f float64) Vector {
	return Vector{
		Money:     v.Money * f,
		Time:      v.Time * f,
		Comfort:   v.Comfort * f,
		Health:    v.Health * f,
		Carbon:    v.Carbon * f,
		Mastery:   v.Mastery * f,
		Social:    v.Social * f,
		Certainty: v.Certainty * f,
		Streak:    v.Streak * f,
	}
}

// add accumulates w into v component-wise.
func (v Vector) add(w Vector) Vector {
	return Vector{
		Money:     v.Money + w.Money,
		Time:      v.Time + w.Time,
		Comfort:   v.Comfort + w.Comfort,
		Health:    v.Health + w.Health,
		Carbon:    v.Carbon + w.Carbon,
		Mastery:   v.Mastery + w.Mastery,
		Social:    v.Social + w.Social,
		Certainty: v.Certainty + w.Certainty,
		Streak:    v.Streak + w.Streak,
	}
}

// Dimension returns the named component of the vector.
// The second return is false when name is not a persona dimension.
func (v Vector) Dimension(name string) (float64, bool) {
	switch name {
	case "money":
		return v.Money, true
	case "time":
		return v.Time, true
	case "comfort":
		return v.Comfort, true
	case "health":
		return v.Health, true
	case "carbon":
		return v.Carbon, true
	case "mastery":
		return v.Mastery, true
	case "social":
		return v.Social, true
	case "certainty":
		return v.Certainty, true
	case "streak":
		return v.Streak, true
	default:
		return 0, false
	}
}

// Map projects archetype scores through the bridge matrix into a normalized
// persona vector. Unknown archetypes are ignored and negative scores are
// clamped to zero, so a higher score for an archetype never lowers any
// motivation dimension.
func Map(scores Scores) Vector {
	var acc Vector
	for _, a := range Archetypes() {
		score := scores[a]
		if score <= 0 {
			continue
		}
		acc = acc.add(bridge[a].Scale(score))
	}
	return acc.Normalized()
}
