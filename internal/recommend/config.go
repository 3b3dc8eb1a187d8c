// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package recommend

import (
	"time"

	"github.com/verdantlabs/actionrank/internal/persona"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Diversity contains parameters for diversity reranking.
	Diversity DiversityConfig `json:"diversity" koanf:"diversity"`

	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits" koanf:"limits"`

	// Cache contains caching parameters.
	Cache CacheConfig `json:"cache" koanf:"cache"`

	// MetaDeltas selects how meta-archetype deltas are resolved:
	// "legacy" or "live". Default: legacy.
	MetaDeltas persona.MetaDeltaMode `json:"meta_deltas" koanf:"meta_deltas"`
}

// DiversityConfig contains parameters for diversity reranking.
type DiversityConfig struct {
	// MMRLambda balances relevance vs. diversity in MMR reranking.
	// 1.0 = pure relevance, 0.0 = pure diversity.
	// Default: 0.7.
	MMRLambda float64 `json:"mmr_lambda" koanf:"mmr_lambda"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// DefaultK is the default number of recommendations to return.
	// Default: 10.
	DefaultK int `json:"default_k" koanf:"default_k"`

	// MaxK is the maximum allowed K value.
	// Default: 50.
	MaxK int `json:"max_k" koanf:"max_k"`

	// MaxCandidates is the maximum number of candidates accepted inline
	// on a single request.
	// Default: 1000.
	MaxCandidates int `json:"max_candidates" koanf:"max_candidates"`
}

// CacheConfig contains caching parameters.
type CacheConfig struct {
	// Enabled controls whether response caching is active.
	// Default: true.
	Enabled bool `json:"enabled" koanf:"enabled"`

	// TTL is the cache entry time-to-live.
	// Default: 2m.
	TTL time.Duration `json:"ttl" koanf:"ttl"`

	// MaxEntries is the maximum number of cached entries.
	// Default: 10000.
	MaxEntries int `json:"max_entries" koanf:"max_entries"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Diversity: DiversityConfig{
			MMRLambda: 0.7,
		},
		Limits: LimitsConfig{
			DefaultK:      10,
			MaxK:          50,
			MaxCandidates: 1000,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        2 * time.Minute,
			MaxEntries: 10000,
		},
		MetaDeltas: persona.MetaDeltasLegacy,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Diversity.MMRLambda < 0 || c.Diversity.MMRLambda > 1 {
		return &ConfigurationError{
			Param:  "diversity.mmr_lambda",
			Value:  c.Diversity.MMRLambda,
			Reason: "must be in [0, 1]",
		}
	}
	if c.Limits.DefaultK < 1 {
		return &ConfigurationError{
			Param:  "limits.default_k",
			Value:  c.Limits.DefaultK,
			Reason: "must be positive",
		}
	}
	if c.Limits.MaxK < c.Limits.DefaultK {
		return &ConfigurationError{
			Param:  "limits.max_k",
			Value:  c.Limits.MaxK,
			Reason: "must be >= limits.default_k",
		}
	}
	if c.Limits.MaxCandidates < 1 {
		return &ConfigurationError{
			Param:  "limits.max_candidates",
			Value:  c.Limits.MaxCandidates,
			Reason: "must be positive",
		}
	}
	if c.Cache.TTL < 0 {
		return &ConfigurationError{
			Param:  "cache.ttl",
			Value:  c.Cache.TTL,
			Reason: "must be non-negative",
		}
	}
	if c.Cache.MaxEntries < 1 {
		return &ConfigurationError{
			Param:  "cache.max_entries",
			Value:  c.Cache.MaxEntries,
			Reason: "must be positive",
		}
	}
	if c.MetaDeltas != "" && !c.MetaDeltas.Valid() {
		return &ConfigurationError{
			Param:  "meta_deltas",
			Value:  string(c.MetaDeltas),
			Reason: `must be "legacy" or "live"`,
		}
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	// Direct field copy - all nested structs contain only value types
	return &Config{
		Diversity:  c.Diversity,
		Limits:     c.Limits,
		Cache:      c.Cache,
		MetaDeltas: c.MetaDeltas,
	}
}
