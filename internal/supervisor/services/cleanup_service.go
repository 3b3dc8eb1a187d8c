// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/verdantlabs/actionrank/internal/metrics"
)

// StateCleaner matches the storage.Store maintenance methods.
type StateCleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
	RunGC()
}

// CleanupService periodically prunes expired interaction events and runs
// badger value log garbage collection. One sweep failure is logged and
// recorded, not fatal; the next tick retries.
type CleanupService struct {
	cleaner  StateCleaner
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewCleanupService creates a supervised cleanup sweeper. Zero or negative
// interval means hourly.
func NewCleanupService(cleaner StateCleaner, interval time.Duration, logger zerolog.Logger) *CleanupService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupService{
		cleaner:  cleaner,
		interval: interval,
		logger:   logger.With().Str("component", "cleanup").Logger(),
		name:     "store-cleanup",
	}
}

// Serve implements suture.Service.
func (c *CleanupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *CleanupService) sweep(ctx context.Context) {
	pruned, err := c.cleaner.CleanupExpired(ctx)
	metrics.RecordCleanup(pruned, err)
	if err != nil {
		c.logger.Warn().Err(err).Msg("State cleanup failed")
		return
	}
	if pruned > 0 {
		c.logger.Debug().Int("pruned", pruned).Msg("Pruned stale events")
	}
	c.cleaner.RunGC()
}

// String implements fmt.Stringer for supervisor log messages.
func (c *CleanupService) String() string {
	return c.name
}
