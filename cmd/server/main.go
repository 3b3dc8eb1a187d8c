// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

// Package main is the entry point for the actionrank server.
//
// Actionrank ranks a catalog of climate actions for a user based on a
// persona derived from quiz archetype scores. The server exposes a REST
// API for persona mapping, recommendation requests, interaction events,
// and catalog management, with user state persisted in BadgerDB.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, config file, and environment (Koanf v2)
//  2. Storage: BadgerDB store for user state and the action catalog
//  3. Engine: persona mapping, scoring, and MMR diversity reranking
//  4. HTTP Server: Chi router with the REST API and Prometheus metrics
//  5. Supervisor: suture v4 tree running the server and cleanup sweeper
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml or
// CONFIG_PATH), built-in defaults. Commonly used variables:
//
//	HTTP_HOST, HTTP_PORT        listen address (default 0.0.0.0:8460)
//	LOG_LEVEL, LOG_FORMAT       zerolog level and encoding
//	STORE_PATH                  BadgerDB directory (default ./data/actionrank)
//	STORE_IN_MEMORY             ephemeral store, for development
//	ENGINE_MMR_LAMBDA           relevance/diversity trade-off (default 0.7)
//	ENGINE_META_DELTA_MODE      "legacy" or "live" weight adjustments
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections, drains in-flight requests within the
// configured timeout, then closes the store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/verdantlabs/actionrank/internal/api"
	"github.com/verdantlabs/actionrank/internal/config"
	"github.com/verdantlabs/actionrank/internal/logging"
	"github.com/verdantlabs/actionrank/internal/recommend"
	"github.com/verdantlabs/actionrank/internal/recommend/reranking"
	"github.com/verdantlabs/actionrank/internal/storage"
	"github.com/verdantlabs/actionrank/internal/supervisor"
	"github.com/verdantlabs/actionrank/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet, use the default logger
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("store_path", cfg.Store.Path).
		Bool("in_memory", cfg.Store.InMemory).
		Str("meta_delta_mode", string(cfg.Engine.MetaDeltas)).
		Msg("Configuration loaded")

	store, err := storage.New(cfg.Store, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	engine, err := recommend.NewEngine(&cfg.Engine, logging.Logger(), nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recommendation engine")
	}
	engine.SetStateProvider(store)
	engine.SetCatalogProvider(store)
	engine.RegisterReranker(reranking.NewMMR(cfg.Engine.Diversity.MMRLambda))
	logging.Info().
		Float64("mmr_lambda", cfg.Engine.Diversity.MMRLambda).
		Bool("cache", cfg.Engine.Cache.Enabled).
		Msg("Recommendation engine ready")

	handler := api.NewHandler(engine, store, logging.Logger())
	mw := api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.API.CORSOrigins,
		RateLimitRequests:  cfg.API.RateLimitReqs,
		RateLimitWindow:    cfg.API.RateLimitWindow,
		RateLimitDisabled:  cfg.API.RateLimitDisabled,
	})
	router := api.NewRouter(handler, mw).Setup()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddStorageService(services.NewCleanupService(store, cfg.Store.CleanupInterval, logging.Logger()))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor has fully stopped
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped gracefully")
}
