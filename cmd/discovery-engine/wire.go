// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/api"
	"github.com/plantedfoods/discovery-engine/internal/config"
	"github.com/plantedfoods/discovery-engine/internal/credentials"
	"github.com/plantedfoods/discovery-engine/internal/discovery"
	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/events"
	"github.com/plantedfoods/discovery-engine/internal/extraction"
	"github.com/plantedfoods/discovery-engine/internal/logging"
	"github.com/plantedfoods/discovery-engine/internal/planner"
	"github.com/plantedfoods/discovery-engine/internal/resilience"
	"github.com/plantedfoods/discovery-engine/internal/review"
	"github.com/plantedfoods/discovery-engine/internal/store"
	"github.com/plantedfoods/discovery-engine/internal/syncengine"
)

// app bundles every wired dependency a subcommand needs. Built once
// per invocation by buildApp.
type app struct {
	cfg        *config.Config
	store      *store.Store
	pool       *credentials.Pool
	planner    *planner.Planner
	discovery  *discovery.Executor
	extraction *extraction.Executor
	verifier   *review.AutoVerifier
	queue      *review.Queue
	sync       *syncengine.Executor
	bus        *events.Bus
	server     *api.Server

	closeFns []func()
}

func (a *app) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
}

// buildApp wires the full dependency graph following the same
// config-then-logging-then-store-then-services order as cmd/server's
// main, restructured around the CLI's one-shot subcommands rather
// than an always-on daemon.
func buildApp(ctx context.Context, opts runOptions) (*app, error) {
	if opts.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, opts.configPath); err != nil {
			return nil, fmt.Errorf("set %s: %w", config.ConfigPathEnvVar, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logLevel := cfg.LogLevel
	if opts.verbose {
		logLevel = "debug"
	}
	logging.Init(logging.Config{Level: logLevel, Format: cfg.LogFormat})

	st, err := store.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	a := &app{cfg: cfg, store: st, closeFns: []func(){func() { _ = st.Close() }}}

	pool, err := credentials.NewPool(ctx, st)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("credentials: %w", err)
	}
	if err := bootstrapSearchCredential(ctx, st); err != nil {
		a.Close()
		return nil, fmt.Errorf("credentials bootstrap: %w", err)
	}
	a.pool = pool
	a.planner = planner.New(st)

	ceiling := resilience.NewGlobalCeiling(cfg.RateLimit.GlobalDailyCeiling)

	classifier := discovery.NewHeuristicClassifier()
	a.discovery = discovery.New(st, pool, discovery.NewGoogleSearchClient(nil), classifier, 10000, 24*time.Hour).
		WithGlobalCeiling(ceiling)

	driver, err := extraction.NewChromedpDriver(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("extraction driver: %w", err)
	}
	fetcher := extraction.NewPageFetcher(extraction.DefaultStealthConfig(), driver)
	a.extraction = extraction.New(st, fetcher, "brand", pacingByPlatform(cfg.RateLimit)).
		WithGlobalCeiling(ceiling)

	a.verifier = review.New(st)
	a.queue = review.NewQueue(st)
	a.sync = syncengine.NewExecutor(st)

	bus, err := events.NewBus(cfg.Events, cfg.Notification.WebhookURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("events: %w", err)
	}
	a.closeFns = append(a.closeFns, func() { _ = bus.Close() })
	a.bus = bus

	a.server = api.NewServer(st, a.queue, a.sync, bus, cfg.Server.CORSOrigins, cfg.Server.MetricsEnabled)

	return a, nil
}

// pacingByPlatform gives every delivery platform the same configured
// cadence; SPEC_FULL §4.4 allows per-platform overrides but the config
// file only exposes one rateLimit section today.
func pacingByPlatform(rl config.RateLimitConfig) map[domain.PlatformTag]resilience.PacingConfig {
	pacing := resilience.PacingConfig{
		MinDelay:     rl.MinDelay,
		MaxDelay:     rl.MaxDelay,
		BatchSize:    rl.BatchSize,
		BatchDelay:   rl.BatchDelay,
		MaxPerMinute: rl.MaxPerMinute,
		MaxPerHour:   rl.MaxPerHour,
		MaxPerDay:    rl.MaxPerDay,
	}
	out := make(map[domain.PlatformTag]resilience.PacingConfig, len(domain.AllPlatforms))
	for _, p := range domain.AllPlatforms {
		out[p] = pacing
	}
	return out
}

// bootstrapSearchCredential seeds one search_credentials row from the
// DISCOVERY_SEARCH_API_KEY / DISCOVERY_SEARCH_ENGINE_ID environment
// variables the first time the pool is empty, per spec.md §6's
// "environment variables: credentials for search provider(s)". These
// two are deliberately not koanf-bound config fields: they are
// secrets, not configuration, and belong outside any file that might
// be checked in.
func bootstrapSearchCredential(ctx context.Context, st *store.Store) error {
	existing, err := st.ListSearchCredentials(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	apiKey := os.Getenv("DISCOVERY_SEARCH_API_KEY")
	engineID := os.Getenv("DISCOVERY_SEARCH_ENGINE_ID")
	if apiKey == "" || engineID == "" {
		return nil
	}
	now := time.Now().UTC()
	return st.UpsertSearchCredential(ctx, &domain.SearchCredential{
		ID:             "primary",
		APIKey:         apiKey,
		SearchEngineID: engineID,
		DailyQuota:     100,
		LastResetDate:  now.Format("2006-01-02"),
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}
