// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

// Package logging provides centralized zerolog-based structured logging
// for the discovery engine.
//
// # Quick Start
//
//	import "github.com/plantedfoods/discovery-engine/internal/logging"
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("run", runID).Msg("discovery run started")
//	logging.Ctx(ctx).Info().Str("strategy", strategyID).Msg("query executed")
//
// # Configuration
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - true, false (default: false)
//
// # Structured Logging Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// # Component Loggers
//
//	discoveryLog := logging.With().Str("component", "discovery").Logger()
//
// # Context-Aware Logging
//
// Every run carries a correlation ID through ctx; logging.Ctx(ctx)
// attaches it automatically to every line emitted for that run.
package logging
