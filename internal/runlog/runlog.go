// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

// Package runlog provides structured, per-run event logging for
// discovery and extraction runs. It is the discovery-engine analogue
// of the teacher's internal/eventprocessor EventLogger, adapted from
// media-pipeline events (received/processed/failed) to query and
// venue/dish lifecycle events.
package runlog

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/plantedfoods/discovery-engine/internal/logging"
)

// RunLogger emits structured events for one discovery or extraction
// run, always tagged with the run's correlation id.
type RunLogger struct {
	logger zerolog.Logger
	runID  string
}

// New returns a RunLogger bound to ctx's correlation id and runID.
func New(ctx context.Context, runID string) *RunLogger {
	return &RunLogger{
		logger: logging.LoggerFromContext(ctx).With().Str("run_id", runID).Logger(),
		runID:  runID,
	}
}

// QueryExecuted logs one planner query's execution outcome.
func (r *RunLogger) QueryExecuted(strategyID, query string, hits int, err error) {
	ev := r.logger.Info()
	if err != nil {
		ev = r.logger.Warn().Err(err)
	}
	ev.Str("strategy_id", strategyID).Str("query", query).Int("hits", hits).Msg("query executed")
}

// VenueDiscovered logs a new or merged staged venue.
func (r *RunLogger) VenueDiscovered(venueID, name string, confidence float64, merged bool) {
	r.logger.Info().Str("venue_id", venueID).Str("name", name).
		Float64("confidence", confidence).Bool("merged", merged).Msg("venue discovered")
}

// VenueClassified logs the classifier's verdict prior to persistence.
func (r *RunLogger) VenueClassified(name string, confidence float64, factors int) {
	r.logger.Debug().Str("name", name).Float64("confidence", confidence).
		Int("factors", factors).Msg("venue classified")
}

// CredentialExhausted logs backpressure from the credential pool.
func (r *RunLogger) CredentialExhausted() {
	r.logger.Warn().Msg("credential pool exhausted, surrendering remaining budget")
}

// DishExtracted logs one extracted, brand-matching dish.
func (r *RunLogger) DishExtracted(venueID, dishName, productTag string, confidence float64) {
	r.logger.Info().Str("venue_id", venueID).Str("dish", dishName).
		Str("product_tag", productTag).Float64("confidence", confidence).Msg("dish extracted")
}

// ExtractionFailed logs a non-retryable or exhausted-retry extraction
// failure for one venue.
func (r *RunLogger) ExtractionFailed(venueID string, err error) {
	r.logger.Error().Str("venue_id", venueID).Err(err).Msg("extraction failed")
}

// VenuePromoted logs a staging-to-production promotion.
func (r *RunLogger) VenuePromoted(stagingID, productionID string) {
	r.logger.Info().Str("staging_venue_id", stagingID).
		Str("production_venue_id", productionID).Msg("venue promoted")
}

// RunCompleted logs the terminal summary of a run.
func (r *RunLogger) RunCompleted(summary map[string]any) {
	ev := r.logger.Info()
	for k, v := range summary {
		ev = ev.Interface(k, v)
	}
	ev.Msg("run completed")
}
