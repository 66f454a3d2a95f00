// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package extraction

import (
	"context"
	"fmt"

	"github.com/plantedfoods/discovery-engine/internal/store"
)

// LearningRecordKey is the system_metadata key the extraction learning
// hook is persisted under. No package reads this key back: the planner
// orders strategies from the strategy rows' own counters.
const LearningRecordKey = "extraction_learning_record"

// PlatformOutcome summarizes one platform's results for a single run,
// feeding LearningRecord.PlatformSuccessRates.
type PlatformOutcome struct {
	Platform string
	Attempts int
	Succeeded int
}

// LearningRecord is the structured summary the extractor writes after
// a run when RunConfig.Learn is set, per SPEC_FULL §4.4's "learning
// hook".
type LearningRecord struct {
	PlatformSuccessRates map[string]float64 `json:"platform_success_rates"`
	StrategyHitCounts    map[string]int     `json:"strategy_hit_counts"`
	CommonFailureModes   map[string]int     `json:"common_failure_modes"`
}

// buildLearningRecord folds per-run outcomes into a LearningRecord.
func buildLearningRecord(outcomes []PlatformOutcome, strategyHits map[string]int, failureModes map[string]int) LearningRecord {
	rec := LearningRecord{
		PlatformSuccessRates: map[string]float64{},
		StrategyHitCounts:    strategyHits,
		CommonFailureModes:   failureModes,
	}
	for _, o := range outcomes {
		if o.Attempts == 0 {
			continue
		}
		rec.PlatformSuccessRates[o.Platform] = 100 * float64(o.Succeeded) / float64(o.Attempts)
	}
	return rec
}

// persistLearningRecord merges rec into whatever learning record
// already exists under LearningRecordKey, so repeated runs accumulate
// strategy hit counts and failure modes rather than overwriting them.
func persistLearningRecord(ctx context.Context, st *store.Store, rec LearningRecord) error {
	var existing LearningRecord
	err := st.GetSystemMetadata(ctx, LearningRecordKey, &existing)
	if err != nil && err != store.ErrNotFound {
		return fmt.Errorf("extraction: load learning record: %w", err)
	}
	if existing.PlatformSuccessRates == nil {
		existing.PlatformSuccessRates = map[string]float64{}
	}
	if existing.StrategyHitCounts == nil {
		existing.StrategyHitCounts = map[string]int{}
	}
	if existing.CommonFailureModes == nil {
		existing.CommonFailureModes = map[string]int{}
	}

	for platform, rate := range rec.PlatformSuccessRates {
		existing.PlatformSuccessRates[platform] = rate
	}
	for strategy, count := range rec.StrategyHitCounts {
		existing.StrategyHitCounts[strategy] += count
	}
	for mode, count := range rec.CommonFailureModes {
		existing.CommonFailureModes[mode] += count
	}

	if err := st.SetSystemMetadata(ctx, LearningRecordKey, existing); err != nil {
		return fmt.Errorf("extraction: persist learning record: %w", err)
	}
	return nil
}
