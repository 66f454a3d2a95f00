// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package main

import (
	"fmt"

	"github.com/plantedfoods/discovery-engine/internal/discovery"
	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/extraction"
	"github.com/plantedfoods/discovery-engine/internal/planner"
	"github.com/plantedfoods/discovery-engine/internal/syncengine"
)

// printDiscoveryTable renders the per-tier queries used and the run
// report's totals (queries executed and classified, venues discovered,
// chains detected, credentials exhausted). It prints no counts of
// candidates accepted or rejected.
func printDiscoveryTable(plan *planner.QueryPlan, report *discovery.RunReport) {
	fmt.Println("discovery:")
	for _, tier := range []planner.Tier{
		planner.TierChainEnumeration, planner.TierHighYield,
		planner.TierCityExploration, planner.TierExperimental,
	} {
		fmt.Printf("  %-22s queries used: %d\n", tier, plan.TierCounts[tier])
	}
	fmt.Printf("  queries executed:    %d\n", report.QueriesExecuted)
	fmt.Printf("  queries classified:  %d\n", report.QueriesClassified)
	fmt.Printf("  venues discovered:   %d\n", report.VenuesDiscovered)
	fmt.Printf("  chains detected:     %d\n", report.ChainsDetected)
	if report.CredentialsExhausted > 0 {
		fmt.Printf("  credential pool exhausted %d time(s)\n", report.CredentialsExhausted)
	}
}

func printExtractionTable(report *extraction.RunReport) {
	fmt.Println("extraction:")
	fmt.Printf("  venues attempted:    %d\n", report.VenuesAttempted)
	fmt.Printf("  venues ok:           %d\n", report.VenuesSucceeded)
	fmt.Printf("  venues failed:       %d\n", report.VenuesFailed)
	fmt.Printf("  dishes found:        %d\n", report.DishesFound)
	fmt.Printf("  dishes needing review: %d\n", report.DishesNeedingReview)
}

func printReviewTable(pending, verified, rejected, needsReview int) {
	fmt.Println("review:")
	fmt.Printf("  pending:             %d\n", pending)
	fmt.Printf("  auto-verified:       %d\n", verified)
	fmt.Printf("  auto-rejected:       %d\n", rejected)
	fmt.Printf("  left for human review: %d\n", needsReview)
}

func printSyncPreviewTable(preview *syncengine.PreviewReport) {
	fmt.Println("sync (preview):")
	fmt.Printf("  additions:           %d\n", preview.Stats.Additions)
	fmt.Printf("  updates:             %d\n", preview.Stats.Updates)
	fmt.Printf("  potential removals:  %d\n", preview.Stats.PotentialRemovals)
}

func printSyncExecuteTable(record *domain.SyncHistoryRecord) {
	fmt.Println("sync (executed):")
	fmt.Printf("  added:               %d\n", record.Added)
	fmt.Printf("  updated:             %d\n", record.Updated)
	fmt.Printf("  failed:              %d\n", record.Failed)
}
