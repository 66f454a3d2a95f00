// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

// Package syncengine implements sync preview and sync execute, the
// second half of C5: diffing verified staging entities against
// production and atomically promoting approved records.
package syncengine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/store"
)

// Addition is a verified staged venue with no production counterpart
// yet, along with its pre-aggregated dish counts.
type Addition struct {
	Venue  *domain.DiscoveredVenue
	Dishes store.DishCounts
}

// Update is a verified staged venue whose promoted production
// counterpart has drifted, naming which fields changed.
type Update struct {
	Venue         *domain.DiscoveredVenue
	Production    *domain.ProductionVenue
	ChangedFields []string
}

// PotentialRemoval is a production venue whose last_verified timestamp
// has aged past domain.ArchivedAfter without a fresh verification.
type PotentialRemoval struct {
	Venue *domain.ProductionVenue
}

// Stats aggregates totals per preview category.
type Stats struct {
	Additions         int `json:"additions"`
	Updates           int `json:"updates"`
	PotentialRemovals int `json:"potential_removals"`
}

// PreviewReport is the full sync-preview result.
type PreviewReport struct {
	Additions         []Addition         `json:"additions"`
	Updates           []Update           `json:"updates"`
	PotentialRemovals []PotentialRemoval `json:"potential_removals"`
	Stats             Stats              `json:"stats"`
}

// Preview diffs staging against production per SPEC_FULL §4.5: verified
// staged entities with no production id are additions, verified staged
// entities whose mapped production entity has drifted are updates, and
// production venues unverified for more than domain.ArchivedAfter are
// potential removals.
func Preview(ctx context.Context, st *store.Store) (*PreviewReport, error) {
	candidates, err := st.ListVerifiedVenuesWithoutProduction(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncengine: list addition candidates: %w", err)
	}
	dishCounts, err := st.AggregateDishCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncengine: aggregate dish counts: %w", err)
	}

	report := &PreviewReport{}
	for _, v := range candidates {
		report.Additions = append(report.Additions, Addition{Venue: v, Dishes: dishCounts[v.ID]})
	}

	updateCandidates, err := st.ListVerifiedVenuesWithProduction(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncengine: list update candidates: %w", err)
	}
	allProduction, err := st.ListAllProductionVenues(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncengine: list production venues: %w", err)
	}
	byID := make(map[string]*domain.ProductionVenue, len(allProduction))
	for _, p := range allProduction {
		byID[p.ID] = p
	}

	for _, v := range updateCandidates {
		production, ok := byID[v.ProductionVenueID]
		if !ok {
			continue
		}
		changed := changedFields(v, production)
		if len(changed) > 0 {
			report.Updates = append(report.Updates, Update{Venue: v, Production: production, ChangedFields: changed})
		}
	}

	removalCutoff := time.Now().Add(-domain.ArchivedAfter)
	for _, p := range allProduction {
		if p.LastVerified.Before(removalCutoff) {
			report.PotentialRemovals = append(report.PotentialRemovals, PotentialRemoval{Venue: p})
		}
	}

	sort.Slice(report.Additions, func(i, j int) bool { return report.Additions[i].Venue.ID < report.Additions[j].Venue.ID })
	sort.Slice(report.Updates, func(i, j int) bool { return report.Updates[i].Venue.ID < report.Updates[j].Venue.ID })
	sort.Slice(report.PotentialRemovals, func(i, j int) bool { return report.PotentialRemovals[i].Venue.ID < report.PotentialRemovals[j].Venue.ID })

	report.Stats = Stats{
		Additions:         len(report.Additions),
		Updates:           len(report.Updates),
		PotentialRemovals: len(report.PotentialRemovals),
	}
	return report, nil
}

func changedFields(staged *domain.DiscoveredVenue, production *domain.ProductionVenue) []string {
	var changed []string
	if staged.Name != production.Name {
		changed = append(changed, "name")
	}
	if staged.Address != production.Address {
		changed = append(changed, "address")
	}
	if staged.ChainID != production.ChainID {
		changed = append(changed, "chain_id")
	}
	if !coordinatesEqual(staged.Coordinates, production.Coordinates) {
		changed = append(changed, "coordinates")
	}
	if !platformsEqual(staged.Platforms, production.Platforms) {
		changed = append(changed, "platforms")
	}
	return changed
}

func coordinatesEqual(staged *domain.Coordinates, production domain.Coordinates) bool {
	if staged == nil {
		return production.Lat == 0 && production.Lng == 0
	}
	return staged.Lat == production.Lat && staged.Lng == production.Lng
}

func platformsEqual(a, b []domain.DeliveryPlatformLink) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, l := range a {
		seen[string(l.Platform)+"|"+l.URL] = true
	}
	for _, l := range b {
		if !seen[string(l.Platform)+"|"+l.URL] {
			return false
		}
	}
	return true
}
