// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package syncengine

import (
	"context"
	"testing"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/config"
	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(&config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedVerifiedVenue(t *testing.T, st *store.Store, id string, dishStatuses ...domain.VenueStatus) *domain.DiscoveredVenue {
	t.Helper()
	ctx := context.Background()
	venue := &domain.DiscoveredVenue{
		ID:      id,
		Name:    "Example Kebab " + id,
		Address: domain.Address{Street: "Main St 1", City: "Zurich", Country: "CH"},
		Coordinates: &domain.Coordinates{Lat: 47.37, Lng: 8.54},
		Platforms: []domain.DeliveryPlatformLink{{Platform: domain.PlatformWolt, URL: "https://wolt.com/ch/" + id}},
		Status:    domain.StatusVerified,
	}
	if err := st.UpsertDiscoveredVenue(ctx, venue); err != nil {
		t.Fatalf("seed venue: %v", err)
	}
	for i, status := range dishStatuses {
		dish := &domain.DiscoveredDish{
			ID:         id + "-dish-" + string(rune('a'+i)),
			VenueID:    id,
			Name:       "Brand Kebab Plate",
			ProductTag: "brand.kebab",
			Status:     status,
		}
		if err := st.UpsertDiscoveredDish(ctx, dish); err != nil {
			t.Fatalf("seed dish: %v", err)
		}
	}
	return venue
}

func TestPreviewListsAdditionsWithDishCounts(t *testing.T) {
	st := setupTestStore(t)
	seedVerifiedVenue(t, st, "v1", domain.StatusVerified, domain.StatusDiscovered)

	report, err := Preview(context.Background(), st)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(report.Additions) != 1 {
		t.Fatalf("additions = %d, want 1", len(report.Additions))
	}
	if report.Additions[0].Dishes.Total != 2 || report.Additions[0].Dishes.Verified != 1 {
		t.Errorf("dish counts = %+v, want total=2 verified=1", report.Additions[0].Dishes)
	}
}

func TestExecutePromotesAdditionAndDishes(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	seedVerifiedVenue(t, st, "v2", domain.StatusVerified, domain.StatusVerified, domain.StatusDiscovered)

	exec := NewExecutor(st)
	record, err := exec.Execute(ctx, ExecuteRequest{SyncAll: true, ActorID: "operator-1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if record.Added != 3 { // 1 venue + 2 verified dishes
		t.Errorf("added = %d, want 3", record.Added)
	}
	if len(record.Errors) != 0 {
		t.Errorf("unexpected errors: %+v", record.Errors)
	}

	promoted, err := st.GetDiscoveredVenue(ctx, "v2")
	if err != nil {
		t.Fatalf("get venue: %v", err)
	}
	if promoted.Status != domain.StatusPromoted || promoted.ProductionVenueID == "" {
		t.Errorf("venue not promoted: %+v", promoted)
	}

	production, err := st.GetProductionVenue(ctx, promoted.ProductionVenueID)
	if err != nil {
		t.Fatalf("get production venue: %v", err)
	}
	if production.Type != "restaurant" || production.HoursKnown {
		t.Errorf("production venue defaults not applied: %+v", production)
	}

	dishes, err := st.ListProductionDishesByVenue(ctx, production.ID)
	if err != nil {
		t.Fatalf("list production dishes: %v", err)
	}
	if len(dishes) != 2 {
		t.Errorf("promoted dishes = %d, want 2", len(dishes))
	}
}

func TestPreviewIsEmptyAfterExecutingSameSet(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	seedVerifiedVenue(t, st, "v3", domain.StatusVerified)

	exec := NewExecutor(st)
	if _, err := exec.Execute(ctx, ExecuteRequest{SyncAll: true, ActorID: "operator-1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	report, err := Preview(ctx, st)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	for _, a := range report.Additions {
		if a.Venue.ID == "v3" {
			t.Fatalf("v3 still pending as an addition after promotion")
		}
	}
}

func TestPreviewDetectsUpdateAfterFieldChange(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	seedVerifiedVenue(t, st, "v4", domain.StatusVerified)

	exec := NewExecutor(st)
	if _, err := exec.Execute(ctx, ExecuteRequest{SyncAll: true, ActorID: "operator-1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	venue, err := st.GetDiscoveredVenue(ctx, "v4")
	if err != nil {
		t.Fatalf("reload venue: %v", err)
	}
	venue.Name = "Example Kebab Renamed"
	if err := st.UpsertDiscoveredVenue(ctx, venue); err != nil {
		t.Fatalf("update venue: %v", err)
	}

	report, err := Preview(ctx, st)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(report.Updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(report.Updates))
	}
	if report.Updates[0].ChangedFields[0] != "name" {
		t.Errorf("changed fields = %v, want [name]", report.Updates[0].ChangedFields)
	}
}

func TestPreviewFlagsStalePotentialRemoval(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	production := &domain.ProductionVenue{
		ID:           "pv-stale",
		Name:         "Stale Venue",
		Address:      domain.Address{City: "Bern", Country: "CH"},
		Platforms:    []domain.DeliveryPlatformLink{{Platform: domain.PlatformWolt, URL: "https://wolt.com/ch/stale"}},
		LastVerified: time.Now().Add(-31 * 24 * time.Hour),
		Status:       domain.ProdActive,
	}
	if err := st.UpsertProductionVenue(ctx, production); err != nil {
		t.Fatalf("seed production venue: %v", err)
	}

	report, err := Preview(ctx, st)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(report.PotentialRemovals) != 1 || report.PotentialRemovals[0].Venue.ID != "pv-stale" {
		t.Errorf("potential removals = %+v, want [pv-stale]", report.PotentialRemovals)
	}
}

func TestExecuteOnlyPromotesRequestedVenues(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	seedVerifiedVenue(t, st, "v5", domain.StatusVerified)
	seedVerifiedVenue(t, st, "v6", domain.StatusVerified)

	exec := NewExecutor(st)
	record, err := exec.Execute(ctx, ExecuteRequest{VenueIDs: []string{"v5"}, ActorID: "operator-1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if record.Added != 1 {
		t.Errorf("added = %d, want 1", record.Added)
	}

	v6, err := st.GetDiscoveredVenue(ctx, "v6")
	if err != nil {
		t.Fatalf("get v6: %v", err)
	}
	if v6.Status != domain.StatusVerified {
		t.Errorf("v6 status = %s, want still verified (not promoted)", v6.Status)
	}
}
