// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

func TestUpsertAndGetDiscoveredVenue(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	v := &domain.DiscoveredVenue{
		ID:          "venue-1",
		Name:        "Test Kebab House",
		Address:     domain.Address{City: "Zurich", Country: "CH"},
		Coordinates: &domain.Coordinates{Lat: 47.37, Lng: 8.54},
		Platforms: []domain.DeliveryPlatformLink{
			{Platform: domain.PlatformUberEats, URL: "https://ubereats.com/x"},
		},
		ConfidenceScore: 82.5,
		Status:          domain.StatusDiscovered,
		Origin:          domain.OriginTrace{StrategyID: "strat-1", Query: "kebab zurich"},
	}

	if err := s.UpsertDiscoveredVenue(ctx, v); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetDiscoveredVenue(ctx, "venue-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != v.Name {
		t.Errorf("name = %q, want %q", got.Name, v.Name)
	}
	if got.Coordinates == nil || got.Coordinates.Lat != 47.37 || got.Coordinates.Lng != 8.54 {
		t.Errorf("coordinates = %+v, want lat=47.37 lng=8.54", got.Coordinates)
	}
	if len(got.Platforms) != 1 || got.Platforms[0].Platform != domain.PlatformUberEats {
		t.Errorf("platforms = %+v", got.Platforms)
	}
	if got.Origin.StrategyID != "strat-1" || got.Origin.Query != "kebab zurich" {
		t.Errorf("origin = %+v", got.Origin)
	}
}

func TestGetDiscoveredVenueNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetDiscoveredVenue(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertDiscoveredVenueReplacesExisting(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	v := &domain.DiscoveredVenue{ID: "venue-2", Name: "Original", Address: domain.Address{City: "Bern", Country: "CH"}, Status: domain.StatusDiscovered}
	if err := s.UpsertDiscoveredVenue(ctx, v); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	v.Name = "Renamed"
	v.Status = domain.StatusVerified
	if err := s.UpsertDiscoveredVenue(ctx, v); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.GetDiscoveredVenue(ctx, "venue-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Renamed" || got.Status != domain.StatusVerified {
		t.Errorf("got %+v, want name=Renamed status=verified", got)
	}
}

func TestListDiscoveredVenuesByStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i, status := range []domain.VenueStatus{domain.StatusDiscovered, domain.StatusDiscovered, domain.StatusVerified} {
		v := &domain.DiscoveredVenue{
			ID:      "v" + string(rune('a'+i)),
			Name:    "Venue",
			Address: domain.Address{City: "Geneva", Country: "CH"},
			Status:  status,
		}
		if err := s.UpsertDiscoveredVenue(ctx, v); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	discovered, err := s.ListDiscoveredVenuesByStatus(ctx, domain.StatusDiscovered, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(discovered) != 2 {
		t.Errorf("expected 2 discovered venues, got %d", len(discovered))
	}
}

func TestFindDiscoveredVenueByKey(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	v := &domain.DiscoveredVenue{ID: "venue-3", Name: "Dönerland", Address: domain.Address{City: "Basel", Country: "CH"}, Status: domain.StatusDiscovered}
	if err := s.UpsertDiscoveredVenue(ctx, v); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	found, err := s.FindDiscoveredVenueByKey(ctx, "dönerland", "basel")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != "venue-3" {
		t.Errorf("found id = %q, want venue-3", found.ID)
	}
}

func TestUpsertAndListProductionVenue(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	v := &domain.ProductionVenue{
		ID:            "pv-1",
		Name:          "Promoted Venue",
		Type:          "restaurant",
		Address:       domain.Address{City: "Lucerne", Country: "CH"},
		Coordinates:   domain.Coordinates{Lat: 47.05, Lng: 8.31},
		OpeningHours:  domain.DefaultOpeningHours(),
		HoursKnown:    true,
		DeliveryZones: []string{"6000", "6003"},
		Status:        domain.ProdActive,
	}
	if err := s.UpsertProductionVenue(ctx, v); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetProductionVenue(ctx, "pv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Type != "restaurant" || len(got.DeliveryZones) != 2 {
		t.Errorf("got %+v", got)
	}

	nearby, err := s.ListProductionVenuesForNearby(ctx)
	if err != nil {
		t.Fatalf("list for nearby: %v", err)
	}
	if len(nearby) != 1 || nearby[0].ID != "pv-1" {
		t.Errorf("nearby = %+v, want one venue pv-1", nearby)
	}
}
