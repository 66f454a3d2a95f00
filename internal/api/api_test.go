// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/config"
	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/events"
	"github.com/plantedfoods/discovery-engine/internal/review"
	"github.com/plantedfoods/discovery-engine/internal/store"
	"github.com/plantedfoods/discovery-engine/internal/syncengine"
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

func setupTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st := setupTestStore(t)
	bus, err := events.NewBus(config.EventsConfig{Enabled: false}, "")
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })

	srv := NewServer(st, review.NewQueue(st), syncengine.NewExecutor(st), bus, nil, false)
	return srv, st
}

func seedProductionVenue(t *testing.T, st *store.Store, id string, lat, lng float64) *domain.ProductionVenue {
	t.Helper()
	venue := &domain.ProductionVenue{
		ID:           id,
		Name:         "Zurich Kebab " + id,
		Type:         "restaurant",
		Address:      domain.Address{Street: "Main St 1", City: "Zurich", Country: "CH"},
		Coordinates:  domain.Coordinates{Lat: lat, Lng: lng},
		Platforms:    []domain.DeliveryPlatformLink{{Platform: domain.PlatformWolt, URL: "https://wolt.com/ch/" + id}},
		OpeningHours: domain.DefaultOpeningHours(),
		HoursKnown:   true,
		LastVerified: time.Now(),
		Status:       domain.ProdActive,
	}
	if err := st.UpsertProductionVenue(context.Background(), venue); err != nil {
		t.Fatalf("seed production venue: %v", err)
	}
	return venue
}

func TestHandleNearbyReturnsVenuesWithinRadius(t *testing.T) {
	srv, st := setupTestServer(t)
	seedProductionVenue(t, st, "v1", 47.3769, 8.5417)  // Zurich
	seedProductionVenue(t, st, "v2", 46.9480, 7.4474)  // Bern, ~95km away

	req := httptest.NewRequest(http.MethodGet, "/nearby?lat=47.3769&lng=8.5417&radius_km=10", nil)
	w := httptest.NewRecorder()
	srv.handleNearby(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "v1") {
		t.Errorf("expected v1 in response, got %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "v2") {
		t.Errorf("expected v2 excluded (too far), got %s", w.Body.String())
	}
}

func TestHandleNearbyRequiresLatLng(t *testing.T) {
	srv, _ := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/nearby", nil)
	w := httptest.NewRecorder()
	srv.handleNearby(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleNearbySlimReducesProjection(t *testing.T) {
	srv, st := setupTestServer(t)
	seedProductionVenue(t, st, "v1", 47.3769, 8.5417)

	req := httptest.NewRequest(http.MethodGet, "/nearby?lat=47.3769&lng=8.5417&slim=true", nil)
	w := httptest.NewRecorder()
	srv.handleNearby(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "address") {
		t.Errorf("slim response should not include address: %s", w.Body.String())
	}
}

func TestDedupeByChainKeepsClosest(t *testing.T) {
	near := Candidate{Venue: &domain.ProductionVenue{ID: "a", ChainID: "chain1"}, DistanceKm: 1}
	far := Candidate{Venue: &domain.ProductionVenue{ID: "b", ChainID: "chain1"}, DistanceKm: 5}
	chainless := Candidate{Venue: &domain.ProductionVenue{ID: "c"}, DistanceKm: 2}

	out := dedupeByChain([]Candidate{far, near, chainless})
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	ids := map[string]bool{}
	for _, c := range out {
		ids[c.Venue.ID] = true
	}
	if !ids["a"] || ids["b"] || !ids["c"] {
		t.Errorf("unexpected dedup result: %+v", out)
	}
}

func TestIsOpenNowChecksWeekdayWindow(t *testing.T) {
	venue := &domain.ProductionVenue{OpeningHours: domain.DefaultOpeningHours()}
	noon := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) // Thursday
	if !isOpenNow(venue, noon) {
		t.Errorf("expected open at noon within 11:00-22:00")
	}
	midnight := time.Date(2026, 7, 30, 2, 0, 0, 0, time.UTC)
	if isOpenNow(venue, midnight) {
		t.Errorf("expected closed at 02:00")
	}
}

func TestHandleListPendingReturnsEmptySet(t *testing.T) {
	srv, _ := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/review/pending", nil)
	w := httptest.NewRecorder()
	srv.handleListPending(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandleSyncPreviewReturnsEmptyReport(t *testing.T) {
	srv, _ := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/sync/preview", nil)
	w := httptest.NewRecorder()
	srv.handleSyncPreview(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}
