// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package store

import (
	"context"
	"testing"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

func TestInsertAndListSyncHistory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	r := &domain.SyncHistoryRecord{
		ID:             "sync-1",
		Timestamp:      time.Now(),
		ActorID:        "operator-1",
		PromotedVenues: []string{"v1", "v2"},
		Added:          2,
		Errors:         []domain.EntityError{{EntityID: "v3", Message: "missing coordinates"}},
	}
	if err := s.InsertSyncHistory(ctx, r); err != nil {
		t.Fatalf("insert: %v", err)
	}

	latest, err := s.LatestSyncHistory(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != "sync-1" || latest.Added != 2 {
		t.Errorf("latest = %+v", latest)
	}
	if len(latest.PromotedVenues) != 2 {
		t.Errorf("promoted venues = %+v", latest.PromotedVenues)
	}
	if len(latest.Errors) != 1 || latest.Errors[0].EntityID != "v3" {
		t.Errorf("errors = %+v", latest.Errors)
	}
}

func TestLatestSyncHistoryNotFoundWhenEmpty(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.LatestSyncHistory(context.Background()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
