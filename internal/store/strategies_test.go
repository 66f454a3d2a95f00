// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package store

import (
	"context"
	"testing"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

func TestUpsertAndListDiscoveryStrategies(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	st := &domain.DiscoveryStrategy{
		ID:       "strat-1",
		Template: "{chain} {city} delivery",
		Platform: domain.PlatformUberEats,
		Country:  "CH",
		Tags:     []string{"chain-enum"},
		Uses:     10,
		Successes: 6,
	}
	if err := s.UpsertDiscoveryStrategy(ctx, st); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	list, err := s.ListDiscoveryStrategies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "strat-1" {
		t.Fatalf("list = %+v", list)
	}
	if list[0].SuccessRate() != 60 {
		t.Errorf("success rate = %v, want 60", list[0].SuccessRate())
	}
}

func TestListDiscoveryStrategiesExcludesDeprecated(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	active := &domain.DiscoveryStrategy{ID: "strat-a", Template: "x", Platform: domain.PlatformWolt, Deprecated: false}
	deprecated := &domain.DiscoveryStrategy{ID: "strat-b", Template: "y", Platform: domain.PlatformWolt, Deprecated: true}
	if err := s.UpsertDiscoveryStrategy(ctx, active); err != nil {
		t.Fatalf("upsert active: %v", err)
	}
	if err := s.UpsertDiscoveryStrategy(ctx, deprecated); err != nil {
		t.Fatalf("upsert deprecated: %v", err)
	}

	list, err := s.ListDiscoveryStrategies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "strat-a" {
		t.Fatalf("list = %+v, want only strat-a", list)
	}
}
