// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/cache"
	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/store"
)

// nearbyRefreshTTL bounds how stale the in-memory spatial index may get
// before a GET /nearby request forces a reload from production_venues.
const nearbyRefreshTTL = time.Minute

// NearbyIndex backs GET /nearby with cache.SpatialHashGrid's
// bounding-box-then-haversine query, periodically rebuilt from the
// store rather than queried per-request, since production_venues is
// small enough to hold entirely in memory and SPEC_FULL §5 treats
// /nearby as a hot read path.
type NearbyIndex struct {
	st *store.Store

	mu          sync.RWMutex
	grid        *cache.SpatialHashGrid
	venues      map[string]*domain.ProductionVenue
	lastRefresh time.Time
}

// NewNearbyIndex builds an empty index; the first query triggers a
// refresh.
func NewNearbyIndex(st *store.Store) *NearbyIndex {
	return &NearbyIndex{
		st:     st,
		grid:   cache.NewSpatialHashGrid(10),
		venues: make(map[string]*domain.ProductionVenue),
	}
}

func (n *NearbyIndex) ensureFresh(ctx context.Context) error {
	n.mu.RLock()
	stale := time.Since(n.lastRefresh) > nearbyRefreshTTL
	n.mu.RUnlock()
	if !stale {
		return nil
	}
	return n.refresh(ctx)
}

func (n *NearbyIndex) refresh(ctx context.Context) error {
	venues, err := n.st.ListProductionVenuesForNearby(ctx)
	if err != nil {
		return fmt.Errorf("nearby index: refresh: %w", err)
	}

	grid := cache.NewSpatialHashGrid(10)
	byID := make(map[string]*domain.ProductionVenue, len(venues))
	for _, v := range venues {
		grid.Insert(v.ID, v.Coordinates.Lat, v.Coordinates.Lng, v.LastVerified, nil)
		byID[v.ID] = v
	}

	n.mu.Lock()
	n.grid = grid
	n.venues = byID
	n.lastRefresh = time.Now()
	n.mu.Unlock()
	return nil
}

// Candidate pairs a production venue with its distance from the query
// point.
type Candidate struct {
	Venue      *domain.ProductionVenue
	DistanceKm float64
}

// Query returns every active production venue within radiusKm of
// (lat, lng), refreshing the index first if it has gone stale.
func (n *NearbyIndex) Query(ctx context.Context, lat, lng, radiusKm float64) ([]Candidate, error) {
	if err := n.ensureFresh(ctx); err != nil {
		return nil, err
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	entries := n.grid.QueryNearby(lat, lng, radiusKm)
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		venue, ok := n.venues[e.ID]
		if !ok {
			continue
		}
		out = append(out, Candidate{
			Venue:      venue,
			DistanceKm: cache.HaversineDistanceKm(lat, lng, e.Lat, e.Lon),
		})
	}
	return out, nil
}
