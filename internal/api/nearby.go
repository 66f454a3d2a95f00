// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package api

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

const (
	defaultNearbyRadiusKm = 5.0
	maxNearbyRadiusKm     = 50.0
	defaultNearbyLimit    = 20
	maxNearbyLimit        = 100
)

// nearbyResult is the full projection of a matched venue.
type nearbyResult struct {
	ID           string                        `json:"id"`
	Name         string                        `json:"name"`
	Type         string                        `json:"type,omitempty"`
	Address      domain.Address                `json:"address,omitempty"`
	Coordinates  domain.Coordinates            `json:"coordinates"`
	DistanceKm   float64                       `json:"distance_km"`
	Platforms    []domain.DeliveryPlatformLink `json:"platforms,omitempty"`
	ChainID      string                        `json:"chain_id,omitempty"`
	OpenNow      *bool                         `json:"open_now,omitempty"`
	LastVerified time.Time                     `json:"last_verified"`
}

// nearbySlimResult is the reduced projection returned when slim=true.
type nearbySlimResult struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Coordinates domain.Coordinates `json:"coordinates"`
	DistanceKm float64            `json:"distance_km"`
}

// handleNearby implements GET /nearby?lat=&lng=&radius_km=&type=&limit=
// &slim=&open_now=&product_sku=&dedupe_chains= per SPEC_FULL §6: a
// bounding-box-then-haversine proximity query over production_venues,
// with optional chain dedup and product-tag filtering.
func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	lat := getFloatParam(r, "lat", 0)
	lng := getFloatParam(r, "lng", 0)
	if lat == 0 && lng == 0 {
		rw.BadRequest("lat and lng query parameters are required")
		return
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		rw.BadRequest("lat/lng out of range")
		return
	}

	radiusKm := getFloatParam(r, "radius_km", defaultNearbyRadiusKm)
	if radiusKm <= 0 || radiusKm > maxNearbyRadiusKm {
		radiusKm = defaultNearbyRadiusKm
	}

	limit := getIntParam(r, "limit", defaultNearbyLimit)
	if limit <= 0 || limit > maxNearbyLimit {
		limit = defaultNearbyLimit
	}

	venueType := strings.TrimSpace(r.URL.Query().Get("type"))
	slim := getBoolParam(r, "slim", false)
	openNow := getBoolParam(r, "open_now", false)
	productSKU := strings.TrimSpace(r.URL.Query().Get("product_sku"))
	dedupeChains := getBoolParam(r, "dedupe_chains", false)

	candidates, err := s.nearby.Query(ctx, lat, lng, radiusKm)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	filtered := candidates[:0:0]
	for _, c := range candidates {
		if venueType != "" && !strings.EqualFold(c.Venue.Type, venueType) {
			continue
		}
		if openNow && (!c.Venue.HoursKnown || !isOpenNow(c.Venue, time.Now())) {
			continue
		}
		if productSKU != "" {
			ok, err := s.venueHasProduct(ctx, c.Venue.ID, productSKU)
			if err != nil {
				rw.DatabaseError(err)
				return
			}
			if !ok {
				continue
			}
		}
		filtered = append(filtered, c)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].DistanceKm < filtered[j].DistanceKm
	})

	if dedupeChains {
		filtered = dedupeByChain(filtered)
	}

	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	if slim {
		out := make([]nearbySlimResult, 0, len(filtered))
		for _, c := range filtered {
			out = append(out, nearbySlimResult{
				ID:          c.Venue.ID,
				Name:        c.Venue.Name,
				Coordinates: c.Venue.Coordinates,
				DistanceKm:  roundKm(c.DistanceKm),
			})
		}
		rw.Success(out)
		return
	}

	out := make([]nearbyResult, 0, len(filtered))
	for _, c := range filtered {
		res := nearbyResult{
			ID:           c.Venue.ID,
			Name:         c.Venue.Name,
			Type:         c.Venue.Type,
			Address:      c.Venue.Address,
			Coordinates:  c.Venue.Coordinates,
			DistanceKm:   roundKm(c.DistanceKm),
			Platforms:    c.Venue.Platforms,
			ChainID:      c.Venue.ChainID,
			LastVerified: c.Venue.LastVerified,
		}
		if c.Venue.HoursKnown {
			open := isOpenNow(c.Venue, time.Now())
			res.OpenNow = &open
		}
		out = append(out, res)
	}
	rw.Success(out)
}

// venueHasProduct reports whether the venue has an active dish tagged
// with productSKU.
func (s *Server) venueHasProduct(ctx context.Context, venueID, productSKU string) (bool, error) {
	dishes, err := s.store.ListProductionDishesByVenue(ctx, venueID)
	if err != nil {
		return false, err
	}
	for _, d := range dishes {
		if strings.EqualFold(d.ProductTag, productSKU) {
			return true, nil
		}
	}
	return false, nil
}

func roundKm(km float64) float64 {
	return float64(int(km*100+0.5)) / 100
}

// dedupeByChain keeps only the closest candidate per chain id, passing
// through chainless venues untouched.
func dedupeByChain(candidates []Candidate) []Candidate {
	best := make(map[string]Candidate)
	var chainless []Candidate
	order := make([]string, 0, len(candidates))

	for _, c := range candidates {
		if c.Venue.ChainID == "" {
			chainless = append(chainless, c)
			continue
		}
		existing, ok := best[c.Venue.ChainID]
		if !ok {
			order = append(order, c.Venue.ChainID)
			best[c.Venue.ChainID] = c
			continue
		}
		if c.DistanceKm < existing.DistanceKm {
			best[c.Venue.ChainID] = c
		}
	}

	out := make([]Candidate, 0, len(chainless)+len(order))
	out = append(out, chainless...)
	for _, id := range order {
		out = append(out, best[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}

// isOpenNow checks whether now falls within a venue's opening hours for
// its current weekday. A venue with HoursKnown false is never treated
// as "known open" by the caller; this only answers the hours-known case.
func isOpenNow(v *domain.ProductionVenue, now time.Time) bool {
	if v.OpeningHours == nil {
		return false
	}
	day := strings.ToLower(now.Weekday().String())
	window, ok := v.OpeningHours[day]
	if !ok {
		return false
	}
	open, err1 := time.Parse("15:04", window.Open)
	close, err2 := time.Parse("15:04", window.Close)
	if err1 != nil || err2 != nil {
		return false
	}
	nowMinutes := now.Hour()*60 + now.Minute()
	openMinutes := open.Hour()*60 + open.Minute()
	closeMinutes := close.Hour()*60 + close.Minute()
	if closeMinutes <= openMinutes {
		// Overnight window, e.g. 18:00-02:00.
		return nowMinutes >= openMinutes || nowMinutes < closeMinutes
	}
	return nowMinutes >= openMinutes && nowMinutes < closeMinutes
}
