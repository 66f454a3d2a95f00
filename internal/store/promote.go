// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

// PromoteVenue creates the production venue and marks the staging
// venue promoted inside a single transaction, per SPEC_FULL §4.5 sync
// execute: either both writes land or neither does.
func (s *Store) PromoteVenue(ctx context.Context, discovered *domain.DiscoveredVenue, production *domain.ProductionVenue) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("promote venue: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	platforms, err := json.Marshal(production.Platforms)
	if err != nil {
		return fmt.Errorf("marshal platforms: %w", err)
	}
	hours, err := json.Marshal(production.OpeningHours)
	if err != nil {
		return fmt.Errorf("marshal opening hours: %w", err)
	}
	zones, err := json.Marshal(production.DeliveryZones)
	if err != nil {
		return fmt.Errorf("marshal delivery zones: %w", err)
	}

	now := time.Now()
	production.CreatedAt = now
	production.UpdatedAt = now
	if production.LastVerified.IsZero() {
		production.LastVerified = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO production_venues (
			id, staging_venue_id, name, type, address_street, address_city, address_country, address_postal_code,
			latitude, longitude, platforms, chain_id, opening_hours, hours_known, delivery_zones, last_verified,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, type = EXCLUDED.type, address_street = EXCLUDED.address_street,
			address_city = EXCLUDED.address_city, address_country = EXCLUDED.address_country,
			address_postal_code = EXCLUDED.address_postal_code,
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			platforms = EXCLUDED.platforms, chain_id = EXCLUDED.chain_id,
			opening_hours = EXCLUDED.opening_hours, hours_known = EXCLUDED.hours_known,
			delivery_zones = EXCLUDED.delivery_zones, last_verified = EXCLUDED.last_verified,
			status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		production.ID, nullString(production.StagingVenueID), production.Name, nullString(production.Type),
		production.Address.Street, production.Address.City, production.Address.Country, production.Address.PostalCode,
		production.Coordinates.Lat, production.Coordinates.Lng, string(platforms), nullString(production.ChainID),
		string(hours), production.HoursKnown, string(zones), production.LastVerified,
		string(production.Status), production.CreatedAt, production.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("promote venue: insert production venue: %w", err)
	}

	discovered.Status = domain.StatusPromoted
	discovered.ProductionVenueID = production.ID
	discovered.PromotedAt = &now
	discovered.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		UPDATE discovered_venues SET status = ?, production_venue_id = ?, promoted_at = ?, updated_at = ?
		WHERE id = ?`,
		string(discovered.Status), discovered.ProductionVenueID, nullTime(discovered.PromotedAt), discovered.UpdatedAt, discovered.ID,
	)
	if err != nil {
		return fmt.Errorf("promote venue: update staging venue %s: %w", discovered.ID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("promote venue: commit: %w", err)
	}
	return nil
}

// PromoteDish creates the production dish and marks the staging dish
// promoted inside a single transaction.
func (s *Store) PromoteDish(ctx context.Context, discovered *domain.DiscoveredDish, production *domain.ProductionDish) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("promote dish: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	prices, err := json.Marshal(production.Prices)
	if err != nil {
		return fmt.Errorf("marshal prices: %w", err)
	}
	dietary, err := json.Marshal(production.DietaryTags)
	if err != nil {
		return fmt.Errorf("marshal dietary tags: %w", err)
	}

	now := time.Now()
	production.CreatedAt = now
	production.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO production_dishes (
			id, staging_dish_id, venue_id, name, description, category, product_tag, prices,
			image_url, dietary_tags, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, category = EXCLUDED.category,
			product_tag = EXCLUDED.product_tag, prices = EXCLUDED.prices, image_url = EXCLUDED.image_url,
			dietary_tags = EXCLUDED.dietary_tags, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		production.ID, nullString(production.StagingDishID), production.VenueID, production.Name,
		nullString(production.Description), nullString(production.Category), nullString(production.ProductTag),
		string(prices), nullString(production.ImageURL), string(dietary), string(production.Status),
		production.CreatedAt, production.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("promote dish: insert production dish: %w", err)
	}

	discovered.Status = domain.StatusPromoted
	discovered.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `UPDATE discovered_dishes SET status = ?, updated_at = ? WHERE id = ?`,
		string(discovered.Status), discovered.UpdatedAt, discovered.ID,
	)
	if err != nil {
		return fmt.Errorf("promote dish: update staging dish %s: %w", discovered.ID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("promote dish: commit: %w", err)
	}
	return nil
}
