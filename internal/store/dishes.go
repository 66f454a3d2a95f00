// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

// UpsertDiscoveredDish inserts a new staged dish or replaces an
// existing one by id.
func (s *Store) UpsertDiscoveredDish(ctx context.Context, d *domain.DiscoveredDish) error {
	prices, err := json.Marshal(d.Prices)
	if err != nil {
		return fmt.Errorf("marshal prices: %w", err)
	}
	dietary, err := json.Marshal(d.DietaryTags)
	if err != nil {
		return fmt.Errorf("marshal dietary tags: %w", err)
	}
	factors, err := json.Marshal(d.Factors)
	if err != nil {
		return fmt.Errorf("marshal confidence factors: %w", err)
	}

	d.UpdatedAt = time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = d.UpdatedAt
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO discovered_dishes (
			id, venue_id, name, description, category, product_tag, prices, image_url,
			dietary_tags, confidence_score, confidence_factors, needs_review, status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, category = EXCLUDED.category,
			product_tag = EXCLUDED.product_tag, prices = EXCLUDED.prices, image_url = EXCLUDED.image_url,
			dietary_tags = EXCLUDED.dietary_tags, confidence_score = EXCLUDED.confidence_score,
			confidence_factors = EXCLUDED.confidence_factors, needs_review = EXCLUDED.needs_review,
			status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		d.ID, d.VenueID, d.Name, nullString(d.Description), nullString(d.Category), nullString(d.ProductTag),
		string(prices), nullString(d.ImageURL), string(dietary), d.ConfidenceScore, string(factors),
		d.NeedsReview, string(d.Status), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert discovered dish: %w", err)
	}
	return nil
}

// ListDiscoveredDishesByVenue returns every staged dish attached to a
// staged venue, for the review queue's venue-detail view.
func (s *Store) ListDiscoveredDishesByVenue(ctx context.Context, venueID string) ([]*domain.DiscoveredDish, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, venue_id, name, description, category, product_tag, prices, image_url,
			dietary_tags, confidence_score, confidence_factors, needs_review, status,
			created_at, updated_at
		FROM discovered_dishes WHERE venue_id = ? ORDER BY created_at ASC`, venueID)
	if err != nil {
		return nil, fmt.Errorf("list discovered dishes: %w", err)
	}
	defer rows.Close()

	var out []*domain.DiscoveredDish
	for rows.Next() {
		dish, err := scanDiscoveredDish(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dish)
	}
	return out, rows.Err()
}

// ListDiscoveredDishesNeedingReview returns staged dishes flagged for
// human review, oldest first.
func (s *Store) ListDiscoveredDishesNeedingReview(ctx context.Context, limit, offset int) ([]*domain.DiscoveredDish, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, venue_id, name, description, category, product_tag, prices, image_url,
			dietary_tags, confidence_score, confidence_factors, needs_review, status,
			created_at, updated_at
		FROM discovered_dishes WHERE needs_review = true ORDER BY created_at ASC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list dishes needing review: %w", err)
	}
	defer rows.Close()

	var out []*domain.DiscoveredDish
	for rows.Next() {
		dish, err := scanDiscoveredDish(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dish)
	}
	return out, rows.Err()
}

// DishCounts is a per-venue tally of staged dishes, used by the sync
// preview's addition listing.
type DishCounts struct {
	Total    int
	Verified int
}

// AggregateDishCounts returns total and verified dish counts for every
// staged venue in one query, per SPEC_FULL §9's resolved Open Question
// that sync-preview dish counts must be pre-aggregated rather than
// fetched with one query per venue.
func (s *Store) AggregateDishCounts(ctx context.Context) (map[string]DishCounts, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT venue_id, COUNT(*), SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
		FROM discovered_dishes GROUP BY venue_id`, string(domain.StatusVerified))
	if err != nil {
		return nil, fmt.Errorf("aggregate dish counts: %w", err)
	}
	defer rows.Close()

	out := map[string]DishCounts{}
	for rows.Next() {
		var venueID string
		var counts DishCounts
		if err := rows.Scan(&venueID, &counts.Total, &counts.Verified); err != nil {
			return nil, fmt.Errorf("scan dish counts: %w", err)
		}
		out[venueID] = counts
	}
	return out, rows.Err()
}

func scanDiscoveredDish(row rowScanner) (*domain.DiscoveredDish, error) {
	var d domain.DiscoveredDish
	var description, category, productTag, imageURL sql.NullString
	var prices, dietary, factors string

	err := row.Scan(&d.ID, &d.VenueID, &d.Name, &description, &category, &productTag,
		&prices, &imageURL, &dietary, &d.ConfidenceScore, &factors, &d.NeedsReview, &d.Status,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan discovered dish: %w", err)
	}

	d.Description = description.String
	d.Category = category.String
	d.ProductTag = productTag.String
	d.ImageURL = imageURL.String
	if err := json.Unmarshal([]byte(prices), &d.Prices); err != nil {
		return nil, fmt.Errorf("unmarshal prices: %w", err)
	}
	if dietary != "" {
		if err := json.Unmarshal([]byte(dietary), &d.DietaryTags); err != nil {
			return nil, fmt.Errorf("unmarshal dietary tags: %w", err)
		}
	}
	if factors != "" {
		if err := json.Unmarshal([]byte(factors), &d.Factors); err != nil {
			return nil, fmt.Errorf("unmarshal confidence factors: %w", err)
		}
	}
	return &d, nil
}

// UpsertProductionDish inserts or replaces a promoted dish.
func (s *Store) UpsertProductionDish(ctx context.Context, d *domain.ProductionDish) error {
	prices, err := json.Marshal(d.Prices)
	if err != nil {
		return fmt.Errorf("marshal prices: %w", err)
	}
	dietary, err := json.Marshal(d.DietaryTags)
	if err != nil {
		return fmt.Errorf("marshal dietary tags: %w", err)
	}

	d.UpdatedAt = time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = d.UpdatedAt
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO production_dishes (
			id, staging_dish_id, venue_id, name, description, category, product_tag, prices,
			image_url, dietary_tags, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, category = EXCLUDED.category,
			product_tag = EXCLUDED.product_tag, prices = EXCLUDED.prices, image_url = EXCLUDED.image_url,
			dietary_tags = EXCLUDED.dietary_tags, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		d.ID, nullString(d.StagingDishID), d.VenueID, d.Name, nullString(d.Description), nullString(d.Category),
		nullString(d.ProductTag), string(prices), nullString(d.ImageURL), string(dietary), string(d.Status),
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert production dish: %w", err)
	}
	return nil
}

// ListProductionDishesByVenue returns every active promoted dish for a
// production venue, backing the /nearby response's menu payload.
func (s *Store) ListProductionDishesByVenue(ctx context.Context, venueID string) ([]*domain.ProductionDish, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, staging_dish_id, venue_id, name, description, category, product_tag, prices,
			image_url, dietary_tags, status, created_at, updated_at
		FROM production_dishes WHERE venue_id = ? AND status != 'rejected' ORDER BY name ASC`, venueID)
	if err != nil {
		return nil, fmt.Errorf("list production dishes: %w", err)
	}
	defer rows.Close()

	var out []*domain.ProductionDish
	for rows.Next() {
		var d domain.ProductionDish
		var stagingID, description, category, productTag, imageURL sql.NullString
		var prices, dietary string
		if err := rows.Scan(&d.ID, &stagingID, &d.VenueID, &d.Name, &description, &category, &productTag,
			&prices, &imageURL, &dietary, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan production dish: %w", err)
		}
		d.StagingDishID = stagingID.String
		d.Description = description.String
		d.Category = category.String
		d.ProductTag = productTag.String
		d.ImageURL = imageURL.String
		if err := json.Unmarshal([]byte(prices), &d.Prices); err != nil {
			return nil, fmt.Errorf("unmarshal prices: %w", err)
		}
		if dietary != "" {
			if err := json.Unmarshal([]byte(dietary), &d.DietaryTags); err != nil {
				return nil, fmt.Errorf("unmarshal dietary tags: %w", err)
			}
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
