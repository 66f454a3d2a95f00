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

// ErrNotFound is returned by single-row lookups that found nothing.
var ErrNotFound = errors.New("store: record not found")

// UpsertDiscoveredVenue inserts a new staged venue or replaces an
// existing one by id.
func (s *Store) UpsertDiscoveredVenue(ctx context.Context, v *domain.DiscoveredVenue) error {
	platforms, err := json.Marshal(v.Platforms)
	if err != nil {
		return fmt.Errorf("marshal platforms: %w", err)
	}
	factors, err := json.Marshal(v.ConfidenceFactors)
	if err != nil {
		return fmt.Errorf("marshal confidence factors: %w", err)
	}

	var lat, lon sql.NullFloat64
	if v.Coordinates != nil {
		lat = sql.NullFloat64{Float64: v.Coordinates.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: v.Coordinates.Lng, Valid: true}
	}

	v.UpdatedAt = time.Now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = v.UpdatedAt
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO discovered_venues (
			id, name, address_street, address_city, address_country, address_postal_code,
			latitude, longitude, platforms, chain_id, confidence_score, confidence_factors,
			status, rejection_reason, production_venue_id, promoted_at,
			origin_strategy_id, origin_query,
			extraction_failures, extraction_cooldown_until, last_extracted_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, address_street = EXCLUDED.address_street,
			address_city = EXCLUDED.address_city, address_country = EXCLUDED.address_country,
			address_postal_code = EXCLUDED.address_postal_code,
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			platforms = EXCLUDED.platforms, chain_id = EXCLUDED.chain_id,
			confidence_score = EXCLUDED.confidence_score, confidence_factors = EXCLUDED.confidence_factors,
			status = EXCLUDED.status, rejection_reason = EXCLUDED.rejection_reason,
			production_venue_id = EXCLUDED.production_venue_id, promoted_at = EXCLUDED.promoted_at,
			extraction_failures = EXCLUDED.extraction_failures,
			extraction_cooldown_until = EXCLUDED.extraction_cooldown_until,
			last_extracted_at = EXCLUDED.last_extracted_at,
			updated_at = EXCLUDED.updated_at`,
		v.ID, v.Name, v.Address.Street, v.Address.City, v.Address.Country, v.Address.PostalCode,
		lat, lon, string(platforms), nullString(v.ChainID), v.ConfidenceScore, string(factors),
		string(v.Status), nullString(v.RejectionReason), nullString(v.ProductionVenueID), nullTime(v.PromotedAt),
		nullString(v.Origin.StrategyID), nullString(v.Origin.Query),
		v.ExtractionFailures, nullTime(v.ExtractionCooldownUntil), nullTime(v.LastExtractedAt), v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert discovered venue: %w", err)
	}
	return nil
}

const discoveredVenueColumns = `id, name, address_street, address_city, address_country, address_postal_code,
	latitude, longitude, platforms, chain_id, confidence_score, confidence_factors,
	status, rejection_reason, production_venue_id, promoted_at,
	origin_strategy_id, origin_query,
	extraction_failures, extraction_cooldown_until, last_extracted_at, created_at, updated_at`

// GetDiscoveredVenue fetches one staged venue by id.
func (s *Store) GetDiscoveredVenue(ctx context.Context, id string) (*domain.DiscoveredVenue, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+discoveredVenueColumns+` FROM discovered_venues WHERE id = ?`, id)
	return scanDiscoveredVenue(row)
}

// ListDiscoveredVenuesByStatus returns staged venues with the given
// status, oldest first, for the review queue.
func (s *Store) ListDiscoveredVenuesByStatus(ctx context.Context, status domain.VenueStatus, limit, offset int) ([]*domain.DiscoveredVenue, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+discoveredVenueColumns+`
		FROM discovered_venues WHERE status = ? ORDER BY created_at ASC LIMIT ? OFFSET ?`,
		string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list discovered venues: %w", err)
	}
	defer rows.Close()

	var out []*domain.DiscoveredVenue
	for rows.Next() {
		v, err := scanDiscoveredVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FindDiscoveredVenueByKey looks up a staged venue by the normalized
// dedup key (name_lowercase, city_lowercase, delivery host+path),
// backing the discovery executor's exact-match fallback when the
// in-memory dedup cache reports a possible match.
func (s *Store) FindDiscoveredVenueByKey(ctx context.Context, nameLower, cityLower string) (*domain.DiscoveredVenue, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT `+discoveredVenueColumns+`
		FROM discovered_venues
		WHERE lower(name) = ? AND lower(address_city) = ?
		ORDER BY created_at DESC LIMIT 1`, nameLower, cityLower)
	return scanDiscoveredVenue(row)
}

// ListExtractionTargets returns staged venues eligible for extraction:
// status discovered/verified/needs_review, excluding any currently
// under an extraction_failed cooldown, oldest-extracted first so
// never-extracted venues (NULL last_extracted_at) sort first.
func (s *Store) ListExtractionTargets(ctx context.Context, country string, chainID string, limit int) ([]*domain.DiscoveredVenue, error) {
	query := `SELECT ` + discoveredVenueColumns + ` FROM discovered_venues
		WHERE status IN ('discovered', 'verified', 'needs_review')
		AND (extraction_cooldown_until IS NULL OR extraction_cooldown_until < CURRENT_TIMESTAMP)`
	args := []any{}
	if country != "" {
		query += ` AND address_country = ?`
		args = append(args, country)
	}
	if chainID != "" {
		query += ` AND chain_id = ?`
		args = append(args, chainID)
	}
	query += ` ORDER BY last_extracted_at ASC NULLS FIRST, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list extraction targets: %w", err)
	}
	defer rows.Close()

	var out []*domain.DiscoveredVenue
	for rows.Next() {
		v, err := scanDiscoveredVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListDiscoveredVenuesExcludingStatus returns every staged venue whose
// status is not excludeStatus, for the auto-verifier's duplicate-URL
// rule ("existing venue with any status other than rejected").
func (s *Store) ListDiscoveredVenuesExcludingStatus(ctx context.Context, excludeStatus domain.VenueStatus) ([]*domain.DiscoveredVenue, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+discoveredVenueColumns+`
		FROM discovered_venues WHERE status != ?`, string(excludeStatus))
	if err != nil {
		return nil, fmt.Errorf("list discovered venues excluding status: %w", err)
	}
	defer rows.Close()

	var out []*domain.DiscoveredVenue
	for rows.Next() {
		v, err := scanDiscoveredVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListVerifiedVenuesWithoutProduction returns staged venues that are
// verified but have never been promoted, the sync preview's addition
// candidates.
func (s *Store) ListVerifiedVenuesWithoutProduction(ctx context.Context) ([]*domain.DiscoveredVenue, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+discoveredVenueColumns+`
		FROM discovered_venues WHERE status = ? AND (production_venue_id IS NULL OR production_venue_id = '')
		ORDER BY id ASC`, string(domain.StatusVerified))
	if err != nil {
		return nil, fmt.Errorf("list verified venues without production: %w", err)
	}
	defer rows.Close()

	var out []*domain.DiscoveredVenue
	for rows.Next() {
		v, err := scanDiscoveredVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListVerifiedVenuesWithProduction returns staged venues that are
// verified or promoted and carry a production venue id, the sync
// preview's update candidates.
func (s *Store) ListVerifiedVenuesWithProduction(ctx context.Context) ([]*domain.DiscoveredVenue, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+discoveredVenueColumns+`
		FROM discovered_venues WHERE status IN (?, ?) AND production_venue_id IS NOT NULL AND production_venue_id != ''
		ORDER BY id ASC`, string(domain.StatusVerified), string(domain.StatusPromoted))
	if err != nil {
		return nil, fmt.Errorf("list verified venues with production: %w", err)
	}
	defer rows.Close()

	var out []*domain.DiscoveredVenue
	for rows.Next() {
		v, err := scanDiscoveredVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListAllProductionVenues returns every production venue regardless of
// status, for the sync preview's update/removal comparison (unlike
// ListProductionVenuesForNearby, which is scoped to active venues).
func (s *Store) ListAllProductionVenues(ctx context.Context) ([]*domain.ProductionVenue, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+productionVenueColumns+` FROM production_venues`)
	if err != nil {
		return nil, fmt.Errorf("list all production venues: %w", err)
	}
	defer rows.Close()

	var out []*domain.ProductionVenue
	for rows.Next() {
		v, err := scanProductionVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiscoveredVenue(row rowScanner) (*domain.DiscoveredVenue, error) {
	var v domain.DiscoveredVenue
	var lat, lon sql.NullFloat64
	var platforms, factors string
	var chainID, rejectionReason, productionVenueID, originStrategyID, originQuery sql.NullString
	var promotedAt, extractionCooldownUntil, lastExtractedAt sql.NullTime

	err := row.Scan(&v.ID, &v.Name, &v.Address.Street, &v.Address.City, &v.Address.Country, &v.Address.PostalCode,
		&lat, &lon, &platforms, &chainID, &v.ConfidenceScore, &factors,
		&v.Status, &rejectionReason, &productionVenueID, &promotedAt,
		&originStrategyID, &originQuery,
		&v.ExtractionFailures, &extractionCooldownUntil, &lastExtractedAt, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan discovered venue: %w", err)
	}

	if lat.Valid && lon.Valid {
		v.Coordinates = &domain.Coordinates{Lat: lat.Float64, Lng: lon.Float64}
	}
	if err := json.Unmarshal([]byte(platforms), &v.Platforms); err != nil {
		return nil, fmt.Errorf("unmarshal platforms: %w", err)
	}
	if factors != "" {
		if err := json.Unmarshal([]byte(factors), &v.ConfidenceFactors); err != nil {
			return nil, fmt.Errorf("unmarshal confidence factors: %w", err)
		}
	}
	v.ChainID = chainID.String
	v.RejectionReason = rejectionReason.String
	v.ProductionVenueID = productionVenueID.String
	v.Origin.StrategyID = originStrategyID.String
	v.Origin.Query = originQuery.String
	if promotedAt.Valid {
		t := promotedAt.Time
		v.PromotedAt = &t
	}
	if extractionCooldownUntil.Valid {
		t := extractionCooldownUntil.Time
		v.ExtractionCooldownUntil = &t
	}
	if lastExtractedAt.Valid {
		t := lastExtractedAt.Time
		v.LastExtractedAt = &t
	}
	return &v, nil
}

// UpsertProductionVenue inserts or replaces a production venue.
func (s *Store) UpsertProductionVenue(ctx context.Context, v *domain.ProductionVenue) error {
	platforms, err := json.Marshal(v.Platforms)
	if err != nil {
		return fmt.Errorf("marshal platforms: %w", err)
	}
	hours, err := json.Marshal(v.OpeningHours)
	if err != nil {
		return fmt.Errorf("marshal opening hours: %w", err)
	}
	zones, err := json.Marshal(v.DeliveryZones)
	if err != nil {
		return fmt.Errorf("marshal delivery zones: %w", err)
	}

	v.UpdatedAt = time.Now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = v.UpdatedAt
	}

	var lastVerified sql.NullTime
	if !v.LastVerified.IsZero() {
		lastVerified = sql.NullTime{Time: v.LastVerified, Valid: true}
	}

	_, err = s.conn.ExecContext(ctx, `
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
		v.ID, nullString(v.StagingVenueID), v.Name, nullString(v.Type), v.Address.Street, v.Address.City, v.Address.Country, v.Address.PostalCode,
		v.Coordinates.Lat, v.Coordinates.Lng, string(platforms), nullString(v.ChainID),
		string(hours), v.HoursKnown, string(zones), lastVerified, string(v.Status), v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert production venue: %w", err)
	}
	return nil
}

const productionVenueColumns = `id, staging_venue_id, name, type, address_street, address_city, address_country, address_postal_code,
	latitude, longitude, platforms, chain_id, opening_hours, hours_known, delivery_zones, last_verified,
	status, created_at, updated_at`

// GetProductionVenue fetches one promoted venue by id.
func (s *Store) GetProductionVenue(ctx context.Context, id string) (*domain.ProductionVenue, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+productionVenueColumns+` FROM production_venues WHERE id = ?`, id)
	return scanProductionVenue(row)
}

// ListProductionVenuesForNearby loads every active production venue's
// id, coordinates, and name for the in-memory spatial grid the /nearby
// handler rebuilds periodically; filtering by distance happens there,
// not in SQL, so this is a deliberately unfiltered full scan.
func (s *Store) ListProductionVenuesForNearby(ctx context.Context) ([]*domain.ProductionVenue, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+productionVenueColumns+` FROM production_venues WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("list production venues: %w", err)
	}
	defer rows.Close()

	var out []*domain.ProductionVenue
	for rows.Next() {
		v, err := scanProductionVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanProductionVenue(row rowScanner) (*domain.ProductionVenue, error) {
	var v domain.ProductionVenue
	var platforms, hours, zones string
	var stagingID, chainID, venueType sql.NullString
	var lastVerified sql.NullTime

	err := row.Scan(&v.ID, &stagingID, &v.Name, &venueType, &v.Address.Street, &v.Address.City, &v.Address.Country, &v.Address.PostalCode,
		&v.Coordinates.Lat, &v.Coordinates.Lng, &platforms, &chainID, &hours, &v.HoursKnown, &zones, &lastVerified,
		&v.Status, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan production venue: %w", err)
	}
	v.StagingVenueID = stagingID.String
	v.ChainID = chainID.String
	v.Type = venueType.String
	if lastVerified.Valid {
		v.LastVerified = lastVerified.Time
	}
	if err := json.Unmarshal([]byte(platforms), &v.Platforms); err != nil {
		return nil, fmt.Errorf("unmarshal platforms: %w", err)
	}
	if hours != "" {
		_ = json.Unmarshal([]byte(hours), &v.OpeningHours)
	}
	if zones != "" {
		_ = json.Unmarshal([]byte(zones), &v.DeliveryZones)
	}
	return &v, nil
}

// CityVenueCount is one (city, count) pair for a single country, used
// by the planner's tier-3 city-exploration pass.
type CityVenueCount struct {
	City  string
	Count int
}

// CountDiscoveredVenuesByCity groups staged venues in country by city,
// counting how many have been discovered there so far (any status).
func (s *Store) CountDiscoveredVenuesByCity(ctx context.Context, country string) ([]CityVenueCount, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT address_city, COUNT(*) FROM discovered_venues
		WHERE address_country = ? AND address_city != ''
		GROUP BY address_city ORDER BY address_city ASC`, country)
	if err != nil {
		return nil, fmt.Errorf("count discovered venues by city: %w", err)
	}
	defer rows.Close()

	var out []CityVenueCount
	for rows.Next() {
		var c CityVenueCount
		if err := rows.Scan(&c.City, &c.Count); err != nil {
			return nil, fmt.Errorf("scan city venue count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
