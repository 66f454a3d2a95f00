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

// ListChains returns every known chain, for the planner's tier-1
// chain-enumeration pass.
func (s *Store) ListChains(ctx context.Context) ([]*domain.Chain, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, verified_partner, countries, created_at, updated_at
		FROM chains ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list chains: %w", err)
	}
	defer rows.Close()

	var out []*domain.Chain
	for rows.Next() {
		c, err := scanChain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetChain fetches one chain by id.
func (s *Store) GetChain(ctx context.Context, id string) (*domain.Chain, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, name, verified_partner, countries, created_at, updated_at
		FROM chains WHERE id = ?`, id)
	return scanChain(row)
}

// UpsertChain inserts a new chain or replaces its country-presence
// data after a coverage recompute.
func (s *Store) UpsertChain(ctx context.Context, c *domain.Chain) error {
	countries, err := json.Marshal(c.Countries)
	if err != nil {
		return fmt.Errorf("marshal chain countries: %w", err)
	}

	c.UpdatedAt = time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.UpdatedAt
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO chains (id, name, verified_partner, countries, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, verified_partner = EXCLUDED.verified_partner,
			countries = EXCLUDED.countries, updated_at = EXCLUDED.updated_at`,
		c.ID, c.Name, c.VerifiedPartner, string(countries), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert chain: %w", err)
	}
	return nil
}

func scanChain(row rowScanner) (*domain.Chain, error) {
	var c domain.Chain
	var countries string

	err := row.Scan(&c.ID, &c.Name, &c.VerifiedPartner, &countries, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan chain: %w", err)
	}
	if countries != "" {
		if err := json.Unmarshal([]byte(countries), &c.Countries); err != nil {
			return nil, fmt.Errorf("unmarshal chain countries: %w", err)
		}
	}
	return &c, nil
}
