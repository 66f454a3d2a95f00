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

// ListDiscoveryStrategies returns every non-deprecated strategy, for
// the planner's per-run allocation pass.
func (s *Store) ListDiscoveryStrategies(ctx context.Context) ([]*domain.DiscoveryStrategy, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, template, platform, country, tags, uses, successes, false_positives,
			deprecated, created_at, updated_at
		FROM discovery_strategies WHERE deprecated = false ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list discovery strategies: %w", err)
	}
	defer rows.Close()

	var out []*domain.DiscoveryStrategy
	for rows.Next() {
		st, err := scanDiscoveryStrategy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// GetDiscoveryStrategy fetches one strategy by id.
func (s *Store) GetDiscoveryStrategy(ctx context.Context, id string) (*domain.DiscoveryStrategy, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, template, platform, country, tags, uses, successes, false_positives,
			deprecated, created_at, updated_at
		FROM discovery_strategies WHERE id = ?`, id)
	return scanDiscoveryStrategy(row)
}

// UpsertDiscoveryStrategy inserts a new strategy or persists updated
// usage statistics after a discovery run touches it.
func (s *Store) UpsertDiscoveryStrategy(ctx context.Context, st *domain.DiscoveryStrategy) error {
	tags, err := json.Marshal(st.Tags)
	if err != nil {
		return fmt.Errorf("marshal strategy tags: %w", err)
	}

	st.UpdatedAt = time.Now()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = st.UpdatedAt
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO discovery_strategies (
			id, template, platform, country, tags, uses, successes, false_positives,
			deprecated, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			template = EXCLUDED.template, platform = EXCLUDED.platform, country = EXCLUDED.country,
			tags = EXCLUDED.tags, uses = EXCLUDED.uses, successes = EXCLUDED.successes,
			false_positives = EXCLUDED.false_positives, deprecated = EXCLUDED.deprecated,
			updated_at = EXCLUDED.updated_at`,
		st.ID, st.Template, string(st.Platform), nullString(st.Country), string(tags),
		st.Uses, st.Successes, st.FalsePositives, st.Deprecated, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert discovery strategy: %w", err)
	}
	return nil
}

func scanDiscoveryStrategy(row rowScanner) (*domain.DiscoveryStrategy, error) {
	var st domain.DiscoveryStrategy
	var country sql.NullString
	var tags string

	err := row.Scan(&st.ID, &st.Template, &st.Platform, &country, &tags, &st.Uses,
		&st.Successes, &st.FalsePositives, &st.Deprecated, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan discovery strategy: %w", err)
	}
	st.Country = country.String
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &st.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal strategy tags: %w", err)
		}
	}
	return &st, nil
}
