// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

// ListSearchCredentials returns every registered credential, in id
// order, so the credential pool can rebuild its in-memory lease state
// at startup.
func (s *Store) ListSearchCredentials(ctx context.Context) ([]*domain.SearchCredential, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, api_key, search_engine_id, daily_quota, queries_used_today, last_reset_date,
			total_queries_all, disabled, disabled_reason, consecutive_fails, created_at, updated_at
		FROM search_credentials ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list search credentials: %w", err)
	}
	defer rows.Close()

	var out []*domain.SearchCredential
	for rows.Next() {
		c, err := scanSearchCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetSearchCredential fetches one credential by id.
func (s *Store) GetSearchCredential(ctx context.Context, id string) (*domain.SearchCredential, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, api_key, search_engine_id, daily_quota, queries_used_today, last_reset_date,
			total_queries_all, disabled, disabled_reason, consecutive_fails, created_at, updated_at
		FROM search_credentials WHERE id = ?`, id)
	return scanSearchCredential(row)
}

// UpsertSearchCredential inserts a new credential or persists the
// pool's in-memory lease/report state back to disk. Called by the
// credential pool after every lease and after every report.
func (s *Store) UpsertSearchCredential(ctx context.Context, c *domain.SearchCredential) error {
	c.UpdatedAt = time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.UpdatedAt
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO search_credentials (
			id, api_key, search_engine_id, daily_quota, queries_used_today, last_reset_date,
			total_queries_all, disabled, disabled_reason, consecutive_fails, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			api_key = EXCLUDED.api_key, search_engine_id = EXCLUDED.search_engine_id,
			daily_quota = EXCLUDED.daily_quota, queries_used_today = EXCLUDED.queries_used_today,
			last_reset_date = EXCLUDED.last_reset_date, total_queries_all = EXCLUDED.total_queries_all,
			disabled = EXCLUDED.disabled, disabled_reason = EXCLUDED.disabled_reason,
			consecutive_fails = EXCLUDED.consecutive_fails, updated_at = EXCLUDED.updated_at`,
		c.ID, c.APIKey, c.SearchEngineID, c.DailyQuota, c.QueriesUsedToday, c.LastResetDate,
		c.TotalQueriesAll, c.Disabled, nullString(c.DisabledReason), c.ConsecutiveFails,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert search credential: %w", err)
	}
	return nil
}

func scanSearchCredential(row rowScanner) (*domain.SearchCredential, error) {
	var c domain.SearchCredential
	var disabledReason sql.NullString

	err := row.Scan(&c.ID, &c.APIKey, &c.SearchEngineID, &c.DailyQuota, &c.QueriesUsedToday,
		&c.LastResetDate, &c.TotalQueriesAll, &c.Disabled, &disabledReason, &c.ConsecutiveFails,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan search credential: %w", err)
	}
	c.DisabledReason = disabledReason.String
	return &c, nil
}
