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
)

// GetSystemMetadata unmarshals the JSON value stored under key into
// dest. Returns ErrNotFound if no such key exists. Used for small
// singleton state like the last successful sync timestamp or the
// credential pool's last daily-reset date.
func (s *Store) GetSystemMetadata(ctx context.Context, key string, dest any) error {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM system_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get system metadata %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		return fmt.Errorf("unmarshal system metadata %q: %w", key, err)
	}
	return nil
}

// SetSystemMetadata marshals value and upserts it under key.
func (s *Store) SetSystemMetadata(ctx context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal system metadata %q: %w", key, err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO system_metadata (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, string(encoded))
	if err != nil {
		return fmt.Errorf("set system metadata %q: %w", key, err)
	}
	return nil
}
