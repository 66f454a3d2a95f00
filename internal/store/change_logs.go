// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

// InsertChangeLog appends one audit entry. Change logs are never
// updated or deleted once written.
func (s *Store) InsertChangeLog(ctx context.Context, c *domain.ChangeLog) error {
	fields, err := json.Marshal(c.Fields)
	if err != nil {
		return fmt.Errorf("marshal change log fields: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO change_logs (
			id, timestamp, action, collection, document_id, fields, source_kind, source_actor_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Timestamp, string(c.Action), c.Collection, c.DocumentID, string(fields),
		c.Source.Kind, nullString(c.Source.ActorID),
	)
	if err != nil {
		return fmt.Errorf("insert change log: %w", err)
	}
	return nil
}

// ListChangeLogsForDocument returns every audit entry for one document
// in a collection, newest first, for the admin detail view.
func (s *Store) ListChangeLogsForDocument(ctx context.Context, collection, documentID string) ([]*domain.ChangeLog, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, timestamp, action, collection, document_id, fields, source_kind, source_actor_id
		FROM change_logs WHERE collection = ? AND document_id = ? ORDER BY timestamp DESC`,
		collection, documentID)
	if err != nil {
		return nil, fmt.Errorf("list change logs: %w", err)
	}
	defer rows.Close()

	var out []*domain.ChangeLog
	for rows.Next() {
		c, err := scanChangeLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListRecentChangeLogs returns the most recent audit entries across
// every collection, for the admin activity feed.
func (s *Store) ListRecentChangeLogs(ctx context.Context, limit int) ([]*domain.ChangeLog, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, timestamp, action, collection, document_id, fields, source_kind, source_actor_id
		FROM change_logs ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent change logs: %w", err)
	}
	defer rows.Close()

	var out []*domain.ChangeLog
	for rows.Next() {
		c, err := scanChangeLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChangeLog(rows *sql.Rows) (*domain.ChangeLog, error) {
	var c domain.ChangeLog
	var fields string
	var sourceActorID sql.NullString

	if err := rows.Scan(&c.ID, &c.Timestamp, &c.Action, &c.Collection, &c.DocumentID, &fields,
		&c.Source.Kind, &sourceActorID); err != nil {
		return nil, fmt.Errorf("scan change log: %w", err)
	}
	c.Source.ActorID = sourceActorID.String
	if fields != "" {
		if err := json.Unmarshal([]byte(fields), &c.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal change log fields: %w", err)
		}
	}
	return &c, nil
}
