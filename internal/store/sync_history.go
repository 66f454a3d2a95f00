// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

// InsertSyncHistory records one completed sync-execute batch. Append
// only, never updated.
func (s *Store) InsertSyncHistory(ctx context.Context, r *domain.SyncHistoryRecord) error {
	promotedVenues, err := json.Marshal(r.PromotedVenues)
	if err != nil {
		return fmt.Errorf("marshal promoted venue ids: %w", err)
	}
	promotedDishes, err := json.Marshal(r.PromotedDishes)
	if err != nil {
		return fmt.Errorf("marshal promoted dish ids: %w", err)
	}
	errs, err := json.Marshal(r.Errors)
	if err != nil {
		return fmt.Errorf("marshal sync errors: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO sync_history (
			id, timestamp, actor_id, promoted_venue_ids, promoted_dish_ids, added, updated, failed, errors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp, r.ActorID, string(promotedVenues), string(promotedDishes),
		r.Added, r.Updated, r.Failed, string(errs),
	)
	if err != nil {
		return fmt.Errorf("insert sync history: %w", err)
	}
	return nil
}

// ListSyncHistory returns the most recent sync batches, newest first,
// for the admin sync-history endpoint.
func (s *Store) ListSyncHistory(ctx context.Context, limit int) ([]*domain.SyncHistoryRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, timestamp, actor_id, promoted_venue_ids, promoted_dish_ids, added, updated, failed, errors
		FROM sync_history ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync history: %w", err)
	}
	defer rows.Close()

	var out []*domain.SyncHistoryRecord
	for rows.Next() {
		var r domain.SyncHistoryRecord
		var promotedVenues, promotedDishes, errs string
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.ActorID, &promotedVenues, &promotedDishes,
			&r.Added, &r.Updated, &r.Failed, &errs); err != nil {
			return nil, fmt.Errorf("scan sync history: %w", err)
		}
		if err := json.Unmarshal([]byte(promotedVenues), &r.PromotedVenues); err != nil {
			return nil, fmt.Errorf("unmarshal promoted venue ids: %w", err)
		}
		if err := json.Unmarshal([]byte(promotedDishes), &r.PromotedDishes); err != nil {
			return nil, fmt.Errorf("unmarshal promoted dish ids: %w", err)
		}
		if errs != "" {
			if err := json.Unmarshal([]byte(errs), &r.Errors); err != nil {
				return nil, fmt.Errorf("unmarshal sync errors: %w", err)
			}
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// LatestSyncHistory returns the most recent sync batch, or ErrNotFound
// if none has ever run.
func (s *Store) LatestSyncHistory(ctx context.Context) (*domain.SyncHistoryRecord, error) {
	recent, err := s.ListSyncHistory(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, ErrNotFound
	}
	return recent[0], nil
}
