// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/store"
)

// ErrConflict is returned by queue mutations when the caller's
// last-seen update timestamp no longer matches the stored venue,
// meaning another operator already acted on it.
var ErrConflict = errors.New("review: venue was modified since last seen, retry with current state")

// ListFilter narrows the human review queue listing.
type ListFilter struct {
	Country    string
	Platform   domain.PlatformTag
	ChainID    string
	MinConfidence float64
	Limit      int
	Offset     int
}

// Queue exposes the human review operations from SPEC_FULL §4.5.
type Queue struct {
	st *store.Store
}

// NewQueue builds a review Queue.
func NewQueue(st *store.Store) *Queue {
	return &Queue{st: st}
}

// ListPending returns venues in needs_review status matching filter,
// paginated and filterable by country/platform/chain/confidence.
func (q *Queue) ListPending(ctx context.Context, filter ListFilter) ([]*domain.DiscoveredVenue, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	// Filtering happens in-memory below (country/platform/chain/confidence
	// aren't worth a dynamic SQL builder at this scale), so the store
	// fetch over-fetches a generous batch rather than exactly limit+offset.
	all, err := q.st.ListDiscoveredVenuesByStatus(ctx, domain.StatusNeedsReview, 1000, 0)
	if err != nil {
		return nil, fmt.Errorf("review: list pending: %w", err)
	}

	var filtered []*domain.DiscoveredVenue
	for _, v := range all {
		if filter.Country != "" && v.Address.Country != filter.Country {
			continue
		}
		if filter.ChainID != "" && v.ChainID != filter.ChainID {
			continue
		}
		if filter.MinConfidence > 0 && v.ConfidenceScore < filter.MinConfidence {
			continue
		}
		if filter.Platform != "" && !hasPlatform(v, filter.Platform) {
			continue
		}
		filtered = append(filtered, v)
	}

	if filter.Offset >= len(filtered) {
		return nil, nil
	}
	end := filter.Offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[filter.Offset:end], nil
}

func hasPlatform(v *domain.DiscoveredVenue, p domain.PlatformTag) bool {
	for _, link := range v.Platforms {
		if link.Platform == p {
			return true
		}
	}
	return false
}

// Approve promotes venueID to verified, subject to optimistic
// concurrency against lastSeenUpdatedAt.
func (q *Queue) Approve(ctx context.Context, venueID string, lastSeenUpdatedAt time.Time, actorID string) error {
	venue, err := q.loadForMutation(ctx, venueID, lastSeenUpdatedAt)
	if err != nil {
		return err
	}
	return q.transition(ctx, venue, domain.StatusVerified, "", domain.ActionVerified, actorID, nil)
}

// PartialApprove approves the venue overall but marks only
// approvedDishIDs as verified; every other staged dish for the venue
// is left as-is. feedback is recorded on the change log when non-empty.
func (q *Queue) PartialApprove(ctx context.Context, venueID string, lastSeenUpdatedAt time.Time, approvedDishIDs []string, feedback, actorID string) error {
	venue, err := q.loadForMutation(ctx, venueID, lastSeenUpdatedAt)
	if err != nil {
		return err
	}

	approved := map[string]bool{}
	for _, id := range approvedDishIDs {
		approved[id] = true
	}
	dishes, err := q.st.ListDiscoveredDishesByVenue(ctx, venueID)
	if err != nil {
		return fmt.Errorf("review: list dishes for partial approve: %w", err)
	}
	for _, d := range dishes {
		if !approved[d.ID] {
			continue
		}
		d.Status = domain.StatusVerified
		if err := q.st.UpsertDiscoveredDish(ctx, d); err != nil {
			return fmt.Errorf("review: approve dish %s: %w", d.ID, err)
		}
	}

	var fields []domain.FieldChange
	if feedback != "" {
		fields = append(fields, domain.FieldChange{Field: "feedback", Before: nil, After: feedback})
	}
	return q.transition(ctx, venue, domain.StatusVerified, "", domain.ActionVerified, actorID, fields)
}

// Reject rejects venueID with a required reason, subject to
// optimistic concurrency against lastSeenUpdatedAt.
func (q *Queue) Reject(ctx context.Context, venueID string, lastSeenUpdatedAt time.Time, reason, actorID string) error {
	if reason == "" {
		return fmt.Errorf("review: reject requires a reason")
	}
	venue, err := q.loadForMutation(ctx, venueID, lastSeenUpdatedAt)
	if err != nil {
		return err
	}
	return q.transition(ctx, venue, domain.StatusRejected, reason, domain.ActionRejected, actorID, nil)
}

// BulkReject rejects every venue in venueIDs with a shared reason. Per
// SPEC_FULL §4.5 this is a batch operation; per-venue optimistic
// concurrency is not checked since a bulk decision is understood to
// supersede whatever state each venue was last seen in. Failures on
// individual venues are collected, not fatal to the batch.
func (q *Queue) BulkReject(ctx context.Context, venueIDs []string, reason, actorID string) []domain.EntityError {
	if reason == "" {
		return []domain.EntityError{{Message: "bulk reject requires a reason"}}
	}
	var errs []domain.EntityError
	for _, id := range venueIDs {
		venue, err := q.st.GetDiscoveredVenue(ctx, id)
		if err != nil {
			errs = append(errs, domain.EntityError{EntityID: id, Message: err.Error()})
			continue
		}
		if err := q.transition(ctx, venue, domain.StatusRejected, reason, domain.ActionRejected, actorID, nil); err != nil {
			errs = append(errs, domain.EntityError{EntityID: id, Message: err.Error()})
		}
	}
	return errs
}

func (q *Queue) loadForMutation(ctx context.Context, venueID string, lastSeenUpdatedAt time.Time) (*domain.DiscoveredVenue, error) {
	venue, err := q.st.GetDiscoveredVenue(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("review: load venue %s: %w", venueID, err)
	}
	if !venue.UpdatedAt.Equal(lastSeenUpdatedAt) {
		return nil, ErrConflict
	}
	return venue, nil
}

func (q *Queue) transition(ctx context.Context, venue *domain.DiscoveredVenue, newStatus domain.VenueStatus, reason string, action domain.ChangeAction, actorID string, extraFields []domain.FieldChange) error {
	before := venue.Status
	venue.Status = newStatus
	if reason != "" {
		venue.RejectionReason = reason
	}
	if err := q.st.UpsertDiscoveredVenue(ctx, venue); err != nil {
		return fmt.Errorf("review: update venue %s: %w", venue.ID, err)
	}

	fields := append([]domain.FieldChange{{Field: "status", Before: string(before), After: string(newStatus)}}, extraFields...)
	log := &domain.ChangeLog{
		ID:         changeLogID(venue.ID),
		Timestamp:  time.Now(),
		Action:     action,
		Collection: "discovered_venues",
		DocumentID: venue.ID,
		Fields:     fields,
		Source:     domain.ChangeSource{Kind: "manual", ActorID: actorID},
	}
	if err := q.st.InsertChangeLog(ctx, log); err != nil {
		return fmt.Errorf("review: write change log for %s: %w", venue.ID, err)
	}
	return nil
}
