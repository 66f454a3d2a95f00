// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/review"
	"github.com/plantedfoods/discovery-engine/internal/validation"
)

// approveRequest carries the optimistic-concurrency token every
// mutating review endpoint requires per spec.md §4.5: the caller must
// echo the venue's last-seen updated_at, and a mismatch means someone
// else already acted on it.
type approveRequest struct {
	LastSeenUpdatedAt string `json:"last_seen_updated_at" validate:"required"`
	ActorID           string `json:"actor_id" validate:"required"`
}

type partialApproveRequest struct {
	LastSeenUpdatedAt string   `json:"last_seen_updated_at" validate:"required"`
	ActorID           string   `json:"actor_id" validate:"required"`
	ApprovedDishIDs   []string `json:"approved_dish_ids" validate:"required,min=1"`
	Feedback          string   `json:"feedback"`
}

type rejectRequest struct {
	LastSeenUpdatedAt string `json:"last_seen_updated_at" validate:"required"`
	ActorID           string `json:"actor_id" validate:"required"`
	Reason            string `json:"reason" validate:"required"`
}

type bulkRejectRequest struct {
	VenueIDs []string `json:"venue_ids" validate:"required,min=1"`
	Reason   string   `json:"reason" validate:"required"`
	ActorID  string   `json:"actor_id" validate:"required"`
}

// handleListPending implements GET /admin/review/pending.
func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	filter := review.ListFilter{
		Country:       r.URL.Query().Get("country"),
		Platform:      domain.PlatformTag(r.URL.Query().Get("platform")),
		ChainID:       r.URL.Query().Get("chain_id"),
		MinConfidence: getFloatParam(r, "min_confidence", 0),
		Limit:         getIntParam(r, "limit", 50),
		Offset:        getIntParam(r, "offset", 0),
	}

	venues, err := s.queue.ListPending(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(venues)
}

// handleApprove implements POST /admin/review/{venueId}/approve.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	venueID := chi.URLParam(r, "venueId")

	var req approveRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	lastSeen, err := parseRFC3339(req.LastSeenUpdatedAt)
	if err != nil {
		rw.BadRequest("last_seen_updated_at must be RFC3339")
		return
	}

	if err := s.queue.Approve(r.Context(), venueID, lastSeen, req.ActorID); err != nil {
		writeQueueError(rw, err)
		return
	}
	rw.NoContent()
}

// handlePartialApprove implements POST /admin/review/{venueId}/partial-approve.
func (s *Server) handlePartialApprove(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	venueID := chi.URLParam(r, "venueId")

	var req partialApproveRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	lastSeen, err := parseRFC3339(req.LastSeenUpdatedAt)
	if err != nil {
		rw.BadRequest("last_seen_updated_at must be RFC3339")
		return
	}

	if err := s.queue.PartialApprove(r.Context(), venueID, lastSeen, req.ApprovedDishIDs, req.Feedback, req.ActorID); err != nil {
		writeQueueError(rw, err)
		return
	}
	rw.NoContent()
}

// handleReject implements POST /admin/review/{venueId}/reject.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	venueID := chi.URLParam(r, "venueId")

	var req rejectRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	lastSeen, err := parseRFC3339(req.LastSeenUpdatedAt)
	if err != nil {
		rw.BadRequest("last_seen_updated_at must be RFC3339")
		return
	}

	if err := s.queue.Reject(r.Context(), venueID, lastSeen, req.Reason, req.ActorID); err != nil {
		writeQueueError(rw, err)
		return
	}
	rw.NoContent()
}

// handleBulkReject implements POST /admin/review/bulk-reject. Unlike the
// single-venue endpoints it has no per-venue concurrency token: SPEC_FULL
// §4.5 treats bulk reject as best-effort, collecting per-venue failures
// rather than aborting the whole batch on the first conflict.
func (s *Server) handleBulkReject(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req bulkRejectRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	failures := s.queue.BulkReject(r.Context(), req.VenueIDs, req.Reason, req.ActorID)
	rw.Success(map[string]interface{}{
		"requested": len(req.VenueIDs),
		"failed":    len(failures),
		"errors":    failures,
	})
}

// writeQueueError maps review.ErrConflict to 409, everything else to 500.
func writeQueueError(rw *ResponseWriter, err error) {
	if errors.Is(err, review.ErrConflict) {
		rw.Conflict(err.Error())
		return
	}
	rw.DatabaseError(err)
}

func decodeAndValidate(rw *ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rw.BadRequest("invalid request body")
		return false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		rw.ValidationError("request validation failed", err.Errors())
		return false
	}
	return true
}
