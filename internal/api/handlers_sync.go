// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package api

import (
	"net/http"

	"github.com/plantedfoods/discovery-engine/internal/events"
	"github.com/plantedfoods/discovery-engine/internal/logging"
	"github.com/plantedfoods/discovery-engine/internal/syncengine"
)

type syncExecuteRequest struct {
	VenueIDs []string `json:"venue_ids"`
	SyncAll  bool     `json:"sync_all"`
	ActorID  string   `json:"actor_id" validate:"required"`
}

// handleSyncPreview implements GET /admin/sync/preview.
func (s *Server) handleSyncPreview(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	report, err := syncengine.Preview(r.Context(), s.store)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(report)
}

// handleSyncExecute implements POST /admin/sync/execute. A successful
// run also emits events.TopicSyncExecuted on the event bus, which in
// turn fires the configured sync webhook.
func (s *Server) handleSyncExecute(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req syncExecuteRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	if !req.SyncAll && len(req.VenueIDs) == 0 {
		rw.BadRequest("either sync_all or venue_ids must be set")
		return
	}

	record, err := s.sync.Execute(r.Context(), syncengine.ExecuteRequest{
		VenueIDs: req.VenueIDs,
		SyncAll:  req.SyncAll,
		ActorID:  req.ActorID,
	})
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	if emitErr := s.bus.Emit(r.Context(), events.TopicSyncExecuted, record); emitErr != nil {
		logging.Warn().Err(emitErr).Msg("sync executed but event emit failed")
	}

	rw.Success(record)
}
