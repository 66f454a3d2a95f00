// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package syncengine

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/metrics"
	"github.com/plantedfoods/discovery-engine/internal/store"
)

// ExecuteRequest selects which preview candidates to promote. SyncAll
// promotes every addition and update the preview currently reports;
// otherwise only ids present in VenueIDs are processed.
type ExecuteRequest struct {
	VenueIDs []string
	SyncAll  bool
	ActorID  string
}

// Executor runs sync execute, serialized by a single named advisory
// lock so two operators never promote batches at once (SPEC_FULL
// §4.5's concurrency contract).
type Executor struct {
	st   *store.Store
	lock *namedLock
}

// NewExecutor builds an Executor.
func NewExecutor(st *store.Store) *Executor {
	return &Executor{st: st, lock: newNamedLock()}
}

// Execute re-runs Preview under the advisory lock, then promotes the
// requested additions and updates. Venues are processed in the
// preview's stable id order (§5's ordering guarantee) and each venue's
// dishes follow in creation order; per-entity
// failures are collected into the returned SyncHistoryRecord rather
// than aborting the batch.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (_ *domain.SyncHistoryRecord, err error) {
	release := e.lock.Acquire(executeLockName)
	defer release()

	start := time.Now()
	defer func() { metrics.RecordSyncExecution(time.Since(start), err) }()

	preview, err := Preview(ctx, e.st)
	if err != nil {
		return nil, fmt.Errorf("syncengine: execute: preview: %w", err)
	}

	targets := make(map[string]bool, len(req.VenueIDs))
	for _, id := range req.VenueIDs {
		targets[id] = true
	}

	record := &domain.SyncHistoryRecord{
		ID:        newSyncHistoryID(),
		Timestamp: time.Now(),
		ActorID:   req.ActorID,
	}

	for _, addition := range preview.Additions {
		if !req.SyncAll && !targets[addition.Venue.ID] {
			continue
		}
		e.promoteAddition(ctx, addition.Venue, record)
	}

	for _, update := range preview.Updates {
		if !req.SyncAll && !targets[update.Venue.ID] {
			continue
		}
		e.applyUpdate(ctx, update, record)
	}

	if insertErr := e.st.InsertSyncHistory(ctx, record); insertErr != nil {
		err = fmt.Errorf("syncengine: execute: record history: %w", insertErr)
		return record, err
	}
	return record, nil
}

func (e *Executor) promoteAddition(ctx context.Context, venue *domain.DiscoveredVenue, record *domain.SyncHistoryRecord) {
	coords := domain.Coordinates{}
	if venue.Coordinates != nil {
		coords = *venue.Coordinates
	}

	production := &domain.ProductionVenue{
		ID:             productionVenueID(venue.ID),
		Name:           venue.Name,
		Type:           "restaurant",
		Address:        venue.Address,
		Coordinates:    coords,
		Platforms:      venue.Platforms,
		ChainID:        venue.ChainID,
		OpeningHours:   domain.DefaultOpeningHours(),
		HoursKnown:     false,
		Status:         domain.ProdActive,
		StagingVenueID: venue.ID,
	}
	if err := e.st.PromoteVenue(ctx, venue, production); err != nil {
		record.Failed++
		record.Errors = append(record.Errors, domain.EntityError{EntityID: venue.ID, Message: err.Error()})
		metrics.SyncErrors.WithLabelValues("venue").Inc()
		return
	}
	record.Added++
	record.PromotedVenues = append(record.PromotedVenues, production.ID)
	metrics.SyncRecordsProcessed.WithLabelValues("venue", "created").Inc()

	dishes, err := e.st.ListDiscoveredDishesByVenue(ctx, venue.ID)
	if err != nil {
		record.Failed++
		record.Errors = append(record.Errors, domain.EntityError{EntityID: venue.ID, Message: fmt.Sprintf("list dishes: %v", err)})
		metrics.SyncErrors.WithLabelValues("dish").Inc()
		return
	}
	for _, dish := range dishes {
		if dish.Status != domain.StatusVerified {
			continue
		}
		productionDish := &domain.ProductionDish{
			ID:            productionDishID(dish.ID),
			VenueID:       production.ID,
			Name:          dish.Name,
			Description:   dish.Description,
			Category:      dish.Category,
			ProductTag:    dish.ProductTag,
			Prices:        dish.Prices,
			ImageURL:      dish.ImageURL,
			DietaryTags:   dish.DietaryTags,
			Status:        domain.ProdActive,
			StagingDishID: dish.ID,
		}
		if err := e.st.PromoteDish(ctx, dish, productionDish); err != nil {
			record.Failed++
			record.Errors = append(record.Errors, domain.EntityError{EntityID: dish.ID, Message: err.Error()})
			metrics.SyncErrors.WithLabelValues("dish").Inc()
			continue
		}
		record.Added++
		record.PromotedDishes = append(record.PromotedDishes, productionDish.ID)
		metrics.SyncRecordsProcessed.WithLabelValues("dish", "created").Inc()
	}
}

func (e *Executor) applyUpdate(ctx context.Context, update Update, record *domain.SyncHistoryRecord) {
	production := update.Production
	venue := update.Venue

	production.Name = venue.Name
	production.Address = venue.Address
	production.ChainID = venue.ChainID
	production.Platforms = venue.Platforms
	if venue.Coordinates != nil {
		production.Coordinates = *venue.Coordinates
	}
	production.LastVerified = time.Now()

	if err := e.st.UpsertProductionVenue(ctx, production); err != nil {
		record.Failed++
		record.Errors = append(record.Errors, domain.EntityError{EntityID: venue.ID, Message: err.Error()})
		metrics.SyncErrors.WithLabelValues("venue").Inc()
		return
	}
	record.Updated++
	metrics.SyncRecordsProcessed.WithLabelValues("venue", "updated").Inc()
}

func productionVenueID(stagingID string) string { return "pv-" + stagingID }
func productionDishID(stagingID string) string  { return "pd-" + stagingID }

var syncHistoryCounter atomic.Uint64

func newSyncHistoryID() string {
	n := syncHistoryCounter.Add(1)
	return "sh-" + time.Now().UTC().Format("20060102T150405") + "-" + strconv.FormatUint(n, 10)
}
