// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

// Package api is the thin HTTP surface of SPEC_FULL §6: the public
// GET /nearby endpoint and the admin review/sync endpoints. Transport
// auth is out of scope (spec.md §1 Non-goals) — this package only
// implements the payload contracts, routing, CORS and rate-limit
// middleware, matching the teacher's own separation between chi
// wiring (chi_router.go/chi_middleware.go) and response formatting
// (response.go), both adapted here with their auth-specific routes and
// middleware removed.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plantedfoods/discovery-engine/internal/events"
	"github.com/plantedfoods/discovery-engine/internal/review"
	"github.com/plantedfoods/discovery-engine/internal/store"
	"github.com/plantedfoods/discovery-engine/internal/syncengine"
)

// Server bundles every dependency the handlers in this package need. It
// carries no auth/session fields, unlike the teacher's Router, since
// transport auth is external per spec.md §1.
type Server struct {
	store   *store.Store
	queue   *review.Queue
	sync    *syncengine.Executor
	bus     *events.Bus
	nearby  *NearbyIndex
	mw      *ChiMiddleware
	metrics bool
}

// NewServer wires a Server from its dependencies. metricsEnabled gates
// whether /metrics is registered (config.ServerConfig.MetricsEnabled).
func NewServer(st *store.Store, queue *review.Queue, exec *syncengine.Executor, bus *events.Bus, corsOrigins []string, metricsEnabled bool) *Server {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = corsOrigins
	cfg.CORSAllowedHeaders = []string{"Content-Type"}

	return &Server{
		store:   st,
		queue:   queue,
		sync:    exec,
		bus:     bus,
		nearby:  NewNearbyIndex(st),
		mw:      NewChiMiddleware(cfg),
		metrics: metricsEnabled,
	}
}

// SetupChi builds the full chi router, mirroring the teacher's
// Router.SetupChi: a global middleware stack, then route groups with
// their own rate limits.
func (s *Server) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.mw.CORS())

	r.Get("/nearby", s.handleNearby)

	if s.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(s.mw.RateLimit())
		admin.Use(APISecurityHeaders())
		admin.Get("/review/pending", s.handleListPending)
		admin.Post("/review/{venueId}/approve", s.handleApprove)
		admin.Post("/review/{venueId}/partial-approve", s.handlePartialApprove)
		admin.Post("/review/{venueId}/reject", s.handleReject)
		admin.Post("/review/bulk-reject", s.handleBulkReject)
		admin.Get("/sync/preview", s.handleSyncPreview)
		admin.Post("/sync/execute", s.handleSyncExecute)
	})

	return r
}
