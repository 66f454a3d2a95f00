// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

/*
Package api provides the HTTP surface of the discovery engine: the
public proximity search endpoint and the admin review/sync endpoints.

Key Components:

  - Server: bundles the store, review queue, sync executor and event
    bus, and wires a chi.Router via SetupChi
  - NearbyIndex: an in-memory cache.SpatialHashGrid kept fresh from
    production_venues, backing GET /nearby
  - Response formatting: standardized JSON responses via ResponseWriter
  - Request validation: go-playground/validator-tagged request bodies,
    checked through internal/validation

Endpoints:

  - GET /nearby: bounding-box-then-haversine proximity search over
    production venues, with chain dedup, product-tag filtering, an
    open-now check, and a slim response mode
  - GET /admin/review/pending, POST /admin/review/{venueId}/approve,
    partial-approve, reject, POST /admin/review/bulk-reject: the human
    review queue, with optimistic concurrency on every single-venue
    mutation
  - GET /admin/sync/preview, POST /admin/sync/execute: the sync preview/
    execute pair, the latter emitting a sync-executed event on success
  - GET /metrics: Prometheus metrics, gated on configuration

Transport authentication is out of scope; this package assumes it sits
behind whatever auth layer the deployment chooses to put in front of it.
*/
package api
