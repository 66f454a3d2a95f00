// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

/*
Package metrics provides Prometheus metrics collection and export for the
discovery engine.

# Overview

The package instruments:
  - DuckDB query performance
  - public/admin API request latency and throughput
  - cache hit/miss rates (nearby-query LRU, spatial grid, dedup caches)
  - circuit breaker state transitions
  - internal event bus throughput and webhook deliveries
  - discovery, extraction, review, and sync run statistics

# Metrics Endpoint

Metrics are exposed at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Alerting

	groups:
	  - name: discovery-engine
	    rules:
	      - alert: DuckDBQuerySlow
	        expr: |
	          histogram_quantile(0.95,
	            rate(duckdb_query_duration_seconds_bucket[5m]))
	          > 1
	        for: 5m
	        annotations:
	          summary: "p95 query latency: {{ $value }}s"

	      - alert: CircuitBreakerOpen
	        expr: circuit_breaker_state > 0
	        for: 2m
	        annotations:
	          summary: "Circuit breaker open for {{ $labels.name }}"

	      - alert: CredentialPoolExhausted
	        expr: sum(credential_disabled) >= count(credential_disabled)
	        for: 1m
	        annotations:
	          summary: "Every search credential is disabled"

# Naming

Counters end in _total, durations are histograms in _seconds, and labels
stay low-cardinality (provider/platform/entity type, never ids) to keep
scrape cost bounded.

# See Also

  - internal/api: HTTP middleware wiring metrics into every request
  - internal/store: DuckDB query metrics recording
  - internal/resilience: circuit breaker metrics recording
*/
package metrics
