// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the discovery engine:
// - DuckDB query performance
// - public/admin API latency and throughput
// - cache hit/miss rates (LRU, spatial grid, bloom dedup)
// - circuit breaker state
// - event bus (watermill/NATS) throughput
// - discovery, extraction, review, and sync run statistics

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	DBConnectionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdb_connection_pool_size",
			Help: "Current number of database connections in use",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Cache Metrics (General)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "nearby", "page", "dedup"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event Bus Metrics (watermill over NATS)
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published to the internal bus",
		},
		[]string{"topic"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total number of events consumed from the internal bus",
		},
		[]string{"topic"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of webhook notification deliveries",
		},
		[]string{"event_type", "result"}, // result: "success", "failure"
	)

	// Discovery Run Metrics
	DiscoveryQueriesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_queries_executed_total",
			Help: "Total number of search queries executed by the discovery executor",
		},
		[]string{"provider", "result"}, // result: "success", "error", "quota_exhausted"
	)

	DiscoveryVenuesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_venues_found_total",
			Help: "Total number of candidate venues surfaced by discovery runs",
		},
		[]string{"outcome"}, // "new", "merged", "duplicate", "rejected"
	)

	DiscoveryRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discovery_run_duration_seconds",
			Help:    "Duration of a full discovery run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	// Credential Pool Metrics
	CredentialLeases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_leases_total",
			Help: "Total number of credential leases issued",
		},
		[]string{"result"}, // "granted", "exhausted"
	)

	CredentialQuotaUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "credential_quota_used",
			Help: "Queries used today per credential id",
		},
		[]string{"credential_id"},
	)

	CredentialDisabled = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "credential_disabled",
			Help: "1 if the credential is currently disabled, else 0",
		},
		[]string{"credential_id"},
	)

	// Extraction Run Metrics
	ExtractionFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_fetches_total",
			Help: "Total number of dish-page fetches by the extractor",
		},
		[]string{"platform", "result"}, // result: "success", "failure", "rate_limited"
	)

	ExtractionDishesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_dishes_found_total",
			Help: "Total number of dishes identified during extraction",
		},
		[]string{"platform"},
	)

	ExtractionFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_fetch_duration_seconds",
			Help:    "Duration of a single dish-page fetch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"platform"},
	)

	// Review Metrics
	ReviewAutoVerified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_auto_verified_total",
			Help: "Total number of staged entities resolved by the auto-verifier",
		},
		[]string{"entity_type", "verdict"}, // verdict: "approved", "rejected", "needs_review"
	)

	ReviewQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "review_queue_depth",
			Help: "Current number of entities awaiting human review",
		},
		[]string{"entity_type"},
	)

	// Sync Metrics
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of a sync execution",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_processed_total",
			Help: "Total number of venues/dishes processed during sync",
		},
		[]string{"entity_type", "action"}, // action: "created", "updated", "archived"
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total number of sync errors",
		},
		[]string{"entity_type"},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync execution",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordDiscoveryQuery records the outcome of one planner query's execution.
func RecordDiscoveryQuery(provider, result string) {
	DiscoveryQueriesExecuted.WithLabelValues(provider, result).Inc()
}

// RecordDiscoveryVenue records a discovery-run outcome for one candidate venue.
func RecordDiscoveryVenue(outcome string) {
	DiscoveryVenuesFound.WithLabelValues(outcome).Inc()
}

// RecordDiscoveryRun records the duration of a completed discovery run.
func RecordDiscoveryRun(duration time.Duration) {
	DiscoveryRunDuration.Observe(duration.Seconds())
}

// RecordCredentialLease records a lease attempt outcome.
func RecordCredentialLease(granted bool) {
	if granted {
		CredentialLeases.WithLabelValues("granted").Inc()
	} else {
		CredentialLeases.WithLabelValues("exhausted").Inc()
	}
}

// RecordExtractionFetch records one dish-page fetch outcome.
func RecordExtractionFetch(platform, result string, duration time.Duration) {
	ExtractionFetches.WithLabelValues(platform, result).Inc()
	ExtractionFetchDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordExtractionDish records one dish identified for a platform.
func RecordExtractionDish(platform string) {
	ExtractionDishesFound.WithLabelValues(platform).Inc()
}

// RecordReviewVerdict records one auto-verifier resolution.
func RecordReviewVerdict(entityType, verdict string) {
	ReviewAutoVerified.WithLabelValues(entityType, verdict).Inc()
}

// RecordSyncExecution records a completed sync execution.
func RecordSyncExecution(duration time.Duration, err error) {
	SyncDuration.Observe(duration.Seconds())
	if err != nil {
		SyncErrors.WithLabelValues("run").Inc()
		return
	}
	SyncLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordEventPublished records one event published to the internal bus.
func RecordEventPublished(topic string) {
	EventsPublished.WithLabelValues(topic).Inc()
}

// RecordEventConsumed records one event consumed from the internal bus.
func RecordEventConsumed(topic string) {
	EventsConsumed.WithLabelValues(topic).Inc()
}

// RecordWebhookDelivery records one webhook delivery attempt.
func RecordWebhookDelivery(eventType string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	WebhookDeliveries.WithLabelValues(eventType, result).Inc()
}
