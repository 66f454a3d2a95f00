// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

// Package discovery implements the discovery executor (SPEC_FULL
// §4.3): it walks a planner-built query plan, leases credentials from
// the pool, executes search queries with retry and backoff, hands raw
// results to a classifier, and upserts classified candidates into
// staging with per-run strategy feedback.
package discovery

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/cache"
	"github.com/plantedfoods/discovery-engine/internal/credentials"
	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/logging"
	"github.com/plantedfoods/discovery-engine/internal/metrics"
	"github.com/plantedfoods/discovery-engine/internal/planner"
	"github.com/plantedfoods/discovery-engine/internal/resilience"
	"github.com/plantedfoods/discovery-engine/internal/store"
)

// ErrGlobalCeilingExceeded is returned when the process-wide daily
// request ceiling (SPEC_FULL §5, config.RateLimitConfig.GlobalDailyCeiling)
// is already exhausted.
var ErrGlobalCeilingExceeded = errors.New("discovery: global daily request ceiling exceeded")

// Mode selects the discovery executor's operating pattern.
type Mode string

const (
	ModeExplore   Mode = "explore"
	ModeEnumerate Mode = "enumerate"
	ModeVerify    Mode = "verify"
)

// successConfidenceThreshold is the confidence at or above which an
// accepted candidate counts as a strategy success, per SPEC_FULL §4.3.
const successConfidenceThreshold = 70.0

// falsePositiveConfidenceThreshold is the confidence below which (or a
// reject-pattern URL match) counts as a strategy false positive.
const falsePositiveConfidenceThreshold = 20.0

// queryTimeout is the hard per-query timeout SPEC_FULL §4.3 mandates.
const queryTimeout = 30 * time.Second

// RunConfig parameterizes one discovery run.
type RunConfig struct {
	Mode          Mode
	Countries     []string
	Platforms     []domain.PlatformTag
	Chains        []string
	MaxQueries    int
	DryRun        bool
	Verbose       bool
	RejectURLSubs []string // URL substrings treated as reject-pattern matches
}

// RunReport aggregates the outcome of a discovery run.
type RunReport struct {
	QueriesExecuted      int
	QueriesSuccessful    int
	QueriesClassified    int
	VenuesDiscovered     int
	ChainsDetected       int
	CredentialsExhausted int
	Errors               []string
}

// Executor runs discovery queries against a planner-built plan.
type Executor struct {
	st         *store.Store
	pool       *credentials.Pool
	search     SearchClient
	classifier Classifier
	dedupe     *cache.BloomLRU
	ceiling    *resilience.GlobalCeiling
}

// New builds an Executor. dedupeCapacity/dedupeTTL size the in-memory
// BloomLRU that tracks repeat-within-run candidate keys for
// observability (SPEC_FULL §5's "BloomLRU-based dedup against
// staging"); the store's FindDiscoveredVenueByKey remains the
// authoritative dedup check since it survives process restarts.
func New(st *store.Store, pool *credentials.Pool, search SearchClient, classifier Classifier, dedupeCapacity int, dedupeTTL time.Duration) *Executor {
	return &Executor{
		st:         st,
		pool:       pool,
		search:     search,
		classifier: classifier,
		dedupe:     cache.NewBloomLRU(dedupeCapacity, dedupeTTL, 0.01),
	}
}

// WithGlobalCeiling attaches the process-wide daily request breaker.
// Every query checks it before leasing a credential; a nil ceiling
// (the zero value) leaves the executor unbounded, matching the prior
// behavior for callers that don't opt in.
func (e *Executor) WithGlobalCeiling(ceiling *resilience.GlobalCeiling) *Executor {
	e.ceiling = ceiling
	return e
}

// Run executes every query in plan against cfg, returning an
// aggregate report. A query is aborted (and counted as an error, not a
// crash) when no credential is available; remaining queries in the
// plan are skipped once the pool is fully exhausted, per SPEC_FULL
// §4.3's backpressure contract.
func (e *Executor) Run(ctx context.Context, plan *planner.QueryPlan, cfg RunConfig) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{}
	defer func() { metrics.RecordDiscoveryRun(time.Since(start)) }()

	items := plan.Items
	if cfg.MaxQueries > 0 && len(items) > cfg.MaxQueries {
		items = items[:cfg.MaxQueries]
	}

	poolExhausted := false
	for _, item := range items {
		if poolExhausted {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := e.runQuery(ctx, item, cfg, report); err != nil {
			if errors.Is(err, credentials.ErrNoCredentialAvailable) {
				poolExhausted = true
				report.CredentialsExhausted++
				report.Errors = append(report.Errors, "credential pool exhausted, aborting remaining queries: "+err.Error())
				continue
			}
			if errors.Is(err, ErrGlobalCeilingExceeded) {
				poolExhausted = true
				report.Errors = append(report.Errors, "global daily request ceiling exceeded, aborting remaining queries")
				continue
			}
			report.Errors = append(report.Errors, err.Error())
		}
	}
	return report, nil
}

// runQuery executes and classifies a single planned query, upserting
// any resulting candidates into staging.
func (e *Executor) runQuery(ctx context.Context, item planner.QueryItem, cfg RunConfig, report *RunReport) error {
	if e.ceiling != nil && !e.ceiling.Allow() {
		return ErrGlobalCeilingExceeded
	}

	cred, err := e.pool.Lease(ctx)
	if err != nil {
		return err
	}

	var strategy *domain.DiscoveryStrategy
	if item.StrategyID != "" {
		strategy, err = e.st.GetDiscoveryStrategy(ctx, item.StrategyID)
		if errors.Is(err, store.ErrNotFound) {
			strategy = nil
		} else if err != nil {
			return err
		}
	}

	hits, execErr := e.executeWithRetry(ctx, cred.APIKey, cred.SearchEngineID, item.Query)
	report.QueriesExecuted++
	if execErr != nil {
		var se *SearchError
		if errors.As(execErr, &se) && se.StatusCode == 429 {
			_ = e.pool.Report(ctx, cred.ID, false, true)
		} else {
			_ = e.pool.Report(ctx, cred.ID, false, false)
		}
		metrics.RecordDiscoveryQuery(string(item.Platform), "error")
		return execErr
	}
	_ = e.pool.Report(ctx, cred.ID, true, false)
	report.QueriesSuccessful++
	metrics.RecordDiscoveryQuery(string(item.Platform), "success")

	candidates, classifyErr := e.classifyWithRetry(ctx, hits, strategy, item.Query)
	if classifyErr != nil {
		// Recorded as executed but not_classified, per SPEC_FULL §4.3.
		return nil
	}
	report.QueriesClassified++

	var uses, successes, falsePositives int
	for _, c := range candidates {
		if cfg.Mode == ModeEnumerate && item.ChainID != "" && !fuzzyChainMatch(c.Name, item.ChainID) {
			continue
		}
		uses++
		outcome, chainDetected, err := e.ingestCandidate(ctx, c, item, cfg)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		if chainDetected {
			report.ChainsDetected++
		}
		switch outcome {
		case "new":
			report.VenuesDiscovered++
		}
		if c.Confidence >= successConfidenceThreshold && (outcome == "new" || outcome == "merged") {
			successes++
		} else if c.Confidence < falsePositiveConfidenceThreshold || urlMatchesRejectPattern(c, cfg.RejectURLSubs) {
			falsePositives++
		}
		metrics.RecordDiscoveryVenue(outcome)
	}

	if strategy != nil && !cfg.DryRun {
		strategy.Uses += uses
		strategy.Successes += successes
		strategy.FalsePositives += falsePositives
		if err := e.st.UpsertDiscoveryStrategy(ctx, strategy); err != nil {
			return err
		}
	}
	return nil
}

// executeWithRetry runs the search with a hard per-query timeout,
// retrying transient failures with 1s/2s/4s backoff up to three
// attempts. A 4xx status (other than one already retried) is terminal.
func (e *Executor) executeWithRetry(ctx context.Context, apiKey, searchEngineID, query string) ([]SearchHit, error) {
	backoffs := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	var lastErr error

	for attempt := 0; attempt < len(backoffs); attempt++ {
		queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
		hits, err := e.search.Search(queryCtx, apiKey, searchEngineID, query)
		cancel()
		if err == nil {
			return hits, nil
		}
		lastErr = err

		var se *SearchError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
			return nil, err
		}
		if attempt < len(backoffs)-1 {
			timer := time.NewTimer(backoffs[attempt])
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// classifyWithRetry calls the classifier and, on error, calls it once
// more with the same inputs. If the second call also fails, the error
// is returned and the caller treats the query as executed but
// unclassified.
func (e *Executor) classifyWithRetry(ctx context.Context, hits []SearchHit, strategy *domain.DiscoveryStrategy, query string) ([]Candidate, error) {
	candidates, err := e.classifier.Classify(ctx, hits, strategy, query)
	if err == nil {
		return candidates, nil
	}
	logging.Warn().Err(err).Str("query", query).Msg("primary classifier failed, retrying")
	return e.classifier.Classify(ctx, hits, strategy, query)
}

// ingestCandidate deduplicates a classified candidate against staging
// and upserts it, returning "new", "merged", or "duplicate" (rejected
// matches are reported as "duplicate" too, since neither creates a new
// staged row).
func (e *Executor) ingestCandidate(ctx context.Context, c Candidate, item planner.QueryItem, cfg RunConfig) (outcome string, chainDetected bool, err error) {
	key := dedupeKey(c)
	nameLower := strings.ToLower(c.Name)
	cityLower := strings.ToLower(c.Address.City)

	// The store row is always the authoritative answer (it survives
	// process restarts, the bloom filter doesn't); IsDuplicate still
	// records every key so repeat-within-run stats surface in Stats().
	e.dedupe.IsDuplicate(key)

	existing, lookupErr := e.st.FindDiscoveredVenueByKey(ctx, nameLower, cityLower)
	switch {
	case errors.Is(lookupErr, store.ErrNotFound):
		if cfg.DryRun {
			return "new", c.ChainGuess != "", nil
		}
		venue := &domain.DiscoveredVenue{
			ID:                newID("venue"),
			Name:              c.Name,
			Address:           c.Address,
			Platforms:         c.Platforms,
			ChainID:           c.ChainGuess,
			ConfidenceScore:   c.Confidence,
			ConfidenceFactors: c.Factors,
			Status:            domain.StatusDiscovered,
			Origin:            domain.OriginTrace{StrategyID: item.StrategyID, Query: item.Query},
		}
		if err := e.st.UpsertDiscoveredVenue(ctx, venue); err != nil {
			return "", false, err
		}
		return "new", c.ChainGuess != "", nil
	case lookupErr != nil:
		return "", false, lookupErr
	}

	if existing.Status == domain.StatusRejected {
		return "duplicate", false, nil
	}
	if existing.Status == domain.StatusDiscovered {
		existing.Platforms = mergePlatforms(existing.Platforms, c.Platforms)
		if cfg.DryRun {
			return "merged", false, nil
		}
		if err := e.st.UpsertDiscoveredVenue(ctx, existing); err != nil {
			return "", false, err
		}
		return "merged", false, nil
	}
	return "duplicate", false, nil
}

// mergePlatforms appends platform links from incoming not already
// present (by platform tag) on existing.
func mergePlatforms(existing, incoming []domain.DeliveryPlatformLink) []domain.DeliveryPlatformLink {
	seen := make(map[domain.PlatformTag]bool, len(existing))
	for _, l := range existing {
		seen[l.Platform] = true
	}
	for _, l := range incoming {
		if !seen[l.Platform] {
			existing = append(existing, l)
			seen[l.Platform] = true
		}
	}
	return existing
}

// dedupeKey normalizes a candidate into the (name, city, host+path)
// key SPEC_FULL §4.3 specifies for staging dedup.
func dedupeKey(c Candidate) string {
	host, path := "", ""
	if len(c.Platforms) > 0 {
		if u, err := url.Parse(c.Platforms[0].URL); err == nil {
			host, path = u.Host, u.Path
		}
	}
	return strings.ToLower(c.Name) + "|" + strings.ToLower(c.Address.City) + "|" + strings.ToLower(host+path)
}

// urlMatchesRejectPattern reports whether any of a candidate's
// platform URLs contain one of the configured reject substrings.
func urlMatchesRejectPattern(c Candidate, rejectSubs []string) bool {
	for _, l := range c.Platforms {
		for _, sub := range rejectSubs {
			if sub != "" && strings.Contains(strings.ToLower(l.URL), strings.ToLower(sub)) {
				return true
			}
		}
	}
	return false
}

// fuzzyChainMatch reports whether name plausibly belongs to chainID,
// by case-insensitive substring containment in either direction. Real
// fuzzy matching belongs in the classifier (which is told to hard
// filter, per SPEC_FULL §4.3); this is the executor's cheap backstop.
func fuzzyChainMatch(name, chainID string) bool {
	n, c := strings.ToLower(name), strings.ToLower(chainID)
	return strings.Contains(n, c) || strings.Contains(c, n)
}

var idCounter atomic.Uint64

// newID mints a process-unique id for newly discovered entities.
func newID(prefix string) string {
	n := idCounter.Add(1)
	return prefix + "-" + time.Now().UTC().Format("20060102T150405") + "-" + strconv.FormatUint(n, 10)
}
