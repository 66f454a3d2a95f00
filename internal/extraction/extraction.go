// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package extraction

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/logging"
	"github.com/plantedfoods/discovery-engine/internal/metrics"
	"github.com/plantedfoods/discovery-engine/internal/resilience"
	"github.com/plantedfoods/discovery-engine/internal/store"
)

// maxConsecutiveFailures is how many failed extraction attempts in a
// row move a venue to extraction_failed and start its cooldown.
const maxConsecutiveFailures = 3

const maxAttempts = 3

var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// RunConfig selects an extraction run's targets and behavior, mirroring
// the "extraction" section of the config file (SPEC_FULL §6).
type RunConfig struct {
	Target     string // all / chain / venues
	ChainID    string
	VenueIDs   []string
	Country    string
	MaxVenues  int
	DryRun     bool
	Learn      bool
}

// RunReport is the per-run outcome summary the CLI renders as a table.
type RunReport struct {
	VenuesAttempted int
	VenuesSucceeded int
	VenuesFailed    int
	DishesFound     int
	DishesNeedingReview int
	Errors          []string
}

// ErrGlobalCeilingExceeded is returned when the process-wide daily
// request ceiling (SPEC_FULL §5, config.RateLimitConfig.GlobalDailyCeiling)
// is already exhausted.
var ErrGlobalCeilingExceeded = errors.New("extraction: global daily request ceiling exceeded")

// Executor runs extraction passes over staged venues.
type Executor struct {
	st      *store.Store
	fetcher PageFetcher
	brand   string
	pacers  map[domain.PlatformTag]*resilience.Pacer
	ceiling *resilience.GlobalCeiling
}

// New builds an Executor. pacingByPlatform lets each delivery platform
// carry its own request cadence (SPEC_FULL §4.4's per-platform
// ceilings); brand is the case-insensitive token the brand filter
// looks for.
func New(st *store.Store, fetcher PageFetcher, brand string, pacingByPlatform map[domain.PlatformTag]resilience.PacingConfig) *Executor {
	pacers := make(map[domain.PlatformTag]*resilience.Pacer, len(pacingByPlatform))
	for platform, cfg := range pacingByPlatform {
		pacers[platform] = resilience.NewPacer(cfg)
	}
	return &Executor{st: st, fetcher: fetcher, brand: brand, pacers: pacers}
}

// WithGlobalCeiling attaches the process-wide daily request breaker.
// Every platform fetch checks it before pacing; a nil ceiling leaves
// the executor unbounded, matching the prior behavior for callers that
// don't opt in.
func (e *Executor) WithGlobalCeiling(ceiling *resilience.GlobalCeiling) *Executor {
	e.ceiling = ceiling
	return e
}

// Run executes one extraction pass per cfg.
func (e *Executor) Run(ctx context.Context, cfg RunConfig) (*RunReport, error) {
	targets, err := e.selectTargets(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("extraction: select targets: %w", err)
	}

	report := &RunReport{}
	outcomesByPlatform := map[domain.PlatformTag]*PlatformOutcome{}
	strategyHits := map[string]int{}
	failureModes := map[string]int{}

	for _, venue := range targets {
		if cfg.MaxVenues > 0 && report.VenuesAttempted >= cfg.MaxVenues {
			break
		}
		report.VenuesAttempted++

		ok, err := e.extractVenue(ctx, venue, cfg, report, outcomesByPlatform, failureModes)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("venue %s: %v", venue.ID, err))
		}
		if ok {
			report.VenuesSucceeded++
			strategyHits[venue.Origin.StrategyID]++
		} else {
			report.VenuesFailed++
		}
	}

	if cfg.Learn && !cfg.DryRun {
		var outcomes []PlatformOutcome
		for _, o := range outcomesByPlatform {
			outcomes = append(outcomes, *o)
		}
		rec := buildLearningRecord(outcomes, strategyHits, failureModes)
		if err := persistLearningRecord(ctx, e.st, rec); err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
	}

	return report, nil
}

func (e *Executor) selectTargets(ctx context.Context, cfg RunConfig) ([]*domain.DiscoveredVenue, error) {
	switch cfg.Target {
	case "venues":
		var out []*domain.DiscoveredVenue
		for _, id := range cfg.VenueIDs {
			v, err := e.st.GetDiscoveredVenue(ctx, id)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case "chain":
		limit := cfg.MaxVenues
		if limit <= 0 {
			limit = 1000
		}
		return e.st.ListExtractionTargets(ctx, cfg.Country, cfg.ChainID, limit)
	default:
		limit := cfg.MaxVenues
		if limit <= 0 {
			limit = 1000
		}
		return e.st.ListExtractionTargets(ctx, cfg.Country, "", limit)
	}
}

func (e *Executor) extractVenue(ctx context.Context, venue *domain.DiscoveredVenue, cfg RunConfig, report *RunReport, outcomes map[domain.PlatformTag]*PlatformOutcome, failureModes map[string]int) (bool, error) {
	anySucceeded := false
	var lastErr error

	for _, link := range venue.Platforms {
		if _, ok := AdapterFor(link.Platform); !ok {
			continue
		}
		o := outcomes[link.Platform]
		if o == nil {
			o = &PlatformOutcome{Platform: string(link.Platform)}
			outcomes[link.Platform] = o
		}
		o.Attempts++

		if e.ceiling != nil && !e.ceiling.Allow() {
			lastErr = ErrGlobalCeilingExceeded
			failureModes["rate_limited"]++
			continue
		}

		if pacer, ok := e.pacers[link.Platform]; ok {
			if err := pacer.Wait(ctx); err != nil {
				lastErr = err
				failureModes["rate_limited"]++
				continue
			}
		}

		dishes, viaStructured, err := e.fetchMenuWithRetry(ctx, link, venue)
		if err != nil {
			lastErr = err
			failureModes[classifyFailure(err)]++
			metrics.RecordExtractionFetch(string(link.Platform), "failure", 0)
			continue
		}
		o.Succeeded++
		anySucceeded = true
		metrics.RecordExtractionFetch(string(link.Platform), "success", 0)

		if cfg.DryRun {
			continue
		}
		if err := e.persistDishes(ctx, venue, link.Platform, dishes, viaStructured, report); err != nil {
			return false, err
		}
	}

	if cfg.DryRun {
		return anySucceeded, lastErr
	}
	if err := e.recordOutcome(ctx, venue, anySucceeded); err != nil {
		return anySucceeded, err
	}
	return anySucceeded, lastErr
}

func (e *Executor) fetchMenuWithRetry(ctx context.Context, link domain.DeliveryPlatformLink, venue *domain.DiscoveredVenue) ([]RawDish, bool, error) {
	adapter, _ := AdapterFor(link.Platform)
	country := adapter.MarketCountry(link.URL)
	if country == "" {
		country = venue.Address.Country
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffSchedule[attempt-1]
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, false, ctx.Err()
			}
		}

		page, err := e.fetcher.Fetch(ctx, FetchOptions{
			URL: link.URL, Country: country, ScrollToBottom: true, WaitForSelector: adapter.WaitSelector(),
		})
		if err != nil {
			lastErr = err
			if !isRetryable(err) {
				return nil, false, err
			}
			continue
		}

		dishes, err := adapter.ExtractMenu(page)
		if err != nil {
			lastErr = err
			if !isRetryable(err) {
				return nil, false, err
			}
			continue
		}
		return dishes, page.StructuredJSON != nil, nil
	}
	return nil, false, lastErr
}

// isRetryable mirrors SPEC_FULL §4.4's failure taxonomy: timeouts and
// transient transport errors retry; CAPTCHA and selector-not-found
// (already post-scroll) do not.
func isRetryable(err error) bool {
	if errors.Is(err, ErrCAPTCHADetected) || errors.Is(err, ErrSelectorNotFound) {
		return false
	}
	return true
}

func classifyFailure(err error) string {
	switch {
	case errors.Is(err, ErrCAPTCHADetected):
		return "captcha_detected"
	case errors.Is(err, ErrSelectorNotFound):
		return "selector_not_found"
	default:
		return "transport_error"
	}
}

func (e *Executor) persistDishes(ctx context.Context, venue *domain.DiscoveredVenue, platform domain.PlatformTag, raw []RawDish, viaStructured bool, report *RunReport) error {
	sourceReliability := 65.0
	if viaStructured {
		sourceReliability = 90.0
	}

	for _, r := range raw {
		if !MatchesBrand(e.brand, r.Name, r.Description) {
			continue
		}
		if IsGenericSubstitute(r.Name) {
			continue
		}

		tag, explicit, keyword := MapProduct(e.brand, r.Name, r.Description)
		overall, factors := scoreDish(r, tag, explicit, keyword, sourceReliability)
		needsReview := overall < needsReviewThreshold

		dish := &domain.DiscoveredDish{
			ID:              newID("dish"),
			VenueID:         venue.ID,
			Name:            r.Name,
			Description:     r.Description,
			Category:        r.Category,
			ProductTag:      tag,
			ImageURL:        r.ImageURL,
			ConfidenceScore: overall,
			Factors:         factors,
			NeedsReview:     needsReview,
			Status:          domain.StatusDiscovered,
		}
		if r.Price > 0 {
			dish.Prices = []domain.Price{{Country: venue.Address.Country, Amount: r.Price, Currency: r.Currency}}
		}

		if err := e.st.UpsertDiscoveredDish(ctx, dish); err != nil {
			return fmt.Errorf("upsert discovered dish: %w", err)
		}
		report.DishesFound++
		if needsReview {
			report.DishesNeedingReview++
		}
		metrics.RecordExtractionDish(string(platform))
	}
	return nil
}

// recordOutcome updates the venue's extraction bookkeeping: a success
// resets the failure streak, a run with no successful platform fetch
// increments it and, at maxConsecutiveFailures, moves the venue to
// extraction_failed with a 24h cooldown.
func (e *Executor) recordOutcome(ctx context.Context, venue *domain.DiscoveredVenue, succeeded bool) error {
	now := time.Now()
	venue.LastExtractedAt = &now

	if succeeded {
		venue.ExtractionFailures = 0
		if venue.Status == domain.StatusExtractionFailed {
			venue.Status = domain.StatusDiscovered
			venue.ExtractionCooldownUntil = nil
		}
	} else {
		venue.ExtractionFailures++
		if venue.ExtractionFailures >= maxConsecutiveFailures {
			venue.Status = domain.StatusExtractionFailed
			cooldown := now.Add(domain.ExtractionCooldown)
			venue.ExtractionCooldownUntil = &cooldown
			logging.Warn().Str("venue_id", venue.ID).Msg("venue marked extraction_failed after consecutive failures")
		}
	}

	if err := e.st.UpsertDiscoveredVenue(ctx, venue); err != nil {
		return fmt.Errorf("update venue extraction state: %w", err)
	}
	return nil
}

var idCounter atomic.Uint64

func newID(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(time.Now().UTC().Format("20060102T150405.000000000"), ".", "") + "-" + strconv.FormatUint(idCounter.Add(1), 10)
}
