// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

// Package review implements the deterministic auto-verifier and the
// human review queue described in SPEC_FULL §4.5.
package review

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/store"
)

// Verdict is the auto-verifier's decision for one venue.
type Verdict string

const (
	VerdictReject      Verdict = "reject"
	VerdictVerify       Verdict = "verify"
	VerdictNeedsReview Verdict = "needs_review"
)

// chainVerifyConfidence and the two unconditional-verify thresholds
// are the numeric constants named in SPEC_FULL §4.5 rules 4-6.
const (
	chainVerifyConfidence      = 90.0
	unconditionalVerifyConfidence = 95.0
	dishTagVerifyConfidence    = 80.0
	minCatalogTaggedDishes     = 2
)

// defaultBrandMisusePatterns flags names that lean on the brand as a
// generic descriptor rather than naming an actual storefront selling
// it, e.g. "Brand Reviews" or "Brand Coupons".
var defaultBrandMisusePatterns = []string{
	"coupon", "review site", "discount code", "promo code", "reddit", "wikipedia",
}

// defaultRejectURLPatterns match platform search results, category
// pages, or help pages rather than a single venue's storefront.
var defaultRejectURLPatterns = []string{
	"/search", "/category/", "/categories/", "/help", "/support", "/c/", "?q=",
}

// Result is the outcome of evaluating one venue, naming which rule
// fired so callers can surface the reasoning to the human reviewer.
type Result struct {
	VenueID string
	Verdict Verdict
	Rule    int
	Reason  string
}

// AutoVerifier applies the seven ordered rules from SPEC_FULL §4.5 to
// every venue entering discovered status.
type AutoVerifier struct {
	st                  *store.Store
	brandMisusePatterns []string
	rejectURLPatterns   []string
}

// New builds an AutoVerifier using the default pattern sets; callers
// may override either via the With* methods before use.
func New(st *store.Store) *AutoVerifier {
	return &AutoVerifier{st: st, brandMisusePatterns: defaultBrandMisusePatterns, rejectURLPatterns: defaultRejectURLPatterns}
}

func (v *AutoVerifier) WithBrandMisusePatterns(patterns []string) *AutoVerifier {
	v.brandMisusePatterns = patterns
	return v
}

func (v *AutoVerifier) WithRejectURLPatterns(patterns []string) *AutoVerifier {
	v.rejectURLPatterns = patterns
	return v
}

// Evaluate applies the seven ordered rules to venue and returns the
// first matching verdict. It does not mutate state; callers combine
// it with Apply (or run it standalone for dry-run reporting).
func (v *AutoVerifier) Evaluate(ctx context.Context, venue *domain.DiscoveredVenue, dishes []*domain.DiscoveredDish) (Result, error) {
	result := Result{VenueID: venue.ID}

	if reason, ok := v.matchesBrandMisuse(venue); ok {
		result.Verdict, result.Rule, result.Reason = VerdictReject, 1, reason
		return result, nil
	}

	if reason, ok := v.matchesRejectURL(venue); ok {
		result.Verdict, result.Rule, result.Reason = VerdictReject, 2, reason
		return result, nil
	}

	dup, err := v.hasDuplicateURL(ctx, venue)
	if err != nil {
		return result, err
	}
	if dup {
		result.Verdict, result.Rule, result.Reason = VerdictReject, 3, "duplicate delivery URL with an existing non-rejected venue"
		return result, nil
	}

	verifiedChain, err := v.matchesVerifiedPartnerChain(ctx, venue)
	if err != nil {
		return result, err
	}
	if verifiedChain && venue.ConfidenceScore >= chainVerifyConfidence {
		result.Verdict, result.Rule, result.Reason = VerdictVerify, 4, "verified-partner chain match with confidence >= 90"
		return result, nil
	}

	if venue.ConfidenceScore >= unconditionalVerifyConfidence {
		result.Verdict, result.Rule, result.Reason = VerdictVerify, 5, "confidence >= 95"
		return result, nil
	}

	catalogTagged := countCatalogTaggedDishes(dishes)
	if catalogTagged >= minCatalogTaggedDishes && venue.ConfidenceScore >= dishTagVerifyConfidence {
		result.Verdict, result.Rule, result.Reason = VerdictVerify, 6, fmt.Sprintf("%d catalog-tagged dishes with confidence >= 80", catalogTagged)
		return result, nil
	}

	result.Verdict, result.Rule, result.Reason = VerdictNeedsReview, 7, "no rule matched"
	return result, nil
}

// Apply evaluates venue and, unless dryRun, mutates its status and
// writes a change-log entry. Returns the evaluation result regardless
// of dryRun so callers can report outcomes uniformly.
func (v *AutoVerifier) Apply(ctx context.Context, venue *domain.DiscoveredVenue, dishes []*domain.DiscoveredDish, dryRun bool) (Result, error) {
	result, err := v.Evaluate(ctx, venue, dishes)
	if err != nil {
		return result, err
	}
	if dryRun {
		return result, nil
	}

	before := venue.Status
	switch result.Verdict {
	case VerdictReject:
		venue.Status = domain.StatusRejected
		venue.RejectionReason = result.Reason
	case VerdictVerify:
		venue.Status = domain.StatusVerified
	case VerdictNeedsReview:
		venue.Status = domain.StatusNeedsReview
	}

	if err := v.st.UpsertDiscoveredVenue(ctx, venue); err != nil {
		return result, fmt.Errorf("review: apply verdict: %w", err)
	}

	action := domain.ActionVerified
	if result.Verdict == VerdictReject {
		action = domain.ActionRejected
	}
	log := &domain.ChangeLog{
		ID:         changeLogID(venue.ID),
		Timestamp:  time.Now(),
		Action:      action,
		Collection: "discovered_venues",
		DocumentID: venue.ID,
		Fields:     []domain.FieldChange{{Field: "status", Before: string(before), After: string(venue.Status)}},
		Source:     domain.ChangeSource{Kind: "scraper", ActorID: fmt.Sprintf("auto-verifier-rule-%d", result.Rule)},
	}
	if err := v.st.InsertChangeLog(ctx, log); err != nil {
		return result, fmt.Errorf("review: write change log: %w", err)
	}
	return result, nil
}

func (v *AutoVerifier) matchesBrandMisuse(venue *domain.DiscoveredVenue) (string, bool) {
	lower := strings.ToLower(venue.Name)
	for _, pattern := range v.brandMisusePatterns {
		if pattern != "" && strings.Contains(lower, pattern) {
			return fmt.Sprintf("name matches brand-misuse pattern %q", pattern), true
		}
	}
	return "", false
}

func (v *AutoVerifier) matchesRejectURL(venue *domain.DiscoveredVenue) (string, bool) {
	for _, link := range venue.Platforms {
		lower := strings.ToLower(link.URL)
		for _, pattern := range v.rejectURLPatterns {
			if pattern != "" && strings.Contains(lower, pattern) {
				return fmt.Sprintf("URL matches reject pattern %q", pattern), true
			}
		}
	}
	return "", false
}

func (v *AutoVerifier) hasDuplicateURL(ctx context.Context, venue *domain.DiscoveredVenue) (bool, error) {
	others, err := v.st.ListDiscoveredVenuesExcludingStatus(ctx, domain.StatusRejected)
	if err != nil {
		return false, fmt.Errorf("review: list venues for duplicate check: %w", err)
	}
	urls := normalizedURLs(venue)
	for _, other := range others {
		if other.ID == venue.ID {
			continue
		}
		for _, url := range normalizedURLs(other) {
			if urls[url] {
				return true, nil
			}
		}
	}
	return false, nil
}

func normalizedURLs(venue *domain.DiscoveredVenue) map[string]bool {
	out := map[string]bool{}
	for _, link := range venue.Platforms {
		out[strings.ToLower(strings.TrimRight(link.URL, "/"))] = true
	}
	return out
}

func (v *AutoVerifier) matchesVerifiedPartnerChain(ctx context.Context, venue *domain.DiscoveredVenue) (bool, error) {
	if venue.ChainID == "" {
		return false, nil
	}
	chain, err := v.st.GetChain(ctx, venue.ChainID)
	if err != nil {
		if err == store.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("review: load chain %s: %w", venue.ChainID, err)
	}
	return chain.VerifiedPartner, nil
}

func countCatalogTaggedDishes(dishes []*domain.DiscoveredDish) int {
	count := 0
	for _, d := range dishes {
		if d.ProductTag != "" {
			count++
		}
	}
	return count
}

var changeLogCounter atomic.Int64

func changeLogID(venueID string) string {
	return fmt.Sprintf("cl-%s-%d", venueID, changeLogCounter.Add(1))
}
