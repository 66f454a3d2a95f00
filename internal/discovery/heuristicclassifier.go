// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package discovery

import (
	"context"
	"regexp"
	"strings"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

// HeuristicClassifier extracts candidates from search hits without an
// external AI provider: the platform listing's own title/snippet
// format carries the venue name and city directly, so a titleSuffix
// strip plus a city regex gets most of the way there. It stands in
// for both FallbackClassifier.Primary and Secondary when no AI
// provider credential is configured (see DESIGN.md: no LLM SDK in the
// example pack to ground a richer classifier on).
type HeuristicClassifier struct {
	// TitleSeparators are substrings that split a listing title into
	// "venue name" and "platform/site" segments, tried in order.
	TitleSeparators []string
}

// NewHeuristicClassifier returns a classifier tuned to the platform
// listing title conventions SPEC_FULL §4.2 names.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{
		TitleSeparators: []string{" | ", " - ", " – ", " — "},
	}
}

var cityFromSnippet = regexp.MustCompile(`(?i)\b([A-ZÀ-Ü][a-zà-ü]+(?:[- ][A-ZÀ-Ü][a-zà-ü]+)?)\s*,\s*(Switzerland|Germany|Austria|CH|DE|AT)\b`)

func (h *HeuristicClassifier) Classify(ctx context.Context, hits []SearchHit, strategy *domain.DiscoveryStrategy, query string) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		name := h.venueName(hit.Title)
		if name == "" {
			continue
		}
		link := domain.DeliveryPlatformLink{URL: hit.URL}
		defaultCountry := ""
		if strategy != nil {
			link.Platform = strategy.Platform
			defaultCountry = strategy.Country
		}
		city, country := cityAndCountry(hit.Snippet, defaultCountry)
		candidates = append(candidates, Candidate{
			Name:      name,
			Address:   domain.Address{City: city, Country: country},
			Platforms: []domain.DeliveryPlatformLink{link},
			Confidence: 50,
			Factors: []domain.ConfidenceFactor{
				{Name: "search_listing_match", Weight: 1, Score: 50},
			},
		})
	}
	return candidates, nil
}

func (h *HeuristicClassifier) venueName(title string) string {
	name := title
	for _, sep := range h.TitleSeparators {
		if idx := strings.Index(title, sep); idx > 0 {
			name = title[:idx]
			break
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return name
}

func cityAndCountry(snippet, defaultCountry string) (city, country string) {
	match := cityFromSnippet.FindStringSubmatch(snippet)
	if match == nil {
		return "", defaultCountry
	}
	return match[1], normalizeCountry(match[2], defaultCountry)
}

func normalizeCountry(raw, fallback string) string {
	switch strings.ToUpper(raw) {
	case "CH", "SWITZERLAND":
		return "CH"
	case "DE", "GERMANY":
		return "DE"
	case "AT", "AUSTRIA":
		return "AT"
	default:
		return fallback
	}
}
