// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package extraction

import (
	"strings"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

// needsReviewThreshold is the overall-confidence cutoff below which a
// dish is stored but flagged for human review.
const needsReviewThreshold = 40.0

// scoreDish computes the five SPEC_FULL §4.4 confidence factors for
// one raw dish and returns them alongside their arithmetic mean.
func scoreDish(raw RawDish, tag string, matchedExplicit, matchedKeyword bool, sourceReliability float64) (overall float64, factors []domain.ConfidenceFactor) {
	nameClarity := nameClarityScore(raw.Name)
	descEvidence := descriptionEvidenceScore(raw.Description)
	pricePlausible := pricePlausibilityScore(raw.Price)
	productCertainty := productMatchCertaintyScore(matchedExplicit, matchedKeyword)

	factors = []domain.ConfidenceFactor{
		{Name: "name_clarity", Weight: 1, Score: nameClarity},
		{Name: "description_evidence", Weight: 1, Score: descEvidence},
		{Name: "price_plausibility", Weight: 1, Score: pricePlausible},
		{Name: "source_reliability", Weight: 1, Score: sourceReliability},
		{Name: "product_match_certainty", Weight: 1, Score: productCertainty},
	}

	var sum float64
	for _, f := range factors {
		sum += f.Score
	}
	overall = sum / float64(len(factors))
	return overall, factors
}

// nameClarityScore rewards a short, specific dish name over a vague
// or empty one.
func nameClarityScore(name string) float64 {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return 0
	case len(name) < 4:
		return 40
	case len(name) > 80:
		return 50
	default:
		return 90
	}
}

// descriptionEvidenceScore rewards a present, substantive description
// that gives the brand filter and product mapper real text to work
// with.
func descriptionEvidenceScore(desc string) float64 {
	desc = strings.TrimSpace(desc)
	switch {
	case desc == "":
		return 20
	case len(desc) < 15:
		return 55
	default:
		return 85
	}
}

// pricePlausibilityScore rewards a price within the plausible range
// for a single delivery menu item; zero or absurd prices are
// discounted rather than rejected outright, since currency parsing
// can legitimately miss.
func pricePlausibilityScore(price float64) float64 {
	switch {
	case price <= 0:
		return 30
	case price < 3 || price > 60:
		return 50
	default:
		return 95
	}
}

// productMatchCertaintyScore reflects where in the rule precedence the
// product tag was assigned: an explicit brand-qualified phrase is most
// certain, a keyword match is moderate, and the conservative default
// carries deliberately reduced confidence.
func productMatchCertaintyScore(matchedExplicit, matchedKeyword bool) float64 {
	switch {
	case matchedExplicit:
		return 95
	case matchedKeyword:
		return 70
	default:
		return 35
	}
}
