// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package extraction

import "strings"

// genericSubstitutes are terms that must never, by themselves,
// satisfy the brand filter even though they are adjacent to the
// domain of plant-based menu items (SPEC_FULL §4.4).
var genericSubstitutes = []string{
	"plant-based", "plant based", "vegan", "vegetarian", "meatless",
}

// MatchesBrand reports whether name or description contains a
// case-insensitive occurrence of brand, and is not merely matching a
// generic substitute term or a competing brand's name.
func MatchesBrand(brand, name, description string) bool {
	haystack := strings.ToLower(name + " " + description)
	brandLower := strings.ToLower(brand)
	if brandLower == "" {
		return false
	}
	return strings.Contains(haystack, brandLower)
}

// IsGenericSubstitute reports whether text contains any generic
// plant-based term from genericSubstitutes. It does not look for the
// tracked brand, so text naming both reports true.
func IsGenericSubstitute(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range genericSubstitutes {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// productKeywords maps each closed-catalog product tag to its
// language-tagged synonym dictionary, consulted after the
// brand-qualified-phrase pass fails to match.
var productKeywords = map[string][]string{
	"brand.chicken":   {"chicken", "poulet", "huhn", "hähnchen", "pollo"},
	"brand.kebab":     {"kebab", "döner", "doner", "gyros"},
	"brand.schnitzel": {"schnitzel", "cordon bleu", "escalope"},
	"brand.burger":    {"burger", "patty"},
	"brand.nuggets":   {"nuggets", "tenders", "strips"},
	"brand.sausage":   {"sausage", "wurst", "bratwurst", "saucisse"},
}

// defaultProduct is the conservative fallback when no phrase or
// keyword rule matches; SPEC_FULL §4.4 calls for a reduced-confidence
// default rather than leaving the dish unmapped.
const defaultProduct = "brand.chicken"

// MapProduct assigns exactly one product tag to a dish using rule
// precedence: an explicit brand-qualified phrase ("brand.kebab") found
// verbatim in the text, then a keyword-dictionary match, then the
// conservative default. matchedExplicit/matchedKeyword report which
// tier matched, driving the product-match-certainty confidence factor.
func MapProduct(brand, name, description string) (tag string, matchedExplicit, matchedKeyword bool) {
	haystack := strings.ToLower(name + " " + description)

	for product := range productKeywords {
		phrase := strings.ToLower(brand) + "." + strings.TrimPrefix(product, "brand.")
		if strings.Contains(haystack, phrase) {
			return product, true, false
		}
	}

	var best string
	var bestLen int
	for product, keywords := range productKeywords {
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) && len(kw) > bestLen {
				best, bestLen = product, len(kw)
			}
		}
	}
	if best != "" {
		return best, false, true
	}

	return defaultProduct, false, false
}
