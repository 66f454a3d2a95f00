// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package planner

import "sort"

// experimentalTemplateFamilies is the closed set of template families
// SPEC_FULL §4.2 names: product-specific, cross-platform, localised,
// and menu/dish-centric. Each interpolates against an under-covered
// geography surfaced by tier 3.
var experimentalTemplateFamilies = []string{
	"planted.chicken {city} delivery",
	"{city} uber eats wolt lieferando vegan",
	"vegane lieferung {city}",
	"menu vegan kebab {city}",
}

// allocateExperimental interpolates the closed template-family set
// against the under-covered geographies tier 3 already surfaced,
// reusing that ordering so experimental coverage targets the same
// gaps rather than introducing a second discovery pass.
func (p *Planner) allocateExperimental(budget int, countries []string, tier3 []QueryItem) []QueryItem {
	if budget <= 0 {
		return nil
	}

	geographies := uniqueGeographies(tier3)
	if len(geographies) == 0 {
		// No tier-3 gaps (fully explored countries): fall back to one
		// geography per target country so the tier still has input.
		for _, c := range countries {
			geographies = append(geographies, geography{country: c})
		}
	}

	var items []QueryItem
	for _, g := range geographies {
		for _, family := range experimentalTemplateFamilies {
			if len(items) >= budget {
				return items
			}
			items = append(items, QueryItem{
				Tier:    TierExperimental,
				Country: g.country,
				City:    g.city,
				Query:   interpolate(family, g.city, "", ""),
			})
		}
	}
	return items
}

type geography struct {
	country string
	city    string
}

func uniqueGeographies(items []QueryItem) []geography {
	seen := make(map[geography]bool)
	var out []geography
	for _, it := range items {
		g := geography{country: it.Country, city: it.City}
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].country != out[j].country {
			return out[i].country < out[j].country
		}
		return out[i].city < out[j].city
	})
	return out
}
