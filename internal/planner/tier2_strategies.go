// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

const (
	highYieldMinUses        = 5
	highYieldMinSuccessRate = 50.0
	highYieldMaxCities      = 10
)

// allocateHighYieldStrategies expands every qualifying strategy
// (uses >= 5, success rate >= 50, not deprecated) against its
// country's lowest-coverage cities, sorted by success rate descending
// then uses descending, per SPEC_FULL §4.2.
func (p *Planner) allocateHighYieldStrategies(ctx context.Context, budget int) ([]QueryItem, error) {
	if budget <= 0 {
		return nil, nil
	}

	strategies, err := p.st.ListDiscoveryStrategies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list discovery strategies: %w", err)
	}

	var eligible []*domain.DiscoveryStrategy
	for _, st := range strategies {
		if !st.Deprecated && st.Uses >= highYieldMinUses && st.SuccessRate() >= highYieldMinSuccessRate {
			eligible = append(eligible, st)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		ri, rj := eligible[i].SuccessRate(), eligible[j].SuccessRate()
		if ri != rj {
			return ri > rj
		}
		if eligible[i].Uses != eligible[j].Uses {
			return eligible[i].Uses > eligible[j].Uses
		}
		return eligible[i].ID < eligible[j].ID
	})

	cityCache := make(map[string][]string)
	var items []QueryItem
	for _, st := range eligible {
		cities, ok := cityCache[st.Country]
		if !ok {
			cities, err = p.lowestCoverageCities(ctx, st.Country, highYieldMaxCities)
			if err != nil {
				return nil, err
			}
			cityCache[st.Country] = cities
		}
		for _, city := range cities {
			if len(items) >= budget {
				return items, nil
			}
			items = append(items, QueryItem{
				Tier:       TierHighYield,
				Platform:   st.Platform,
				Country:    st.Country,
				City:       city,
				StrategyID: st.ID,
				Query:      interpolate(st.Template, city, "", st.Platform),
			})
		}
	}
	return items, nil
}

// lowestCoverageCities returns up to n cities in country with the
// fewest staged venues so far, ascending by count, ties broken
// alphabetically.
func (p *Planner) lowestCoverageCities(ctx context.Context, country string, n int) ([]string, error) {
	counts, err := p.st.CountDiscoveredVenuesByCity(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("count venues by city: %w", err)
	}
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count < counts[j].Count
		}
		return counts[i].City < counts[j].City
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	cities := make([]string, len(counts))
	for i, c := range counts {
		cities[i] = c.City
	}
	return cities, nil
}

// interpolate fills a strategy template's {city}/{chain}/{platform}
// slots. A slot with no value interpolates to an empty string rather
// than erroring, since not every strategy uses every slot.
func interpolate(template, city, chain string, platform domain.PlatformTag) string {
	r := strings.NewReplacer(
		"{city}", city,
		"{chain}", chain,
		"{platform}", string(platform),
	)
	return strings.TrimSpace(r.Replace(template))
}
