// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package planner

import (
	"context"
	"fmt"
	"sort"
)

const (
	cityExplorationMaxVenues    = 5
	cityExplorationPatternsEach = 3
)

// cityExplorationPatterns are the three generic strategy patterns
// emitted per under-covered city, interpolated with the city name.
var cityExplorationPatterns = []string{
	"restaurants in {city}",
	"{city} delivery",
	"best food delivery {city}",
}

// allocateCityExploration finds cities with fewer than five discovered
// venues across the target countries, sorted by descending coverage
// gap (ties broken by country then city), and emits three strategy
// patterns per city, per SPEC_FULL §4.2.
func (p *Planner) allocateCityExploration(ctx context.Context, budget int, countries []string) ([]QueryItem, error) {
	if budget <= 0 {
		return nil, nil
	}

	type gap struct {
		country string
		city    string
		gap     int
	}
	var gaps []gap

	for _, country := range countries {
		counts, err := p.st.CountDiscoveredVenuesByCity(ctx, country)
		if err != nil {
			return nil, fmt.Errorf("count venues by city: %w", err)
		}
		for _, c := range counts {
			if c.Count >= cityExplorationMaxVenues {
				continue
			}
			coverageGap := 100 - 20*c.Count
			gaps = append(gaps, gap{country: country, city: c.City, gap: coverageGap})
		}
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].gap != gaps[j].gap {
			return gaps[i].gap > gaps[j].gap
		}
		if gaps[i].country != gaps[j].country {
			return gaps[i].country < gaps[j].country
		}
		return gaps[i].city < gaps[j].city
	})

	var items []QueryItem
	for _, g := range gaps {
		for _, pattern := range cityExplorationPatterns[:cityExplorationPatternsEach] {
			if len(items) >= budget {
				return items, nil
			}
			items = append(items, QueryItem{
				Tier:    TierCityExploration,
				Country: g.country,
				City:    g.city,
				Query:   interpolate(pattern, g.city, "", ""),
			})
		}
	}
	return items, nil
}
