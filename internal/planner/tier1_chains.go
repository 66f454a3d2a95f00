// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package planner

import (
	"context"
	"fmt"
	"sort"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

// maxUncoveredCitiesPerCountry caps how many uncovered cities a single
// chain/country pair contributes to the plan, per SPEC_FULL §4.2.
const maxUncoveredCitiesPerCountry = 5

// chainPriority computes a chain's enumeration priority in [0,100],
// per SPEC_FULL §4.2: a base score plus bonuses for geographic spread,
// location count, and coverage gap, capped at 100.
func chainPriority(c *domain.Chain) int {
	score := 50 + 10*len(c.Countries)

	locations := c.LocationsCount()
	switch {
	case locations > 50:
		score += 20
	case locations > 20:
		score += 10
	}

	coverage := c.CoveragePercent()
	switch {
	case coverage < 20:
		score += 20
	case coverage < 50:
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

// allocateChainEnumeration emits one query per (chain, uncovered city,
// platform) triple for every verified chain under 80% coverage, in
// descending priority order (ties broken by chain id), until budget
// runs out.
func (p *Planner) allocateChainEnumeration(ctx context.Context, budget int, platforms []domain.PlatformTag) ([]QueryItem, error) {
	if budget <= 0 {
		return nil, nil
	}

	chains, err := p.st.ListChains(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chains: %w", err)
	}

	var eligible []*domain.Chain
	for _, c := range chains {
		if c.VerifiedPartner && c.CoveragePercent() < 80 {
			eligible = append(eligible, c)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		pi, pj := chainPriority(eligible[i]), chainPriority(eligible[j])
		if pi != pj {
			return pi > pj
		}
		return eligible[i].ID < eligible[j].ID
	})

	var items []QueryItem
	for _, c := range eligible {
		for _, cc := range c.Countries {
			cities := cc.UncoveredCities
			if len(cities) > maxUncoveredCitiesPerCountry {
				cities = cities[:maxUncoveredCitiesPerCountry]
			}
			for _, city := range cities {
				for _, platform := range platforms {
					if len(items) >= budget {
						return items, nil
					}
					items = append(items, QueryItem{
						Tier:     TierChainEnumeration,
						Platform: platform,
						Country:  cc.Country,
						City:     city,
						ChainID:  c.ID,
						Query:    fmt.Sprintf("%s %s %s", c.Name, city, platform),
					})
				}
			}
		}
	}
	return items, nil
}
