// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

// Package planner implements the query planner (SPEC_FULL §4.2): it
// allocates a fixed query budget across four priority tiers — chain
// enumeration, high-yield strategies, city exploration, and
// experimental template families — reading chain and strategy state
// from the store and emitting a deterministic, fully-ordered plan.
package planner

import (
	"context"
	"fmt"

	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/store"
)

// Tier names the priority group a QueryItem belongs to.
type Tier string

const (
	TierChainEnumeration Tier = "chain_enumeration"
	TierHighYield        Tier = "high_yield_strategy"
	TierCityExploration  Tier = "city_exploration"
	TierExperimental     Tier = "experimental"
)

// tierShare is each tier's fraction of the total budget, per
// SPEC_FULL §4.2 (40/30/20/10).
var tierShare = map[Tier]float64{
	TierChainEnumeration: 0.40,
	TierHighYield:        0.30,
	TierCityExploration:  0.20,
	TierExperimental:     0.10,
}

// QueryItem is one query the discovery executor should run.
type QueryItem struct {
	Tier       Tier
	Platform   domain.PlatformTag
	Country    string
	City       string
	ChainID    string
	StrategyID string
	Query      string
}

// QueryPlan is the ordered output of Allocate: items grouped by tier,
// in the order they should be executed, plus per-tier counts for the
// run report.
type QueryPlan struct {
	Items      []QueryItem
	TierCounts map[Tier]int
}

// Planner allocates query budgets from the store's current chain,
// strategy, and coverage state.
type Planner struct {
	st *store.Store
}

// New builds a Planner over the given store.
func New(st *store.Store) *Planner {
	return &Planner{st: st}
}

// Allocate builds a QueryPlan for the given total query budget across
// the configured target countries and platforms. Leftover budget in a
// tier that can't fill its share is surrendered to the next tier, per
// SPEC_FULL §4.2; it is never borrowed backwards.
func (p *Planner) Allocate(ctx context.Context, totalBudget int, countries []string, platforms []domain.PlatformTag) (*QueryPlan, error) {
	plan := &QueryPlan{TierCounts: make(map[Tier]int)}
	if totalBudget <= 0 {
		return plan, nil
	}
	if len(platforms) == 0 {
		platforms = domain.AllPlatforms
	}

	budgets := splitBudget(totalBudget)

	tier1, err := p.allocateChainEnumeration(ctx, budgets[TierChainEnumeration], platforms)
	if err != nil {
		return nil, fmt.Errorf("planner: tier 1: %w", err)
	}
	spent1 := len(tier1)
	carry1 := budgets[TierChainEnumeration] - spent1

	tier2, err := p.allocateHighYieldStrategies(ctx, budgets[TierHighYield]+max0(carry1))
	if err != nil {
		return nil, fmt.Errorf("planner: tier 2: %w", err)
	}
	spent2 := len(tier2)
	carry2 := budgets[TierHighYield] + max0(carry1) - spent2

	tier3, err := p.allocateCityExploration(ctx, budgets[TierCityExploration]+max0(carry2), countries)
	if err != nil {
		return nil, fmt.Errorf("planner: tier 3: %w", err)
	}
	spent3 := len(tier3)
	carry3 := budgets[TierCityExploration] + max0(carry2) - spent3

	tier4 := p.allocateExperimental(budgets[TierExperimental]+max0(carry3), countries, tier3)

	plan.Items = append(plan.Items, tier1...)
	plan.Items = append(plan.Items, tier2...)
	plan.Items = append(plan.Items, tier3...)
	plan.Items = append(plan.Items, tier4...)

	plan.TierCounts[TierChainEnumeration] = len(tier1)
	plan.TierCounts[TierHighYield] = len(tier2)
	plan.TierCounts[TierCityExploration] = len(tier3)
	plan.TierCounts[TierExperimental] = len(tier4)

	return plan, nil
}

// splitBudget divides the total budget 40/30/20/10 across tiers,
// giving any rounding remainder to tier 1 so the four shares always
// sum to exactly totalBudget.
func splitBudget(total int) map[Tier]int {
	b := map[Tier]int{
		TierHighYield:       int(float64(total) * tierShare[TierHighYield]),
		TierCityExploration: int(float64(total) * tierShare[TierCityExploration]),
		TierExperimental:    int(float64(total) * tierShare[TierExperimental]),
	}
	used := b[TierHighYield] + b[TierCityExploration] + b[TierExperimental]
	b[TierChainEnumeration] = total - used
	return b
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
