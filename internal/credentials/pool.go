// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

// Package credentials implements the search-engine credential pool
// (SPEC_FULL §4.1): a shared daily quota rotated across a small set of
// API keys, with lazy daily reset, load-balanced leasing, and
// auto-disable on repeated auth failure. Leasing and reporting are
// serialized behind a single mutex, grounded on the teacher's
// internal/auth rate limiter's per-entry locking discipline — the
// credential count is small (SPEC_FULL says typically at most a few
// dozen), so O(N) selection under one lock is simpler and just as fast
// as a lock-free structure would be.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/logging"
	"github.com/plantedfoods/discovery-engine/internal/metrics"
	"github.com/plantedfoods/discovery-engine/internal/store"
)

// ErrNoCredentialAvailable is returned by Lease when every credential
// is disabled or quota-exhausted for the day. Callers must treat this
// as a soft backpressure signal, not a hard failure.
var ErrNoCredentialAvailable = errors.New("credentials: no credential available")

const consecutiveFailureLimit = 3

// PoolStats summarizes the pool's state for observability and for the
// discovery run report.
type PoolStats struct {
	Total           int
	Enabled         int
	Disabled        int
	QuotaExhausted  int
	QueriesUsedToday int
	DailyQuotaTotal  int
}

// Pool owns the set of search credentials in memory and persists every
// lease and report back to the store. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	st          *store.Store
	credentials []*domain.SearchCredential
}

// NewPool loads every registered credential from the store into
// memory. The store, not the pool, is the source of truth across
// process restarts.
func NewPool(ctx context.Context, st *store.Store) (*Pool, error) {
	creds, err := st.ListSearchCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("credentials: load pool: %w", err)
	}
	return &Pool{st: st, credentials: creds}, nil
}

// Lease selects an enabled credential with queries_used_today below
// its daily quota, preferring the least-used one so load balances
// across the pool, ties broken by ascending id for determinism. It
// performs the daily reset lazily (if the credential's last reset date
// isn't today in UTC, its counter is zeroed first) and atomically
// increments both queriesUsedToday and totalQueriesAllTime before
// returning, so callers never need a separate commit step.
func (p *Pool) Lease(ctx context.Context) (*domain.SearchCredential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	today := todayUTC()
	var candidates []*domain.SearchCredential
	for _, c := range p.credentials {
		p.resetIfNewDay(c, today)
		if c.Disabled || c.QueriesUsedToday >= c.DailyQuota {
			continue
		}
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		metrics.RecordCredentialLease(false)
		return nil, ErrNoCredentialAvailable
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].QueriesUsedToday != candidates[j].QueriesUsedToday {
			return candidates[i].QueriesUsedToday < candidates[j].QueriesUsedToday
		}
		return candidates[i].ID < candidates[j].ID
	})

	chosen := candidates[0]
	chosen.QueriesUsedToday++
	chosen.TotalQueriesAll++

	if err := p.st.UpsertSearchCredential(ctx, chosen); err != nil {
		return nil, fmt.Errorf("credentials: persist lease: %w", err)
	}
	metrics.RecordCredentialLease(true)
	metrics.CredentialQuotaUsed.WithLabelValues(chosen.ID).Set(float64(chosen.QueriesUsedToday))
	return chosen, nil
}

// Report records the outcome of a query executed against a leased
// credential. A quotaExhausted report forces queriesUsedToday to the
// daily quota for the rest of the day, guarding against provider-side
// limits the pool under-counted. Three consecutive failed reports
// within a single day disable the credential with reason
// "auth-failure"; a successful report resets the failure streak.
func (p *Pool) Report(ctx context.Context, credentialID string, success bool, quotaExhausted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.find(credentialID)
	if c == nil {
		return fmt.Errorf("credentials: report: unknown credential %q", credentialID)
	}

	p.resetIfNewDay(c, todayUTC())

	if quotaExhausted {
		c.QueriesUsedToday = c.DailyQuota
	}

	if success {
		c.ConsecutiveFails = 0
	} else {
		c.ConsecutiveFails++
		if c.ConsecutiveFails >= consecutiveFailureLimit && !c.Disabled {
			c.Disabled = true
			c.DisabledReason = "auth-failure"
			metrics.CredentialDisabled.WithLabelValues(c.ID).Set(1)
			logging.Warn().Str("credential_id", c.ID).Msg("credential disabled after consecutive failures")
		}
	}

	if err := p.st.UpsertSearchCredential(ctx, c); err != nil {
		return fmt.Errorf("credentials: persist report: %w", err)
	}
	return nil
}

// Stats summarizes the current pool state.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	today := todayUTC()
	var s PoolStats
	for _, c := range p.credentials {
		p.resetIfNewDay(c, today)
		s.Total++
		s.DailyQuotaTotal += c.DailyQuota
		s.QueriesUsedToday += c.QueriesUsedToday
		if c.Disabled {
			s.Disabled++
			continue
		}
		s.Enabled++
		if c.QueriesUsedToday >= c.DailyQuota {
			s.QuotaExhausted++
		}
	}
	return s
}

func (p *Pool) find(id string) *domain.SearchCredential {
	for _, c := range p.credentials {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// resetIfNewDay zeroes a credential's daily counter the first time
// it's touched on a new UTC calendar day. Callers must hold p.mu.
func (p *Pool) resetIfNewDay(c *domain.SearchCredential, today string) {
	if c.LastResetDate == today {
		return
	}
	c.QueriesUsedToday = 0
	c.ConsecutiveFails = 0
	c.LastResetDate = today
}

func todayUTC() string {
	return time.Now().UTC().Format("2006-01-02")
}
