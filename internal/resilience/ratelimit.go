// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package resilience

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/plantedfoods/discovery-engine/internal/cache"
)

// PacingConfig configures one host's request cadence: a jittered
// delay between requests, a pause after every batch, and three
// sliding-window ceilings. Mirrors config.RateLimitConfig so the
// extractor can build a Pacer directly from the loaded configuration.
type PacingConfig struct {
	MinDelay     time.Duration
	MaxDelay     time.Duration
	BatchSize    int
	BatchDelay   time.Duration
	MaxPerMinute int
	MaxPerHour   int
	MaxPerDay    int
}

// Pacer enforces one host's request discipline: a jittered sleep
// before every call, a longer pause every BatchSize calls, and a hard
// refusal once any sliding-window ceiling is exhausted. The extractor
// holds one Pacer per delivery platform; the discovery executor holds
// none.
type Pacer struct {
	cfg PacingConfig

	mu        sync.Mutex
	callCount int

	perMinute *cache.SlidingWindowCounter
	perHour   *cache.SlidingWindowCounter
	perDay    *cache.SlidingWindowCounter
}

// NewPacer builds a Pacer from cfg. The sliding windows are split into
// buckets (six 10-second buckets per minute, sixty 1-minute buckets per
// hour, twenty-four 1-hour buckets per day) so ceilings decay in steps
// rather than resetting all at once.
func NewPacer(cfg PacingConfig) *Pacer {
	return &Pacer{
		cfg:       cfg,
		perMinute: cache.NewSlidingWindowCounter(time.Minute, 6),
		perHour:   cache.NewSlidingWindowCounter(time.Hour, 60),
		perDay:    cache.NewSlidingWindowCounter(24*time.Hour, 24),
	}
}

// ErrCeilingExceeded is returned by Wait when a per-minute, per-hour,
// or per-day ceiling is currently exhausted.
type ErrCeilingExceeded struct {
	Window string
}

func (e *ErrCeilingExceeded) Error() string {
	return "resilience: " + e.Window + " request ceiling exceeded"
}

// Wait blocks for this call's jittered delay (and, every BatchSize
// calls, the longer batch delay), then records the call against every
// sliding window. It returns ErrCeilingExceeded without sleeping if a
// ceiling is already exhausted, and respects ctx cancellation during
// the sleep.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.checkCeilings(); err != nil {
		return err
	}

	p.mu.Lock()
	p.callCount++
	batchBoundary := p.cfg.BatchSize > 0 && p.callCount%p.cfg.BatchSize == 0
	p.mu.Unlock()

	delay := p.jitteredDelay()
	if batchBoundary {
		delay += p.cfg.BatchDelay
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.perMinute.Increment(1)
	p.perHour.Increment(1)
	p.perDay.Increment(1)
	return nil
}

func (p *Pacer) checkCeilings() error {
	if p.cfg.MaxPerMinute > 0 && p.perMinute.Count() >= int64(p.cfg.MaxPerMinute) {
		return &ErrCeilingExceeded{Window: "per-minute"}
	}
	if p.cfg.MaxPerHour > 0 && p.perHour.Count() >= int64(p.cfg.MaxPerHour) {
		return &ErrCeilingExceeded{Window: "per-hour"}
	}
	if p.cfg.MaxPerDay > 0 && p.perDay.Count() >= int64(p.cfg.MaxPerDay) {
		return &ErrCeilingExceeded{Window: "per-day"}
	}
	return nil
}

// jitteredDelay returns a uniform random duration in [MinDelay, MaxDelay].
func (p *Pacer) jitteredDelay() time.Duration {
	if p.cfg.MaxDelay <= p.cfg.MinDelay {
		return p.cfg.MinDelay
	}
	span := p.cfg.MaxDelay - p.cfg.MinDelay
	return p.cfg.MinDelay + time.Duration(rand.Int63n(int64(span)))
}

// GlobalCeiling is the single always-on breaker guarding the configured
// daily query budget across every search provider and credential,
// independent of any one host's Pacer. SPEC_FULL §5 calls this the
// "global daily-ceiling breaker".
type GlobalCeiling struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	used    int
	max     int
	resetAt time.Time
}

// NewGlobalCeiling builds a ceiling allowing up to max queries per
// rolling 24h window, refilling continuously via a token bucket tuned
// to max/day.
func NewGlobalCeiling(max int) *GlobalCeiling {
	var limiter *rate.Limiter
	if max > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(max)/86400.0), max)
	}
	return &GlobalCeiling{limiter: limiter, max: max, resetAt: time.Now().Add(24 * time.Hour)}
}

// Allow reports whether one more query may be issued against the
// global ceiling, consuming a token if so.
func (g *GlobalCeiling) Allow() bool {
	if g.limiter == nil {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if time.Now().After(g.resetAt) {
		g.used = 0
		g.resetAt = time.Now().Add(24 * time.Hour)
	}
	if !g.limiter.Allow() {
		return false
	}
	g.used++
	return true
}

// Used returns the number of queries allowed since the last reset.
func (g *GlobalCeiling) Used() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.used
}
