// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

// Package resilience provides a named circuit breaker, the per-host
// Pacer that paces delivery-platform page fetches in the extractor, and
// the GlobalCeiling that caps daily queries for discovery and
// extraction. The Breaker is adapted from the teacher's
// internal/eventprocessor circuit breaker and internal/sync
// CircuitBreakerClient; it is a standalone type that neither the
// discovery executor nor the extractor wraps its calls in, and there is
// no keyed pool of breakers.
package resilience

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/plantedfoods/discovery-engine/internal/logging"
	"github.com/plantedfoods/discovery-engine/internal/metrics"
)

// ErrCircuitOpen is returned by Execute when the named breaker has
// tripped and is refusing calls.
var ErrCircuitOpen = errors.New("resilience: circuit breaker open")

// BreakerConfig configures one named circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // allowed in half-open state
	Interval         time.Duration // reset interval for closed-state counts
	Timeout          time.Duration // time to stay open before half-open
	FailureThreshold uint32        // consecutive failures before opening
}

// DefaultBreakerConfig returns settings tuned for a delivery-platform
// or search-provider host: three probes in half-open, a five minute
// closed-state counting window, and a ten minute cooldown once open.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         5 * time.Minute,
		Timeout:          10 * time.Minute,
		FailureThreshold: 5,
	}
}

// newGobreaker builds a gobreaker instance from cfg, wiring state
// transitions into the metrics package.
func newGobreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[any] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateString(from), stateString(to)
			logging.Warn().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	}
	return gobreaker.NewCircuitBreaker[any](settings)
}

// Breaker wraps one gobreaker instance with the discovery engine's
// metric recording around every call.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreaker constructs a single named breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{name: cfg.Name, cb: newGobreaker(cfg)}
}

// Execute runs fn through the breaker, translating gobreaker's
// rejection errors to ErrCircuitOpen and recording outcome metrics.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		return nil, ErrCircuitOpen
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return result, err
}

// State reports the breaker's current state as a label-friendly
// string: "closed", "half-open", or "open".
func (b *Breaker) State() string {
	return stateString(b.cb.State())
}

func stateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
