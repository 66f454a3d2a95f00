// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestNewBreaker(t *testing.T) {
	cb := NewBreaker(DefaultBreakerConfig("test-breaker"))
	if cb.State() != "closed" {
		t.Errorf("expected initial state closed, got %s", cb.State())
	}
}

func TestBreaker_ExecuteSuccess(t *testing.T) {
	cb := NewBreaker(DefaultBreakerConfig("success-test"))

	result, err := cb.Execute(func() (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected 'ok', got %v", result)
	}
}

func TestBreaker_ExecuteFailurePropagates(t *testing.T) {
	cb := NewBreaker(DefaultBreakerConfig("failure-test"))
	want := errors.New("host unreachable")

	_, err := cb.Execute(func() (any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Errorf("expected wrapped error %v, got %v", want, err)
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := BreakerConfig{
		Name:             "flaky-host",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 3,
	}
	cb := NewBreaker(cfg)

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (any, error) {
			return nil, errors.New("boom")
		})
	}

	if cb.State() != "open" {
		t.Fatalf("expected breaker to open after %d consecutive failures, got %s", cfg.FailureThreshold, cb.State())
	}

	_, err := cb.Execute(func() (any, error) {
		return "should not run", nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}
