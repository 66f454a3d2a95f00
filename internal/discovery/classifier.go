// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package discovery

import (
	"context"
	"fmt"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

// Candidate is one venue a classifier extracted from a set of search
// hits, per SPEC_FULL §4.3's classifier contract.
type Candidate struct {
	Name       string
	Address    domain.Address
	Platforms  []domain.DeliveryPlatformLink
	Confidence float64
	Factors    []domain.ConfidenceFactor
	ChainGuess string
}

// Classifier turns raw search hits into classified candidates. Two
// concrete implementations exist (primary and fallback AI providers);
// both return the same Candidate shape so the executor can retry
// across them transparently.
type Classifier interface {
	Classify(ctx context.Context, hits []SearchHit, strategy *domain.DiscoveryStrategy, query string) ([]Candidate, error)
}

// FallbackClassifier tries primary first and falls back to secondary
// on error, satisfying SPEC_FULL §4.3's "retry once (against the
// fallback provider), then skip the classifier step" semantics.
type FallbackClassifier struct {
	Primary   Classifier
	Secondary Classifier
}

func (f *FallbackClassifier) Classify(ctx context.Context, hits []SearchHit, strategy *domain.DiscoveryStrategy, query string) ([]Candidate, error) {
	candidates, err := f.Primary.Classify(ctx, hits, strategy, query)
	if err == nil {
		return candidates, nil
	}
	if f.Secondary == nil {
		return nil, fmt.Errorf("discovery: primary classifier failed, no fallback configured: %w", err)
	}
	candidates, fallbackErr := f.Secondary.Classify(ctx, hits, strategy, query)
	if fallbackErr != nil {
		return nil, fmt.Errorf("discovery: both classifiers failed (primary: %v, fallback: %w)", err, fallbackErr)
	}
	return candidates, nil
}
