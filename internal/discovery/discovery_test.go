// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/config"
	"github.com/plantedfoods/discovery-engine/internal/credentials"
	"github.com/plantedfoods/discovery-engine/internal/domain"
	"github.com/plantedfoods/discovery-engine/internal/planner"
	"github.com/plantedfoods/discovery-engine/internal/store"
)

type fakeSearchClient struct {
	hits []SearchHit
	err  error
	calls int
}

func (f *fakeSearchClient) Search(ctx context.Context, apiKey, searchEngineID, query string) ([]SearchHit, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeClassifier struct {
	candidates []Candidate
	err        error
	calls      int
}

func (f *fakeClassifier) Classify(ctx context.Context, hits []SearchHit, strategy *domain.DiscoveryStrategy, query string) ([]Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func setupTestExecutor(t *testing.T, search SearchClient, classifier Classifier) (*Executor, *store.Store) {
	t.Helper()
	st, err := store.Open(&config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	cred := &domain.SearchCredential{ID: "cred-1", APIKey: "key", SearchEngineID: "engine", DailyQuota: 100}
	if err := st.UpsertSearchCredential(ctx, cred); err != nil {
		t.Fatalf("seed credential: %v", err)
	}

	pool, err := credentials.NewPool(ctx, st)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	return New(st, pool, search, classifier, 1000, time.Hour), st
}

func samplePlan(strategyID string) *planner.QueryPlan {
	return &planner.QueryPlan{
		Items: []planner.QueryItem{
			{Tier: planner.TierHighYield, StrategyID: strategyID, Query: "vegan kebab zurich", Platform: domain.PlatformWolt, Country: "CH", City: "Zurich"},
		},
	}
}

func TestRunIngestsNewCandidate(t *testing.T) {
	search := &fakeSearchClient{hits: []SearchHit{{Title: "Example", URL: "https://wolt.com/ch/zurich/restaurant/example"}}}
	classifier := &fakeClassifier{candidates: []Candidate{
		{
			Name:       "Example Kebab",
			Address:    domain.Address{City: "Zurich", Country: "CH"},
			Platforms:  []domain.DeliveryPlatformLink{{Platform: domain.PlatformWolt, URL: "https://wolt.com/ch/zurich/restaurant/example"}},
			Confidence: 85,
		},
	}}
	exec, st := setupTestExecutor(t, search, classifier)

	report, err := exec.Run(context.Background(), samplePlan(""), RunConfig{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.VenuesDiscovered != 1 {
		t.Errorf("venues discovered = %d, want 1", report.VenuesDiscovered)
	}
	if report.QueriesExecuted != 1 || report.QueriesSuccessful != 1 || report.QueriesClassified != 1 {
		t.Errorf("report = %+v", report)
	}

	list, err := st.ListDiscoveredVenuesByStatus(context.Background(), domain.StatusDiscovered, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Example Kebab" {
		t.Fatalf("staged venues = %+v", list)
	}
}

func TestRunMergesExistingDiscoveredVenue(t *testing.T) {
	search := &fakeSearchClient{hits: []SearchHit{{Title: "x", URL: "https://wolt.com/x"}}}
	candidate := Candidate{
		Name:       "Example Kebab",
		Address:    domain.Address{City: "Zurich", Country: "CH"},
		Platforms:  []domain.DeliveryPlatformLink{{Platform: domain.PlatformUberEats, URL: "https://ubereats.com/ch/zurich/example"}},
		Confidence: 90,
	}
	classifier := &fakeClassifier{candidates: []Candidate{candidate}}
	exec, st := setupTestExecutor(t, search, classifier)
	ctx := context.Background()

	existing := &domain.DiscoveredVenue{
		ID:        "venue-existing",
		Name:      "Example Kebab",
		Address:   domain.Address{City: "Zurich", Country: "CH"},
		Platforms: []domain.DeliveryPlatformLink{{Platform: domain.PlatformWolt, URL: "https://wolt.com/ch/zurich/example"}},
		Status:    domain.StatusDiscovered,
	}
	if err := st.UpsertDiscoveredVenue(ctx, existing); err != nil {
		t.Fatalf("seed venue: %v", err)
	}

	report, err := exec.Run(ctx, samplePlan(""), RunConfig{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.VenuesDiscovered != 0 {
		t.Errorf("expected merge not new discovery, report = %+v", report)
	}

	got, err := st.GetDiscoveredVenue(ctx, "venue-existing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Platforms) != 2 {
		t.Errorf("expected merged platforms, got %+v", got.Platforms)
	}
}

func TestRunSkipsRejectedDuplicate(t *testing.T) {
	search := &fakeSearchClient{hits: []SearchHit{{Title: "x", URL: "https://wolt.com/x"}}}
	classifier := &fakeClassifier{candidates: []Candidate{{
		Name:       "Rejected Place",
		Address:    domain.Address{City: "Zurich", Country: "CH"},
		Confidence: 80,
	}}}
	exec, st := setupTestExecutor(t, search, classifier)
	ctx := context.Background()

	if err := st.UpsertDiscoveredVenue(ctx, &domain.DiscoveredVenue{
		ID: "rej-1", Name: "Rejected Place", Address: domain.Address{City: "Zurich", Country: "CH"},
		Status: domain.StatusRejected, RejectionReason: "brand misuse",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	report, err := exec.Run(ctx, samplePlan(""), RunConfig{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.VenuesDiscovered != 0 {
		t.Errorf("rejected venue should not be re-discovered, report = %+v", report)
	}
}

func TestRunUpdatesStrategyStats(t *testing.T) {
	search := &fakeSearchClient{hits: []SearchHit{{Title: "x", URL: "https://wolt.com/x"}}}
	classifier := &fakeClassifier{candidates: []Candidate{{
		Name:       "Good Match",
		Address:    domain.Address{City: "Zurich", Country: "CH"},
		Confidence: 95,
	}}}
	exec, st := setupTestExecutor(t, search, classifier)
	ctx := context.Background()

	strategy := &domain.DiscoveryStrategy{ID: "strat-1", Template: "{city}", Platform: domain.PlatformWolt, Country: "CH"}
	if err := st.UpsertDiscoveryStrategy(ctx, strategy); err != nil {
		t.Fatalf("seed strategy: %v", err)
	}

	if _, err := exec.Run(ctx, samplePlan("strat-1"), RunConfig{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := st.GetDiscoveryStrategy(ctx, "strat-1")
	if err != nil {
		t.Fatalf("get strategy: %v", err)
	}
	if got.Uses != 1 || got.Successes != 1 {
		t.Errorf("strategy stats = %+v", got)
	}
}

func TestRunReturnsBackpressureWhenNoCredential(t *testing.T) {
	st, err := store.Open(&config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	pool, err := credentials.NewPool(context.Background(), st)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	exec := New(st, pool, &fakeSearchClient{}, &fakeClassifier{}, 100, time.Hour)

	report, err := exec.Run(context.Background(), samplePlan(""), RunConfig{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.CredentialsExhausted != 1 {
		t.Errorf("expected credential exhaustion recorded, report = %+v", report)
	}
}

func TestExecuteWithRetryTerminalOn4xx(t *testing.T) {
	search := &fakeSearchClient{err: &SearchError{StatusCode: 404}}
	exec, _ := setupTestExecutor(t, search, &fakeClassifier{})

	_, err := exec.executeWithRetry(context.Background(), "key", "engine", "q")
	if err == nil {
		t.Fatal("expected error")
	}
	if search.calls != 1 {
		t.Errorf("expected exactly one attempt on terminal 4xx, got %d", search.calls)
	}
}

func TestExecuteWithRetryRetriesOn5xx(t *testing.T) {
	search := &fakeSearchClient{err: &SearchError{StatusCode: 503}}
	exec, _ := setupTestExecutor(t, search, &fakeClassifier{})

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_, err := exec.executeWithRetry(ctx, "key", "engine", "q")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if search.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", search.calls)
	}
}

func TestFuzzyChainMatch(t *testing.T) {
	if !fuzzyChainMatch("Example Kebab Zurich", "example") {
		t.Error("expected substring match to succeed")
	}
	if fuzzyChainMatch("Totally Different", "example") {
		t.Error("expected no match")
	}
}
