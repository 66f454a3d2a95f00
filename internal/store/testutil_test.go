// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package store

import (
	"sync"
	"testing"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/config"
)

// testDBSemaphore serializes DuckDB creation across tests in this
// package; concurrent CGO database-open calls under CI resource
// pressure can otherwise hang, the same hazard the teacher's
// internal/database test suite guards against.
var testDBSemaphore = make(chan struct{}, 1)
var testDBMutex sync.Mutex

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	cfg := &config.DatabaseConfig{Path: ":memory:"}

	type result struct {
		s   *Store
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		testDBMutex.Lock()
		s, err := Open(cfg)
		testDBMutex.Unlock()
		resultCh <- result{s: s, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("open test store: %v", res.err)
		}
		t.Cleanup(func() { _ = res.s.Close() })
		return res.s
	case <-time.After(60 * time.Second):
		t.Fatal("timeout opening test store, DuckDB may be under resource pressure")
		return nil
	}
}
