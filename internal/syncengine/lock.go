// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package syncengine

import "sync"

// executeLockName is the single named advisory lock serializing sync
// execute per SPEC_FULL §4.5's concurrency contract: multiple review
// actions may run in parallel, but sync execute never overlaps itself.
const executeLockName = "sync_execute"

// namedLock is an in-process named-mutex registry, generalizing the
// teacher's single syncMu field (internal/sync/manager.go) into a
// keyed set of locks so other named critical sections can be added
// without widening an existing lock's scope.
type namedLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newNamedLock() *namedLock {
	return &namedLock{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until name's lock is held and returns a release func.
func (n *namedLock) Acquire(name string) func() {
	n.mu.Lock()
	l, ok := n.locks[name]
	if !ok {
		l = &sync.Mutex{}
		n.locks[name] = l
	}
	n.mu.Unlock()

	l.Lock()
	return l.Unlock
}
