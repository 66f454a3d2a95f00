// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

/*
Package cache provides the data structures backing the discovery
engine's proximity query, deduplication, and pattern-matching needs:

  - LRUCache: a bounded, TTL'd LRU. No other package of the engine
    uses it; /nearby results and fetched extractor pages are not
    cached through it.
  - SpatialHashGrid: a grid-bucketed haversine prefilter behind
    /nearby.
  - BloomLRU / ExactLRU: fast duplicate checks ahead of a DuckDB
    round-trip, used by the discovery executor's staging dedup step.
  - AhoCorasick / PatternMatcher: multi-pattern string matching; no
    other package of the engine uses it.
  - Trie: prefix/exact lookup; no other package of the engine uses
    it.
  - SlidingWindowCounter: the per-platform per-minute/hour/day request
    ceilings enforced by internal/resilience.

All types are safe for concurrent use.
*/
package cache
