// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package cache provides thread-safe in-memory caching with TTL support.

# Overview

The cache provides:
  - Thread-safe concurrent access (sync.RWMutex)
  - Time-to-live (TTL) expiration for automatic cleanup
  - Simple key-value storage with any value type (interface{})
  - Lazy expiration checking (on Get operations), backed by a
    background cleanup goroutine that sweeps every 5 minutes
  - One external dependency, goccy/go-json, used by GenerateKey

# Use in the recommendation core

internal/catalog's PGCatalog wraps its single-item metadata lookup
(ItemMeta) in a Cache keyed by item id. The catalog is documented as a
read-mostly dependency the Orchestrator's post-join (§4.11) and the
Event Fast-path's category/brand lookup (§4.10) both call on every
request; a short TTL trades a small staleness window for skipping a
Postgres round trip for items already seen recently. Hits and misses
are reported through internal/metrics' CacheHits/CacheMisses vectors,
labeled by cache name, so the benefit is directly observable.

ItemMetaBatch intentionally bypasses the cache: post-join batches are
usually novel per request (a fresh Re-ranker output), so a per-id cache
probe loop would mostly miss and just add lock contention over the
single round-trip query it replaces.

# Usage Example

	c := cache.New(30 * time.Second)
	c.Set("item:sku123", meta)
	if value, ok := c.Get("item:sku123"); ok {
	    meta := value.(types.ItemMeta)
	    // use cached metadata
	}

# Limitations

No maximum size limit and no LRU eviction -- only TTL-based expiration.
Acceptable here because the working set is bounded by catalog size and
request concurrency, not by an unbounded key space.
*/
package cache
