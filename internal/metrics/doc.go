// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package metrics exposes the Prometheus vectors the recommendation
// core emits: per-stage latency and counts, cache hit/miss, circuit
// breaker state, and per-recall-branch candidate counts. All vectors
// are registered via promauto at import time.
package metrics
