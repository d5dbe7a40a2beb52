// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineStageDuration measures latency per pipeline stage per
	// request (recall, feature_assembly, normalize, rank, rerank,
	// catalog_join, event_fastpath).
	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_stage_duration_seconds",
			Help:    "Duration of one recommendation pipeline stage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// PipelineRequestsTotal counts requests per mode and outcome.
	PipelineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"mode", "outcome"}, // outcome: "ok", "empty", "error"
	)

	// RecallBranchCandidates records how many candidates each recall
	// branch contributed, per request.
	RecallBranchCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_recall_branch_candidates",
			Help:    "Number of candidates contributed by a recall branch",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
		},
		[]string{"branch"}, // "latent", "popularity", "content"
	)

	// RecallBranchDegraded counts soft-degradations per branch/reason.
	RecallBranchDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_recall_branch_degraded_total",
			Help: "Total number of times a recall branch soft-degraded",
		},
		[]string{"branch", "reason"},
	)

	// RerankRulesApplied counts re-ranker rule applications by tag kind.
	RerankRulesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_rerank_rules_applied_total",
			Help: "Total number of re-ranking rule applications",
		},
		[]string{"rule"}, // "intent_boost", "recency_penalty", "low_review", "diversity", "category_limit"
	)

	// EventFastpathTotal counts event fast-path calls by kind/outcome.
	EventFastpathTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_event_fastpath_total",
			Help: "Total number of event fast-path calls",
		},
		[]string{"kind", "outcome"},
	)

	// CacheHits / CacheMisses track any in-process caching layered in
	// front of an external collaborator (e.g. the Catalog Client's
	// ItemMeta read-through cache), labeled by cache name.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// Circuit breaker metrics, shared by the Context Store, Vector
	// Index, and Catalog clients.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recommend_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_circuit_breaker_requests_total",
			Help: "Total number of requests observed by a circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recommend_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures observed by a circuit breaker",
		},
		[]string{"name"},
	)

	// ArtifactLoadDuration measures how long the Artifact Loader took
	// to load and validate all artifacts at startup.
	ArtifactLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_artifact_load_duration_seconds",
			Help:    "Duration of the startup artifact load",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// ArtifactRowCounts exposes the loaded U/V row counts and item count.
	ArtifactRowCounts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recommend_artifact_row_count",
			Help: "Row counts of loaded artifacts",
		},
		[]string{"artifact"}, // "users", "items", "popularity"
	)
)
