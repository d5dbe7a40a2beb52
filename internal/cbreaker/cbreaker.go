// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package cbreaker wraps external-service calls (Context Store, Vector
// Index, Catalog) in a sony/gobreaker/v2 circuit breaker, reporting
// state transitions to Prometheus and structured logs. Every client
// that talks to a network collaborator builds one Breaker and calls
// Execute around each request.
package cbreaker

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/driftcommerce/recall/internal/logging"
	"github.com/driftcommerce/recall/internal/metrics"
)

// Breaker wraps one external collaborator (by name) with a circuit
// breaker. The zero value is not usable; construct with New.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

// Settings configures when the circuit opens and how long it stays
// open before probing again.
type Settings struct {
	// MinRequests is the minimum sample size before ReadyToTrip can
	// fire, avoiding trips on small-sample noise.
	MinRequests uint32
	// FailRatio is the fraction of failing requests (of MinRequests or
	// more) that opens the circuit.
	FailRatio float64
	// Interval resets the closed-state failure counters periodically.
	Interval time.Duration
	// Timeout is how long the circuit stays open before half-open probing.
	Timeout time.Duration
	// MaxHalfOpenRequests bounds concurrent probes while half-open.
	MaxHalfOpenRequests uint32
}

// DefaultSettings mirrors the teacher's Tautulli client breaker: a 60%
// failure ratio over at least 10 requests opens the circuit, probed
// again after two minutes with at most 3 concurrent half-open requests.
func DefaultSettings() Settings {
	return Settings{
		MinRequests:         10,
		FailRatio:           0.6,
		Interval:            time.Minute,
		Timeout:             2 * time.Minute,
		MaxHalfOpenRequests: 3,
	}
}

// New builds a Breaker identified by name (used as the Prometheus label
// and the log field), initializing its state gauges to closed.
func New(name string, s Settings) *Breaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxHalfOpenRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			trip := ratio >= s.FailRatio
			if trip {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).
					Float64("fail_ratio", ratio).Msg("circuit breaker opening")
			}
			return trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateString(from), stateString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &Breaker{name: name, cb: cb}
}

// Execute runs fn through the breaker, recording success/failure/
// rejected metrics. A request attempted while the circuit is open
// returns gobreaker.ErrOpenState (or ErrTooManyRequests while
// half-open) without calling fn.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(b.cb.Counts().ConsecutiveFailures))
		}
		return zero, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result.(T), nil
}

// Name returns the breaker's identifying name.
func (b *Breaker) Name() string { return b.name }

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
