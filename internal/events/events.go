// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package events is the Event Fast-path (§4.10): it accepts a user
// event, commits it to short-term context synchronously with strict
// latency, and schedules a durable write of the full event to the
// catalog's relational log as a best-effort background task that
// never blocks or fails the caller.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/driftcommerce/recall/internal/logging"
	"github.com/driftcommerce/recall/internal/types"
)

// ContextWriter is the subset of contextstore.Store the fast-path
// needs to make the short-term effect observable before it returns.
type ContextWriter interface {
	TouchRecent(ctx context.Context, userID types.UserId, itemID types.ItemId, category string) error
}

// CatalogReader is the subset of catalog.Catalog the fast-path needs:
// a category/brand-bearing metadata lookup (best-effort) and the
// durable interaction-log append (scheduled asynchronously).
type CatalogReader interface {
	ItemMeta(ctx context.Context, id types.ItemId) (types.ItemMeta, error)
	AppendInteraction(ctx context.Context, entry types.InteractionLogEntry) error
}

// Dispatcher runs a durable-write task in the background. *pool.Pool
// from sourcegraph/conc/pool satisfies this directly, letting the
// composition root bound how many durable writes run concurrently
// (§4.13); the zero value of Config leaves it nil and Service falls
// back to an unbounded `go` statement, which is what the tests in this
// package exercise.
type Dispatcher interface {
	Go(func())
}

// Service is the Event Fast-path.
type Service struct {
	ctxStore     ContextWriter
	catalog      CatalogReader
	writeTimeout time.Duration
	dispatch     Dispatcher
}

// Config tunes the background durable-write task's timeout and how it
// is scheduled.
type Config struct {
	// DurableWriteTimeout bounds the asynchronous catalog write; zero
	// defaults to 5s.
	DurableWriteTimeout time.Duration
	// Dispatcher runs the durable-write task; nil spawns an unbounded
	// goroutine directly.
	Dispatcher Dispatcher
}

// New builds a Service.
func New(ctxStore ContextWriter, catalog CatalogReader, cfg Config) *Service {
	if cfg.DurableWriteTimeout <= 0 {
		cfg.DurableWriteTimeout = 5 * time.Second
	}
	return &Service{ctxStore: ctxStore, catalog: catalog, writeTimeout: cfg.DurableWriteTimeout, dispatch: cfg.Dispatcher}
}

// Event is one user interaction accepted by the fast-path.
type Event struct {
	UserId    types.UserId
	ItemId    types.ItemId
	EventType types.EventKind
	Timestamp time.Time
	Metadata  map[string]any
}

// Record runs the Event Fast-path (§4.10): it looks up the item's
// category (best-effort -- a catalog miss is treated as absent, never
// an error), commits the touch to short-term context synchronously,
// then schedules the durable log write in the background and returns
// without waiting for it. The in-memory short-term effect is
// guaranteed observable before Record returns; the durable write is
// not.
func (s *Service) Record(ctx context.Context, ev Event) error {
	if !ev.EventType.Valid() {
		return fmt.Errorf("events: invalid event type %q", ev.EventType)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	category, brand := s.lookupCategoryAndBrand(ctx, ev.ItemId)

	if err := s.ctxStore.TouchRecent(ctx, ev.UserId, ev.ItemId, category); err != nil {
		logging.Warn().Err(err).Str("user_id", string(ev.UserId)).Str("item_id", string(ev.ItemId)).
			Msg("events: context write failed, re-ranking rules 1 and 2 will degrade on next read")
	}

	s.scheduleDurableWrite(toLogEntry(ev, category, brand))
	return nil
}

// lookupCategoryAndBrand reads the item's catalog metadata. A failure,
// or the catalog collaborator being absent entirely, is logged and
// treated as absent (§4.10: "treat failure as absent").
func (s *Service) lookupCategoryAndBrand(ctx context.Context, itemID types.ItemId) (category, brand string) {
	if s.catalog == nil {
		return "", ""
	}
	meta, err := s.catalog.ItemMeta(ctx, itemID)
	if err != nil {
		logging.Warn().Err(err).Str("item_id", string(itemID)).
			Msg("events: catalog lookup failed, proceeding without category/brand")
		return "", ""
	}
	return meta.Category, brandOf(meta)
}

// scheduleDurableWrite fires the full event at the catalog's
// interaction log in the background, via s.dispatch when the
// composition root supplied a bounded pool, or a raw goroutine
// otherwise. It recovers from a panic inside the task (via conc/panics,
// from the same sourcegraph/conc module whose WaitGroup Content Recall
// uses for its per-reference fan-out) so a
// broken write can never crash the caller's goroutine, and logs -- but
// never propagates -- any failure (§4.10, §4.11 failure mode).
func (s *Service) scheduleDurableWrite(entry types.InteractionLogEntry) {
	if s.catalog == nil {
		return
	}
	task := func() {
		var catcher panics.Catcher
		catcher.Try(func() {
			writeCtx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
			defer cancel()
			if err := s.catalog.AppendInteraction(writeCtx, entry); err != nil {
				logging.Error().Err(err).Str("user_id", string(entry.UserId)).Str("item_id", string(entry.ItemId)).
					Msg("events: durable write failed, event dropped from relational log")
			}
		})
		if rec := catcher.Recovered(); rec != nil {
			logging.Error().Err(rec.AsError()).
				Msg("events: durable write task panicked")
		}
	}
	if s.dispatch != nil {
		s.dispatch.Go(task)
		return
	}
	go task()
}

func toLogEntry(ev Event, category, brand string) types.InteractionLogEntry {
	metadata := ev.Metadata
	if category != "" || brand != "" {
		if metadata == nil {
			metadata = make(map[string]any, 2)
		}
		if category != "" {
			metadata["category"] = category
		}
		if brand != "" {
			metadata["brand"] = brand
		}
	}
	return types.InteractionLogEntry{
		UserId:    ev.UserId,
		ItemId:    ev.ItemId,
		EventType: ev.EventType,
		Timestamp: ev.Timestamp,
		Metadata:  metadata,
	}
}

// brandOf extracts a brand label from catalog metadata. types.ItemMeta
// carries no first-class Brand field (§9 design note: the fixed record
// deliberately excludes a dynamic metadata map), so there is nothing to
// read here today; this stays a named extension point rather than an
// inline literal so a future catalog column can be wired in one place.
func brandOf(meta types.ItemMeta) string {
	return ""
}
