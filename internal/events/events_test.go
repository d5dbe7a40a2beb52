// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/driftcommerce/recall/internal/types"
)

type fakeContextWriter struct {
	mu       sync.Mutex
	touched  []types.ItemId
	category string
	err      error
}

func (f *fakeContextWriter) TouchRecent(ctx context.Context, userID types.UserId, itemID types.ItemId, category string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, itemID)
	f.category = category
	return f.err
}

type fakeCatalog struct {
	mu        sync.Mutex
	meta      types.ItemMeta
	metaErr   error
	written   []types.InteractionLogEntry
	writeErr  error
	writeDone chan struct{}
}

func (f *fakeCatalog) ItemMeta(ctx context.Context, id types.ItemId) (types.ItemMeta, error) {
	return f.meta, f.metaErr
}

func (f *fakeCatalog) AppendInteraction(ctx context.Context, entry types.InteractionLogEntry) error {
	f.mu.Lock()
	f.written = append(f.written, entry)
	f.mu.Unlock()
	if f.writeDone != nil {
		close(f.writeDone)
	}
	return f.writeErr
}

func (f *fakeCatalog) writes() []types.InteractionLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.InteractionLogEntry, len(f.written))
	copy(out, f.written)
	return out
}

func TestRecordTouchesContextSynchronously(t *testing.T) {
	ctxWriter := &fakeContextWriter{}
	catalog := &fakeCatalog{meta: types.ItemMeta{Category: "books"}, writeDone: make(chan struct{})}
	svc := New(ctxWriter, catalog, Config{})

	err := svc.Record(context.Background(), Event{UserId: "u1", ItemId: "i1", EventType: types.EventView})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	ctxWriter.mu.Lock()
	defer ctxWriter.mu.Unlock()
	if len(ctxWriter.touched) != 1 || ctxWriter.touched[0] != "i1" {
		t.Fatalf("expected synchronous touch of i1, got %v", ctxWriter.touched)
	}
	if ctxWriter.category != "books" {
		t.Fatalf("category = %q, want books", ctxWriter.category)
	}
}

func TestRecordRejectsInvalidEventType(t *testing.T) {
	svc := New(&fakeContextWriter{}, &fakeCatalog{}, Config{})
	err := svc.Record(context.Background(), Event{UserId: "u1", ItemId: "i1", EventType: "bogus"})
	if err == nil {
		t.Fatal("expected error for invalid event type")
	}
}

func TestRecordSchedulesDurableWriteAsynchronously(t *testing.T) {
	catalog := &fakeCatalog{writeDone: make(chan struct{})}
	svc := New(&fakeContextWriter{}, catalog, Config{})

	if err := svc.Record(context.Background(), Event{UserId: "u1", ItemId: "i1", EventType: types.EventPurchase}); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	select {
	case <-catalog.writeDone:
	case <-time.After(time.Second):
		t.Fatal("durable write was never scheduled")
	}

	writes := catalog.writes()
	if len(writes) != 1 || writes[0].ItemId != "i1" || writes[0].EventType != types.EventPurchase {
		t.Fatalf("unexpected durable write: %+v", writes)
	}
}

func TestRecordSurvivesCatalogLookupFailure(t *testing.T) {
	ctxWriter := &fakeContextWriter{}
	catalog := &fakeCatalog{metaErr: errors.New("catalog down"), writeDone: make(chan struct{})}
	svc := New(ctxWriter, catalog, Config{})

	if err := svc.Record(context.Background(), Event{UserId: "u1", ItemId: "i1", EventType: types.EventClick}); err != nil {
		t.Fatalf("Record returned error despite catalog failure being soft: %v", err)
	}
	if ctxWriter.category != "" {
		t.Fatalf("expected empty category on catalog failure, got %q", ctxWriter.category)
	}
}

func TestRecordSurvivesContextWriteFailure(t *testing.T) {
	ctxWriter := &fakeContextWriter{err: errors.New("badger down")}
	catalog := &fakeCatalog{writeDone: make(chan struct{})}
	svc := New(ctxWriter, catalog, Config{})

	err := svc.Record(context.Background(), Event{UserId: "u1", ItemId: "i1", EventType: types.EventView})
	if err != nil {
		t.Fatalf("context write failure must not fail the event response: %v", err)
	}
}

func TestRecordSurvivesDurableWriteFailure(t *testing.T) {
	catalog := &fakeCatalog{writeErr: errors.New("db down"), writeDone: make(chan struct{})}
	svc := New(&fakeContextWriter{}, catalog, Config{})

	err := svc.Record(context.Background(), Event{UserId: "u1", ItemId: "i1", EventType: types.EventRate})
	if err != nil {
		t.Fatalf("durable write failure must never propagate to the caller: %v", err)
	}
	<-catalog.writeDone
}

// TestRecordSurvivesAbsentCatalog exercises the composition root's
// degraded-startup path (cmd/server leaves Catalog nil when
// catalog.New fails): a nil CatalogReader must never panic, and the
// fast-path should behave as if every lookup and write came back
// absent.
func TestRecordSurvivesAbsentCatalog(t *testing.T) {
	ctxWriter := &fakeContextWriter{}
	svc := New(ctxWriter, nil, Config{})

	err := svc.Record(context.Background(), Event{UserId: "u1", ItemId: "i1", EventType: types.EventView})
	if err != nil {
		t.Fatalf("Record returned error with no catalog configured: %v", err)
	}
	if ctxWriter.category != "" {
		t.Fatalf("expected empty category with no catalog configured, got %q", ctxWriter.category)
	}
}
