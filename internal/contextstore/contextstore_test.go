// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package contextstore

import (
	"context"
	"testing"
	"time"

	"github.com/driftcommerce/recall/internal/cbreaker"
	"github.com/driftcommerce/recall/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), Config{
		TTL:               time.Minute,
		RecentItemsMaxLen: 3,
		Breaker:           cbreaker.DefaultSettings(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTouchRecentAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.TouchRecent(ctx, "u1", "i1", "electronics"); err != nil {
		t.Fatalf("TouchRecent: %v", err)
	}
	if err := s.TouchRecent(ctx, "u1", "i2", "electronics"); err != nil {
		t.Fatalf("TouchRecent: %v", err)
	}
	if err := s.TouchRecent(ctx, "u1", "i3", "books"); err != nil {
		t.Fatalf("TouchRecent: %v", err)
	}

	items, err := s.GetRecentItems(ctx, "u1")
	if err != nil {
		t.Fatalf("GetRecentItems: %v", err)
	}
	want := []types.ItemId{"i3", "i2", "i1"}
	if len(items) != len(want) {
		t.Fatalf("items = %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("items[%d] = %s, want %s", i, items[i], want[i])
		}
	}

	cats, err := s.GetRecentCategories(ctx, "u1")
	if err != nil {
		t.Fatalf("GetRecentCategories: %v", err)
	}
	if cats["electronics"] != 2 || cats["books"] != 1 {
		t.Fatalf("cats = %+v", cats)
	}

	lastActive, ok, err := s.GetLastActive(ctx, "u1")
	if err != nil || !ok || lastActive == 0 {
		t.Fatalf("GetLastActive = %d, %v, %v", lastActive, ok, err)
	}
}

func TestRecentItemsTrimmedToMaxLen(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t) // maxLen = 3

	for _, id := range []types.ItemId{"a", "b", "c", "d"} {
		if err := s.TouchRecent(ctx, "u1", id, ""); err != nil {
			t.Fatalf("TouchRecent: %v", err)
		}
	}

	items, err := s.GetRecentItems(ctx, "u1")
	if err != nil {
		t.Fatalf("GetRecentItems: %v", err)
	}
	want := []types.ItemId{"d", "c", "b"}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3: %v", len(items), items)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("items = %v, want %v", items, want)
		}
	}
}

func TestGetRecentItemsUnknownUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	items, err := s.GetRecentItems(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetRecentItems: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("items = %v, want empty", items)
	}

	cats, err := s.GetRecentCategories(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetRecentCategories: %v", err)
	}
	if len(cats) != 0 {
		t.Fatalf("cats = %v, want empty", cats)
	}

	_, ok, err := s.GetLastActive(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetLastActive: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for unknown user")
	}
}

func TestGetShortTermContext(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.TouchRecent(ctx, "u1", "i1", "toys"); err != nil {
		t.Fatalf("TouchRecent: %v", err)
	}

	sc, err := s.GetShortTermContext(ctx, "u1")
	if err != nil {
		t.Fatalf("GetShortTermContext: %v", err)
	}
	if len(sc.RecentItems) != 1 || sc.RecentItems[0] != "i1" {
		t.Fatalf("RecentItems = %v", sc.RecentItems)
	}
	if sc.RecentCategories["toys"] != 1 {
		t.Fatalf("RecentCategories = %v", sc.RecentCategories)
	}
	if sc.LastActiveUnix == 0 {
		t.Fatal("LastActiveUnix = 0, want nonzero")
	}
}

func TestPushFront(t *testing.T) {
	got := pushFront([]types.ItemId{"b", "a"}, "c", 3)
	want := []types.ItemId{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pushFront = %v, want %v", got, want)
		}
	}

	got = pushFront([]types.ItemId{"b", "a"}, "b", 3)
	want = []types.ItemId{"b", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pushFront (repeat) = %v, want %v", got, want)
		}
	}

	got = pushFront([]types.ItemId{"b", "a"}, "c", 2)
	if len(got) != 2 || got[0] != "c" || got[1] != "b" {
		t.Fatalf("pushFront (trim) = %v", got)
	}
}
