// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package rerank

import (
	"context"
	"testing"

	"github.com/driftcommerce/recall/internal/config"
	"github.com/driftcommerce/recall/internal/types"
)

type fakeContext struct {
	items []types.ItemId
	cats  map[string]int
	err   error
}

func (f *fakeContext) GetRecentItems(ctx context.Context, userID types.UserId) ([]types.ItemId, error) {
	return f.items, f.err
}

func (f *fakeContext) GetRecentCategories(ctx context.Context, userID types.UserId) (map[string]int, error) {
	return f.cats, f.err
}

func testConfig() config.RecommendConfig {
	return config.RecommendConfig{
		TopNRank:             10,
		TopNFinal:            5,
		IntentBoostRate:      0.08,
		IntentBoostCap:       0.40,
		RecencyThresholds:    [2]int{5, 10},
		RecencyMultipliers:   [3]float64{0.2, 0.4, 0.6},
		DiversityThreshold:   0.25,
		DiversityPenalty:     0.7,
		MaxSameCategory:      4,
		CategoryLimitPenalty: 0.5,
		LowReviewThreshold:   5,
		LowReviewPenalty:     0.9,
		DiversityMaxPasses:   3,
	}
}

func TestRerankEmptyInput(t *testing.T) {
	r := New(&fakeContext{}, testConfig())
	out := r.Rerank(context.Background(), "u1", nil, 10)
	if out != nil {
		t.Fatalf("expected nil output for empty input, got %v", out)
	}
}

func TestIntentBoostAppliedAndTagged(t *testing.T) {
	ctxStore := &fakeContext{cats: map[string]int{"books": 3}}
	r := New(ctxStore, testConfig())
	ranked := []types.RankedItem{{ItemId: "a", Score: 0.5, Category: "books"}}
	out := r.Rerank(context.Background(), "u1", ranked, 10)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	// The lone "books" item is 100% of the diversity window, above the
	// 0.25 threshold, so each diversity pass multiplies it by 0.7.
	cfg := testConfig()
	want := 0.5 * (1 + cfg.IntentBoostRate*3)
	for pass := 0; pass < cfg.DiversityMaxPasses; pass++ {
		want *= cfg.DiversityPenalty
	}
	if out[0].AdjustedScore != want {
		t.Fatalf("adjusted score = %v, want %v", out[0].AdjustedScore, want)
	}
	if len(out[0].Rules) != 2 || out[0].Rules[0] != "intent_boost(books:+24%)" || out[0].Rules[1] != "diversity_penalty(100%)" {
		t.Fatalf("rules = %v", out[0].Rules)
	}
}

func TestIntentBoostCapped(t *testing.T) {
	ctxStore := &fakeContext{cats: map[string]int{"books": 100}}
	r := New(ctxStore, testConfig())
	ranked := []types.RankedItem{{ItemId: "a", Score: 1.0, Category: "books"}}
	out := r.Rerank(context.Background(), "u1", ranked, 10)
	cfg := testConfig()
	want := 1.0 * (1 + cfg.IntentBoostCap)
	for pass := 0; pass < cfg.DiversityMaxPasses; pass++ {
		want *= cfg.DiversityPenalty // lone category item: 100% share
	}
	if out[0].AdjustedScore != want {
		t.Fatalf("adjusted score = %v, want %v (cap at 0.4)", out[0].AdjustedScore, want)
	}
}

func TestRecencyPenaltyTiers(t *testing.T) {
	recent := []types.ItemId{"p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9", "p10"}
	ctxStore := &fakeContext{items: recent}
	r := New(ctxStore, testConfig())
	ranked := []types.RankedItem{
		{ItemId: "p0", Score: 1.0},  // position 0 < 5 -> 0.2
		{ItemId: "p7", Score: 1.0},  // position 7, 5<=7<10 -> 0.4
		{ItemId: "p10", Score: 1.0}, // position 10 -> 0.6
		{ItemId: "new", Score: 1.0}, // not present -> unchanged
	}
	out := r.Rerank(context.Background(), "u1", ranked, 10)
	scores := map[types.ItemId]float64{}
	for _, it := range out {
		scores[it.ItemId] = it.AdjustedScore
	}
	if scores["p0"] != 0.2 {
		t.Fatalf("p0 score = %v, want 0.2", scores["p0"])
	}
	if scores["p7"] != 0.4 {
		t.Fatalf("p7 score = %v, want 0.4", scores["p7"])
	}
	if scores["p10"] != 0.6 {
		t.Fatalf("p10 score = %v, want 0.6", scores["p10"])
	}
	if scores["new"] != 1.0 {
		t.Fatalf("new score = %v, want 1.0 unchanged", scores["new"])
	}
}

func TestLowReviewPenaltyOnlyWhenRatingKnown(t *testing.T) {
	r := New(&fakeContext{}, testConfig())
	ranked := []types.RankedItem{
		{ItemId: "a", Score: 1.0, RatingCount: 2, HasRating: true},
		{ItemId: "b", Score: 1.0, RatingCount: 2, HasRating: false}, // unknown -> no-op
		{ItemId: "c", Score: 1.0, RatingCount: 10, HasRating: true}, // above threshold -> no-op
	}
	out := r.Rerank(context.Background(), "u1", ranked, 10)
	scores := map[types.ItemId]float64{}
	for _, it := range out {
		scores[it.ItemId] = it.AdjustedScore
	}
	if scores["a"] != 0.9 {
		t.Fatalf("a score = %v, want 0.9", scores["a"])
	}
	if scores["b"] != 1.0 {
		t.Fatalf("b score = %v, want 1.0 (rating unknown)", scores["b"])
	}
	if scores["c"] != 1.0 {
		t.Fatalf("c score = %v, want 1.0 (above threshold)", scores["c"])
	}
}

func TestContextReadErrorDegradesRulesButNotFail(t *testing.T) {
	ctxStore := &fakeContext{err: errBoom}
	r := New(ctxStore, testConfig())
	ranked := []types.RankedItem{{ItemId: "a", Score: 0.5, Category: "books"}}
	out := r.Rerank(context.Background(), "u1", ranked, 10)
	cfg := testConfig()
	want := 0.5
	for pass := 0; pass < cfg.DiversityMaxPasses; pass++ {
		want *= cfg.DiversityPenalty // diversity still runs; only rules 1 and 2 are skipped
	}
	if len(out) != 1 || out[0].AdjustedScore != want {
		t.Fatalf("expected only the diversity penalty on context error, got %+v", out)
	}
}

func TestNilContextStoreIsNoOp(t *testing.T) {
	r := New(nil, testConfig())
	ranked := []types.RankedItem{{ItemId: "a", Score: 0.5, Category: "books"}}
	out := r.Rerank(context.Background(), "u1", ranked, 10)
	cfg := testConfig()
	want := 0.5
	for pass := 0; pass < cfg.DiversityMaxPasses; pass++ {
		want *= cfg.DiversityPenalty // diversity still runs; only rules 1 and 2 are skipped
	}
	if out[0].AdjustedScore != want {
		t.Fatalf("expected only the diversity penalty with nil context store, got %v", out[0].AdjustedScore)
	}
}

func TestDiversityPenaltyAppliedWhenCategoryShareExceedsThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.TopNFinal = 8 // window = 2*8 = 16, larger than our 8 items
	r := New(&fakeContext{}, cfg)
	ranked := make([]types.RankedItem, 0, 8)
	for i := 0; i < 6; i++ {
		ranked = append(ranked, types.RankedItem{ItemId: types.ItemId(rune('a' + i)), Score: 1.0, Category: "books"})
	}
	for i := 0; i < 2; i++ {
		ranked = append(ranked, types.RankedItem{ItemId: types.ItemId(rune('g' + i)), Score: 0.9, Category: "tools"})
	}
	out := r.Rerank(context.Background(), "u1", ranked, 10)
	for _, it := range out {
		if it.Category == "books" && it.AdjustedScore >= 1.0 {
			t.Fatalf("expected books item to be diversity-penalized: %+v", it)
		}
	}
}

func TestDedupeKeepsFirstOccurrenceByItemAndFamily(t *testing.T) {
	r := New(&fakeContext{}, testConfig())
	ranked := []types.RankedItem{
		{ItemId: "a", Score: 1.0, Raw: &types.RawSignals{FamilyId: "fam1"}},
		{ItemId: "b", Score: 0.9, Raw: &types.RawSignals{FamilyId: "fam1"}}, // same family, dropped
		{ItemId: "c", Score: 0.8},
	}
	out := r.Rerank(context.Background(), "u1", ranked, 10)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (fam1 duplicate dropped)", len(out))
	}
	if out[0].ItemId != "a" || out[1].ItemId != "c" {
		t.Fatalf("unexpected dedupe result: %+v", out)
	}
}

func TestTruncationAndRankAssignment(t *testing.T) {
	r := New(&fakeContext{}, testConfig())
	ranked := make([]types.RankedItem, 10)
	for i := range ranked {
		ranked[i] = types.RankedItem{ItemId: types.ItemId(rune('a' + i)), Score: 1.0 - float64(i)*0.01}
	}
	out := r.Rerank(context.Background(), "u1", ranked, 3)
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	for i, it := range out {
		if it.Rank != i+1 {
			t.Fatalf("out[%d].Rank = %d, want %d", i, it.Rank, i+1)
		}
	}
}

var errBoom = context.DeadlineExceeded
