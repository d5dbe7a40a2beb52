// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package recommend

import (
	"context"
	"testing"

	"github.com/driftcommerce/recall/internal/artifacts"
	"github.com/driftcommerce/recall/internal/catalog"
	"github.com/driftcommerce/recall/internal/config"
	"github.com/driftcommerce/recall/internal/ranker"
	"github.com/driftcommerce/recall/internal/recall"
	"github.com/driftcommerce/recall/internal/rerank"
	"github.com/driftcommerce/recall/internal/types"
)

func testLoader() *artifacts.Loader {
	return artifacts.NewForTest(
		2,
		[]float32{1, 0}, // u1
		[]float32{
			1, 0, // i1
			0, 1, // i2
			1, 1, // i3
		},
		map[types.UserId]int{"u1": 0},
		[]types.ItemId{"i1", "i2", "i3"},
		map[types.ItemId]int{"i1": 0, "i2": 1, "i3": 2},
		map[types.ItemId]types.PopularityEntry{
			"i1": {PopularityScore: 0.9, RatingScore: 0.8},
			"i2": {PopularityScore: 0.5, RatingScore: 0.5},
			"i3": {PopularityScore: 0.3, RatingScore: 0.3},
		},
		types.RankerWeights{MF: 1, Popularity: 1, Rating: 1, Content: 1, Intercept: -1},
	)
}

func testConfig() config.RecommendConfig {
	cfg := config.DefaultConfig().Recommend
	cfg.KLatent = 10
	cfg.KPop = 10
	cfg.KContent = 10
	cfg.TopNRank = 10
	cfg.TopNFinal = 10
	return cfg
}

func testOrchestrator(t *testing.T, fc *catalog.FakeCatalog) *Orchestrator {
	t.Helper()
	loader := testLoader()
	rec := recall.New(loader, nil, recall.Config{KLatent: 10, KPop: 10, KContent: 10})
	rnk := ranker.New(loader.Ranker(), false)
	rr := rerank.New(nil, testConfig())
	return New(rec, loader, rnk, rr, fc, testConfig())
}

func TestRecommendHomepageReturnsCatalogJoinedItems(t *testing.T) {
	fc := catalog.NewFakeCatalog()
	fc.Items["i1"] = types.ItemMeta{ItemId: "i1", FamilyId: "f1", Category: "books", Title: "Item 1"}
	fc.Items["i2"] = types.ItemMeta{ItemId: "i2", FamilyId: "f2", Category: "tools", Title: "Item 2"}
	fc.Items["i3"] = types.ItemMeta{ItemId: "i3", FamilyId: "f3", Category: "tools", Title: "Item 3"}

	o := testOrchestrator(t, fc)
	resp, err := o.Recommend(context.Background(), types.Request{UserId: "u1", Mode: types.ModeHomepage})
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if len(resp.Items) == 0 {
		t.Fatal("expected non-empty recommendations")
	}
	for i, item := range resp.Items {
		if item.Rank != i+1 {
			t.Fatalf("item[%d].Rank = %d, want %d", i, item.Rank, i+1)
		}
		if item.Item.Title == "" {
			t.Fatalf("item[%d] missing catalog metadata: %+v", i, item)
		}
	}
	if resp.Metadata.RequestId == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestRecommendAssignsRequestIdWhenMissing(t *testing.T) {
	fc := catalog.NewFakeCatalog()
	fc.Items["i1"] = types.ItemMeta{ItemId: "i1", FamilyId: "f1", Category: "books"}
	o := testOrchestrator(t, fc)
	resp, err := o.Recommend(context.Background(), types.Request{UserId: "u1"})
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if resp.Metadata.RequestId == "" {
		t.Fatal("expected request id to be generated")
	}
}

func TestRecommendEmptyCandidatesYieldsEmptyResponse(t *testing.T) {
	fc := catalog.NewFakeCatalog()
	o := testOrchestrator(t, fc)
	// content_only with no ContentRecall wired (nil) and no anchor/references
	// means every recall branch is skipped, guaranteeing an empty candidate pool.
	resp, err := o.Recommend(context.Background(), types.Request{UserId: "u1", Mode: types.ModeHomepage, ContentOnly: true})
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Fatalf("expected empty items when all recall branches are skipped, got %+v", resp.Items)
	}
}

func TestRecommendProductDetailFallsBackToCategoryWhenContentEmpty(t *testing.T) {
	fc := catalog.NewFakeCatalog()
	fc.Items["anchor"] = types.ItemMeta{ItemId: "anchor", FamilyId: "fa", Category: "books", AvgRating: 4.0, RatingCount: 10}
	fc.Items["i1"] = types.ItemMeta{ItemId: "i1", FamilyId: "f1", Category: "books", AvgRating: 4.5, RatingCount: 20}
	fc.Items["i2"] = types.ItemMeta{ItemId: "i2", FamilyId: "f2", Category: "books", AvgRating: 3.0, RatingCount: 5}

	// No ContentRecall wired (nil), so product-detail content recall always yields nothing,
	// forcing the category fallback path.
	o := testOrchestrator(t, fc)
	resp, err := o.Recommend(context.Background(), types.Request{UserId: "u1", Mode: types.ModeProductDetail, AnchorItem: "anchor"})
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("len(items) = %d, want 2 (i1, i2 sharing anchor's category)", len(resp.Items))
	}
	if resp.Items[0].Item.ItemId != "i1" {
		t.Fatalf("expected i1 (higher mean_rating*log(rating_count+1)) first, got %+v", resp.Items[0])
	}
	for _, degraded := range resp.Metadata.Degraded {
		if degraded == "content_recall_empty_category_fallback" {
			return
		}
	}
	t.Fatalf("expected degraded reason to note the category fallback, got %v", resp.Metadata.Degraded)
}

func TestRecommendSecondPassDedupesByCatalogFamilyId(t *testing.T) {
	fc := catalog.NewFakeCatalog()
	// i1 and i2 look like distinct items to recall, but the catalog
	// reveals they share a family -- the second dedup pass must drop one.
	fc.Items["i1"] = types.ItemMeta{ItemId: "i1", FamilyId: "shared", Category: "books"}
	fc.Items["i2"] = types.ItemMeta{ItemId: "i2", FamilyId: "shared", Category: "books"}
	fc.Items["i3"] = types.ItemMeta{ItemId: "i3", FamilyId: "f3", Category: "tools"}

	o := testOrchestrator(t, fc)
	resp, err := o.Recommend(context.Background(), types.Request{UserId: "u1", Mode: types.ModeHomepage})
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	seen := map[types.FamilyId]int{}
	for _, item := range resp.Items {
		seen[item.Item.FamilyId]++
	}
	if seen["shared"] > 1 {
		t.Fatalf("expected at most one item from the shared family, got %d: %+v", seen["shared"], resp.Items)
	}
}

// TestRecommendDegradesWhenCatalogAbsent exercises the composition
// root's soft-degradation path (§6 Exit Conditions: only the Artifact
// Loader is fatal) -- a nil catalog.Catalog collaborator must never
// panic, and should simply skip the post-join.
func TestRecommendDegradesWhenCatalogAbsent(t *testing.T) {
	loader := testLoader()
	rec := recall.New(loader, nil, recall.Config{KLatent: 10, KPop: 10, KContent: 10})
	rnk := ranker.New(loader.Ranker(), false)
	rr := rerank.New(nil, testConfig())
	o := New(rec, loader, rnk, rr, nil, testConfig())

	resp, err := o.Recommend(context.Background(), types.Request{UserId: "u1", Mode: types.ModeHomepage})
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if len(resp.Items) == 0 {
		t.Fatal("expected non-empty recommendations even with no catalog")
	}
	found := false
	for _, degraded := range resp.Metadata.Degraded {
		if degraded == "catalog" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected degraded reason to note the absent catalog, got %v", resp.Metadata.Degraded)
	}
}

// TestRecommendProductDetailFallbackSkipsWhenCatalogAbsent exercises
// the same nil guard in categoryFallback: no catalog means no anchor
// lookup, so product-detail mode must still return an empty response
// rather than panicking.
func TestRecommendProductDetailFallbackSkipsWhenCatalogAbsent(t *testing.T) {
	loader := testLoader()
	rec := recall.New(loader, nil, recall.Config{KLatent: 10, KPop: 10, KContent: 10})
	rnk := ranker.New(loader.Ranker(), false)
	rr := rerank.New(nil, testConfig())
	o := New(rec, loader, rnk, rr, nil, testConfig())

	resp, err := o.Recommend(context.Background(), types.Request{UserId: "u1", Mode: types.ModeProductDetail, AnchorItem: "anchor"})
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Fatalf("expected empty items when catalog is absent, got %+v", resp.Items)
	}
}

// TestRecommendReturnsHardErrorOnPostJoinCatalogFailure exercises §7:
// CatalogUnavailable is hard for the Orchestrator's post-join once the
// catalog collaborator is present but the lookup itself fails.
func TestRecommendReturnsHardErrorOnPostJoinCatalogFailure(t *testing.T) {
	fc := catalog.NewFakeCatalog()
	fc.Items["i1"] = types.ItemMeta{ItemId: "i1", FamilyId: "f1", Category: "books"}
	o := testOrchestrator(t, fc)

	fc.ItemMetaErr = types.ErrCatalogUnavailable

	_, err := o.Recommend(context.Background(), types.Request{UserId: "u1", Mode: types.ModeHomepage})
	if err == nil {
		t.Fatal("expected Recommend to return an error when the post-join catalog lookup fails")
	}
}
