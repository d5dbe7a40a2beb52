// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package feature

import (
	"testing"

	"github.com/driftcommerce/recall/internal/artifacts"
	"github.com/driftcommerce/recall/internal/config"
	"github.com/driftcommerce/recall/internal/types"
)

func testLoader() *artifacts.Loader {
	return artifacts.NewForTest(
		2,
		[]float32{1, 0},          // u1
		[]float32{1, 0, 0, 1},    // i1, i2
		map[types.UserId]int{"u1": 0},
		[]types.ItemId{"i1", "i2"},
		map[types.ItemId]int{"i1": 0, "i2": 1},
		map[types.ItemId]types.PopularityEntry{
			"i1": {PopularityScore: 0.9, RatingScore: 0.8},
		},
		types.RankerWeights{},
	)
}

func TestAssembleMFScoreRecomputedEvenWithoutLatentHit(t *testing.T) {
	a := New(testLoader(), Config{ContentBoost: 1.0, Weights: config.FeatureWeights{MF: 1, Popularity: 1, Rating: 1, Content: 1}})
	candidates := []types.Candidate{
		{ItemId: "i1"}, // no HasLatent set, but user/item both known
		{ItemId: "i2"},
	}
	rows := a.Assemble(candidates, "u1")
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	// i1's raw dot product is 1 (max among these two), i2's is 0 (min);
	// with exactly 2 candidates min-max normalization applies.
	if rows[0].X[0] <= rows[1].X[0] {
		t.Fatalf("expected i1's normalized mf_score > i2's: %v vs %v", rows[0].X[0], rows[1].X[0])
	}
}

func TestAssembleUnknownUserYieldsZeroMF(t *testing.T) {
	a := New(testLoader(), Config{ContentBoost: 1.0})
	rows := a.Assemble([]types.Candidate{{ItemId: "i1"}, {ItemId: "i2"}}, "unknown-user")
	for _, r := range rows {
		if r.X[0] != 0 {
			t.Fatalf("expected mf_score=0 for unknown user, got %v", r.X[0])
		}
	}
}

func TestAssembleRatingFallsBackToCatalogAvgRating(t *testing.T) {
	a := New(testLoader(), Config{})
	candidates := []types.Candidate{
		{ItemId: "i2", Raw: &types.RawSignals{AvgRating: 5}}, // no popularity entry for i2
	}
	rows := a.Assemble(candidates, "u1")
	want := clamp01((5.0 - 1) / 4)
	if rows[0].X[2] != want {
		t.Fatalf("rating_score = %v, want %v", rows[0].X[2], want)
	}
}

func TestAssembleContentScoreBoostedAndClamped(t *testing.T) {
	a := New(testLoader(), Config{ContentBoost: 3.0})
	candidates := []types.Candidate{
		{ItemId: "i1", ContentScore: 0.5, HasContent: true},
	}
	rows := a.Assemble(candidates, "unknown") // avoid mf normalization noise
	if rows[0].X[3] != 1.0 {
		t.Fatalf("content_score = %v, want 1.0 (clamped)", rows[0].X[3])
	}
}

func TestNormalizeNoOpUnderTwoCandidates(t *testing.T) {
	a := New(testLoader(), Config{})
	rows := a.Assemble([]types.Candidate{{ItemId: "i1"}}, "u1")
	// Single candidate: mf_score is clamped but not min-max scaled, so
	// the raw dot product of 1 should survive unchanged (clamp01(1)=1).
	if rows[0].X[0] != 1.0 {
		t.Fatalf("single-candidate mf_score = %v, want 1.0 (no-op normalization)", rows[0].X[0])
	}
}

func TestNormalizeWeightsApplied(t *testing.T) {
	a := New(testLoader(), Config{Weights: config.FeatureWeights{Popularity: 0.5}})
	rows := a.Assemble([]types.Candidate{{ItemId: "i1"}}, "unknown")
	// popularity_score for i1 is 0.9; clamp01(0.9)=0.9, weighted by 0.5.
	want := 0.9 * 0.5
	if rows[0].X[1] != want {
		t.Fatalf("weighted popularity_score = %v, want %v", rows[0].X[1], want)
	}
}

func TestMinMaxMeanStd(t *testing.T) {
	min, max, mean, std := minMaxMeanStd([]float64{1, 2, 3})
	if min != 1 || max != 3 || mean != 2 {
		t.Fatalf("minMaxMeanStd = %v %v %v %v", min, max, mean, std)
	}
}
