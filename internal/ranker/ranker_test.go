// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package ranker

import (
	"math"
	"testing"

	"github.com/driftcommerce/recall/internal/feature"
	"github.com/driftcommerce/recall/internal/types"
)

func TestRankSortsByScoreDescending(t *testing.T) {
	r := New(types.RankerWeights{MF: 1, Popularity: 1, Rating: 1, Content: 1, Intercept: -2}, false)
	rows := []feature.Row{
		{ItemId: "low", X: [4]float64{0, 0, 0, 0}},
		{ItemId: "high", X: [4]float64{1, 1, 1, 1}},
		{ItemId: "mid", X: [4]float64{0.5, 0, 0, 0}},
	}

	items := r.Rank(rows)
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	if items[0].ItemId != "high" || items[0].Rank != 1 {
		t.Fatalf("items[0] = %+v, want high at rank 1", items[0])
	}
	for i := 1; i < len(items); i++ {
		if items[i-1].Score < items[i].Score {
			t.Fatalf("scores not descending at %d: %+v", i, items)
		}
		if items[i].Rank != i+1 {
			t.Fatalf("items[%d].Rank = %d, want %d", i, items[i].Rank, i+1)
		}
	}
}

func TestRankStableOnEqualScores(t *testing.T) {
	r := New(types.RankerWeights{}, false) // all weights zero -> every score is sigmoid(0)=0.5
	rows := []feature.Row{
		{ItemId: "a", X: [4]float64{1, 2, 3, 4}},
		{ItemId: "b", X: [4]float64{5, 6, 7, 8}},
		{ItemId: "c", X: [4]float64{9, 9, 9, 9}},
	}
	items := r.Rank(rows)
	if items[0].ItemId != "a" || items[1].ItemId != "b" || items[2].ItemId != "c" {
		t.Fatalf("tie-break order not preserved: %+v", items)
	}
}

func TestRankCarriesRawSignals(t *testing.T) {
	r := New(types.RankerWeights{}, false)
	rows := []feature.Row{
		{ItemId: "a", Raw: &types.RawSignals{Category: "tools", RatingCount: 10}},
	}
	items := r.Rank(rows)
	if items[0].Category != "tools" || items[0].RatingCount != 10 || !items[0].HasRating {
		t.Fatalf("items[0] = %+v, want raw signals carried through", items[0])
	}
}

func TestMockPositionScoreDescending(t *testing.T) {
	prev := math.Inf(1)
	for pos := 0; pos < 5; pos++ {
		s := mockPositionScore(pos, 5)
		if s >= prev {
			t.Fatalf("mockPositionScore(%d) = %v, not strictly less than previous %v", pos, s, prev)
		}
		prev = s
	}
}

func TestMockPositionScoreSingleCandidate(t *testing.T) {
	if s := mockPositionScore(0, 1); s != 1.0 {
		t.Fatalf("mockPositionScore(0,1) = %v, want 1.0", s)
	}
}
