// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package types

import "testing"

func TestEventKindValid(t *testing.T) {
	valid := []EventKind{EventView, EventClick, EventAddToCart, EventPurchase, EventRate}
	for _, k := range valid {
		if !k.Valid() {
			t.Errorf("EventKind(%q).Valid() = false, want true", k)
		}
	}

	invalid := []EventKind{"", "bogus", "VIEW", "Purchase"}
	for _, k := range invalid {
		if k.Valid() {
			t.Errorf("EventKind(%q).Valid() = true, want false", k)
		}
	}
}

func TestRecommendModeString(t *testing.T) {
	cases := []struct {
		mode RecommendMode
		want string
	}{
		{ModeHomepage, "homepage"},
		{ModeProductDetail, "product_detail"},
		{RecommendMode(99), "homepage"}, // unknown values fall back to homepage
	}
	for _, c := range cases {
		if got := c.mode.String(); got != c.want {
			t.Errorf("RecommendMode(%d).String() = %q, want %q", c.mode, got, c.want)
		}
	}
}

func TestFeatureOrderPinned(t *testing.T) {
	want := [4]string{"mf_score", "popularity_score", "rating_score", "content_score"}
	if FeatureOrder != want {
		t.Fatalf("FeatureOrder = %v, want %v (reordering breaks every trained ranker.bin)", FeatureOrder, want)
	}
}
