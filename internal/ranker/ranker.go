// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package ranker is the Ranker component (§4.8): it applies the
// trained linear-then-sigmoid scoring function to assembled feature
// rows and sorts the result, falling back to a position-based mock
// scorer if inference itself misbehaves (§7 ModelInferenceError).
package ranker

import (
	"math"
	"sort"

	"github.com/driftcommerce/recall/internal/feature"
	"github.com/driftcommerce/recall/internal/logging"
	"github.com/driftcommerce/recall/internal/types"
)

// Ranker scores feature rows with a fixed linear-then-sigmoid model.
type Ranker struct {
	weights types.RankerWeights
	debug   bool
}

// New builds a Ranker from the trained weights loaded at startup
// (§4.1). debug enables per-candidate feature-vector logging for the
// first few rows (§4.8: "logs the feature vector of the first few
// candidates when a debug flag is set; logging never alters outputs").
func New(weights types.RankerWeights, debug bool) *Ranker {
	return &Ranker{weights: weights, debug: debug}
}

const debugLogLimit = 3

// Rank scores and sorts rows, returning a stable-sorted (by score
// descending, ties broken by original -- i.e. recall -- order) slice
// of RankedItem with 1-based Rank assigned.
func (r *Ranker) Rank(rows []feature.Row) []types.RankedItem {
	items := make([]types.RankedItem, len(rows))
	fellBack := false

	for i, row := range rows {
		score := r.infer(row.X)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			fellBack = true
			break
		}
		if r.debug && i < debugLogLimit {
			logging.Debug().Str("item_id", string(row.ItemId)).
				Float64("mf", row.X[0]).Float64("popularity", row.X[1]).
				Float64("rating", row.X[2]).Float64("content", row.X[3]).
				Float64("score", score).Msg("ranker: scored candidate")
		}
		items[i] = rankedItem(row, score)
	}

	if fellBack {
		logging.Warn().Err(types.ErrModelInference).
			Msg("ranker: inference produced a non-finite score, falling back to position-based mock scorer")
		for i, row := range rows {
			items[i] = rankedItem(row, mockPositionScore(i, len(rows)))
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	for i := range items {
		items[i].Rank = i + 1
	}
	return items
}

// infer computes score = sigmoid(w . X + b).
func (r *Ranker) infer(x [4]float64) float64 {
	z := r.weights.MF*x[0] + r.weights.Popularity*x[1] + r.weights.Rating*x[2] + r.weights.Content*x[3] + r.weights.Intercept
	return 1.0 / (1.0 + math.Exp(-z))
}

// mockPositionScore assigns a strictly descending score by recall-list
// position, so the pipeline degrades to a popularity-flavored ordering
// (§7) rather than failing the request outright.
func mockPositionScore(pos, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(pos)/float64(total)
}

func rankedItem(row feature.Row, score float64) types.RankedItem {
	item := types.RankedItem{
		ItemId: row.ItemId,
		Score:  score,
	}
	if row.Raw != nil {
		item.Category = row.Raw.Category
		item.RatingCount = row.Raw.RatingCount
		item.HasRating = true
		item.Raw = row.Raw
	}
	return item
}
