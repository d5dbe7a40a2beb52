// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package feature is the Feature Assembler and Score Normalizer
// (§4.6, §4.7): it turns a candidate pool into a feature matrix in the
// pinned [mf_score, popularity_score, rating_score, content_score]
// order, then rescales it to counteract popularity/latent dominance
// before the Ranker sees it.
package feature

import (
	"math"

	"github.com/driftcommerce/recall/internal/artifacts"
	"github.com/driftcommerce/recall/internal/config"
	"github.com/driftcommerce/recall/internal/types"
)

// Row is one candidate's assembled feature vector, in the pinned
// types.FeatureOrder: X[0]=mf_score, X[1]=popularity_score,
// X[2]=rating_score, X[3]=content_score.
type Row struct {
	ItemId types.ItemId
	X      [4]float64
	Raw    *types.RawSignals
}

// Config holds the §6 tunables the Assembler and Normalizer consume.
type Config struct {
	ContentBoost        float64
	NormalizationMethod string // "min_max" | "z_score"
	Weights             config.FeatureWeights
}

// Assembler builds and normalizes feature rows for one request.
type Assembler struct {
	loader *artifacts.Loader
	cfg    Config
}

// New builds an Assembler over loader's latent/popularity tables.
func New(loader *artifacts.Loader, cfg Config) *Assembler {
	if cfg.NormalizationMethod == "" {
		cfg.NormalizationMethod = "min_max"
	}
	return &Assembler{loader: loader, cfg: cfg}
}

// Assemble builds the raw (pre-normalization) feature matrix for
// candidates against userID (§4.6's per-candidate computation), then
// normalizes it in place (§4.7).
func (a *Assembler) Assemble(candidates []types.Candidate, userID types.UserId) []Row {
	rows := make([]Row, len(candidates))
	userVec, hasUser := a.loader.UserVector(userID)

	for i, c := range candidates {
		var row Row
		row.ItemId = c.ItemId
		row.Raw = c.Raw

		row.X[0] = mfScore(a.loader, userVec, hasUser, c)
		popScore, ratingScore := ratingAndPopularity(a.loader, c)
		row.X[1] = popScore
		row.X[2] = ratingScore
		row.X[3] = contentScore(c, a.cfg.ContentBoost)

		rows[i] = row
	}

	a.normalize(rows)
	return rows
}

// mfScore recomputes the dot product fresh against the candidate's
// item row rather than trusting Candidate.LatentScore, since §4.6
// requires every candidate -- including ones recalled only by
// popularity or content -- to receive an mf_score when the user/item
// are both known to the factor matrices.
func mfScore(loader *artifacts.Loader, userVec []float32, hasUser bool, c types.Candidate) float64 {
	if !hasUser {
		return 0
	}
	row, ok := loader.RowOfItem(c.ItemId)
	if !ok {
		return 0
	}
	itemVec := loader.ItemVectorByRow(row)
	if itemVec == nil {
		return 0
	}
	var sum float64
	for i := range userVec {
		sum += float64(userVec[i]) * float64(itemVec[i])
	}
	return sum
}

// ratingAndPopularity returns (popularity_score, rating_score) per
// §4.6: popularity_score is always the table lookup (0 if missing);
// rating_score prefers the table's rating sub-score, falling back to
// the catalog's avg_rating rescaled to [0,1] when the table has no
// entry for this item but raw signals are available.
func ratingAndPopularity(loader *artifacts.Loader, c types.Candidate) (popularity, rating float64) {
	pop, rate, ok := loader.Popularity(c.ItemId)
	if ok {
		return pop, rate
	}
	if c.Raw != nil {
		return 0, clamp01((c.Raw.AvgRating - 1) / 4)
	}
	return 0, 0
}

func contentScore(c types.Candidate, boost float64) float64 {
	if !c.HasContent {
		return 0
	}
	if boost == 0 {
		boost = 1
	}
	return clamp01(c.ContentScore * boost)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
