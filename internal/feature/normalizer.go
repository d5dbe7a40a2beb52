// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package feature

import "math"

// stats are the per-request min/max/mean/std of the mf_score and
// popularity_score columns, grounded on
// original_source/backend/app/recommender/score_normalizer.py's
// NormalizationStats (rating_score/content_score need no stats since
// they already live in [0,1]).
type stats struct {
	mfMin, mfMax, mfMean, mfStd     float64
	popMin, popMax, popMean, popStd float64
}

// normalize rescales rows' mf_score and popularity_score columns
// (§4.7), clamps rating_score/content_score to [0,1], and applies
// a.cfg.Weights -- unless there are fewer than 2 rows, in which case
// normalization is a no-op and only clamping + weighting happen (§4.7
// contract: "If there are fewer than 2 candidates, normalization is a
// no-op").
func (a *Assembler) normalize(rows []Row) {
	if len(rows) == 0 {
		return
	}

	var st *stats
	if len(rows) >= 2 {
		computed := computeStats(rows)
		st = &computed
	}

	for i := range rows {
		x := &rows[i].X
		x[0] = a.normalizeColumn(x[0], st, columnMF)
		x[1] = a.normalizeColumn(x[1], st, columnPopularity)
		x[2] = clamp01(x[2])
		x[3] = clamp01(x[3])

		x[0] *= weightOrDefault(a.cfg.Weights.MF, 1.0)
		x[1] *= weightOrDefault(a.cfg.Weights.Popularity, 0.8)
		x[2] *= weightOrDefault(a.cfg.Weights.Rating, 1.0)
		x[3] *= weightOrDefault(a.cfg.Weights.Content, 1.0)
	}
}

type column int

const (
	columnMF column = iota
	columnPopularity
)

// normalizeColumn applies a.cfg.NormalizationMethod to one raw value.
// st is nil when normalization is the §4.7 no-op case, in which case
// the value is merely clamped to [0,1] -- mirroring
// ScoreNormalizer.normalize_mf_score/normalize_popularity_score's
// `self.stats is None` fallback branch.
func (a *Assembler) normalizeColumn(v float64, st *stats, col column) float64 {
	if st == nil {
		return clamp01(v)
	}

	switch a.cfg.NormalizationMethod {
	case "z_score":
		mean, std := st.mfMean, st.mfStd
		if col == columnPopularity {
			mean, std = st.popMean, st.popStd
		}
		if std <= 0 {
			return 0.5
		}
		z := (v - mean) / std
		return clamp01(1.0 / (1.0 + math.Exp(-z)))
	default: // "min_max"
		min, max := st.mfMin, st.mfMax
		if col == columnPopularity {
			min, max = st.popMin, st.popMax
		}
		if max <= min {
			// A constant column has no spread to rescale; clamp it as in
			// the no-stats case, so an all-zero column stays zero.
			return clamp01(v)
		}
		return clamp01((v - min) / (max - min))
	}
}

func computeStats(rows []Row) stats {
	mf := make([]float64, len(rows))
	pop := make([]float64, len(rows))
	for i, r := range rows {
		mf[i] = r.X[0]
		pop[i] = r.X[1]
	}

	var st stats
	st.mfMin, st.mfMax, st.mfMean, st.mfStd = minMaxMeanStd(mf)
	st.popMin, st.popMax, st.popMean, st.popStd = minMaxMeanStd(pop)
	return st
}

func minMaxMeanStd(vals []float64) (min, max, mean, std float64) {
	min, max = vals[0], vals[0]
	var sum float64
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean = sum / float64(len(vals))

	var variance float64
	for _, v := range vals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(vals))
	std = math.Sqrt(variance)
	if std == 0 {
		std = 1
	}
	return min, max, mean, std
}

func weightOrDefault(w, fallback float64) float64 {
	if w == 0 {
		return fallback
	}
	return w
}
