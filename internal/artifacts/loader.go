// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package artifacts loads the immutable offline artifacts the serving
// core consumes: the user/item factor matrices, their id<->row
// bijections, the popularity table, and the trained linear ranker.
// Everything is read once at process start and exposed read-only
// thereafter (§4.1, §9 "shared mutable latent matrices -> immutable
// after load").
package artifacts

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/goccy/go-json"

	"github.com/driftcommerce/recall/internal/logging"
	"github.com/driftcommerce/recall/internal/metrics"
	"github.com/driftcommerce/recall/internal/types"
)

// Paths locates the files the Loader reads at startup (§6).
type Paths struct {
	UserFactors string
	ItemFactors string
	UserRow     string
	RowItem     string
	Popularity  string
	Ranker      string
}

// Loader holds the immutable artifacts with read-only accessors. All
// fields are populated once by Load and never mutated afterward, so
// concurrent readers need no locking (§5 "shared resources").
type Loader struct {
	d int // factor dimension, shared by U and V

	userFactors []float32 // row-major, len = len(userRow)*d
	itemFactors []float32 // row-major, len = len(rowItem)*d

	userRow map[types.UserId]int
	rowItem []types.ItemId // index by row
	itemRow map[types.ItemId]int

	popularity map[types.ItemId]types.PopularityEntry

	ranker types.RankerWeights
}

// Load reads and validates all artifacts named by paths, returning
// types.ErrLoaderFailed (wrapped with the underlying cause) on any
// missing file, dimension mismatch, or corrupt id map. This failure is
// fatal at startup; the caller should exit nonzero (§6 Exit conditions).
func Load(ctx context.Context, paths Paths) (*Loader, error) {
	start := time.Now()
	defer func() {
		metrics.ArtifactLoadDuration.Observe(time.Since(start).Seconds())
	}()

	userRow, err := loadIDRowMap(paths.UserRow)
	if err != nil {
		return nil, fmt.Errorf("%w: user_row: %w", types.ErrLoaderFailed, err)
	}

	rowItem, itemRow, err := loadRowItemMap(paths.RowItem)
	if err != nil {
		return nil, fmt.Errorf("%w: row_item: %w", types.ErrLoaderFailed, err)
	}

	userFactors, dUsers, err := loadFactorMatrix(paths.UserFactors, len(userRow))
	if err != nil {
		return nil, fmt.Errorf("%w: user_factors: %w", types.ErrLoaderFailed, err)
	}

	itemFactors, dItems, err := loadFactorMatrix(paths.ItemFactors, len(rowItem))
	if err != nil {
		return nil, fmt.Errorf("%w: item_factors: %w", types.ErrLoaderFailed, err)
	}

	if dUsers != dItems {
		return nil, fmt.Errorf("%w: factor dimension mismatch: users=%d items=%d", types.ErrLoaderFailed, dUsers, dItems)
	}
	if dUsers < 1 {
		return nil, fmt.Errorf("%w: factor dimension must be >= 1, got %d", types.ErrLoaderFailed, dUsers)
	}

	popularity, err := loadPopularity(ctx, paths.Popularity)
	if err != nil {
		return nil, fmt.Errorf("%w: popularity: %w", types.ErrLoaderFailed, err)
	}

	ranker, err := loadRanker(paths.Ranker)
	if err != nil {
		return nil, fmt.Errorf("%w: ranker: %w", types.ErrLoaderFailed, err)
	}

	l := &Loader{
		d:           dUsers,
		userFactors: userFactors,
		itemFactors: itemFactors,
		userRow:     userRow,
		rowItem:     rowItem,
		itemRow:     itemRow,
		popularity:  popularity,
		ranker:      ranker,
	}

	metrics.ArtifactRowCounts.WithLabelValues("users").Set(float64(len(userRow)))
	metrics.ArtifactRowCounts.WithLabelValues("items").Set(float64(len(rowItem)))
	metrics.ArtifactRowCounts.WithLabelValues("popularity").Set(float64(len(popularity)))

	logging.Info().
		Int("users", len(userRow)).
		Int("items", len(rowItem)).
		Int("popularity_entries", len(popularity)).
		Int("dimension", dUsers).
		Dur("elapsed", time.Since(start)).
		Msg("artifacts loaded")

	return l, nil
}

// NewForTest builds a Loader directly from its parts, bypassing Load's
// file I/O, for other packages' tests that need a populated Loader
// without authoring binary/parquet fixtures.
func NewForTest(d int, userFactors, itemFactors []float32, userRow map[types.UserId]int, rowItem []types.ItemId, itemRow map[types.ItemId]int, popularity map[types.ItemId]types.PopularityEntry, ranker types.RankerWeights) *Loader {
	return &Loader{
		d:           d,
		userFactors: userFactors,
		itemFactors: itemFactors,
		userRow:     userRow,
		rowItem:     rowItem,
		itemRow:     itemRow,
		popularity:  popularity,
		ranker:      ranker,
	}
}

// Dimension returns the shared latent factor dimension d.
func (l *Loader) Dimension() int { return l.d }

// UserVector returns the row of U for userID, if known.
func (l *Loader) UserVector(userID types.UserId) ([]float32, bool) {
	row, ok := l.userRow[userID]
	if !ok {
		return nil, false
	}
	return l.rowSlice(l.userFactors, row), true
}

// ItemVectorByRow returns row j of V directly, with no bounds panic on
// an out-of-range row (returns nil).
func (l *Loader) ItemVectorByRow(row int) []float32 {
	if row < 0 || row*l.d+l.d > len(l.itemFactors) {
		return nil
	}
	return l.rowSlice(l.itemFactors, row)
}

// RowOfItem returns the V row index for itemID, if known.
func (l *Loader) RowOfItem(itemID types.ItemId) (int, bool) {
	row, ok := l.itemRow[itemID]
	return row, ok
}

// ItemOfRow returns the ItemId mapped to row j of V.
func (l *Loader) ItemOfRow(row int) (types.ItemId, bool) {
	if row < 0 || row >= len(l.rowItem) {
		return "", false
	}
	return l.rowItem[row], true
}

// NumItems returns the number of rows in V (and in row_item).
func (l *Loader) NumItems() int { return len(l.rowItem) }

// Popularity returns the popularity and rating sub-scores for itemID.
// A missing entry returns zeros and false (§3 invariant: treated as
// zero on both sub-scores).
func (l *Loader) Popularity(itemID types.ItemId) (popularity, rating float64, ok bool) {
	entry, ok := l.popularity[itemID]
	if !ok {
		return 0, 0, false
	}
	return entry.PopularityScore, entry.RatingScore, true
}

// PopularityEntry returns the full popularity row for itemID, for
// callers that also need interaction_count/mean_rating.
func (l *Loader) PopularityEntry(itemID types.ItemId) (types.PopularityEntry, bool) {
	entry, ok := l.popularity[itemID]
	return entry, ok
}

// PopularityOrdered returns all popularity-table ItemIds sorted by
// popularity_score descending, used by the Candidate Recall popularity
// branch (§4.5). The slice is freshly allocated per call.
func (l *Loader) PopularityOrdered() []types.ItemId {
	ids := make([]types.ItemId, 0, len(l.popularity))
	for id := range l.popularity {
		ids = append(ids, id)
	}
	sortByPopularityDesc(ids, l.popularity)
	return ids
}

// Ranker returns the trained linear ranker's coefficients and intercept.
func (l *Loader) Ranker() types.RankerWeights { return l.ranker }

func (l *Loader) rowSlice(flat []float32, row int) []float32 {
	return flat[row*l.d : row*l.d+l.d]
}

func sortByPopularityDesc(ids []types.ItemId, table map[types.ItemId]types.PopularityEntry) {
	// Insertion sort by score descending; equal scores are ordered by
	// ItemId ascending, so the result does not depend on Go's randomized
	// map iteration order (the popularity branch keeps a prefix of this
	// order fixed and shuffles the rest with a per-request seed).
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0; j-- {
			a, b := table[ids[j]].PopularityScore, table[ids[j-1]].PopularityScore
			if a < b || (a == b && ids[j] >= ids[j-1]) {
				break
			}
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// loadIDRowMap reads user_row.json: {"UserId": row, ...}.
func loadIDRowMap(path string) (map[types.UserId]int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]int
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("corrupt id map: %w", err)
	}
	out := make(map[types.UserId]int, len(m))
	for k, v := range m {
		out[types.UserId(k)] = v
	}
	return out, nil
}

// loadRowItemMap reads row_item.json: {"0": "ItemId", "1": "ItemId", ...}
// and returns both the row->item slice and its inverse.
func loadRowItemMap(path string) ([]types.ItemId, map[types.ItemId]int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("corrupt id map: %w", err)
	}

	rowItem := make([]types.ItemId, len(m))
	itemRow := make(map[types.ItemId]int, len(m))
	for k, v := range m {
		row, err := strconv.Atoi(k)
		if err != nil || row < 0 || row >= len(m) {
			return nil, nil, fmt.Errorf("corrupt id map: invalid row key %q", k)
		}
		rowItem[row] = types.ItemId(v)
		itemRow[types.ItemId(v)] = row
	}
	return rowItem, itemRow, nil
}

// loadFactorMatrix reads a row-major float32 binary file and validates
// that its row count matches wantRows, returning the flat slice and the
// inferred dimension.
func loadFactorMatrix(path string, wantRows int) ([]float32, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	if len(raw)%4 != 0 {
		return nil, 0, fmt.Errorf("factor file size %d not a multiple of 4 bytes", len(raw))
	}
	numFloats := len(raw) / 4
	if wantRows == 0 || numFloats%wantRows != 0 {
		return nil, 0, fmt.Errorf("factor file has %d float32s, not divisible by %d rows", numFloats, wantRows)
	}
	d := numFloats / wantRows

	out := make([]float32, numFloats)
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, d, nil
}

// loadRanker reads ranker.bin: w (float64[4]) followed by an intercept
// (float64), little-endian. The feature order is pinned at
// types.FeatureOrder and is not re-derived from the file.
func loadRanker(path string) (types.RankerWeights, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.RankerWeights{}, err
	}
	const wantBytes = 5 * 8
	if len(raw) < wantBytes {
		return types.RankerWeights{}, fmt.Errorf("ranker file too short: want >= %d bytes, got %d", wantBytes, len(raw))
	}
	readF64 := func(off int) float64 {
		bits := binary.LittleEndian.Uint64(raw[off : off+8])
		return math.Float64frombits(bits)
	}
	return types.RankerWeights{
		MF:         readF64(0),
		Popularity: readF64(8),
		Rating:     readF64(16),
		Content:    readF64(24),
		Intercept:  readF64(32),
	}, nil
}

// loadPopularity reads popularity.parquet's item_id/popularity_score/
// rating_score columns (and the optional interaction_count/mean_rating
// columns when present) via arrow-go's parquet reader.
func loadPopularity(ctx context.Context, path string) (map[types.ItemId]types.PopularityEntry, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()

	arrowRdr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("open arrow reader: %w", err)
	}

	tbl, err := arrowRdr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	defer tbl.Release()

	cols := map[string]int{}
	for i := 0; i < int(tbl.NumCols()); i++ {
		cols[tbl.Schema().Field(i).Name] = i
	}
	idCol, ok := cols["item_id"]
	if !ok {
		return nil, fmt.Errorf("popularity table missing item_id column")
	}
	popCol, ok := cols["popularity_score"]
	if !ok {
		return nil, fmt.Errorf("popularity table missing popularity_score column")
	}
	ratingCol, ok := cols["rating_score"]
	if !ok {
		return nil, fmt.Errorf("popularity table missing rating_score column")
	}
	interactionCol, hasInteraction := cols["interaction_count"]
	meanRatingCol, hasMeanRating := cols["mean_rating"]

	out := make(map[types.ItemId]types.PopularityEntry, tbl.NumRows())

	idChunks := tbl.Column(idCol).Data().Chunks()
	popChunks := tbl.Column(popCol).Data().Chunks()
	ratingChunks := tbl.Column(ratingCol).Data().Chunks()

	row := 0
	for c := 0; c < len(idChunks); c++ {
		idArr, ok := idChunks[c].(*array.String)
		if !ok {
			return nil, fmt.Errorf("item_id column is not string-typed")
		}
		popArr, ok := popChunks[c].(*array.Float64)
		if !ok {
			return nil, fmt.Errorf("popularity_score column is not float64-typed")
		}
		ratingArr, ok := ratingChunks[c].(*array.Float64)
		if !ok {
			return nil, fmt.Errorf("rating_score column is not float64-typed")
		}

		var interactionArr *array.Int64
		if hasInteraction {
			interactionArr, _ = tbl.Column(interactionCol).Data().Chunks()[c].(*array.Int64)
		}
		var meanRatingArr *array.Float64
		if hasMeanRating {
			meanRatingArr, _ = tbl.Column(meanRatingCol).Data().Chunks()[c].(*array.Float64)
		}

		for i := 0; i < idArr.Len(); i++ {
			entry := types.PopularityEntry{
				PopularityScore: clamp01(popArr.Value(i)),
				RatingScore:     clamp01(ratingArr.Value(i)),
			}
			if interactionArr != nil && !interactionArr.IsNull(i) {
				entry.InteractionCount = interactionArr.Value(i)
			}
			if meanRatingArr != nil && !meanRatingArr.IsNull(i) {
				entry.MeanRating = meanRatingArr.Value(i)
			}
			out[types.ItemId(idArr.Value(i))] = entry
			row++
		}
	}

	return out, nil
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
