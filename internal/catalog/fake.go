// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package catalog

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/driftcommerce/recall/internal/types"
)

// FakeCatalog is an in-memory Catalog for tests, matching the hand-
// rolled fake style the teacher uses in engine_test.go (a plain struct
// backing the interface, no mocking framework).
type FakeCatalog struct {
	mu           sync.Mutex
	Items        map[types.ItemId]types.ItemMeta
	Interactions []types.InteractionLogEntry
	ItemMetaErr  error
	AppendErr    error
}

// NewFakeCatalog returns an empty FakeCatalog.
func NewFakeCatalog() *FakeCatalog {
	return &FakeCatalog{Items: map[types.ItemId]types.ItemMeta{}}
}

func (f *FakeCatalog) ItemMeta(ctx context.Context, id types.ItemId) (types.ItemMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ItemMetaErr != nil {
		return types.ItemMeta{}, f.ItemMetaErr
	}
	m, ok := f.Items[id]
	if !ok {
		return types.ItemMeta{}, fmt.Errorf("%w: item %s not found", types.ErrCatalogUnavailable, id)
	}
	return m, nil
}

func (f *FakeCatalog) ItemMetaBatch(ctx context.Context, ids []types.ItemId) (map[types.ItemId]types.ItemMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ItemMetaErr != nil {
		return nil, f.ItemMetaErr
	}
	out := make(map[types.ItemId]types.ItemMeta, len(ids))
	for _, id := range ids {
		if m, ok := f.Items[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (f *FakeCatalog) SimilarByCategory(ctx context.Context, category string, exclude map[types.ItemId]struct{}, limit int) ([]types.ItemId, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ItemMetaErr != nil {
		return nil, f.ItemMetaErr
	}

	type scored struct {
		id    types.ItemId
		score float64
	}
	var candidates []scored
	for id, m := range f.Items {
		if m.Category != category {
			continue
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		candidates = append(candidates, scored{id, m.AvgRating * math.Log(float64(m.RatingCount)+1)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if limit > len(candidates) {
		limit = len(candidates)
	}
	out := make([]types.ItemId, limit)
	for i := 0; i < limit; i++ {
		out[i] = candidates[i].id
	}
	return out, nil
}

func (f *FakeCatalog) AppendInteraction(ctx context.Context, entry types.InteractionLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AppendErr != nil {
		return f.AppendErr
	}
	f.Interactions = append(f.Interactions, entry)
	return nil
}
