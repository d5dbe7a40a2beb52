// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package recall

import (
	"context"
	"sort"

	"github.com/sourcegraph/conc"

	"github.com/driftcommerce/recall/internal/logging"
	"github.com/driftcommerce/recall/internal/types"
	"github.com/driftcommerce/recall/internal/vectorindex"
)

// maxReferenceItems caps how many of the caller's reference items the
// multi-reference mode queries, matching content_recall_service.py's
// `user_reference_items[:10]` cap.
const maxReferenceItems = 10

// referenceQuotaSlack is content_recall_service.py's per-reference "+5"
// slack added on top of the even split across references.
const referenceQuotaSlack = 5

// ContentRecall is the Content Recall component (§4.4): it queries the
// Vector Index Client for items similar to an anchor item (product
// detail mode) or to each of the user's reference items, with an even
// per-reference quota and no per-reference weights (homepage mode). It
// does not score an explicit candidate list; the Feature Assembler's
// content_score is built from the similarity a candidate was recalled at.
type ContentRecall struct {
	index *vectorindex.Index
}

// NewContentRecall wraps a Vector Index Client.
func NewContentRecall(index *vectorindex.Index) *ContentRecall {
	return &ContentRecall{index: index}
}

// scoredItem pairs a candidate with the similarity score it was found
// at, before it is flattened to a types.Candidate.
type scoredItem struct {
	id    types.ItemId
	score float32
}

// Anchor runs single-reference content recall (§4.4 mode (a)): items
// similar to one anchor item (the product-detail page's current item),
// grounded on content_recall_service.py's find_similar_items. A vector
// index failure degrades to an empty result rather than raising (§4.3
// Failure semantics), the same way References already does.
func (c *ContentRecall) Anchor(ctx context.Context, anchor types.ItemId, topK int, exclude map[types.ItemId]struct{}) ([]types.Candidate, error) {
	vec, ok, err := c.index.GetVector(ctx, anchor)
	if err != nil {
		logging.Warn().Err(err).Str("item_id", string(anchor)).
			Msg("content recall: anchor vector lookup failed, degrading to empty result")
		return nil, nil
	}
	if !ok {
		return nil, nil
	}

	neighbors, err := c.index.KNearest(ctx, vec, topK+len(exclude), anchor)
	if err != nil {
		logging.Warn().Err(err).Str("item_id", string(anchor)).
			Msg("content recall: anchor k-nearest lookup failed, degrading to empty result")
		return nil, nil
	}

	out := make([]types.Candidate, 0, topK)
	for _, n := range neighbors {
		if _, skip := exclude[n.ItemId]; skip {
			continue
		}
		out = append(out, types.Candidate{ItemId: n.ItemId, ContentScore: float64(n.Score), HasContent: true})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

// References runs multi-reference content recall (§4.4 mode (b)): up
// to maxReferenceItems of the caller's reference items (user history)
// are each queried concurrently for neighbors, the per-reference quota
// being an even split of topK plus referenceQuotaSlack, matching
// content_recall_service.py's `top_k // len(refs[:10]) + 5`. Results
// are deduped by ItemId keeping the first occurrence, then sorted by
// score descending and trimmed to topK.
func (c *ContentRecall) References(ctx context.Context, refs []types.ItemId, topK int, exclude map[types.ItemId]struct{}) ([]types.Candidate, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	if len(refs) > maxReferenceItems {
		refs = refs[:maxReferenceItems]
	}
	quota := topK/len(refs) + referenceQuotaSlack

	results := make([][]scoredItem, len(refs))
	wg := &conc.WaitGroup{}
	for i, ref := range refs {
		i, ref := i, ref
		wg.Go(func() {
			vec, ok, err := c.index.GetVector(ctx, ref)
			if err != nil || !ok {
				return
			}
			neighbors, err := c.index.KNearest(ctx, vec, quota+len(exclude), ref)
			if err != nil {
				return
			}
			items := make([]scoredItem, 0, len(neighbors))
			for _, n := range neighbors {
				if _, skip := exclude[n.ItemId]; skip {
					continue
				}
				items = append(items, scoredItem{id: n.ItemId, score: n.Score})
			}
			results[i] = items
		})
	}
	wg.Wait()

	seen := make(map[types.ItemId]struct{})
	unique := make([]scoredItem, 0, topK)
	for _, items := range results {
		for _, it := range items {
			if _, dup := seen[it.id]; dup {
				continue
			}
			seen[it.id] = struct{}{}
			unique = append(unique, it)
		}
	}

	sort.SliceStable(unique, func(i, j int) bool { return unique[i].score > unique[j].score })
	if len(unique) > topK {
		unique = unique[:topK]
	}

	out := make([]types.Candidate, len(unique))
	for i, it := range unique {
		out[i] = types.Candidate{ItemId: it.id, ContentScore: float64(it.score), HasContent: true}
	}
	return out, nil
}
