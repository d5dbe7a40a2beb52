// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package recommend

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/driftcommerce/recall/internal/artifacts"
	"github.com/driftcommerce/recall/internal/catalog"
	"github.com/driftcommerce/recall/internal/config"
	"github.com/driftcommerce/recall/internal/feature"
	"github.com/driftcommerce/recall/internal/logging"
	"github.com/driftcommerce/recall/internal/ranker"
	"github.com/driftcommerce/recall/internal/recall"
	"github.com/driftcommerce/recall/internal/rerank"
	"github.com/driftcommerce/recall/internal/types"
)

// Orchestrator runs R -> K -> X for one request and joins the result
// against the catalog (§4.11).
type Orchestrator struct {
	recall   *recall.Recall
	loader   *artifacts.Loader
	ranker   *ranker.Ranker
	reranker *rerank.Reranker
	catalog  catalog.Catalog
	cfg      config.RecommendConfig
}

// New builds an Orchestrator from its already-constructed collaborators
// (§4.13: the composition root wires these, the Orchestrator itself
// never constructs a client or breaker).
func New(rec *recall.Recall, loader *artifacts.Loader, rnk *ranker.Ranker, rr *rerank.Reranker, cat catalog.Catalog, cfg config.RecommendConfig) *Orchestrator {
	return &Orchestrator{recall: rec, loader: loader, ranker: rnk, reranker: rr, catalog: cat, cfg: cfg}
}

// Recommend runs the full pipeline for req and returns the ordered,
// catalog-joined, deduplicated list of recommendations.
func (o *Orchestrator) Recommend(ctx context.Context, req types.Request) (*types.Response, error) {
	start := time.Now()
	req = o.prepareRequest(req)
	var degraded []string

	candidates, err := o.recall.Recall(ctx, req)
	if err != nil {
		return nil, err
	}

	var ranked []types.RankedItem
	if len(candidates) == 0 && req.Mode == types.ModeProductDetail {
		fallback, ok := o.categoryFallback(ctx, req)
		if ok {
			ranked = fallback
			degraded = append(degraded, "content_recall_empty_category_fallback")
		}
	} else if len(candidates) > 0 {
		assembler := feature.New(o.loader, o.featureConfig(req.Mode))
		rows := assembler.Assemble(candidates, req.UserId)
		ranked = o.ranker.Rank(rows)
	}

	if len(ranked) == 0 {
		return o.response(req, nil, degraded, start), nil
	}

	reranked := o.reranker.Rerank(ctx, req.UserId, ranked, req.TopN)

	items, catalogDegraded, err := o.joinCatalog(ctx, reranked)
	if err != nil {
		return nil, err
	}
	if catalogDegraded {
		degraded = append(degraded, "catalog")
	}

	return o.response(req, items, degraded, start), nil
}

// prepareRequest applies §6 defaults and generates a request id when
// the caller didn't supply one, the way the Event Fast-path and the
// Orchestrator both need one for tracing (§4.13's "request id
// generation" dependency).
func (o *Orchestrator) prepareRequest(req types.Request) types.Request {
	if req.RequestId == "" {
		req.RequestId = uuid.New().String()
	}
	if req.TopN <= 0 {
		req.TopN = o.cfg.TopNFinal
	}
	if req.Mode == types.ModeProductDetail {
		req.ContentOnly = true
	}
	return req
}

// featureConfig selects the content_boost for the request's mode
// (§4.11: homepage content_boost ~= 1.5, product-detail ~= 2.5).
func (o *Orchestrator) featureConfig(mode types.RecommendMode) feature.Config {
	boost := o.cfg.ContentBoostHomepage
	if mode == types.ModeProductDetail {
		boost = o.cfg.ContentBoostProductDetail
	}
	return feature.Config{
		ContentBoost:        boost,
		NormalizationMethod: o.cfg.NormalizationMethod,
		Weights:             o.cfg.FeatureWeights,
	}
}

// categoryFallback implements §4.11's product-detail fallback: when
// Content Recall yields nothing for the anchor item, recommend items
// sharing the anchor's category, scored by mean_rating *
// log(rating_count+1) instead of the trained ranker.
func (o *Orchestrator) categoryFallback(ctx context.Context, req types.Request) ([]types.RankedItem, bool) {
	if o.catalog == nil {
		return nil, false
	}
	anchor, err := o.catalog.ItemMeta(ctx, req.AnchorItem)
	if err != nil || anchor.Category == "" {
		if err != nil {
			logging.Warn().Err(err).Str("item_id", string(req.AnchorItem)).
				Msg("orchestrator: category fallback anchor lookup failed")
		}
		return nil, false
	}

	exclude := make(map[types.ItemId]struct{}, len(req.ExcludeItems)+1)
	for _, id := range req.ExcludeItems {
		exclude[id] = struct{}{}
	}
	exclude[req.AnchorItem] = struct{}{}

	limit := o.cfg.TopNRank
	if limit <= 0 {
		limit = o.cfg.TopNFinal
	}
	ids, err := o.catalog.SimilarByCategory(ctx, anchor.Category, exclude, limit)
	if err != nil || len(ids) == 0 {
		if err != nil {
			logging.Warn().Err(err).Str("category", anchor.Category).
				Msg("orchestrator: category fallback lookup failed")
		}
		return nil, false
	}

	metas, err := o.catalog.ItemMetaBatch(ctx, ids)
	if err != nil {
		logging.Warn().Err(err).Msg("orchestrator: category fallback metadata batch failed")
		return nil, false
	}

	ranked := make([]types.RankedItem, 0, len(ids))
	for _, id := range ids {
		meta, ok := metas[id]
		if !ok {
			continue
		}
		score := meta.AvgRating * math.Log(float64(meta.RatingCount)+1)
		ranked = append(ranked, types.RankedItem{
			ItemId:      id,
			Score:       score,
			Category:    meta.Category,
			RatingCount: meta.RatingCount,
			HasRating:   true,
			Raw: &types.RawSignals{
				FamilyId:    meta.FamilyId,
				Category:    meta.Category,
				AvgRating:   meta.AvgRating,
				RatingCount: meta.RatingCount,
			},
		})
	}
	if len(ranked) == 0 {
		return nil, false
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, true
}

// joinCatalog fetches metadata for the final ItemIds and applies the
// second FamilyId deduplication pass (§4.11 Post-processing), since
// the catalog may expose a more authoritative FamilyId than the recall
// pipeline had. The catalog collaborator being absent entirely is a
// soft degradation (the composition root already logged that at
// startup); a lookup that fails once the catalog IS present is hard
// (§7: CatalogUnavailable is hard for the post-join) and is returned
// to the caller rather than silently degraded.
func (o *Orchestrator) joinCatalog(ctx context.Context, reranked []types.ReRankedItem) ([]types.ScoredItem, bool, error) {
	var metas map[types.ItemId]types.ItemMeta
	degraded := false

	if o.catalog == nil {
		metas = map[types.ItemId]types.ItemMeta{}
		degraded = true
	} else {
		ids := make([]types.ItemId, len(reranked))
		for i, r := range reranked {
			ids[i] = r.ItemId
		}
		var err error
		metas, err = o.catalog.ItemMetaBatch(ctx, ids)
		if err != nil {
			return nil, false, err
		}
	}

	seenFamilies := make(map[types.FamilyId]struct{}, len(reranked))
	out := make([]types.ScoredItem, 0, len(reranked))
	for _, r := range reranked {
		meta, ok := metas[r.ItemId]
		if !ok {
			meta = types.ItemMeta{ItemId: r.ItemId, Category: r.Category, FamilyId: r.FamilyId}
		}
		family := meta.FamilyId
		if family == "" {
			family = r.FamilyId
		}
		if family == "" {
			family = types.FamilyId(r.ItemId)
		}
		if _, dup := seenFamilies[family]; dup {
			continue
		}
		seenFamilies[family] = struct{}{}

		out = append(out, types.ScoredItem{
			Item:          meta,
			RawScore:      r.RawScore,
			AdjustedScore: r.AdjustedScore,
			Rules:         r.Rules,
		})
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, degraded, nil
}

func (o *Orchestrator) response(req types.Request, items []types.ScoredItem, degraded []string, start time.Time) *types.Response {
	return &types.Response{
		Items: items,
		Metadata: types.ResponseMetadata{
			RequestId:       req.RequestId,
			UserId:          req.UserId,
			Mode:            req.Mode.String(),
			TotalCandidates: len(items),
			LatencyMS:       time.Since(start).Milliseconds(),
			Degraded:        degraded,
		},
	}
}
