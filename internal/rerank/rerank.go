// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package rerank is the Re-ranker component (§4.9): it applies
// rule-based, context-aware multiplicative adjustments to a ranked
// list, runs an iterative diversity pass, deduplicates by ItemId and
// FamilyId, and truncates to the final N.
package rerank

import (
	"context"
	"fmt"
	"sort"

	"github.com/driftcommerce/recall/internal/config"
	"github.com/driftcommerce/recall/internal/logging"
	"github.com/driftcommerce/recall/internal/types"
)

// ContextReader is the subset of contextstore.Store the Re-ranker
// needs; the store is best-effort (§4.9: "absence yields an empty
// read and the rules that depend on it are no-ops").
type ContextReader interface {
	GetRecentItems(ctx context.Context, userID types.UserId) ([]types.ItemId, error)
	GetRecentCategories(ctx context.Context, userID types.UserId) (map[string]int, error)
}

// Reranker holds the tunables from §6 and a handle to short-term
// context.
type Reranker struct {
	ctxStore ContextReader
	cfg      config.RecommendConfig
}

// New builds a Reranker. ctxStore may be any ContextReader; a nil
// store is treated the same as a read failure -- rules 1 and 2 become
// no-ops (§4.9 state machine: "context read error: skip rules 1 and 2,
// continue").
func New(ctxStore ContextReader, cfg config.RecommendConfig) *Reranker {
	return &Reranker{ctxStore: ctxStore, cfg: cfg}
}

type workItem struct {
	types.ReRankedItem
}

// Rerank runs the full §4.9 pipeline: per-item adjustments, diversity
// pass, dedup by ItemId+FamilyId, truncation to topN. An empty input
// returns an empty list (INIT terminal state).
func (r *Reranker) Rerank(ctx context.Context, userID types.UserId, ranked []types.RankedItem, topN int) []types.ReRankedItem {
	if len(ranked) == 0 {
		return nil
	}

	recentItems, recentCategories := r.readContext(ctx, userID)

	items := make([]workItem, len(ranked))
	for i, rk := range ranked {
		items[i] = r.adjust(rk, recentItems, recentCategories)
	}

	r.diversify(items)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].AdjustedScore > items[j].AdjustedScore
	})

	final := dedupe(items)
	if len(final) > topN && topN > 0 {
		final = final[:topN]
	}

	out := make([]types.ReRankedItem, len(final))
	for i, it := range final {
		it.Rank = i + 1
		out[i] = it.ReRankedItem
	}
	return out
}

// readContext loads recent_items and recent_categories, degrading to
// empty values on any error or a nil store (§4.9, §4.10 failure mode:
// a context-store failure degrades re-ranking rules 1 and 2 but never
// fails the request).
func (r *Reranker) readContext(ctx context.Context, userID types.UserId) ([]types.ItemId, map[string]int) {
	if r.ctxStore == nil {
		return nil, nil
	}
	recentItems, err := r.ctxStore.GetRecentItems(ctx, userID)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", string(userID)).
			Msg("rerank: recent items read failed, recency penalty disabled")
		recentItems = nil
	}
	recentCategories, err := r.ctxStore.GetRecentCategories(ctx, userID)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", string(userID)).
			Msg("rerank: recent categories read failed, intent boost disabled")
		recentCategories = nil
	}
	return recentItems, recentCategories
}

// adjust applies the three per-item multiplicative rules in order
// (§4.9: intent boost, recency penalty, low-review penalty) and
// returns the resulting workItem with RawScore preserved.
func (r *Reranker) adjust(rk types.RankedItem, recentItems []types.ItemId, recentCategories map[string]int) workItem {
	score := rk.Score
	var rules []string

	score, rules = r.applyIntentBoost(rk, recentCategories, score, rules)
	score, rules = r.applyRecencyPenalty(rk, recentItems, score, rules)
	score, rules = r.applyLowReviewPenalty(rk, score, rules)

	familyID := types.FamilyId(rk.ItemId)
	if rk.Raw != nil && rk.Raw.FamilyId != "" {
		familyID = rk.Raw.FamilyId
	}

	return workItem{types.ReRankedItem{
		ItemId:        rk.ItemId,
		RawScore:      rk.Score,
		AdjustedScore: score,
		Rules:         rules,
		Category:      rk.Category,
		FamilyId:      familyID,
	}}
}

// applyIntentBoost is rule 1 (§4.9): category in recent_categories
// boosts the score by 1 + min(cap, rate*count).
func (r *Reranker) applyIntentBoost(rk types.RankedItem, recentCategories map[string]int, score float64, rules []string) (float64, []string) {
	if rk.Category == "" || recentCategories == nil {
		return score, rules
	}
	count, ok := recentCategories[rk.Category]
	if !ok {
		return score, rules
	}
	boost := r.cfg.IntentBoostRate * float64(count)
	if boost > r.cfg.IntentBoostCap {
		boost = r.cfg.IntentBoostCap
	}
	score *= 1.0 + boost
	rules = append(rules, fmt.Sprintf("intent_boost(%s:+%.0f%%)", rk.Category, boost*100))
	return score, rules
}

// applyRecencyPenalty is rule 2 (§4.9): an item still present in
// recent_items is penalized more heavily the closer to the front
// (newest) it appears.
func (r *Reranker) applyRecencyPenalty(rk types.RankedItem, recentItems []types.ItemId, score float64, rules []string) (float64, []string) {
	pos := indexOf(recentItems, rk.ItemId)
	if pos < 0 {
		return score, rules
	}
	t := r.cfg.RecencyThresholds
	m := r.cfg.RecencyMultipliers
	switch {
	case pos < t[0]:
		score *= m[0]
		rules = append(rules, "recent_penalty_top5")
	case pos < t[1]:
		score *= m[1]
		rules = append(rules, "recent_penalty_top10")
	default:
		score *= m[2]
		rules = append(rules, "recent_penalty")
	}
	return score, rules
}

// applyLowReviewPenalty is rule 3 (§4.9): a rating_count known and
// strictly below the configured threshold floors the score.
func (r *Reranker) applyLowReviewPenalty(rk types.RankedItem, score float64, rules []string) (float64, []string) {
	if !rk.HasRating || rk.RatingCount >= r.cfg.LowReviewThreshold {
		return score, rules
	}
	score *= r.cfg.LowReviewPenalty
	rules = append(rules, fmt.Sprintf("popularity_floor(rating=%d)", rk.RatingCount))
	return score, rules
}

// diversify runs the diversity pass in place, over the top 2N items,
// for up to DiversityMaxPasses iterations, breaking early once a pass
// applies no penalty (§4.9).
func (r *Reranker) diversify(items []workItem) {
	window := len(items)
	if w := 2 * r.topN(); w > 0 && w < window {
		window = w
	}
	if window == 0 {
		return
	}

	maxPasses := r.cfg.DiversityMaxPasses
	if maxPasses <= 0 {
		maxPasses = 3
	}

	for pass := 0; pass < maxPasses; pass++ {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].AdjustedScore > items[j].AdjustedScore
		})

		top := items
		if len(top) > window {
			top = top[:window]
		}

		counts := map[string]int{}
		for _, it := range top {
			if it.Category != "" {
				counts[it.Category]++
			}
		}

		applied := false
		for i := range top {
			cat := top[i].Category
			if cat == "" {
				continue
			}
			count := counts[cat]
			share := float64(count) / float64(len(top))

			if share > r.cfg.DiversityThreshold {
				top[i].AdjustedScore *= r.cfg.DiversityPenalty
				applied = true
				top[i].Rules = appendRuleOnce(top[i].Rules, fmt.Sprintf("diversity_penalty(%.0f%%)", share*100))
			}
			if count > r.cfg.MaxSameCategory {
				top[i].AdjustedScore *= r.cfg.CategoryLimitPenalty
				applied = true
				top[i].Rules = appendRuleOnce(top[i].Rules, fmt.Sprintf("category_limit_exceeded(%d)", count))
			}
		}

		if !applied {
			break
		}
	}
}

// topN is a best-effort window size hint for the diversity pass; it
// falls back to TopNRank when unset.
func (r *Reranker) topN() int {
	if r.cfg.TopNFinal > 0 {
		return r.cfg.TopNFinal
	}
	return r.cfg.TopNRank
}

// dedupe keeps the first occurrence of each ItemId and each FamilyId,
// in list order (§4.9 Deduplication).
func dedupe(items []workItem) []workItem {
	seenItems := make(map[types.ItemId]struct{}, len(items))
	seenFamilies := make(map[types.FamilyId]struct{}, len(items))
	out := make([]workItem, 0, len(items))
	for _, it := range items {
		if _, ok := seenItems[it.ItemId]; ok {
			continue
		}
		if _, ok := seenFamilies[it.FamilyId]; ok {
			continue
		}
		seenItems[it.ItemId] = struct{}{}
		seenFamilies[it.FamilyId] = struct{}{}
		out = append(out, it)
	}
	return out
}

func indexOf(items []types.ItemId, id types.ItemId) int {
	for i, it := range items {
		if it == id {
			return i
		}
	}
	return -1
}

func appendRuleOnce(rules []string, rule string) []string {
	for _, r := range rules {
		if r == rule {
			return rules
		}
	}
	return append(rules, rule)
}
