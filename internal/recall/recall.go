// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package recall is the Candidate Recall component (§4.5): it produces
// the union candidate pool for one request by running up to three
// branches -- Latent (matrix-factorization dot product), Popularity
// (a shuffled-tail ranked list), and Content (vector-index similarity)
// -- and merging them under a fixed, observable precedence.
package recall

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/driftcommerce/recall/internal/artifacts"
	"github.com/driftcommerce/recall/internal/types"
)

// Config holds the §6 tunables Candidate Recall consumes.
type Config struct {
	KLatent                     int
	KPop                        int
	KContent                    int
	PopularityTailShufflePrefix float64 // fraction of the 2*KPop buffer kept fixed, default 0.20
}

// Recall is the Candidate Recall component.
type Recall struct {
	loader  *artifacts.Loader
	content *ContentRecall
	cfg     Config
}

// New builds a Recall over loader's latent/popularity tables and an
// optional content branch. content may be nil, in which case the
// Content branch is always skipped (no Vector Index configured).
func New(loader *artifacts.Loader, content *ContentRecall, cfg Config) *Recall {
	if cfg.PopularityTailShufflePrefix <= 0 {
		cfg.PopularityTailShufflePrefix = 0.20
	}
	return &Recall{loader: loader, content: content, cfg: cfg}
}

// Recall produces the merged candidate pool for req (§4.5). It never
// returns an error: a request that simply yields no candidates
// (cold-start user, empty catalog) and a request whose Content branch
// hit a Vector Index failure both come back as an empty/reduced
// candidate list (§4.3 Failure semantics -- the vector index never
// raises past ContentRecall), never as an error. contentBranch's error
// return exists for symmetry with the other branches and is always
// nil today; Recall still propagates it so a future hard failure mode
// has somewhere to surface.
func (r *Recall) Recall(ctx context.Context, req types.Request) ([]types.Candidate, error) {
	exclude := toSet(req.ExcludeItems)

	if req.ContentOnly {
		content, err := r.contentBranch(ctx, req, exclude)
		if err != nil {
			return nil, err
		}
		return dedupe(content), nil
	}

	latent := r.latentBranch(req.UserId)
	excludeAfterLatent := union(exclude, candidateIDs(latent))

	pop := r.popularityBranch(req, excludeAfterLatent)
	excludeAfterPop := union(excludeAfterLatent, candidateIDs(pop))

	content, err := r.contentBranch(ctx, req, excludeAfterPop)
	if err != nil {
		return nil, err
	}

	return dedupe(append(append(append([]types.Candidate{}, latent...), content...), pop...)), nil
}

// latentBranch computes s = V . U[user_row[UserId]] for every item row
// and returns the top KLatent rows by s, descending. An unknown user
// yields no candidates (cold start), not an error.
func (r *Recall) latentBranch(userID types.UserId) []types.Candidate {
	userVec, ok := r.loader.UserVector(userID)
	if !ok {
		return nil
	}

	type scored struct {
		itemID types.ItemId
		score  float64
	}
	n := r.loader.NumItems()
	scores := make([]scored, 0, n)
	for row := 0; row < n; row++ {
		itemVec := r.loader.ItemVectorByRow(row)
		itemID, ok := r.loader.ItemOfRow(row)
		if !ok {
			continue
		}
		scores = append(scores, scored{itemID: itemID, score: dot(userVec, itemVec)})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	k := r.cfg.KLatent
	if k <= 0 || k > len(scores) {
		k = len(scores)
	}
	out := make([]types.Candidate, k)
	for i := 0; i < k; i++ {
		out[i] = types.Candidate{ItemId: scores[i].itemID, LatentScore: scores[i].score, HasLatent: true}
	}
	return out
}

// popularityBranch reads the popularity table sorted descending,
// filters exclude, takes the top 2*KPop, shuffles every position past
// the fixed PopularityTailShufflePrefix fraction using a per-request
// deterministic seed, then trims to KPop (§4.5, grounded on
// recall_service.py's `_popularity_recall`).
func (r *Recall) popularityBranch(req types.Request, exclude map[types.ItemId]struct{}) []types.Candidate {
	k := r.cfg.KPop
	if k <= 0 {
		return nil
	}

	ordered := r.loader.PopularityOrdered()
	buffer := make([]types.ItemId, 0, 2*k)
	for _, id := range ordered {
		if _, skip := exclude[id]; skip {
			continue
		}
		buffer = append(buffer, id)
		if len(buffer) == 2*k {
			break
		}
	}

	if len(buffer) > k {
		fixed := int(float64(len(buffer)) * r.cfg.PopularityTailShufflePrefix)
		rng := rand.New(rand.NewSource(requestSeed(req)))
		tail := buffer[fixed:]
		rng.Shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })
	}

	if len(buffer) > k {
		buffer = buffer[:k]
	}

	out := make([]types.Candidate, len(buffer))
	for i, id := range buffer {
		out[i] = types.Candidate{ItemId: id}
	}
	return out
}

// contentBranch dispatches to ContentRecall.Anchor or .References
// depending on which the request supplies, preferring the anchor item
// when both are present (product-detail pages pass only an anchor;
// homepage passes only references, §4.11). A nil content component or
// a request with neither anchor nor references skips the branch.
func (r *Recall) contentBranch(ctx context.Context, req types.Request, exclude map[types.ItemId]struct{}) ([]types.Candidate, error) {
	if r.content == nil {
		return nil, nil
	}
	switch {
	case req.AnchorItem != "":
		return r.content.Anchor(ctx, req.AnchorItem, r.cfg.KContent, exclude)
	case len(req.References) > 0:
		return r.content.References(ctx, req.References, r.cfg.KContent, exclude)
	default:
		return nil, nil
	}
}

// dedupe stable-dedupes candidates by ItemId, keeping the first
// occurrence (§4.5 merge contract).
func dedupe(candidates []types.Candidate) []types.Candidate {
	seen := make(map[types.ItemId]struct{}, len(candidates))
	out := make([]types.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.ItemId]; dup {
			continue
		}
		seen[c.ItemId] = struct{}{}
		out = append(out, c)
	}
	return out
}

func toSet(ids []types.ItemId) map[types.ItemId]struct{} {
	out := make(map[types.ItemId]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func union(a map[types.ItemId]struct{}, ids []types.ItemId) map[types.ItemId]struct{} {
	out := make(map[types.ItemId]struct{}, len(a)+len(ids))
	for id := range a {
		out[id] = struct{}{}
	}
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func candidateIDs(candidates []types.Candidate) []types.ItemId {
	out := make([]types.ItemId, len(candidates))
	for i, c := range candidates {
		out[i] = c.ItemId
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// requestSeed derives a deterministic per-(user, request) seed for the
// popularity tail shuffle, so repeated test requests are reproducible
// (Open Question decision, see DESIGN.md) without relying on global
// entropy the way the teacher's algorithms avoid time.Now()-seeded
// nondeterminism.
func requestSeed(req types.Request) int64 {
	h := fnv.New64a()
	h.Write([]byte(req.UserId))
	h.Write([]byte{0})
	h.Write([]byte(req.RequestId))
	return int64(h.Sum64())
}
