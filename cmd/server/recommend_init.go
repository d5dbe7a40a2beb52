// Recall - Personalized Recommendation Serving Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package main

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/driftcommerce/recall/internal/artifacts"
	"github.com/driftcommerce/recall/internal/catalog"
	"github.com/driftcommerce/recall/internal/cbreaker"
	"github.com/driftcommerce/recall/internal/config"
	"github.com/driftcommerce/recall/internal/contextstore"
	"github.com/driftcommerce/recall/internal/events"
	"github.com/driftcommerce/recall/internal/logging"
	"github.com/driftcommerce/recall/internal/ranker"
	"github.com/driftcommerce/recall/internal/recall"
	"github.com/driftcommerce/recall/internal/recommend"
	"github.com/driftcommerce/recall/internal/rerank"
	"github.com/driftcommerce/recall/internal/vectorindex"
)

// durableWritePoolSize bounds how many Event Fast-path durable writes
// (§4.10) may be in flight against the catalog at once.
const durableWritePoolSize = 32

// Components holds every collaborator the composition root constructs,
// exposed as plain Go values for a hosting process to call (§4.13).
type Components struct {
	Loader       *artifacts.Loader
	ContextStore *contextstore.Store
	VectorIndex  *vectorindex.Index
	Catalog      *catalog.PGCatalog

	Orchestrator *recommend.Orchestrator
	Events       *events.Service

	durableWritePool *pool.Pool
}

// Close releases every closeable collaborator, logging but not
// aborting on individual close failures.
func (c *Components) Close() {
	if c.durableWritePool != nil {
		c.durableWritePool.Wait()
	}
	if c.ContextStore != nil {
		if err := c.ContextStore.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing context store")
		}
	}
	if c.VectorIndex != nil {
		if err := c.VectorIndex.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing vector index")
		}
	}
	if c.Catalog != nil {
		c.Catalog.Close()
	}
}

// buildComponents wires the recommendation core's collaborators from
// cfg. The Artifact Loader is a hard dependency (§6 Exit Conditions:
// the caller should exit fatally if this returns an error); the
// network collaborators degrade to nil on failure, so the process can
// still serve from whichever recall branches remain available.
func buildComponents(ctx context.Context, cfg *config.Config) (*Components, error) {
	loader, err := artifacts.Load(ctx, artifacts.Paths{
		UserFactors: cfg.Artifacts.UserFactorsPath,
		ItemFactors: cfg.Artifacts.ItemFactorsPath,
		UserRow:     cfg.Artifacts.UserRowPath,
		RowItem:     cfg.Artifacts.RowItemPath,
		Popularity:  cfg.Artifacts.PopularityPath,
		Ranker:      cfg.Artifacts.RankerPath,
	})
	if err != nil {
		return nil, err
	}

	comps := &Components{Loader: loader}

	ctxStore, err := contextstore.New(cfg.Context.DataDir, contextstore.Config{
		TTL:               cfg.Context.TTL,
		RecentItemsMaxLen: cfg.Context.RecentItemsMaxLen,
		Breaker:           breakerSettings(cfg.Context.CircuitMinRequests, cfg.Context.CircuitFailRatio),
	})
	if err != nil {
		logging.Error().Err(err).Msg("context store unavailable, recency/intent re-ranking rules will degrade")
	} else {
		comps.ContextStore = ctxStore
	}

	vecIndex, err := vectorindex.New(vectorindex.Config{
		Addr:       cfg.Vector.Addr,
		Collection: cfg.Vector.Collection,
		Timeout:    cfg.Vector.Timeout,
		Breaker:    breakerSettings(cfg.Vector.CircuitMinRequests, cfg.Vector.CircuitFailRatio),
	})
	if err != nil {
		logging.Error().Err(err).Msg("vector index unavailable, content recall will degrade")
	} else {
		comps.VectorIndex = vecIndex
	}

	pgCatalog, err := catalog.New(ctx, catalog.Config{
		DSN:          cfg.Catalog.DSN,
		MaxConns:     cfg.Catalog.MaxConns,
		Timeout:      cfg.Catalog.Timeout,
		Breaker:      breakerSettings(cfg.Catalog.CircuitMinRequests, cfg.Catalog.CircuitFailRatio),
		MetaCacheTTL: cfg.Catalog.MetaCacheTTL,
	})
	if err != nil {
		logging.Error().Err(err).Msg("catalog unavailable, post-join metadata and durable event logging will degrade")
	}
	comps.Catalog = pgCatalog

	var contentRecall *recall.ContentRecall
	if comps.VectorIndex != nil {
		contentRecall = recall.NewContentRecall(comps.VectorIndex)
	}
	candidateRecall := recall.New(loader, contentRecall, recall.Config{
		KLatent:                     cfg.Recommend.KLatent,
		KPop:                        cfg.Recommend.KPop,
		KContent:                    cfg.Recommend.KContent,
		PopularityTailShufflePrefix: cfg.Recommend.PopularityTailShufflePrefix,
	})

	rnk := ranker.New(loader.Ranker(), cfg.Server.Environment != "production")

	var ctxReader rerank.ContextReader
	if comps.ContextStore != nil {
		ctxReader = comps.ContextStore
	}
	reranker := rerank.New(ctxReader, cfg.Recommend)

	var catalogForOrchestrator catalog.Catalog
	if comps.Catalog != nil {
		catalogForOrchestrator = comps.Catalog
	}
	comps.Orchestrator = recommend.New(candidateRecall, loader, rnk, reranker, catalogForOrchestrator, cfg.Recommend)

	comps.durableWritePool = pool.New().WithMaxGoroutines(durableWritePoolSize)
	var ctxWriter events.ContextWriter
	if comps.ContextStore != nil {
		ctxWriter = comps.ContextStore
	}
	var catalogForEvents events.CatalogReader
	if comps.Catalog != nil {
		catalogForEvents = comps.Catalog
	}
	comps.Events = events.New(ctxWriter, catalogForEvents, events.Config{
		Dispatcher: comps.durableWritePool,
	})

	return comps, nil
}

// breakerSettings builds a circuit breaker configuration from a
// collaborator's configured sample size and failure ratio, keeping the
// interval/timeout/half-open knobs at the project-wide default (§6).
func breakerSettings(minRequests uint32, failRatio float64) cbreaker.Settings {
	s := cbreaker.DefaultSettings()
	s.MinRequests = minRequests
	s.FailRatio = failRatio
	return s
}
