// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package catalog is the Catalog Client (§4.12): the only collaborator
// that owns relational item metadata (FamilyId, title, category,
// rating aggregates, image) and the durable interaction log. The
// serving core treats the catalog as a read mostly dependency -- the
// Recommendation Orchestrator's post-join (§4.11) and the Event
// Fast-path's category/brand lookup (§4.10) are its only callers.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/driftcommerce/recall/internal/cache"
	"github.com/driftcommerce/recall/internal/cbreaker"
	"github.com/driftcommerce/recall/internal/metrics"
	"github.com/driftcommerce/recall/internal/types"
)

// metaCacheName labels the ItemMeta read-through cache in
// internal/metrics' CacheHits/CacheMisses vectors.
const metaCacheName = "catalog_item_meta"

// Catalog is the interface the Orchestrator and Event Fast-path depend
// on, so both can be exercised against FakeCatalog in tests without a
// real Postgres instance.
type Catalog interface {
	ItemMeta(ctx context.Context, id types.ItemId) (types.ItemMeta, error)
	ItemMetaBatch(ctx context.Context, ids []types.ItemId) (map[types.ItemId]types.ItemMeta, error)
	SimilarByCategory(ctx context.Context, category string, exclude map[types.ItemId]struct{}, limit int) ([]types.ItemId, error)
	AppendInteraction(ctx context.Context, entry types.InteractionLogEntry) error
}

// PGCatalog is the Postgres-backed Catalog implementation, wrapped in a
// circuit breaker because the Orchestrator's post-join catalog read is
// a hard dependency on the request path (§7: CatalogUnavailable is hard
// after recall has already joined, soft during event enrichment).
type PGCatalog struct {
	pool      *pgxpool.Pool
	breaker   *cbreaker.Breaker
	timeout   time.Duration
	metaCache *cache.Cache
}

// Config configures a PGCatalog.
type Config struct {
	DSN      string
	MaxConns int32
	Timeout  time.Duration
	Breaker  cbreaker.Settings
	// MetaCacheTTL enables a read-through cache in front of ItemMeta
	// when positive; zero leaves every lookup hitting Postgres.
	MetaCacheTTL time.Duration
}

// New opens a pgxpool against cfg.DSN.
func New(ctx context.Context, cfg Config) (*PGCatalog, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dsn: %w", types.ErrCatalogUnavailable, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.ConnectConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", types.ErrCatalogUnavailable, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	var metaCache *cache.Cache
	if cfg.MetaCacheTTL > 0 {
		metaCache = cache.New(cfg.MetaCacheTTL)
	}

	return &PGCatalog{
		pool:      pool,
		breaker:   cbreaker.New("catalog", cfg.Breaker),
		timeout:   timeout,
		metaCache: metaCache,
	}, nil
}

// Close releases the pool.
func (c *PGCatalog) Close() { c.pool.Close() }

const itemMetaColumns = `item_id, family_id, title, category, avg_rating, rating_count, image_url`

// ItemMeta fetches one item's fixed metadata record (§9 design note:
// dynamic catalog fields are not modeled, only this fixed set),
// consulting the read-through cache first when one is configured.
func (c *PGCatalog) ItemMeta(ctx context.Context, id types.ItemId) (types.ItemMeta, error) {
	if c.metaCache != nil {
		if cached, ok := c.metaCache.Get(string(id)); ok {
			metrics.CacheHits.WithLabelValues(metaCacheName).Inc()
			return cached.(types.ItemMeta), nil
		}
		metrics.CacheMisses.WithLabelValues(metaCacheName).Inc()
	}

	meta, err := cbreaker.Execute(c.breaker, func() (types.ItemMeta, error) {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		row := c.pool.QueryRow(cctx, `SELECT `+itemMetaColumns+` FROM items WHERE item_id = $1`, string(id))
		meta, err := scanItemMeta(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ItemMeta{}, fmt.Errorf("%w: item %s not found", types.ErrCatalogUnavailable, id)
		}
		if err != nil {
			return types.ItemMeta{}, fmt.Errorf("%w: %w", types.ErrCatalogUnavailable, err)
		}
		return meta, nil
	})
	if err != nil {
		return types.ItemMeta{}, err
	}

	if c.metaCache != nil {
		c.metaCache.Set(string(id), meta)
	}
	return meta, nil
}

// ItemMetaBatch fetches metadata for every id in ids in one round
// trip. Ids with no matching row are simply absent from the result
// map -- the Orchestrator's post-join treats a missing entry as a
// dropped candidate, not an error (§4.11).
func (c *PGCatalog) ItemMetaBatch(ctx context.Context, ids []types.ItemId) (map[types.ItemId]types.ItemMeta, error) {
	if len(ids) == 0 {
		return map[types.ItemId]types.ItemMeta{}, nil
	}

	return cbreaker.Execute(c.breaker, func() (map[types.ItemId]types.ItemMeta, error) {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		strIDs := make([]string, len(ids))
		for i, id := range ids {
			strIDs[i] = string(id)
		}

		rows, err := c.pool.Query(cctx, `SELECT `+itemMetaColumns+` FROM items WHERE item_id = ANY($1)`, strIDs)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrCatalogUnavailable, err)
		}
		defer rows.Close()

		out := make(map[types.ItemId]types.ItemMeta, len(ids))
		for rows.Next() {
			meta, err := scanItemMeta(rows)
			if err != nil {
				return nil, fmt.Errorf("%w: scan: %w", types.ErrCatalogUnavailable, err)
			}
			out[meta.ItemId] = meta
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrCatalogUnavailable, err)
		}
		return out, nil
	})
}

// SimilarByCategory returns up to limit item ids in category, excluding
// the given set, ordered by mean_rating*log(rating_count+1) descending
// -- the Product-detail fallback ranking from §4.11 used when Content
// Recall returns no candidates.
func (c *PGCatalog) SimilarByCategory(ctx context.Context, category string, exclude map[types.ItemId]struct{}, limit int) ([]types.ItemId, error) {
	return cbreaker.Execute(c.breaker, func() ([]types.ItemId, error) {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		excludeIDs := make([]string, 0, len(exclude))
		for id := range exclude {
			excludeIDs = append(excludeIDs, string(id))
		}

		rows, err := c.pool.Query(cctx, `
			SELECT item_id
			FROM items
			WHERE category = $1 AND NOT (item_id = ANY($2))
			ORDER BY avg_rating * ln(rating_count + 1) DESC
			LIMIT $3`,
			category, excludeIDs, limit,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrCatalogUnavailable, err)
		}
		defer rows.Close()

		var out []types.ItemId
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return nil, fmt.Errorf("%w: scan: %w", types.ErrCatalogUnavailable, err)
			}
			out = append(out, types.ItemId(id))
		}
		return out, rows.Err()
	})
}

// AppendInteraction durably logs one event-fastpath interaction (§4.10,
// §6 event log table: user_id/item_id/event_type/ts/metadata). Callers
// on the async path must not let its error abort the caller's request;
// that policy lives in internal/events, not here.
func (c *PGCatalog) AppendInteraction(ctx context.Context, entry types.InteractionLogEntry) error {
	_, err := cbreaker.Execute(c.breaker, func() (struct{}, error) {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		tx, err := c.pool.BeginTx(cctx, pgx.TxOptions{})
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: begin tx: %w", types.ErrCatalogUnavailable, err)
		}

		_, execErr := tx.Exec(cctx, `
			INSERT INTO interaction_events (user_id, item_id, event_type, ts, metadata)
			VALUES ($1, $2, $3, $4, $5)`,
			string(entry.UserId), string(entry.ItemId), string(entry.EventType), entry.Timestamp, entry.Metadata,
		)
		if execErr != nil {
			if rbErr := tx.Rollback(cctx); rbErr != nil {
				return struct{}{}, fmt.Errorf("%w: insert: %w (rollback also failed: %v)", types.ErrCatalogUnavailable, execErr, rbErr)
			}
			return struct{}{}, fmt.Errorf("%w: insert: %w", types.ErrCatalogUnavailable, execErr)
		}

		if err := tx.Commit(cctx); err != nil {
			return struct{}{}, fmt.Errorf("%w: commit: %w", types.ErrCatalogUnavailable, err)
		}
		return struct{}{}, nil
	})
	return err
}

// rowScanner abstracts pgx.Row and pgx.Rows, both of which expose Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItemMeta(row rowScanner) (types.ItemMeta, error) {
	var m types.ItemMeta
	var itemID, familyID string
	err := row.Scan(&itemID, &familyID, &m.Title, &m.Category, &m.AvgRating, &m.RatingCount, &m.ImageURL)
	if err != nil {
		return types.ItemMeta{}, err
	}
	m.ItemId = types.ItemId(itemID)
	m.FamilyId = types.FamilyId(familyID)
	return m, nil
}
