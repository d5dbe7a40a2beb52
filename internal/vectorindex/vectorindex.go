// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package vectorindex is the Vector Index Client (§4.3): a thin,
// circuit-breaker-wrapped facade over a Qdrant collection holding one
// L2-normalized dense text embedding per item, queried by cosine
// distance. Content Recall (§4.4) is the only caller.
package vectorindex

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/big"
	"net"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/driftcommerce/recall/internal/cbreaker"
	"github.com/driftcommerce/recall/internal/types"
)

// payloadItemIDKey and payloadTypeKey name the payload fields stored on
// every point (§6: `{"item_id":<string>,"type":"item"}`).
const (
	payloadItemIDKey = "item_id"
	payloadTypeKey   = "type"
	payloadTypeValue = "item"
)

// Neighbor is one result of a k-nearest-neighbors query.
type Neighbor struct {
	ItemId types.ItemId
	Score  float32 // cosine similarity, [-1, 1]
}

// Index is the Vector Index Client.
type Index struct {
	client     *qdrant.Client
	collection string
	breaker    *cbreaker.Breaker
	timeout    time.Duration
}

// Config configures an Index.
type Config struct {
	Addr       string
	Collection string
	Timeout    time.Duration
	UseTLS     bool
	Breaker    cbreaker.Settings
}

// New dials the Qdrant gRPC endpoint at cfg.Addr and returns an Index
// bound to cfg.Collection. The collection itself is assumed already
// populated by an offline embedding job (§1 non-goal: no training/
// ingestion here).
func New(cfg Config) (*Index, error) {
	host, port, err := splitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrVectorIndexUnavailable, err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %w", types.ErrVectorIndexUnavailable, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &Index{
		client:     client,
		collection: cfg.Collection,
		breaker:    cbreaker.New("vector_index", cfg.Breaker),
		timeout:    timeout,
	}, nil
}

// Close releases the underlying gRPC connection.
func (ix *Index) Close() error { return ix.client.Close() }

// GetVector fetches the stored embedding for itemID. Ok is false if
// the item has no point in the collection (content-cold item, §4.4
// mode (b) callers must skip it, not fail the request).
func (ix *Index) GetVector(ctx context.Context, itemID types.ItemId) (vec []float32, ok bool, err error) {
	type result struct {
		vec []float32
		ok  bool
	}
	r, err := cbreaker.Execute(ix.breaker, func() (result, error) {
		cctx, cancel := context.WithTimeout(ctx, ix.timeout)
		defer cancel()

		points, err := ix.client.Get(cctx, &qdrant.GetPoints{
			CollectionName: ix.collection,
			Ids:            []*qdrant.PointId{pointID(itemID)},
			WithVectors:    qdrant.NewWithVectorsEnable(true),
		})
		if err != nil {
			return result{}, fmt.Errorf("%w: get: %w", types.ErrVectorIndexUnavailable, err)
		}
		if len(points) == 0 {
			return result{}, nil
		}
		v := points[0].GetVectors().GetVector().GetData()
		return result{vec: v, ok: true}, nil
	})
	return r.vec, r.ok, err
}

// KNearest returns the top k items by cosine similarity to the query
// vector, excluding itemID when non-empty (self-exclusion for the
// anchor item). The query vector is assumed L2-normalized by the
// caller (§3 invariant); Content Recall passes vectors fetched with
// GetVector, which the collection stores L2-normalized.
func (ix *Index) KNearest(ctx context.Context, query []float32, k int, exclude types.ItemId) ([]Neighbor, error) {
	return cbreaker.Execute(ix.breaker, func() ([]Neighbor, error) {
		cctx, cancel := context.WithTimeout(ctx, ix.timeout)
		defer cancel()

		req := &qdrant.QueryPoints{
			CollectionName: ix.collection,
			Query:          qdrant.NewQueryDense(query),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayloadInclude(payloadItemIDKey),
		}
		if exclude != "" {
			req.Filter = &qdrant.Filter{
				MustNot: []*qdrant.Condition{
					qdrant.NewMatch(payloadItemIDKey, string(exclude)),
				},
			}
		}

		resp, err := ix.client.Query(cctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: query: %w", types.ErrVectorIndexUnavailable, err)
		}

		out := make([]Neighbor, 0, len(resp))
		for _, p := range resp {
			itemID := itemIDFromPayload(p.GetPayload())
			if itemID == "" {
				continue
			}
			out = append(out, Neighbor{ItemId: itemID, Score: p.GetScore()})
		}
		return out, nil
	})
}

func itemIDFromPayload(payload map[string]*qdrant.Value) types.ItemId {
	v, ok := payload[payloadItemIDKey]
	if !ok {
		return ""
	}
	return types.ItemId(v.GetStringValue())
}

// pointID derives a Qdrant point ID from itemID using the first 16 hex
// characters of its MD5 digest, reduced mod 2^63 -- the same scheme
// qdrant_manager.py uses, so a collection built offline by that
// pipeline is addressable by this client without re-upserting (§6).
func pointID(itemID types.ItemId) *qdrant.PointId {
	return qdrant.NewIDNum(itemIDToUint64(itemID))
}

func itemIDToUint64(itemID types.ItemId) uint64 {
	sum := md5.Sum([]byte(itemID))
	hexDigest := hex.EncodeToString(sum[:])[:16]
	n := new(big.Int)
	n.SetString(hexDigest, 16)

	mod := new(big.Int).Lsh(big.NewInt(1), 63) // 2^63
	n.Mod(n, mod)
	return n.Uint64()
}

// splitHostPort parses a "host:port" address into Qdrant's separate
// Host/Port config fields.
func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid vector index address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid vector index port %q: %w", portStr, err)
	}
	return host, port, nil
}
