// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package contextstore holds the short-term per-user context (recently
// viewed items, recently touched categories, last-active timestamp)
// that the Re-ranker reads back within a request (§4.2, §3). It is a
// TTL-bound key/value store, functionally the Redis store the original
// system used, reimplemented here over an embedded BadgerDB instance so
// the serving core has no required network dependency for this data.
package contextstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/driftcommerce/recall/internal/cbreaker"
	"github.com/driftcommerce/recall/internal/types"
)

// Key prefixes mirror the original system's Redis key schema
// (user:<UserId>:recent_items / :recent_categories / :last_active, §6).
const (
	recentItemsPrefix      = "user:"
	recentItemsSuffix      = ":recent_items"
	recentCategoriesSuffix = ":recent_categories"
	lastActiveSuffix       = ":last_active"
)

// Store is the Context Store Client (§4.2), wrapped in a circuit
// breaker because its operations are on the request's blocking path.
type Store struct {
	db      *badger.DB
	breaker *cbreaker.Breaker
	ttl     time.Duration
	maxLen  int
}

// Config configures a Store.
type Config struct {
	TTL               time.Duration
	RecentItemsMaxLen int
	Breaker           cbreaker.Settings
}

// New opens (or creates) a BadgerDB instance at dataDir and wraps it in
// a Store.
func New(dataDir string, cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(dataDir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %w", types.ErrContextStoreUnavailable, err)
	}
	if cfg.RecentItemsMaxLen <= 0 {
		cfg.RecentItemsMaxLen = 20
	}
	return &Store{
		db:      db,
		breaker: cbreaker.New("context_store", cfg.Breaker),
		ttl:     cfg.TTL,
		maxLen:  cfg.RecentItemsMaxLen,
	}, nil
}

// Close releases the underlying BadgerDB handle.
func (s *Store) Close() error { return s.db.Close() }

// TouchRecent records one interaction with itemID for userID: it
// pushes itemID to the front of recent_items (trimmed to maxLen),
// increments category's count in recent_categories (if category is
// non-empty), and sets last_active to now -- all under the configured
// TTL, refreshed on every call (§4.2, mirrors
// redis_context_service.py's update_realtime_context).
func (s *Store) TouchRecent(ctx context.Context, userID types.UserId, itemID types.ItemId, category string) error {
	_, err := cbreaker.Execute(s.breaker, func() (struct{}, error) {
		return struct{}{}, s.touchRecent(userID, itemID, category)
	})
	return err
}

func (s *Store) touchRecent(userID types.UserId, itemID types.ItemId, category string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		items, err := getRecentItemsTxn(txn, userID)
		if err != nil {
			items = nil
		}
		items = pushFront(items, itemID, s.maxLen)
		if err := setJSONTxn(txn, itemsKey(userID), items, s.ttl); err != nil {
			return err
		}

		if category != "" {
			cats, err := getRecentCategoriesTxn(txn, userID)
			if err != nil {
				cats = nil
			}
			if cats == nil {
				cats = map[string]int{}
			}
			cats[category]++
			if err := setJSONTxn(txn, categoriesKey(userID), cats, s.ttl); err != nil {
				return err
			}
		}

		entry := badger.NewEntry(lastActiveKey(userID), []byte(strconv.FormatInt(time.Now().Unix(), 10))).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}

// GetRecentItems returns the user's recent items, newest first. A
// missing or expired key returns an empty slice, not an error (§3:
// short-term context is advisory, never required).
func (s *Store) GetRecentItems(ctx context.Context, userID types.UserId) ([]types.ItemId, error) {
	return cbreaker.Execute(s.breaker, func() ([]types.ItemId, error) {
		var items []types.ItemId
		err := s.db.View(func(txn *badger.Txn) error {
			v, err := getRecentItemsTxn(txn, userID)
			if err != nil {
				return err
			}
			items = v
			return nil
		})
		if items == nil {
			items = []types.ItemId{}
		}
		return items, err
	})
}

// GetRecentCategories returns the user's recent_categories hash,
// category name to touch count. A missing or expired key returns an
// empty map, not an error.
func (s *Store) GetRecentCategories(ctx context.Context, userID types.UserId) (map[string]int, error) {
	return cbreaker.Execute(s.breaker, func() (map[string]int, error) {
		var cats map[string]int
		err := s.db.View(func(txn *badger.Txn) error {
			v, err := getRecentCategoriesTxn(txn, userID)
			if err != nil {
				return err
			}
			cats = v
			return nil
		})
		if cats == nil {
			cats = map[string]int{}
		}
		return cats, err
	})
}

// GetLastActive returns the user's last_active unix-second timestamp,
// and false if the key is missing or expired.
func (s *Store) GetLastActive(ctx context.Context, userID types.UserId) (int64, bool, error) {
	type result struct {
		ts int64
		ok bool
	}
	r, err := cbreaker.Execute(s.breaker, func() (result, error) {
		var res result
		err := s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(lastActiveKey(userID))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				ts, err := strconv.ParseInt(string(val), 10, 64)
				if err != nil {
					return err
				}
				res.ts, res.ok = ts, true
				return nil
			})
		})
		return res, err
	})
	return r.ts, r.ok, err
}

// GetShortTermContext assembles the full ShortTermContext in one call,
// the shape the Re-ranker (§4.9) actually consumes.
func (s *Store) GetShortTermContext(ctx context.Context, userID types.UserId) (types.ShortTermContext, error) {
	items, err := s.GetRecentItems(ctx, userID)
	if err != nil {
		return types.ShortTermContext{}, err
	}
	cats, err := s.GetRecentCategories(ctx, userID)
	if err != nil {
		return types.ShortTermContext{}, err
	}
	lastActive, _, err := s.GetLastActive(ctx, userID)
	if err != nil {
		return types.ShortTermContext{}, err
	}
	return types.ShortTermContext{
		RecentItems:      items,
		RecentCategories: cats,
		LastActiveUnix:   lastActive,
	}, nil
}

func itemsKey(userID types.UserId) []byte {
	return []byte(recentItemsPrefix + string(userID) + recentItemsSuffix)
}

func categoriesKey(userID types.UserId) []byte {
	return []byte(recentItemsPrefix + string(userID) + recentCategoriesSuffix)
}

func lastActiveKey(userID types.UserId) []byte {
	return []byte(recentItemsPrefix + string(userID) + lastActiveSuffix)
}

func getRecentItemsTxn(txn *badger.Txn, userID types.UserId) ([]types.ItemId, error) {
	var items []types.ItemId
	item, err := txn.Get(itemsKey(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &items)
	})
	return items, err
}

func getRecentCategoriesTxn(txn *badger.Txn, userID types.UserId) (map[string]int, error) {
	var cats map[string]int
	item, err := txn.Get(categoriesKey(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &cats)
	})
	return cats, err
}

func setJSONTxn(txn *badger.Txn, key []byte, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	entry := badger.NewEntry(key, data).WithTTL(ttl)
	return txn.SetEntry(entry)
}

// pushFront pushes itemID to the front of items and trims the
// result to maxLen, mirroring the original's LPUSH + LTRIM(0,
// maxLen-1) exactly: a repeated view of the same item is pushed again
// rather than deduplicated, so it can occupy more than one recency
// position (§8 P5 Recency Monotonicity is defined over list position,
// not distinct items).
func pushFront(items []types.ItemId, itemID types.ItemId, maxLen int) []types.ItemId {
	out := make([]types.ItemId, 0, maxLen)
	out = append(out, itemID)
	out = append(out, items...)
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}
