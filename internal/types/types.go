// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package types holds the domain value types shared across the
// recommendation core: identifiers, the candidate/ranked/re-ranked item
// shapes that flow through the pipeline, and the fixed catalog/context
// records the core consumes from its external collaborators.
package types

import "time"

// ItemId is an opaque, globally unique identifier for a catalog item.
type ItemId string

// FamilyId identifies a product family; variants of the same product
// share one FamilyId. An item with no known family is its own FamilyId.
type FamilyId string

// UserId is an opaque, session-stable identifier for a user.
type UserId string

// EventKind classifies a user event accepted by the Event Fast-path.
type EventKind string

const (
	EventView       EventKind = "view"
	EventClick      EventKind = "click"
	EventAddToCart  EventKind = "add_to_cart"
	EventPurchase   EventKind = "purchase"
	EventRate       EventKind = "rate"
)

// Valid reports whether k is one of the recognized event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventView, EventClick, EventAddToCart, EventPurchase, EventRate:
		return true
	default:
		return false
	}
}

// RawSignals carries the subset of catalog-side per-item attributes the
// core actually consumes. It replaces the dynamic raw_signals/metadata
// maps of the source system with a fixed record.
type RawSignals struct {
	FamilyId    FamilyId
	Category    string
	AvgRating   float64
	RatingCount int
}

// Candidate is an intermediate recall result: an ItemId proposed by one
// or more recall branches, prior to feature assembly and ranking.
type Candidate struct {
	ItemId       ItemId
	LatentScore  float64
	HasLatent    bool
	ContentScore float64
	HasContent   bool
	Raw          *RawSignals
}

// RankedItem is a candidate after feature assembly and ranking.
type RankedItem struct {
	ItemId      ItemId
	Score       float64 // raw ranker score in (0, 1)
	Rank        int     // 1-based
	Category    string
	RatingCount int
	HasRating   bool
	Raw         *RawSignals
}

// ReRankedItem is a RankedItem after rule-based re-ranking.
type ReRankedItem struct {
	ItemId        ItemId
	RawScore      float64
	AdjustedScore float64
	Rank          int // 1-based, final position
	Rules         []string
	Category      string
	FamilyId      FamilyId
}

// PopularityEntry is one row of the popularity table keyed by ItemId.
type PopularityEntry struct {
	PopularityScore  float64 // in [0, 1]
	RatingScore      float64 // in [0, 1]
	InteractionCount int64
	MeanRating       float64
}

// RankerWeights is the trained linear ranker: coefficients in the pinned
// feature order (mf, popularity, rating, content) plus an intercept.
type RankerWeights struct {
	MF         float64
	Popularity float64
	Rating     float64
	Content    float64
	Intercept  float64
}

// FeatureOrder is the pinned order the Feature Assembler and Ranker
// agree on; it must never be reordered once a ranker.bin is trained
// against it.
var FeatureOrder = [4]string{"mf_score", "popularity_score", "rating_score", "content_score"}

// ShortTermContext is the per-user short-term context read by the
// Re-ranker and written by the Event Fast-path.
type ShortTermContext struct {
	RecentItems      []ItemId       // newest first, length <= 20
	RecentCategories map[string]int // category -> positive counter
	LastActiveUnix   int64
}

// ItemMeta is the fixed catalog record the core reads per ItemId; it
// deliberately excludes any dynamic metadata map (§9 design note).
type ItemMeta struct {
	ItemId      ItemId
	FamilyId    FamilyId
	Title       string
	Category    string
	AvgRating   float64
	RatingCount int
	ImageURL    string
}

// InteractionLogEntry is one durable-log row written by the Event
// Fast-path's asynchronous task.
type InteractionLogEntry struct {
	UserId    UserId
	ItemId    ItemId
	EventType EventKind
	Timestamp time.Time
	Metadata  map[string]any
}

// RecommendMode selects how the Orchestrator wires Content Recall.
type RecommendMode int

const (
	// ModeHomepage runs all three recall branches, steering Content
	// Recall with the caller's reference items (cart/purchase/view
	// history) when supplied.
	ModeHomepage RecommendMode = iota
	// ModeProductDetail recalls only by content similarity to an
	// anchor item ("similar items"), with a category fallback.
	ModeProductDetail
)

func (m RecommendMode) String() string {
	switch m {
	case ModeProductDetail:
		return "product_detail"
	default:
		return "homepage"
	}
}

// Request is a recommendation request accepted by the Orchestrator.
type Request struct {
	RequestId     string
	UserId        UserId
	Mode          RecommendMode
	AnchorItem    ItemId   // used when Mode == ModeProductDetail
	References    []ItemId // user history used to steer Content Recall
	ExcludeItems  []ItemId // typically recent_items
	TopN          int      // defaults to config TopNFinal if zero
	ContentOnly   bool
}

// Response is the Orchestrator's top-level result.
type Response struct {
	Items    []ScoredItem
	Metadata ResponseMetadata
}

// ScoredItem joins a ReRankedItem with its catalog metadata.
type ScoredItem struct {
	Item          ItemMeta
	RawScore      float64
	AdjustedScore float64
	Rank          int
	Rules         []string
}

// ResponseMetadata carries diagnostic information about one request.
type ResponseMetadata struct {
	RequestId       string
	UserId          UserId
	Mode            string
	TotalCandidates int
	LatencyMS       int64
	Degraded        []string // names of components that soft-degraded
}
