// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package config loads the recommendation core's configuration the way
// the rest of the project does: in-code defaults, an optional YAML file,
// then environment variable overrides, composed with koanf.
package config

import "time"

// Config is the top-level configuration for the serving core.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Context   ContextConfig   `koanf:"context"`
	Vector    VectorConfig    `koanf:"vector"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Recommend RecommendConfig `koanf:"recommend"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig holds host-process level settings.
type ServerConfig struct {
	Environment    string        `koanf:"environment"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	EventTimeout   time.Duration `koanf:"event_timeout"`
}

// ArtifactsConfig locates the offline artifacts the Artifact Loader
// reads once at startup (§6).
type ArtifactsConfig struct {
	UserFactorsPath string `koanf:"user_factors_path"`
	ItemFactorsPath string `koanf:"item_factors_path"`
	UserRowPath     string `koanf:"user_row_path"`
	RowItemPath     string `koanf:"row_item_path"`
	PopularityPath  string `koanf:"popularity_path"`
	RankerPath      string `koanf:"ranker_path"`
}

// ContextConfig configures the Context Store Client's embedded badger
// instance and TTL.
type ContextConfig struct {
	DataDir            string        `koanf:"data_dir"`
	TTL                time.Duration `koanf:"ttl"`
	RecentItemsMaxLen  int           `koanf:"recent_items_max_len"`
	CircuitMinRequests uint32        `koanf:"circuit_min_requests"`
	CircuitFailRatio   float64       `koanf:"circuit_fail_ratio"`
}

// VectorConfig configures the Vector Index Client's qdrant collection.
type VectorConfig struct {
	Addr               string        `koanf:"addr"`
	Collection         string        `koanf:"collection"`
	Timeout            time.Duration `koanf:"timeout"`
	CircuitMinRequests uint32        `koanf:"circuit_min_requests"`
	CircuitFailRatio   float64       `koanf:"circuit_fail_ratio"`
}

// CatalogConfig configures the relational catalog client.
type CatalogConfig struct {
	DSN                string        `koanf:"dsn"`
	MaxConns           int32         `koanf:"max_conns"`
	Timeout            time.Duration `koanf:"timeout"`
	CircuitMinRequests uint32        `koanf:"circuit_min_requests"`
	CircuitFailRatio   float64       `koanf:"circuit_fail_ratio"`
	// MetaCacheTTL bounds how long a single-item ItemMeta lookup is
	// read-through cached; zero disables the cache entirely.
	MetaCacheTTL time.Duration `koanf:"meta_cache_ttl"`
}

// LogConfig configures the zerolog-based logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RecommendConfig is the §6 tunable set.
type RecommendConfig struct {
	KLatent  int `koanf:"k_latent"`
	KPop     int `koanf:"k_pop"`
	KContent int `koanf:"k_content"`

	TopNRank  int `koanf:"top_n_rank"`
	TopNFinal int `koanf:"top_n_final"`

	ContentBoostHomepage      float64 `koanf:"content_boost_homepage"`
	ContentBoostProductDetail float64 `koanf:"content_boost_product_detail"`

	NormalizationMethod string         `koanf:"normalization_method"` // "min_max" | "z_score"
	FeatureWeights      FeatureWeights `koanf:"feature_weights"`

	IntentBoostRate float64 `koanf:"intent_boost_rate"`
	IntentBoostCap  float64 `koanf:"intent_boost_cap"`

	RecencyThresholds  [2]int     `koanf:"recency_thresholds"`  // {5, 10}
	RecencyMultipliers [3]float64 `koanf:"recency_multipliers"` // {0.2, 0.4, 0.6}

	DiversityThreshold   float64 `koanf:"diversity_threshold"`
	DiversityPenalty     float64 `koanf:"diversity_penalty"`
	MaxSameCategory      int     `koanf:"max_same_category"`
	CategoryLimitPenalty float64 `koanf:"category_limit_penalty"`

	LowReviewThreshold int     `koanf:"low_review_threshold"`
	LowReviewPenalty   float64 `koanf:"low_review_penalty"`

	ContextTTLSeconds int64 `koanf:"context_ttl_seconds"`

	PopularityTailShufflePrefix float64 `koanf:"popularity_tail_shuffle_prefix"` // 0.20
	DiversityMaxPasses          int     `koanf:"diversity_max_passes"`          // 3
}

// FeatureWeights are applied after normalization to dampen popularity
// dominance on small catalogs (§4.7).
type FeatureWeights struct {
	MF         float64 `koanf:"mf"`
	Popularity float64 `koanf:"popularity"`
	Rating     float64 `koanf:"rating"`
	Content    float64 `koanf:"content"`
}

// DefaultConfig returns a Config with every §6 default applied. Layer 1
// of Load; overridden by a config file, then environment
// variables.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Environment:    "development",
			RequestTimeout: 3 * time.Second,
			EventTimeout:   300 * time.Millisecond,
		},
		Artifacts: ArtifactsConfig{
			UserFactorsPath: "artifacts/user_factors.bin",
			ItemFactorsPath: "artifacts/item_factors.bin",
			UserRowPath:     "artifacts/user_row.json",
			RowItemPath:     "artifacts/row_item.json",
			PopularityPath:  "artifacts/popularity.parquet",
			RankerPath:      "artifacts/ranker.bin",
		},
		Context: ContextConfig{
			DataDir:            "/data/recall/context",
			TTL:                900 * time.Second,
			RecentItemsMaxLen:  20,
			CircuitMinRequests: 10,
			CircuitFailRatio:   0.6,
		},
		Vector: VectorConfig{
			Addr:               "127.0.0.1:6334",
			Collection:         "item_embeddings",
			Timeout:            500 * time.Millisecond,
			CircuitMinRequests: 10,
			CircuitFailRatio:   0.6,
		},
		Catalog: CatalogConfig{
			DSN:                "postgres://localhost:5432/recall?sslmode=disable",
			MaxConns:           10,
			Timeout:            500 * time.Millisecond,
			CircuitMinRequests: 10,
			CircuitFailRatio:   0.6,
			MetaCacheTTL:       30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Recommend: RecommendConfig{
			KLatent:                   100,
			KPop:                      50,
			KContent:                  50,
			TopNRank:                  50,
			TopNFinal:                 20,
			ContentBoostHomepage:      1.5,
			ContentBoostProductDetail: 2.5,
			NormalizationMethod:       "min_max",
			FeatureWeights: FeatureWeights{
				MF:         1.0,
				Popularity: 0.8,
				Rating:     1.0,
				Content:    1.0,
			},
			IntentBoostRate:             0.08,
			IntentBoostCap:              0.40,
			RecencyThresholds:           [2]int{5, 10},
			RecencyMultipliers:          [3]float64{0.2, 0.4, 0.6},
			DiversityThreshold:          0.25,
			DiversityPenalty:            0.7,
			MaxSameCategory:             4,
			CategoryLimitPenalty:        0.5,
			LowReviewThreshold:          5,
			LowReviewPenalty:            0.9,
			ContextTTLSeconds:           900,
			PopularityTailShufflePrefix: 0.20,
			DiversityMaxPasses:          3,
		},
	}
}

// Clone returns a deep copy of cfg; RecommendConfig fields are all value
// types so a shallow struct copy is already a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
