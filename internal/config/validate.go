// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package config

import "fmt"

// Validate checks the recommend-relevant tunables for obviously invalid
// values. It does not attempt to validate DSNs or addresses — those
// fail naturally when the corresponding client dials.
func (c *Config) Validate() error {
	r := c.Recommend

	if r.KLatent < 0 || r.KPop < 0 || r.KContent < 0 {
		return fmt.Errorf("config: recall cut sizes must be non-negative")
	}
	if r.TopNRank <= 0 {
		return fmt.Errorf("config: top_n_rank must be positive")
	}
	if r.TopNFinal <= 0 {
		return fmt.Errorf("config: top_n_final must be positive")
	}
	if r.TopNFinal > r.TopNRank {
		return fmt.Errorf("config: top_n_final (%d) must not exceed top_n_rank (%d)", r.TopNFinal, r.TopNRank)
	}

	switch r.NormalizationMethod {
	case "min_max", "z_score":
	default:
		return fmt.Errorf("config: unknown normalization_method %q", r.NormalizationMethod)
	}

	if r.IntentBoostCap < 0 {
		return fmt.Errorf("config: intent_boost_cap must be non-negative")
	}
	if r.DiversityThreshold <= 0 || r.DiversityThreshold > 1 {
		return fmt.Errorf("config: diversity_threshold must be in (0, 1]")
	}
	if r.MaxSameCategory <= 0 {
		return fmt.Errorf("config: max_same_category must be positive")
	}
	if r.LowReviewThreshold < 0 {
		return fmt.Errorf("config: low_review_threshold must be non-negative")
	}
	if r.ContextTTLSeconds <= 0 {
		return fmt.Errorf("config: context_ttl_seconds must be positive")
	}
	if r.PopularityTailShufflePrefix < 0 || r.PopularityTailShufflePrefix > 1 {
		return fmt.Errorf("config: popularity_tail_shuffle_prefix must be in [0, 1]")
	}
	if r.DiversityMaxPasses <= 0 {
		return fmt.Errorf("config: diversity_max_passes must be positive")
	}

	if c.Context.RecentItemsMaxLen <= 0 {
		return fmt.Errorf("config: context.recent_items_max_len must be positive")
	}

	return nil
}
