// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package recommend implements the Recommendation Orchestrator (§4.11):
// it runs Candidate Recall, Feature Assembly, the Ranker, and the
// Re-ranker for one request in sequence, then joins the result against
// the external catalog for the response.
//
// # Modes
//
// Homepage requests run all three recall branches, steered by the
// caller's reference items (cart/purchase/view history); product-detail
// ("similar items") requests recall only by content similarity to an
// anchor item, with a category-popularity fallback when that yields
// nothing.
//
// # Post-processing
//
// After the Re-ranker produces a deduplicated, diversified list, the
// Orchestrator fetches catalog metadata for the final ItemIds and
// applies a second FamilyId deduplication pass, because the catalog may
// expose a more authoritative FamilyId than the recall pipeline had.
package recommend
