// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package types

import "errors"

// Sentinel errors for the soft/hard error taxonomy of the serving core.
// Soft errors are recovered at the component boundary (logged, degrade);
// hard errors propagate to the request handler.
var (
	// ErrLoaderFailed is fatal at startup only: a missing artifact file,
	// a dimension mismatch between U/V and their id maps, or a corrupt
	// id map.
	ErrLoaderFailed = errors.New("artifact loader: failed to load artifacts")

	// ErrArtifactMissing is soft: an item absent from U/V or the
	// popularity table. Callers treat the corresponding feature as zero.
	ErrArtifactMissing = errors.New("artifact loader: item not present in artifact")

	// ErrContextStoreUnavailable is soft: reads return empty, writes are
	// dropped with a logged warning.
	ErrContextStoreUnavailable = errors.New("context store: unavailable")

	// ErrVectorIndexUnavailable is soft: reads return empty; Content
	// Recall contributes no items.
	ErrVectorIndexUnavailable = errors.New("vector index: unavailable")

	// ErrCatalogUnavailable is hard for the Orchestrator's post-join,
	// soft for the Event Fast-path's enrichment lookup.
	ErrCatalogUnavailable = errors.New("catalog: unavailable")

	// ErrModelInference is unexpected; the Ranker falls back to a mock
	// popularity-flavored scorer.
	ErrModelInference = errors.New("ranker: model inference failed")

	// ErrTimeout is per-call; recall branches return empty and the
	// re-ranker skips the rules that depend on the call.
	ErrTimeout = errors.New("operation timed out")
)
