// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package logging provides centralized zerolog-based structured logging
// for the recommendation core.
//
// Pipeline stages log at warn when a soft error degrades a component
// (§7). Logging never alters pipeline outputs.
//
// # Quick Start
//
//	import "github.com/driftcommerce/recall/internal/logging"
//
//	// Initialize at application startup
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	// Log messages with structured fields
//	logging.Debug().Int("candidates", len(cands)).Msg("recall branch joined")
//	logging.Error().Err(err).Msg("vector index unavailable")
//
//	// Context-aware logging (carries request_id/correlation_id)
//	logging.Ctx(ctx).Info().Str("user_id", string(userID)).Msg("request served")
//
// # Configuration
//
// Level, format, caller and timestamp settings come from the Config
// passed to Init; the package reads no LOG_* environment variables. The
// serving binary fills Level and Format from the service config's
// log.level and log.format (RECALL_LOG__LEVEL, RECALL_LOG__FORMAT).
// Before Init runs, the logger uses DefaultConfig, except that
// FUZZ_MODE=1 raises the level to fatal.
//
// # Structured Logging Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// # Component Loggers
//
// Create component-specific loggers with default fields:
//
//	rerankLogger := logging.With().Str("component", "rerank").Logger()
//	rerankLogger.Debug().Int("passes", n).Msg("diversity pass converged")
//
// # Context-Aware Logging
//
// Propagate request context through logging:
//
//	logger := logging.Ctx(ctx)
//	logger.Info().Msg("recommendation served")
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger
// is protected by sync.RWMutex for configuration changes.
package logging
