// Recall - Personalized Recommendation Serving Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/driftcommerce/recall/internal/config"
	"github.com/driftcommerce/recall/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	logging.Info().Str("environment", cfg.Server.Environment).Msg("starting recommendation serving core")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		// The Artifact Loader is the only hard dependency (§6 Exit
		// Conditions): a missing or corrupt offline artifact set means
		// the core has nothing to rank with.
		logging.Fatal().Err(err).Msg("failed to load artifacts, exiting")
	}
	defer comps.Close()

	logging.Info().
		Bool("context_store", comps.ContextStore != nil).
		Bool("vector_index", comps.VectorIndex != nil).
		Bool("catalog", comps.Catalog != nil).
		Msg("recommendation core ready; orchestrator and event fast-path exposed to the hosting process")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	cancel()
}
