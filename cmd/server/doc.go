// Recall - Personalized Recommendation Serving Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package main is the composition root for the recommendation serving
core (§4.13).

It is intentionally not an HTTP server: the HTTP/JSON transport is an
external collaborator per §1's Non-goals, so main wires the
recommendation core's collaborators -- the Artifact Loader, the
Context Store Client, the Vector Index Client, the Catalog Client, each
behind its own circuit breaker -- into a *recommend.Orchestrator and an
*events.Service, and exposes both as plain Go values through a
Components struct a hosting process can embed.

# Initialization order

  1. Configuration (koanf, layered: defaults -> YAML file -> environment)
  2. Structured logging (zerolog)
  3. Artifact Loader -- fatal on failure (§6 Exit Conditions: an
     incomplete or corrupt artifact set means the core cannot serve)
  4. Context Store Client, Vector Index Client, Catalog Client --
     non-fatal on construction failure, logged and left nil so the
     process can still come up degraded
  5. Candidate Recall, Feature Assembler, Ranker, Re-ranker
  6. recommend.Orchestrator and events.Service, the latter backed by a
     bounded worker pool for its durable-write task

# Signal handling

main blocks until SIGINT or SIGTERM, then releases the components'
closers (context store, catalog pool, vector index connection) before
returning.
*/
package main
