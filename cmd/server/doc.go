// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

// Command server runs the Signalcart interaction and recommendation service.
//
// # Startup
//
// Components are built in dependency order:
//
//  1. Configuration (koanf: defaults, config.yaml, environment)
//  2. Interaction log (BadgerDB) and model registry (artifact directory)
//  3. Sales catalog (DuckDB) and event bus (watermill over NATS or an
//     in-process channel), each optional
//  4. Recorder, exporter and training orchestrator
//  5. Recommendation server with its fallback chain
//  6. HTTP router, websocket feed and the supervisor tree
//
// # Configuration
//
// Settings load from built-in defaults, then a YAML file (CONFIG_PATH, or
// config.yaml in the working directory), then environment variables. Common
// variables:
//
//	HTTP_PORT=8080
//	DATA_DIR=/data
//	AUTH_MODE=jwt JWT_SECRET=...
//	TRAINING_INTERVAL=1h
//	EVENTS_BACKEND=nats NATS_EMBEDDED=true
//	LOG_LEVEL=info LOG_FORMAT=json
//
// # Shutdown
//
// SIGINT or SIGTERM stops the supervisor tree, which drains the HTTP server
// and background services. The orchestrator, bus, catalog and log are then
// closed in reverse order of construction.
package main
