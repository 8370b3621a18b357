// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

/*
Package main is the entry point for the Hajk presence relay server.

The relay accepts admin console connections on /api/v3/websockets, keeps the
authoritative presence registry and broadcasts every change to all
connected consoles, so each admin can see who else is editing the same map,
layer, group or tool.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("hajk-presence")
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Presence Hub (registry, sweep, broadcast)
	│   └── Presence Relay (optional, NATS_ENABLED=true)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (websocket, presence, health, metrics)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Presence Hub: registry and per-client rate limiting
 4. Relay: NATS connector, dialed by the supervisor on every start
 5. HTTP Server: Chi router with CORS, rate limiting and Prometheus
 6. Supervisor Tree: Suture v4 process supervision

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
  - Environment variables
  - Config file (config.yaml, or CONFIG_PATH)
  - Built-in defaults

Frequently used variables:
  - HTTP_PORT: listen port (default: 3002)
  - ALLOWED_ORIGINS: origins accepted on websocket upgrade
  - PRESENCE_SWEEP_INTERVAL, PRESENCE_MAX_AGE: registry housekeeping
  - NATS_ENABLED, NATS_URL, NATS_SUBJECT: fan-out between replicas
  - LOG_LEVEL, LOG_FORMAT: logging

# Signal Handling

The server shuts down gracefully on SIGINT and SIGTERM:
  - Stops accepting new connections
  - Closes every websocket with a going-away frame
  - Detaches the relay and drains the NATS connection
  - Waits for in-flight requests (SHUTDOWN_TIMEOUT, default 10s)

# Example Usage

Single instance:

	export ALLOWED_ORIGINS=https://admin.example.com
	./hajk-presence-server

Two replicas behind a load balancer:

	export NATS_ENABLED=true
	export NATS_URL=nats://nats:4222
	./hajk-presence-server
*/
package main
