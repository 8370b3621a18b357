// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

/*
Package config loads the relay server and watch client configuration.

# Configuration Sources

Sources are layered with koanf, later ones winning:
  - Built-in defaults (defaultConfig)
  - An optional YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml,
    /etc/hajk-presence/config.yaml, /etc/hajk-presence/config.yml
  - Environment variables listed in envMappings

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT (default: 0.0.0.0:3002)
  - HTTP_TIMEOUT, SHUTDOWN_TIMEOUT
  - ENVIRONMENT: development, staging or production
  - CORS_ORIGINS, ALLOWED_ORIGINS: comma-separated lists
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT

Hub:
  - WS_GREETING, WS_SEND_BUFFER, WS_RATE_LIMIT, WS_RATE_BURST
  - PRESENCE_SWEEP_INTERVAL (default: 60s), PRESENCE_MAX_AGE (default: 5m)

Watch client:
  - HAJK_BASE_URL, HAJK_LANGUAGE, HAJK_USER_ID, HAJK_USER_NAME, HAJK_USER_EMAIL
  - CHANNEL_BASE_DELAY (default: 1s), CHANNEL_MAX_ATTEMPTS (default: 5)
  - CHANNEL_HISTORY_SIZE, CHANNEL_DIAL_TIMEOUT, SESSION_QUEUE_SIZE

Relay:
  - NATS_ENABLED, NATS_URL, NATS_SUBJECT, NATS_INSTANCE_ID

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

Durations use Go syntax (30s, 5m). Unmapped environment variables are
ignored.

# Validation

Validate rejects out-of-range values, malformed URLs, unknown log levels
and a wildcard ALLOWED_ORIGINS in production.
*/
package config
