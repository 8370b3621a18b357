// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

// Package logging is the zerolog setup shared by every hajk-presence
// component.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json", Timestamp: true})
//	logging.Info().Str("addr", ":3002").Msg("presence server listening")
//
// Components keep a child logger tagged with their name:
//
//	logger := logging.WithComponent("presence-hub")
//	logger.Warn().Uint64("client_id", id).Msg("client send buffer full")
//
// HTTP handlers log through Ctx so entries carry the request id set by the
// API middleware.
//
// # Configuration
//
//	LOG_LEVEL   trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  json, console (default: json)
//	LOG_CALLER  true, false (default: false)
//
// # Suture
//
// NewSlogLogger adapts zerolog to slog for sutureslog, so supervisor
// restarts and backoff show up in the same stream.
//
// # Redaction
//
// SanitizeEmail and SanitizeURL keep admin addresses and bus credentials
// out of the logs.
package logging
