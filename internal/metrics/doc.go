// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

/*
Package metrics provides Prometheus metrics for the presence service.

# Overview

The package provides metrics for:
  - Client channel state, reconnect attempts and decoded message types
  - Presence registry sizes and stale evictions (client and relay server)
  - Join/leave notifications emitted by the session controller
  - Relay hub connections, inbound/outbound traffic and rejections
  - HTTP API latency
  - NATS cross-instance relay traffic

# Metrics Endpoint

The relay server exposes metrics at /metrics in Prometheus text format:

	curl http://localhost:3008/metrics

All collectors are registered with the default registry through promauto,
so importing the package is enough to make them visible.

# Usage

	metrics.SetChannelState(int(state))
	metrics.RecordHubReceived("presence-update")
	metrics.RecordAPIRequest("GET", "/api/v3/presence", "200", elapsed)
*/
package metrics
