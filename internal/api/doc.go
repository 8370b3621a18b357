// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

/*
Package api is the HTTP surface of the presence relay, routed with chi.

Routes:

	GET /api/v3/websockets                                upgrade to the presence channel
	GET /api/v3/presence                                  {"admins": Presence[]}
	GET /api/v3/presence/{resourceType}/{resourceId}      badge for one resource
	GET /health                                           liveness and hub counters
	GET /metrics                                          Prometheus exposition

Middleware, outermost first: request id, real ip, panic recovery, CORS
(go-chi/cors), then per group rate limiting (go-chi/httprate), security
headers and request metrics.

Websocket origins are checked against the configured allow list. Requests
without an Origin header come from non-browser clients such as the watch
command and are accepted.

Errors use a small envelope:

	{"success": false, "error": {"code": "BAD_REQUEST", "message": "...", "request_id": "..."}}
*/
package api
