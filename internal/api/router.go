// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hajkmap/hajk-presence/internal/middleware"
	"github.com/hajkmap/hajk-presence/internal/session"
)

// NewRouter wires the presence routes.
func NewRouter(h *Handler, mw *ChiMiddleware) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	r := chi.NewRouter()

	// Applied to all routes in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed", nil)
	})

	r.With(middleware.PrometheusMetrics).Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The upgrade route skips the metrics and header middleware: the hub
	// instruments its own traffic and the connection is hijacked.
	r.With(mw.RateLimit()).Get(session.EndpointPath, h.WebSocket)

	r.Route("/api/v3/presence", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.Get("/", h.Presence)
		r.Get("/{resourceType}/{resourceId}", h.PresenceBadge)
	})

	return r
}
