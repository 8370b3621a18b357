// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	gorilla "github.com/gorilla/websocket"

	"github.com/hajkmap/hajk-presence/internal/logging"
	"github.com/hajkmap/hajk-presence/internal/presence"
	"github.com/hajkmap/hajk-presence/internal/websocket"
)

// registerTimeout bounds how long an upgraded connection waits for the hub
// loop to accept it.
const registerTimeout = 5 * time.Second

// RelayStatus reports the NATS relay state for /health.
type RelayStatus interface {
	IsConnected() bool
}

// HandlerConfig configures the presence HTTP handlers.
type HandlerConfig struct {
	// AllowedOrigins lists websocket origins. Empty or "*" allows all.
	AllowedOrigins []string
	Version        string
	// Relay is nil when the NATS relay is disabled.
	Relay RelayStatus
}

// Handler serves the presence endpoints on top of a running hub.
type Handler struct {
	hub       *websocket.Hub
	config    HandlerConfig
	upgrader  gorilla.Upgrader
	startTime time.Time
}

// NewHandler creates the handlers for hub.
func NewHandler(hub *websocket.Hub, config HandlerConfig) *Handler {
	h := &Handler{
		hub:       hub,
		config:    config,
		startTime: time.Now(),
	}
	h.upgrader = gorilla.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// checkWebSocketOrigin validates websocket connection origins. Browsers
// always send Origin, so a missing header means a non-browser client.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.config.AllowedOrigins) == 0 {
		return true
	}

	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}

	logging.Ctx(r.Context()).Warn().
		Str("origin", sanitizeLogValue(origin)).
		Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the request and hands the connection to the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Presence hub unavailable", nil)
		return
	}

	// Upgrade writes its own error response.
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn)
	select {
	case h.hub.Register <- client:
		client.Start()
	case <-h.hub.Done():
		logging.Ctx(r.Context()).Warn().Msg("Presence hub stopped, rejecting connection")
		_ = conn.Close()
	case <-time.After(registerTimeout):
		logging.Ctx(r.Context()).Warn().Msg("Presence hub did not accept connection")
		_ = conn.Close()
	}
}

// PresenceResponse is the body of GET /api/v3/presence.
type PresenceResponse struct {
	Admins []presence.Presence `json:"admins"`
}

// Presence lists every presence the hub knows about.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, PresenceResponse{Admins: h.hub.Presences()})
}

// BadgeResponse is the body of GET /api/v3/presence/{resourceType}/{resourceId}.
type BadgeResponse struct {
	ResourceType presence.ResourceType `json:"resourceType"`
	ResourceID   string                `json:"resourceId"`
	Count        int                   `json:"count"`
	Names        []string              `json:"names"`
	Admins       []presence.Presence   `json:"admins"`
}

var errUnknownResourceType = errors.New("unknown resource type")

// PresenceBadge returns the badge projection for one resource.
func (h *Handler) PresenceBadge(w http.ResponseWriter, r *http.Request) {
	rt := presence.ResourceType(chi.URLParam(r, "resourceType"))
	id := chi.URLParam(r, "resourceId")
	if !rt.Valid() {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest,
			"resourceType must be one of: map, layer, group, tool, service", errUnknownResourceType)
		return
	}
	if strings.TrimSpace(id) == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "resourceId is required", nil)
		return
	}

	reader := snapshotReader(h.hub.Presences())
	admins := presence.OthersOnResource(reader, rt, id)
	if admins == nil {
		admins = []presence.Presence{}
	}
	respondJSON(w, http.StatusOK, BadgeResponse{
		ResourceType: rt,
		ResourceID:   id,
		Count:        presence.BadgeCount(reader, rt, id),
		Names:        presence.BadgeNames(reader, rt, id),
		Admins:       admins,
	})
}

// snapshotReader answers badge queries from a hub snapshot.
type snapshotReader []presence.Presence

func (s snapshotReader) Query(rt presence.ResourceType, id string) []presence.Presence {
	var out []presence.Presence
	for _, p := range s {
		if p.Matches(rt, id) {
			out = append(out, p)
		}
	}
	return out
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Clients       int     `json:"clients"`
	Presences     int     `json:"presences"`
	Relay         string  `json:"relay"`
}

// Health reports liveness. A disconnected relay degrades the status but
// keeps 200 since local editing awareness still works.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       h.config.Version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Relay:         "disabled",
	}
	if h.hub != nil {
		resp.Clients = h.hub.GetClientCount()
		resp.Presences = len(h.hub.Presences())
	}
	if h.config.Relay != nil {
		resp.Relay = "connected"
		if !h.config.Relay.IsConnected() {
			resp.Relay = "disconnected"
			resp.Status = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
