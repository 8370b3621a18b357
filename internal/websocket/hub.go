// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package websocket

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hajkmap/hajk-presence/internal/clock"
	"github.com/hajkmap/hajk-presence/internal/logging"
	"github.com/hajkmap/hajk-presence/internal/metrics"
	"github.com/hajkmap/hajk-presence/internal/presence"
	"github.com/hajkmap/hajk-presence/internal/validation"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// DefaultGreeting is the plain-text frame sent to every new connection.
const DefaultGreeting = "Welcome to Hajk WebSocket server"

// Rejection reasons, used as metric labels.
const (
	rejectRateLimited   = "rate_limited"
	rejectInvalid       = "invalid_payload"
	rejectNotRegistered = "not_registered"
	rejectUnknownType   = "unknown_type"
)

// HubConfig tunes the relay hub.
type HubConfig struct {
	// SweepInterval is how often presences are refreshed and stale ones evicted.
	SweepInterval time.Duration
	// MaxAge is the staleness threshold for presences no live client refreshes.
	MaxAge time.Duration
	// Greeting is sent as a plain-text frame on connect. Empty disables it.
	Greeting string
	// SendBuffer is the per-client outbound queue length.
	SendBuffer int
	// RateLimit is the per-client inbound message rate (messages/second).
	RateLimit float64
	// RateBurst is the per-client inbound burst.
	RateBurst int
}

// DefaultHubConfig returns the production defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SweepInterval: time.Minute,
		MaxAge:        presence.DefaultMaxAge,
		Greeting:      DefaultGreeting,
		SendBuffer:    256,
		RateLimit:     20,
		RateBurst:     40,
	}
}

// Publisher receives every presence change the hub makes on behalf of a
// local client, for fan-out to other relay instances.
type Publisher interface {
	Publish(ev RelayEvent)
}

type inboundFrame struct {
	client *Client
	data   []byte
}

// Hub is the server end of the presence channel. It owns the connected
// clients and the authoritative presence registry; a single event loop
// (RunWithContext) mutates both.
type Hub struct {
	cfg      HubConfig
	clock    clock.Clock
	registry *presence.Registry
	logger   zerolog.Logger

	clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	inbound    chan inboundFrame
	remote     chan RelayEvent
	mu         sync.RWMutex

	// done is closed when the event loop returns.
	done     chan struct{}
	stopOnce sync.Once

	pubMu     sync.RWMutex
	publisher Publisher
}

// NewHub creates a hub. A nil clock uses wall time.
func NewHub(cfg HubConfig, clk clock.Clock) *Hub {
	d := DefaultHubConfig()
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = d.SweepInterval
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = d.MaxAge
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = d.SendBuffer
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = d.RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = d.RateBurst
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Hub{
		cfg:        cfg,
		clock:      clk,
		registry:   presence.NewRegistry(clk, "server"),
		logger:     logging.WithComponent("websocket-hub"),
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		inbound:    make(chan inboundFrame, 256),
		remote:     make(chan RelayEvent, 256),
		done:       make(chan struct{}),
	}
}

// SetPublisher installs the cross-instance publisher. nil disables fan-out.
func (h *Hub) SetPublisher(p Publisher) {
	h.pubMu.Lock()
	h.publisher = p
	h.pubMu.Unlock()
}

// Deliver queues a raw frame received from c for the event loop. Frames
// arriving after the loop stopped are dropped.
func (h *Hub) Deliver(c *Client, data []byte) {
	select {
	case h.inbound <- inboundFrame{client: c, data: data}:
	case <-h.done:
	}
}

// Done is closed once the event loop has stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// unregister hands c back to the event loop, unless it already stopped.
func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// ApplyRemote queues a presence event from another relay instance.
func (h *Hub) ApplyRemote(ev RelayEvent) {
	select {
	case h.remote <- ev:
	default:
		h.logger.Warn().Str("type", ev.Type).Msg("remote event queue full, dropping relay event")
	}
}

// RunWithContext runs the hub event loop until ctx is canceled.
// This method is designed for use with suture supervision.
//
// Priority order when several events are ready:
//  1. Context cancellation
//  2. Client lifecycle (Register/Unregister)
//  3. Inbound frames, remote events, sweep ticks
func (h *Hub) RunWithContext(ctx context.Context) error {
	ticker := h.clock.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()
	defer h.stopOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client, "disconnected")
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client, "disconnected")
		case frame := <-h.inbound:
			h.handleFrame(frame.client, frame.data)
		case ev := <-h.remote:
			h.applyRemote(ev)
		case <-ticker.C():
			h.sweep()
		}
	}
}

// logGracefulShutdown closes all clients and logs the shutdown. ctx.Err()
// is not logged as an error: cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	h.logger.Info().
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.HubConnections.Set(float64(count))
	h.logger.Info().Uint64("client_id", c.id).Int("total_clients", count).Msg("websocket client connected")

	if h.cfg.Greeting != "" {
		h.sendTo(c, []byte(h.cfg.Greeting), MessageTypeWelcome)
	}
}

// removeClient drops c and withdraws its presence. Safe to call twice.
func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	metrics.HubConnections.Set(float64(count))
	h.logger.Info().
		Uint64("client_id", c.id).
		Str("user_id", c.userID).
		Str("reason", reason).
		Int("total_clients", count).
		Msg("websocket client disconnected")

	h.withdraw(c)
}

func (h *Hub) handleFrame(c *Client, data []byte) {
	h.mu.RLock()
	_, live := h.clients[c]
	h.mu.RUnlock()
	if !live {
		return
	}

	msg := Decode(data, h.clock.Now())
	metrics.RecordHubReceived(msg.Type)

	switch msg.Type {
	case MessageTypeRegister:
		h.handleRegister(c, msg)
	case MessageTypePresenceUpdate:
		h.handlePresenceUpdate(c, msg)
	case MessageTypePresenceLeave:
		if !c.registered {
			h.reject(c, rejectNotRegistered, "Error: register before sending presence")
			return
		}
		h.withdraw(c)
	case MessageTypePing:
		h.sendEnvelope(c, MessageTypePong, nil)
	default:
		h.reject(c, rejectUnknownType, "Error: unknown message type "+msg.Type)
	}
}

func (h *Hub) handleRegister(c *Client, msg Message) {
	var p RegisterPayload
	if err := msg.DecodePayload(&p); err != nil {
		h.reject(c, rejectInvalid, "Error: malformed register payload")
		return
	}
	if verr := validation.ValidateStruct(&p); verr != nil {
		h.reject(c, rejectInvalid, "Error: "+verr.Error())
		return
	}

	// A client that re-registers as someone else gives up its old presence.
	if c.registered && c.userID != p.UserID {
		h.withdraw(c)
	}
	c.userID = p.UserID
	c.userName = p.UserName
	if c.userName == "" {
		c.userName = p.UserID
	}
	c.registered = true

	h.logger.Debug().Uint64("client_id", c.id).Str("user_id", c.userID).Msg("client registered")
	h.sendEnvelope(c, MessageTypeAdminSync, AdminSyncPayload{Admins: h.snapshot()})
}

func (h *Hub) handlePresenceUpdate(c *Client, msg Message) {
	if !c.registered {
		h.reject(c, rejectNotRegistered, "Error: register before sending presence")
		return
	}
	var p ResourcePayload
	if err := msg.DecodePayload(&p); err != nil {
		h.reject(c, rejectInvalid, "Error: malformed presence payload")
		return
	}
	if verr := validation.ValidateStruct(&p); verr != nil {
		h.reject(c, rejectInvalid, "Error: "+verr.Error())
		return
	}

	next := presence.New(c.userID, c.userName, presence.Resource{Type: p.ResourceType, ID: p.ResourceID}, h.clock.Now())
	if strings.HasPrefix(p.ID, c.userID+"-") {
		next.ID = p.ID
	}
	if c.presenceID != "" && c.presenceID != next.ID {
		h.withdraw(c)
	}

	h.registry.Upsert(next)
	c.presenceID = next.ID
	h.broadcastEnvelope(MessageTypePresenceUpdate, next)
	h.publish(RelayEvent{Type: RelayEventUpdate, Presence: &next})
}

// withdraw removes c's current presence, if any, and tells everyone.
func (h *Hub) withdraw(c *Client) {
	if c.presenceID == "" {
		return
	}
	id := c.presenceID
	c.presenceID = ""
	if !h.registry.Remove(id) {
		return
	}
	h.broadcastEnvelope(MessageTypePresenceLeave, LeavePayload{ID: id})
	h.publish(RelayEvent{Type: RelayEventLeave, ID: id})
}

func (h *Hub) applyRemote(ev RelayEvent) {
	switch ev.Type {
	case RelayEventUpdate:
		if ev.Presence == nil || ev.Presence.ID == "" {
			return
		}
		h.registry.Upsert(*ev.Presence)
		h.broadcastEnvelope(MessageTypePresenceUpdate, *ev.Presence)
	case RelayEventRefresh:
		if ev.Presence == nil || ev.Presence.ID == "" {
			return
		}
		h.registry.Upsert(*ev.Presence)
	case RelayEventLeave:
		if ev.ID == "" || !h.registry.Remove(ev.ID) {
			return
		}
		h.broadcastEnvelope(MessageTypePresenceLeave, LeavePayload{ID: ev.ID})
	default:
		h.logger.Debug().Str("type", ev.Type).Msg("ignoring unknown relay event")
	}
}

// sweep refreshes presences held by live clients, evicts the rest once they
// pass MaxAge, and resyncs every registered client.
func (h *Hub) sweep() {
	now := h.clock.Now().UnixMilli()
	for _, c := range h.sortedClients() {
		if c.presenceID == "" {
			continue
		}
		p, ok := h.registry.Get(c.presenceID)
		if !ok {
			continue
		}
		p.Timestamp = now
		h.registry.Upsert(p)
		h.publish(RelayEvent{Type: RelayEventRefresh, Presence: &p})
	}

	for _, id := range h.registry.EvictStale(h.cfg.MaxAge) {
		h.broadcastEnvelope(MessageTypePresenceLeave, LeavePayload{ID: id})
	}

	resync := AdminSyncPayload{Admins: h.snapshot()}
	for _, c := range h.sortedClients() {
		if c.registered {
			h.sendEnvelope(c, MessageTypeAdminSync, resync)
		}
	}
}

func (h *Hub) reject(c *Client, reason, text string) {
	metrics.RecordHubRejected(reason)
	h.logger.Warn().
		Uint64("client_id", c.id).
		Str("user_id", c.userID).
		Str("reason", reason).
		Msg("rejected inbound message")
	h.sendTo(c, []byte(text), MessageTypeError)
}

func (h *Hub) publish(ev RelayEvent) {
	h.pubMu.RLock()
	p := h.publisher
	h.pubMu.RUnlock()
	if p != nil {
		p.Publish(ev)
	}
}

func (h *Hub) snapshot() []presence.Presence {
	admins := h.registry.Snapshot()
	if admins == nil {
		admins = []presence.Presence{}
	}
	return admins
}

func (h *Hub) sendEnvelope(c *Client, msgType string, payload interface{}) {
	data, err := Encode(msgType, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("failed to encode message")
		return
	}
	h.sendTo(c, data, msgType)
}

// sendTo queues data for one client. A full queue drops the client.
func (h *Hub) sendTo(c *Client, data []byte, msgType string) {
	h.mu.RLock()
	_, live := h.clients[c]
	h.mu.RUnlock()
	if !live {
		return
	}

	select {
	case c.send <- data:
		metrics.RecordHubSent(msgType)
	default:
		metrics.HubSlowClients.Inc()
		h.removeClient(c, "slow_client")
	}
}

func (h *Hub) broadcastEnvelope(msgType string, payload interface{}) {
	data, err := Encode(msgType, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("failed to encode broadcast")
		return
	}
	h.broadcast(data, msgType)
}

// broadcast sends data to every registered client in id order. Clients
// whose queue is full are dropped after the loop.
func (h *Hub) broadcast(data []byte, msgType string) {
	var slow []*Client
	for _, c := range h.sortedClients() {
		if !c.registered {
			continue
		}
		select {
		case c.send <- data:
			metrics.RecordHubSent(msgType)
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		metrics.HubSlowClients.Inc()
		h.removeClient(c, "slow_client")
	}
}

// sortedClients returns the live clients ordered by id.
func (h *Hub) sortedClients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// closeAllClients closes every client queue in id order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, c := range clients {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.HubConnections.Set(0)
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Presences returns the current presence snapshot.
func (h *Hub) Presences() []presence.Presence {
	return h.snapshot()
}

// newLimiter builds a per-client inbound limiter.
func (h *Hub) newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(h.cfg.RateLimit), h.cfg.RateBurst)
}
