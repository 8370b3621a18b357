// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Client channel lifecycle (state, reconnects, decoded messages)
// - Presence registries (client and relay server)
// - Relay hub connections and traffic
// - HTTP API
// - NATS cross-instance relay

var (
	// Channel Metrics
	ChannelState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_channel_state",
			Help: "Current channel state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)",
		},
	)

	ChannelReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_channel_reconnect_attempts_total",
			Help: "Total number of scheduled reconnect attempts",
		},
	)

	ChannelReconnectExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_channel_reconnect_exhausted_total",
			Help: "Total number of times reconnection gave up after max attempts",
		},
	)

	ChannelMessagesDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_channel_messages_decoded_total",
			Help: "Total number of inbound channel messages by decoded type",
		},
		[]string{"type"},
	)

	ChannelSendsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_channel_sends_dropped_total",
			Help: "Total number of outbound messages dropped because the channel was not connected",
		},
	)

	// Presence Registry Metrics
	PresenceActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presence_registry_entries",
			Help: "Current number of presences held by a registry",
		},
		[]string{"registry"}, // "client", "server"
	)

	PresenceEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_registry_evictions_total",
			Help: "Total number of stale presences evicted",
		},
		[]string{"registry"},
	)

	PresenceNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_notifications_total",
			Help: "Total number of join/leave notifications emitted",
		},
		[]string{"kind"}, // "join", "leave"
	)

	// Relay Hub Metrics
	HubConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_hub_connections",
			Help: "Current number of connected admin clients",
		},
	)

	HubMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_hub_messages_received_total",
			Help: "Total number of inbound hub messages by type",
		},
		[]string{"type"},
	)

	HubMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_hub_messages_sent_total",
			Help: "Total number of outbound hub messages by type",
		},
		[]string{"type"},
	)

	HubMessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_hub_messages_rejected_total",
			Help: "Total number of inbound hub messages rejected",
		},
		[]string{"reason"}, // "decode", "validation", "rate_limit", "unregistered"
	)

	HubSlowClients = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_hub_slow_clients_total",
			Help: "Total number of clients dropped because their send queue was full",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	// NATS Relay Metrics
	NATSRelayPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_nats_published_total",
			Help: "Total number of presence events published to NATS",
		},
	)

	NATSRelayConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_nats_consumed_total",
			Help: "Total number of presence events consumed from other instances",
		},
	)

	NATSRelayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_nats_errors_total",
			Help: "Total number of NATS relay errors",
		},
		[]string{"operation"}, // "publish", "decode"
	)
)

// SetChannelState records the numeric channel state.
func SetChannelState(state int) {
	ChannelState.Set(float64(state))
}

// RecordDecodedMessage counts one decoded inbound channel message.
func RecordDecodedMessage(msgType string) {
	ChannelMessagesDecoded.WithLabelValues(msgType).Inc()
}

// RecordNotification counts one join or leave notification.
func RecordNotification(kind string) {
	PresenceNotifications.WithLabelValues(kind).Inc()
}

// RecordHubReceived counts one inbound hub message.
func RecordHubReceived(msgType string) {
	HubMessagesReceived.WithLabelValues(msgType).Inc()
}

// RecordHubSent counts one outbound hub message delivered to a client queue.
func RecordHubSent(msgType string) {
	HubMessagesSent.WithLabelValues(msgType).Inc()
}

// RecordHubRejected counts one rejected inbound hub message.
func RecordHubRejected(reason string) {
	HubMessagesRejected.WithLabelValues(reason).Inc()
}

// RecordAPIRequest records API request metrics.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
