// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/hajkmap/hajk-presence/internal/logging"
	"github.com/hajkmap/hajk-presence/internal/metrics"
	"github.com/hajkmap/hajk-presence/internal/presence"
)

// Relay event types.
const (
	RelayEventUpdate  = "update"
	RelayEventLeave   = "leave"
	RelayEventRefresh = "refresh"
)

// RelayEvent is one presence change shared between relay instances.
type RelayEvent struct {
	Instance string             `json:"instance"`
	Type     string             `json:"type"`
	Presence *presence.Presence `json:"presence,omitempty"`
	ID       string             `json:"id,omitempty"`
	SentAt   time.Time          `json:"sentAt"`
}

// RelayTransport is the message bus under a Relay.
type RelayTransport interface {
	// Publish sends data on subject.
	Publish(ctx context.Context, subject string, data []byte) error
	// Subscribe delivers messages matching subject until ctx is done.
	Subscribe(ctx context.Context, subject string) (<-chan []byte, error)
	// Close releases resources.
	Close() error
}

// Relay bridges a hub to other relay instances. Local changes go out on
// "<subject>.<instance>"; everything under "<subject>.>" from other
// instances is applied to the hub.
type Relay struct {
	hub       *Hub
	transport RelayTransport
	subject   string
	instance  string
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRelay creates a relay. An empty instance id gets a random UUID.
func NewRelay(hub *Hub, transport RelayTransport, subject, instance string) *Relay {
	if instance == "" {
		instance = uuid.NewString()
	}
	return &Relay{
		hub:       hub,
		transport: transport,
		subject:   subject,
		instance:  instance,
		logger:    logging.WithComponent("presence-relay").With().Str("instance", instance).Logger(),
	}
}

// Instance returns this relay's instance id.
func (r *Relay) Instance() string {
	return r.instance
}

// Start subscribes and begins applying remote events. The hub publishes
// through the relay once Start returns.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	messages, err := r.transport.Subscribe(ctx, r.subject+".>")
	if err != nil {
		r.mu.Unlock()
		metrics.NATSRelayErrors.WithLabelValues("subscribe").Inc()
		return fmt.Errorf("subscribe %s.>: %w", r.subject, err)
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.processMessages(ctx, messages, r.stopCh, r.doneCh)
	r.hub.SetPublisher(r)

	r.logger.Info().Str("subject", r.subject).Msg("presence relay started")
	return nil
}

// Stop detaches from the hub and stops applying remote events.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	r.hub.SetPublisher(nil)
	close(stopCh)
	<-doneCh
	r.logger.Info().Msg("presence relay stopped")
}

// Publish sends a local presence change to the other instances.
func (r *Relay) Publish(ev RelayEvent) {
	ev.Instance = r.instance
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		metrics.NATSRelayErrors.WithLabelValues("encode").Inc()
		r.logger.Warn().Err(err).Msg("failed to encode relay event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.transport.Publish(ctx, r.subject+"."+r.instance, data); err != nil {
		metrics.NATSRelayErrors.WithLabelValues("publish").Inc()
		r.logger.Warn().Err(err).Str("type", ev.Type).Msg("failed to publish relay event")
		return
	}
	metrics.NATSRelayPublished.Inc()
}

func (r *Relay) processMessages(ctx context.Context, messages <-chan []byte, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case data, ok := <-messages:
			if !ok {
				return
			}
			r.handleMessage(data)
		}
	}
}

func (r *Relay) handleMessage(data []byte) {
	var ev RelayEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		metrics.NATSRelayErrors.WithLabelValues("decode").Inc()
		r.logger.Warn().Err(err).Msg("failed to unmarshal relay event")
		return
	}
	if ev.Instance == r.instance {
		return
	}
	metrics.NATSRelayConsumed.Inc()
	r.hub.ApplyRemote(ev)
}

// NATSTransport is a RelayTransport over a core NATS connection.
type NATSTransport struct {
	conn *nats.Conn
}

// DialNATS connects to the NATS server at url.
func DialNATS(url, name string) (*NATSTransport, error) {
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSTransport{conn: conn}, nil
}

// Publish implements RelayTransport.
func (t *NATSTransport) Publish(_ context.Context, subject string, data []byte) error {
	return t.conn.Publish(subject, data)
}

// Subscribe implements RelayTransport. Messages that arrive while the
// consumer is behind are dropped; the next sweep resyncs.
func (t *NATSTransport) Subscribe(ctx context.Context, subject string) (<-chan []byte, error) {
	out := make(chan []byte, 256)
	sub, err := t.conn.Subscribe(subject, func(m *nats.Msg) {
		select {
		case out <- m.Data:
		default:
			metrics.NATSRelayErrors.WithLabelValues("overflow").Inc()
		}
	})
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return out, nil
}

// Close drains the connection.
func (t *NATSTransport) Close() error {
	return t.conn.Drain()
}

// IsConnected reports whether the NATS connection is currently up.
func (t *NATSTransport) IsConnected() bool {
	return t.conn != nil && t.conn.IsConnected()
}
