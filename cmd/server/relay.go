// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package main

import (
	"io"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hajkmap/hajk-presence/internal/config"
	"github.com/hajkmap/hajk-presence/internal/logging"
	"github.com/hajkmap/hajk-presence/internal/supervisor/services"
	ws "github.com/hajkmap/hajk-presence/internal/websocket"
)

// relayLink dials NATS for the relay service and remembers the live
// transport so /health can report it.
type relayLink struct {
	hub      *ws.Hub
	url      string
	subject  string
	instance string
	dial     func(url, name string) (*ws.NATSTransport, error)

	current atomic.Pointer[ws.NATSTransport]
}

// newRelayLink fixes the instance id for the life of the process; every
// redial publishes under the same subject suffix.
func newRelayLink(hub *ws.Hub, cfg *config.NATSConfig) *relayLink {
	instance := cfg.InstanceID
	if instance == "" {
		instance = uuid.NewString()
	}
	return &relayLink{
		hub:      hub,
		url:      cfg.URL,
		subject:  cfg.Subject,
		instance: instance,
		dial:     ws.DialNATS,
	}
}

// Connect implements services.RelayConnector.
func (l *relayLink) Connect() (services.RelayRunner, io.Closer, error) {
	transport, err := l.dial(l.url, "hajk-presence-"+l.instance)
	if err != nil {
		return nil, nil, err
	}
	l.current.Store(transport)
	logging.Info().
		Str("url", logging.SanitizeURL(l.url)).
		Str("instance", l.instance).
		Msg("Connected to NATS")
	return ws.NewRelay(l.hub, transport, l.subject, l.instance), closerFunc(func() error {
		l.current.CompareAndSwap(transport, nil)
		return transport.Close()
	}), nil
}

// IsConnected implements api.RelayStatus.
func (l *relayLink) IsConnected() bool {
	t := l.current.Load()
	return t != nil && t.IsConnected()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
