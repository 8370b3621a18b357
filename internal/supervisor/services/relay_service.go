// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hajkmap/hajk-presence/internal/logging"
)

// RelayRunner matches the *websocket.Relay lifecycle.
type RelayRunner interface {
	Start(ctx context.Context) error
	Stop()
}

// RelayConnector opens a relay transport and builds a relay on top of it.
// The returned closer releases the transport.
type RelayConnector func() (RelayRunner, io.Closer, error)

// RelayService supervises the NATS relay between hub replicas.
//
// Each Serve dials a fresh connection:
//  1. connect() opens the transport and builds the relay
//  2. Start subscribes and attaches the relay to the hub
//  3. On shutdown the relay stops, then the transport is closed
//
// A failed dial returns an error so suture retries with backoff.
type RelayService struct {
	connect         RelayConnector
	shutdownTimeout time.Duration
	name            string
}

// NewRelayService creates a relay service with a 5s close timeout.
func NewRelayService(connect RelayConnector) *RelayService {
	return &RelayService{
		connect:         connect,
		shutdownTimeout: 5 * time.Second,
		name:            "presence-relay",
	}
}

// Serve implements suture.Service.
func (s *RelayService) Serve(ctx context.Context) error {
	relay, closer, err := s.connect()
	if err != nil {
		return fmt.Errorf("relay connect failed: %w", err)
	}

	if err := relay.Start(ctx); err != nil {
		s.close(closer)
		return fmt.Errorf("relay start failed: %w", err)
	}

	<-ctx.Done()

	relay.Stop()
	s.close(closer)
	return ctx.Err()
}

// close releases the transport, giving up after shutdownTimeout.
func (s *RelayService) close(closer io.Closer) {
	if closer == nil {
		return
	}
	done := make(chan error, 1)
	go func() { done <- closer.Close() }()

	select {
	case err := <-done:
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to close relay transport")
		}
	case <-time.After(s.shutdownTimeout):
		logging.Warn().Dur("timeout", s.shutdownTimeout).Msg("Relay transport close timed out")
	}
}

// String implements fmt.Stringer for suture logging.
func (s *RelayService) String() string {
	return s.name
}
