// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package services

import (
	"context"

	"github.com/hajkmap/hajk-presence/internal/logging"
)

// ContextHub matches *websocket.Hub's event loop.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
	GetClientCount() int
}

// HubService runs the relay hub under supervision.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService wraps hub.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{
		hub:  hub,
		name: "presence-hub",
	}
}

// Serve implements suture.Service. The hub closes every client queue before
// RunWithContext returns, so a restarted hub starts with no clients.
func (s *HubService) Serve(ctx context.Context) error {
	err := s.hub.RunWithContext(ctx)
	if ctx.Err() == nil {
		logging.Warn().Err(err).Int("clients", s.hub.GetClientCount()).Msg("Presence hub stopped unexpectedly")
	}
	return err
}

// String implements fmt.Stringer for suture logging.
func (s *HubService) String() string {
	return s.name
}
