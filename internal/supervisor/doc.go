// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

/*
Package supervisor runs the long-lived parts of a presence process under a
suture v4 supervisor tree.

# Overview

	Root ("hajk-presence")
	├── MessagingSupervisor ("messaging-layer")
	│   ├── HubService
	│   ├── RelayService (if NATS_ENABLED)
	│   └── session.Controller (watch command only)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Each layer counts failures independently. A relay that keeps losing its
NATS connection backs off inside the messaging layer while /health and
/metrics keep answering.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}

# Failure Handling

Failures are counted with exponential decay (FailureDecay seconds). Past
FailureThreshold the supervisor waits FailureBackoff before the next
restart. Defaults match suture's: 5 failures, 30s decay, 15s backoff, 10s
shutdown timeout.

A service returning an error is restarted. Returning nil stops it for good.
Supervisor events are logged through sutureslog and the zerolog slog
adapter.

# Debugging Shutdown Issues

	report, _ := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    logging.Warn().Str("service", svc.Name).Msg("Service did not stop")
	}
*/
package supervisor
