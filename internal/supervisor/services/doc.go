// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

/*
Package services adapts presence components to suture.Service.

  - HTTPServerService: ListenAndServe/Shutdown to Serve
  - HubService: the relay hub's RunWithContext loop
  - RelayService: dials the NATS relay on every start and closes the
    connection when the relay stops, so an unreachable NATS server is
    retried with the supervisor's backoff

The wrappers depend on small interfaces rather than the concrete types so
they can be tested without sockets.
*/
package services
