// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

/*
Package session runs one admin's presence session: it opens the channel when
the admin logs in, registers once per connection, tells the server which
resource the admin is editing, keeps the local registry in step with server
messages and raises join/leave toasts for the resource on screen.

Every input (login, navigation, channel state, channel message) becomes an
event on a single queue handled by Controller.Run, one at a time:

	ctrl := session.New(cfg, channel, notifier, clock.New())
	go ctrl.Run(ctx)
	ctrl.SetUser(&session.User{ID: "alice", FullName: "Alice"})
	ctrl.Navigate("/maps/1")

Navigation is deduplicated on the last resource key actually sent, so
re-rendering the same route never produces traffic. Toasts compare actors,
not presence ids, and only against the previous look at the same resource.
*/
package session
