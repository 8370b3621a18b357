// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

/*
Package presence holds the domain model for collaborative editing awareness:
who is editing which admin resource right now.

Key Components:

  - Presence: one actor's current focus on a (resourceType, resourceId)
  - Registry: the in-memory set of active presences, unique by id, plus the
    local actor's own presence
  - MapPathToResource: maps admin console paths to resources
  - BadgeCount / BadgeNames: read-only projections for indicators

Resources:

	map       /maps/<id>
	layer     /search-layers/<id>, /editing-layers/<id>, /display-layers/<id>
	tool      /tools/<id>
	group     /groups/<id>
	service   /services/<id>

Self Exclusion:

The server may echo the local actor's own presence back into the active
set. The Registry never filters on write; every Query drops the entry whose
id equals the current self presence id.

Staleness:

EvictStale removes entries whose timestamp is at least maxAge old
(default 5 minutes). It never touches the self presence and never modifies
surviving entries.

Thread Safety:

Registry methods are safe for concurrent use. The session controller is the
only writer on the client side; the relay hub is the only writer on the
server side.
*/
package presence
