// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

/*
Package websocket carries presence messages between admin consoles and the
relay server over gorilla/websocket.

Key Components:

  - Channel: client side. One logical connection to /api/v3/websockets with
    bounded exponential backoff, message decoding and a bounded history
  - Hub: server side. Owns connected clients and the authoritative presence
    registry, answers register with admin-sync and broadcasts changes
  - Client: one server-side connection with read/write pumps
  - Relay: optional NATS fan-out between hub replicas

Wire Format:

Frames are JSON envelopes {"type": ..., "payload": ...}:

	register          client -> server   {userId, userName}
	presence-update   client -> server   Presence (id, resourceType, resourceId read)
	presence-update   server -> client   Presence
	presence-leave    both               {} from clients, {id} from server
	admin-sync        server -> client   {admins: Presence[]}
	ping / pong       both

The server also sends plain-text frames. Decode classifies them by prefix:
"Welcome" is welcome, "Echo:" is echo, "Error:" is error, anything else is
text. JSON objects without a string "type" are treated as text too.

Reconnection:

	disconnected --Connect--> connecting --dial ok--> connected
	connected --abnormal close--> reconnecting --timer--> connecting
	any --Disconnect--> disconnected

After an abnormal close with attempt < MaxAttempts, the channel waits
BaseDelay * 2^attempt (1s, 2s, 4s, 8s, 16s with the defaults) and dials the
same URL again. A close with code 1000, from either side, is clean and never
reconnects. After MaxAttempts the channel stays disconnected until Connect
is called again.

Thread Safety:

Channel methods are safe for concurrent use; handlers run outside its lock.
Hub state is owned by RunWithContext; Register, Unregister, Deliver and
ApplyRemote hand work to that loop.
*/
package websocket
