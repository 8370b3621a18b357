// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package websocket

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hajkmap/hajk-presence/internal/clock"
	"github.com/hajkmap/hajk-presence/internal/metrics"
	"github.com/hajkmap/hajk-presence/internal/presence"
)

var hubStart = time.UnixMilli(1_750_000_000_000)

func startTestHub(t *testing.T, cfg HubConfig) (*Hub, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(hubStart)
	h := NewHub(cfg, fc)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.RunWithContext(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h, fc
}

// join registers a pipe-less client with the hub and consumes the greeting.
func join(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := NewClient(h, nil)
	h.Register <- c
	if m := recvMessage(t, c); m.Type != MessageTypeWelcome {
		t.Fatalf("expected greeting, got %s", m.Type)
	}
	return c
}

func recvMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("client queue closed")
		}
		return Decode(data, time.Time{})
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hub message")
		return Message{}
	}
}

func expectType(t *testing.T, c *Client, want string) Message {
	t.Helper()
	m := recvMessage(t, c)
	if m.Type != want {
		t.Fatalf("message type = %s, want %s (raw %s)", m.Type, want, m.Raw)
	}
	return m
}

func expectSilence(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected message %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func send(t *testing.T, h *Hub, c *Client, msgType string, payload interface{}) {
	t.Helper()
	data, err := Encode(msgType, payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	h.Deliver(c, data)
}

func register(t *testing.T, h *Hub, c *Client, userID, userName string) AdminSyncPayload {
	t.Helper()
	send(t, h, c, MessageTypeRegister, RegisterPayload{UserID: userID, UserName: userName})
	m := expectType(t, c, MessageTypeAdminSync)
	var sync AdminSyncPayload
	if err := m.DecodePayload(&sync); err != nil {
		t.Fatalf("admin-sync payload: %v", err)
	}
	return sync
}

func decodePresence(t *testing.T, m Message) presence.Presence {
	t.Helper()
	var p presence.Presence
	if err := m.DecodePayload(&p); err != nil {
		t.Fatalf("presence payload: %v", err)
	}
	return p
}

func TestHub_GreetingAndRegister(t *testing.T) {
	h, _ := startTestHub(t, DefaultHubConfig())
	c := NewClient(h, nil)
	h.Register <- c

	greeting := recvMessage(t, c)
	if greeting.Type != MessageTypeWelcome || greeting.Raw != DefaultGreeting {
		t.Errorf("greeting = %+v", greeting)
	}

	sync := register(t, h, c, "alice", "Alice")
	if len(sync.Admins) != 0 {
		t.Errorf("expected empty admin list, got %v", sync.Admins)
	}
	if h.GetClientCount() != 1 {
		t.Errorf("client count = %d, want 1", h.GetClientCount())
	}
}

func TestHub_PresenceUpdateBroadcast(t *testing.T) {
	h, _ := startTestHub(t, DefaultHubConfig())
	a, b := join(t, h), join(t, h)
	register(t, h, a, "alice", "Alice")
	register(t, h, b, "bob", "")

	send(t, h, a, MessageTypePresenceUpdate, ResourcePayload{ResourceType: presence.ResourceMap, ResourceID: "1"})

	for _, c := range []*Client{a, b} {
		p := decodePresence(t, expectType(t, c, MessageTypePresenceUpdate))
		if p.ActorID != "alice" || p.DisplayName != "Alice" || p.ResourceKey() != "map:1" {
			t.Errorf("broadcast presence = %+v", p)
		}
		if p.Timestamp != hubStart.UnixMilli() {
			t.Errorf("timestamp = %d, want server time %d", p.Timestamp, hubStart.UnixMilli())
		}
		if p.ID != "alice-1750000000000" {
			t.Errorf("id = %s", p.ID)
		}
	}

	admins := h.Presences()
	if len(admins) != 1 || admins[0].ActorID != "alice" {
		t.Fatalf("presences = %v", admins)
	}

	// A late registrant gets the current state in its admin-sync.
	c := join(t, h)
	sync := register(t, h, c, "carol", "Carol")
	if len(sync.Admins) != 1 || sync.Admins[0] != admins[0] {
		t.Errorf("admin-sync = %v, want %v", sync.Admins, admins)
	}

	// Unnamed registrations fall back to the user id.
	send(t, h, b, MessageTypePresenceUpdate, ResourcePayload{ResourceType: presence.ResourceTool, ResourceID: "search"})
	p := decodePresence(t, expectType(t, a, MessageTypePresenceUpdate))
	if p.DisplayName != "bob" {
		t.Errorf("display name = %q, want fallback to user id", p.DisplayName)
	}
}

func TestHub_MoveReplacesPresence(t *testing.T) {
	h, fc := startTestHub(t, DefaultHubConfig())
	a, b := join(t, h), join(t, h)
	register(t, h, a, "alice", "Alice")
	register(t, h, b, "bob", "Bob")

	send(t, h, a, MessageTypePresenceUpdate, ResourcePayload{ResourceType: presence.ResourceMap, ResourceID: "1"})
	first := decodePresence(t, expectType(t, b, MessageTypePresenceUpdate))
	expectType(t, a, MessageTypePresenceUpdate)

	fc.Advance(time.Second)
	send(t, h, a, MessageTypePresenceUpdate, ResourcePayload{ResourceType: presence.ResourceLayer, ResourceID: "abc123"})

	var leave LeavePayload
	if err := expectType(t, b, MessageTypePresenceLeave).DecodePayload(&leave); err != nil || leave.ID != first.ID {
		t.Errorf("leave = %+v (err %v), want id %s", leave, err, first.ID)
	}
	second := decodePresence(t, expectType(t, b, MessageTypePresenceUpdate))
	if second.ResourceKey() != "layer:abc123" || second.ID == first.ID {
		t.Errorf("second presence = %+v", second)
	}

	admins := h.Presences()
	if len(admins) != 1 || admins[0].ID != second.ID {
		t.Errorf("registry should hold only the latest presence, got %v", admins)
	}
}

func TestHub_KeepsClientPresenceID(t *testing.T) {
	h, _ := startTestHub(t, DefaultHubConfig())
	a, b := join(t, h), join(t, h)
	register(t, h, a, "alice", "Alice")
	register(t, h, b, "bob", "Bob")

	send(t, h, a, MessageTypePresenceUpdate, ResourcePayload{ID: "alice-42", ResourceType: presence.ResourceMap, ResourceID: "1"})
	if p := decodePresence(t, expectType(t, b, MessageTypePresenceUpdate)); p.ID != "alice-42" {
		t.Errorf("id = %s, want the client's own id", p.ID)
	}
	expectType(t, a, MessageTypePresenceUpdate)

	// Ids that belong to another actor are replaced.
	send(t, h, a, MessageTypePresenceUpdate, ResourcePayload{ID: "bob-42", ResourceType: presence.ResourceMap, ResourceID: "2"})
	expectType(t, b, MessageTypePresenceLeave)
	if p := decodePresence(t, expectType(t, b, MessageTypePresenceUpdate)); p.ID != "alice-1750000000000" {
		t.Errorf("id = %s, want a server generated id", p.ID)
	}
}

func TestHub_LeaveAndDisconnect(t *testing.T) {
	h, fc := startTestHub(t, DefaultHubConfig())
	a, b := join(t, h), join(t, h)
	register(t, h, a, "alice", "Alice")
	register(t, h, b, "bob", "Bob")

	send(t, h, a, MessageTypePresenceUpdate, ResourcePayload{ResourceType: presence.ResourceGroup, ResourceID: "g1"})
	p := decodePresence(t, expectType(t, b, MessageTypePresenceUpdate))
	expectType(t, a, MessageTypePresenceUpdate)

	send(t, h, a, MessageTypePresenceLeave, nil)
	var leave LeavePayload
	if err := expectType(t, b, MessageTypePresenceLeave).DecodePayload(&leave); err != nil || leave.ID != p.ID {
		t.Errorf("leave = %+v, want %s", leave, p.ID)
	}
	expectType(t, a, MessageTypePresenceLeave)

	// A second leave with nothing to withdraw is silent.
	send(t, h, a, MessageTypePresenceLeave, nil)
	expectSilence(t, b)

	fc.Advance(time.Millisecond)
	send(t, h, a, MessageTypePresenceUpdate, ResourcePayload{ResourceType: presence.ResourceService, ResourceID: "wms"})
	p = decodePresence(t, expectType(t, b, MessageTypePresenceUpdate))

	h.Unregister <- a
	if err := expectType(t, b, MessageTypePresenceLeave).DecodePayload(&leave); err != nil || leave.ID != p.ID {
		t.Errorf("disconnect leave = %+v, want %s", leave, p.ID)
	}
	if len(h.Presences()) != 0 {
		t.Errorf("presences after disconnect = %v", h.Presences())
	}
	// Drains the queued update; the loop only ends once the hub closed the queue.
	for range a.send {
	}
	if h.GetClientCount() != 1 {
		t.Errorf("client count = %d, want 1", h.GetClientCount())
	}
}

func TestHub_RejectsInvalidPayloads(t *testing.T) {
	h, _ := startTestHub(t, DefaultHubConfig())
	a, b := join(t, h), join(t, h)
	register(t, h, b, "bob", "Bob")

	before := testutil.ToFloat64(metrics.HubMessagesRejected.WithLabelValues(rejectNotRegistered))
	send(t, h, a, MessageTypePresenceUpdate, ResourcePayload{ResourceType: presence.ResourceMap, ResourceID: "1"})
	m := expectType(t, a, MessageTypeError)
	if !strings.Contains(m.Raw, "register") {
		t.Errorf("error text = %q", m.Raw)
	}
	if got := testutil.ToFloat64(metrics.HubMessagesRejected.WithLabelValues(rejectNotRegistered)); got != before+1 {
		t.Errorf("not_registered rejections = %v, want %v", got, before+1)
	}

	register(t, h, a, "alice", "Alice")

	tests := []struct {
		name    string
		payload interface{}
		want    string
	}{
		{"unknown resource type", map[string]string{"resourceType": "document", "resourceId": "1"}, "resourceType must be one of"},
		{"missing id", map[string]string{"resourceType": "map"}, "resourceId is required"},
		{"blank id", map[string]string{"resourceType": "map", "resourceId": "  "}, "resourceId must not be blank"},
		{"wrong shape", []int{1, 2}, "malformed presence payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, h, a, MessageTypePresenceUpdate, tt.payload)
			m := expectType(t, a, MessageTypeError)
			if !strings.Contains(m.Raw, tt.want) {
				t.Errorf("error text = %q, want it to contain %q", m.Raw, tt.want)
			}
		})
	}

	send(t, h, a, MessageTypeRegister, RegisterPayload{UserID: ""})
	expectType(t, a, MessageTypeError)

	send(t, h, a, "teleport", nil)
	expectType(t, a, MessageTypeError)

	expectSilence(t, b)
	if len(h.Presences()) != 0 {
		t.Errorf("rejected updates must not reach the registry, got %v", h.Presences())
	}
}

func TestHub_UnregisteredClientsGetNoBroadcasts(t *testing.T) {
	h, _ := startTestHub(t, DefaultHubConfig())
	a, lurker := join(t, h), join(t, h)
	register(t, h, a, "alice", "Alice")

	send(t, h, a, MessageTypePresenceUpdate, ResourcePayload{ResourceType: presence.ResourceMap, ResourceID: "1"})
	expectType(t, a, MessageTypePresenceUpdate)
	expectSilence(t, lurker)
}

func TestHub_PingPong(t *testing.T) {
	h, _ := startTestHub(t, DefaultHubConfig())
	a := join(t, h)

	send(t, h, a, MessageTypePing, nil)
	expectType(t, a, MessageTypePong)
}

func TestHub_SweepRefreshesLocalAndEvictsRemote(t *testing.T) {
	h, fc := startTestHub(t, DefaultHubConfig())
	a, b := join(t, h), join(t, h)
	register(t, h, a, "alice", "Alice")
	register(t, h, b, "bob", "Bob")

	send(t, h, a, MessageTypePresenceUpdate, ResourcePayload{ResourceType: presence.ResourceMap, ResourceID: "1"})
	local := decodePresence(t, expectType(t, b, MessageTypePresenceUpdate))
	expectType(t, a, MessageTypePresenceUpdate)

	stale := presence.New("remote", "Remote", presence.Resource{Type: presence.ResourceMap, ID: "1"}, hubStart.Add(-10*time.Minute))
	h.ApplyRemote(RelayEvent{Type: RelayEventUpdate, Presence: &stale})
	if p := decodePresence(t, expectType(t, b, MessageTypePresenceUpdate)); p.ID != stale.ID {
		t.Fatalf("remote update = %+v", p)
	}
	expectType(t, a, MessageTypePresenceUpdate)

	fc.Advance(time.Minute)

	var leave LeavePayload
	if err := expectType(t, b, MessageTypePresenceLeave).DecodePayload(&leave); err != nil || leave.ID != stale.ID {
		t.Errorf("evicted leave = %+v, want %s", leave, stale.ID)
	}
	var sync AdminSyncPayload
	if err := expectType(t, b, MessageTypeAdminSync).DecodePayload(&sync); err != nil {
		t.Fatalf("admin-sync: %v", err)
	}
	if len(sync.Admins) != 1 || sync.Admins[0].ID != local.ID {
		t.Fatalf("admin-sync admins = %v", sync.Admins)
	}
	if want := hubStart.Add(time.Minute).UnixMilli(); sync.Admins[0].Timestamp != want {
		t.Errorf("local presence timestamp = %d, want refreshed %d", sync.Admins[0].Timestamp, want)
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.SendBuffer = 2
	h, _ := startTestHub(t, cfg)

	a := join(t, h)
	register(t, h, a, "alice", "Alice")
	slow := join(t, h)
	register(t, h, slow, "sloth", "Sloth")

	for i := 0; i < 4; i++ {
		send(t, h, a, MessageTypePresenceUpdate, ResourcePayload{ResourceType: presence.ResourceMap, ResourceID: "1"})
		expectType(t, a, MessageTypePresenceUpdate)
	}

	waitFor(t, "slow client dropped", func() bool { return h.GetClientCount() == 1 })
}

type recordingPublisher struct {
	events chan RelayEvent
}

func (r *recordingPublisher) Publish(ev RelayEvent) { r.events <- ev }

func TestHub_PublishesLocalChanges(t *testing.T) {
	h, _ := startTestHub(t, DefaultHubConfig())
	pub := &recordingPublisher{events: make(chan RelayEvent, 8)}
	h.SetPublisher(pub)

	a := join(t, h)
	register(t, h, a, "alice", "Alice")
	send(t, h, a, MessageTypePresenceUpdate, ResourcePayload{ResourceType: presence.ResourceMap, ResourceID: "9"})
	expectType(t, a, MessageTypePresenceUpdate)
	h.Unregister <- a

	next := func() RelayEvent {
		select {
		case ev := <-pub.events:
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for relay event")
			return RelayEvent{}
		}
	}
	up := next()
	if up.Type != RelayEventUpdate || up.Presence == nil || up.Presence.ResourceKey() != "map:9" {
		t.Errorf("update event = %+v", up)
	}
	if leave := next(); leave.Type != RelayEventLeave || leave.ID != up.Presence.ID {
		t.Errorf("leave event = %+v", leave)
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	fc := clock.NewFake(hubStart)
	h := NewHub(DefaultHubConfig(), fc)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.RunWithContext(ctx) }()

	c := join(t, h)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	if _, ok := <-c.send; ok {
		t.Error("client queue should be closed")
	}
	if h.GetClientCount() != 0 {
		t.Errorf("client count = %d, want 0", h.GetClientCount())
	}
}

func TestHub_StoppedHubDoesNotBlockClients(t *testing.T) {
	h := NewHub(DefaultHubConfig(), clock.NewFake(hubStart))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.RunWithContext(ctx) }()

	c := join(t, h)
	cancel()
	<-done

	select {
	case <-h.Done():
	default:
		t.Fatal("Done should be closed after the loop returned")
	}

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		// More frames than the inbound queue holds.
		for i := 0; i < 300; i++ {
			h.Deliver(c, []byte(`{"type":"presence-leave"}`))
		}
		h.unregister(c)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver or unregister blocked on a stopped hub")
	}
}

func TestGetShutdownReason(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(ctx); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled = %s", got)
	}

	ctx, cancel = context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if got := getShutdownReason(ctx); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline = %s", got)
	}
}
