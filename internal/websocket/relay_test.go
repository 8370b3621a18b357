// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package websocket

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/hajkmap/hajk-presence/internal/presence"
)

// memoryBus is an in-process RelayTransport. Subjects ending in ".>" match
// every subject with that prefix.
type memoryBus struct {
	mu   sync.Mutex
	subs []memorySub
	sent []string
	fail error
}

type memorySub struct {
	prefix string
	ch     chan []byte
}

func (b *memoryBus) Publish(_ context.Context, subject string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.sent = append(b.sent, subject)
	for _, s := range b.subs {
		if strings.HasPrefix(subject, s.prefix) {
			s.ch <- append([]byte(nil), data...)
		}
	}
	return nil
}

func (b *memoryBus) Subscribe(_ context.Context, subject string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return nil, b.fail
	}
	ch := make(chan []byte, 64)
	b.subs = append(b.subs, memorySub{prefix: strings.TrimSuffix(subject, ">"), ch: ch})
	return ch, nil
}

func (b *memoryBus) Close() error { return nil }

func (b *memoryBus) subjects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sent...)
}

func TestRelay_FansOutBetweenHubs(t *testing.T) {
	bus := &memoryBus{}
	east, _ := startTestHub(t, DefaultHubConfig())
	west, _ := startTestHub(t, DefaultHubConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eastRelay := NewRelay(east, bus, "hajk.presence", "east")
	westRelay := NewRelay(west, bus, "hajk.presence", "west")
	if err := eastRelay.Start(ctx); err != nil {
		t.Fatalf("east Start: %v", err)
	}
	if err := westRelay.Start(ctx); err != nil {
		t.Fatalf("west Start: %v", err)
	}
	defer eastRelay.Stop()
	defer westRelay.Stop()

	alice := join(t, east)
	register(t, east, alice, "alice", "Alice")
	bob := join(t, west)
	register(t, west, bob, "bob", "Bob")

	send(t, east, alice, MessageTypePresenceUpdate, ResourcePayload{ResourceType: presence.ResourceMap, ResourceID: "1"})
	expectType(t, alice, MessageTypePresenceUpdate)

	p := decodePresence(t, expectType(t, bob, MessageTypePresenceUpdate))
	if p.ActorID != "alice" || p.ResourceKey() != "map:1" {
		t.Errorf("relayed presence = %+v", p)
	}
	waitFor(t, "west registry", func() bool { return len(west.Presences()) == 1 })

	east.Unregister <- alice
	var leave LeavePayload
	if err := expectType(t, bob, MessageTypePresenceLeave).DecodePayload(&leave); err != nil || leave.ID != p.ID {
		t.Errorf("relayed leave = %+v, want %s", leave, p.ID)
	}

	for _, s := range bus.subjects() {
		if s != "hajk.presence.east" {
			t.Errorf("unexpected publish subject %s", s)
		}
	}
}

func TestRelay_IgnoresOwnAndMalformedEvents(t *testing.T) {
	h, _ := startTestHub(t, DefaultHubConfig())
	r := NewRelay(h, &memoryBus{}, "hajk.presence", "self")

	p := presence.New("x", "X", presence.Resource{Type: presence.ResourceTool, ID: "t"}, hubStart)
	own, err := json.Marshal(RelayEvent{Instance: "self", Type: RelayEventUpdate, Presence: &p})
	if err != nil {
		t.Fatal(err)
	}
	r.handleMessage(own)
	r.handleMessage([]byte("{not json"))

	// Flush the hub loop with a round trip before checking state.
	c := join(t, h)
	send(t, h, c, MessageTypePing, nil)
	expectType(t, c, MessageTypePong)

	if len(h.Presences()) != 0 {
		t.Errorf("own or malformed events must be ignored, got %v", h.Presences())
	}
}

func TestRelay_StartError(t *testing.T) {
	h := NewHub(DefaultHubConfig(), nil)
	bus := &memoryBus{fail: errors.New("no route")}
	r := NewRelay(h, bus, "hajk.presence", "")

	if r.Instance() == "" {
		t.Error("empty instance id should be replaced with a generated one")
	}
	if err := r.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "no route") {
		t.Errorf("Start error = %v", err)
	}
	// Stop on a relay that never started is a no-op.
	r.Stop()
}

func TestRelay_StopDetachesPublisher(t *testing.T) {
	h, _ := startTestHub(t, DefaultHubConfig())
	r := NewRelay(h, &memoryBus{}, "hajk.presence", "svc")

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.pubMu.RLock()
	attached := h.publisher != nil
	h.pubMu.RUnlock()
	if !attached {
		t.Fatal("relay should attach as the hub publisher")
	}

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	h.pubMu.RLock()
	defer h.pubMu.RUnlock()
	if h.publisher != nil {
		t.Error("publisher should be detached after Stop")
	}
}
