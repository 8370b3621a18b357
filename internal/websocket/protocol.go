// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package websocket

import (
	"bytes"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/hajkmap/hajk-presence/internal/presence"
)

// Message types exchanged over the presence channel.
const (
	// client -> server
	MessageTypeRegister = "register"

	// both directions
	MessageTypePresenceUpdate = "presence-update"
	MessageTypePresenceLeave  = "presence-leave"

	// server -> client
	MessageTypeAdminSync    = "admin-sync"
	MessageTypePresenceJoin = "presence-join"

	// keepalive at the application level
	MessageTypePing = "ping"
	MessageTypePong = "pong"

	// plain-text frames classified by prefix
	MessageTypeWelcome = "welcome"
	MessageTypeEcho    = "echo"
	MessageTypeError   = "error"
	MessageTypeText    = "text"
)

// Envelope is the outbound wire shape: {"type": ..., "payload": ...}.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// RegisterPayload identifies the actor behind a connection.
type RegisterPayload struct {
	UserID   string `json:"userId" validate:"required,notblank,printable,max=256"`
	UserName string `json:"userName" validate:"printable,max=256"`
}

// ResourcePayload is the client's presence-update body. Clients usually send
// their whole Presence; only these fields are read. ID is kept when it
// belongs to the registered actor so the sender recognises its own echo.
type ResourcePayload struct {
	ID           string                `json:"id,omitempty" validate:"omitempty,printable,max=300"`
	ResourceType presence.ResourceType `json:"resourceType" validate:"required,resourcetype"`
	ResourceID   string                `json:"resourceId" validate:"required,notblank,printable,max=256"`
}

// LeavePayload names the presence that left. Empty when sent by a client.
type LeavePayload struct {
	ID string `json:"id,omitempty"`
}

// AdminSyncPayload is the server's authoritative snapshot.
type AdminSyncPayload struct {
	Admins []presence.Presence `json:"admins"`
}

// Message is a decoded inbound frame.
//
// Payload holds the frame's "payload" field when present and non-null,
// otherwise the whole frame. For plain-text frames Payload is the text
// encoded as a JSON string.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Raw       string          `json:"raw"`
	Timestamp time.Time       `json:"timestamp"`
}

// DecodePayload unmarshals the message payload into v.
func (m Message) DecodePayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// textPrefixes classifies plain-text server frames. First match wins.
var textPrefixes = []struct {
	prefix  string
	msgType string
}{
	{"Welcome", MessageTypeWelcome},
	{"Echo:", MessageTypeEcho},
	{"Error:", MessageTypeError},
}

// Decode turns a raw frame into a Message. It never fails: frames that are
// not JSON objects with a string "type" field are classified as text.
func Decode(raw []byte, now time.Time) Message {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		var msgType string
		if t, ok := fields["type"]; ok && json.Unmarshal(t, &msgType) == nil && msgType != "" {
			payload := fields["payload"]
			if len(payload) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
				payload = json.RawMessage(raw)
			}
			return Message{
				Type:      msgType,
				Payload:   payload,
				Raw:       string(raw),
				Timestamp: now,
			}
		}
	}
	return decodeText(string(raw), now)
}

func decodeText(text string, now time.Time) Message {
	msgType := ClassifyText(text)
	payload, err := json.Marshal(text)
	if err != nil {
		payload = []byte(`""`)
	}
	return Message{
		Type:      msgType,
		Payload:   payload,
		Raw:       text,
		Timestamp: now,
	}
}

// ClassifyText maps a plain-text frame to a message type by prefix.
func ClassifyText(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, p := range textPrefixes {
		if strings.HasPrefix(trimmed, p.prefix) {
			return p.msgType
		}
	}
	return MessageTypeText
}

// Encode marshals an envelope of the given type.
func Encode(msgType string, payload interface{}) ([]byte, error) {
	if payload == nil {
		payload = struct{}{}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: payload})
}
