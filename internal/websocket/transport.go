// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// Close codes used by the channel.
const (
	CloseNormal   = websocket.CloseNormalClosure
	closeReasonOK = "client disconnect"
)

// ErrInvalidURL is returned for endpoints that cannot be dialed at all.
var ErrInvalidURL = errors.New("invalid websocket url")

// Conn is one established duplex text connection.
type Conn interface {
	// Read blocks for the next frame.
	Read() ([]byte, error)
	// Write sends one text frame.
	Write(data []byte) error
	// Ping sends a keepalive.
	Ping() error
	// CloseWith sends a close frame with code and reason, then closes.
	CloseWith(code int, reason string) error
	// Close closes the connection without a close frame.
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// GorillaDialer dials with gorilla/websocket.
type GorillaDialer struct {
	Header         http.Header
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	dialer         websocket.Dialer
}

// NewGorillaDialer returns a dialer with the default timeouts.
func NewGorillaDialer(header http.Header) *GorillaDialer {
	return &GorillaDialer{
		Header:         header,
		PongWait:       pongWait,
		WriteWait:      writeWait,
		MaxMessageSize: maxMessageSize,
		dialer: websocket.Dialer{
			HandshakeTimeout:  10 * time.Second,
			EnableCompression: true,
		},
	}
}

// Dial establishes a connection to rawURL.
func (d *GorillaDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, rawURL, d.Header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	gc := &gorillaConn{conn: conn, pongWait: d.PongWait, writeWait: d.WriteWait}
	conn.SetReadLimit(d.MaxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(d.PongWait)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(d.PongWait))
	})
	return gc, nil
}

type gorillaConn struct {
	conn      *websocket.Conn
	pongWait  time.Duration
	writeWait time.Duration
}

func (g *gorillaConn) Read() ([]byte, error) {
	_, data, err := g.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if err := g.conn.SetReadDeadline(time.Now().Add(g.pongWait)); err != nil {
		return nil, err
	}
	return data, nil
}

func (g *gorillaConn) Write(data []byte) error {
	if err := g.conn.SetWriteDeadline(time.Now().Add(g.writeWait)); err != nil {
		return err
	}
	return g.conn.WriteMessage(websocket.TextMessage, data)
}

func (g *gorillaConn) Ping() error {
	return g.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.writeWait))
}

func (g *gorillaConn) CloseWith(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	writeErr := g.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	closeErr := g.conn.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

func (g *gorillaConn) Close() error {
	return g.conn.Close()
}

// validateEndpoint checks that rawURL is a dialable ws:// or wss:// URL.
func validateEndpoint(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: scheme must be ws or wss, got %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}

// isCleanClose reports whether err is a normal (code 1000) close.
func isCleanClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure)
}
