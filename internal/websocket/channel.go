// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/hajkmap/hajk-presence/internal/clock"
	"github.com/hajkmap/hajk-presence/internal/logging"
	"github.com/hajkmap/hajk-presence/internal/metrics"
)

// State is the channel connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ChannelConfig tunes reconnection and keepalive.
type ChannelConfig struct {
	// BaseDelay is the first reconnect delay. Attempt n waits BaseDelay * 2^n,
	// capped at MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxAttempts bounds consecutive reconnects after an abnormal close.
	MaxAttempts int
	// HistorySize bounds the decoded message history.
	HistorySize int
	DialTimeout time.Duration
	PingPeriod  time.Duration
}

// DefaultChannelConfig returns 1s base delay, 5 attempts, 100 messages.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 5,
		HistorySize: 100,
		DialTimeout: 10 * time.Second,
		PingPeriod:  pingPeriod,
	}
}

func (c ChannelConfig) withDefaults() ChannelConfig {
	d := DefaultChannelConfig()
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.MaxAttempts < 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = d.PingPeriod
	}
	return c
}

// Handlers receive channel events. Both are called outside the channel lock;
// messages arrive in transport order from the read loop.
type Handlers struct {
	OnMessage func(Message)
	OnState   func(State)
}

// Channel keeps one logical connection to a presence endpoint and reconnects
// with bounded exponential backoff after abnormal closes.
//
// Every connection attempt gets a generation number. Dial results, read loop
// errors and reconnect timers that belong to an older generation are
// discarded, so a Disconnect or a new Connect always wins over late events.
type Channel struct {
	cfg    ChannelConfig
	dialer Dialer
	clock  clock.Clock
	logger zerolog.Logger

	mu          sync.Mutex
	url         string
	conn        Conn
	stopPing    chan struct{}
	cancelDial  context.CancelFunc
	gen         uint64
	state       State
	attempt     int
	timer       clock.Timer
	history     []Message
	lastMessage *Message
	connErr     string
	handlers    Handlers

	writeMu sync.Mutex
}

// NewChannel creates a disconnected channel. A nil dialer uses gorilla, a nil
// clock uses wall time.
func NewChannel(cfg ChannelConfig, dialer Dialer, clk clock.Clock) *Channel {
	if dialer == nil {
		dialer = NewGorillaDialer(nil)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Channel{
		cfg:    cfg.withDefaults(),
		dialer: dialer,
		clock:  clk,
		logger: logging.WithComponent("presence-channel"),
		state:  StateDisconnected,
	}
}

// SetHandlers replaces the event handlers.
func (c *Channel) SetHandlers(h Handlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

// Connect opens a connection to rawURL. It returns immediately; the dial
// runs in the background. Connecting to the URL the channel is already
// connected or connecting to is a no-op. A call from outside always starts
// a fresh backoff sequence, which is how a channel recovers after it has
// given up.
func (c *Channel) Connect(rawURL string) {
	c.mu.Lock()
	if rawURL == c.url && (c.state == StateConnected || c.state == StateConnecting) {
		c.mu.Unlock()
		return
	}
	c.attempt = 0
	changed, start := c.connectLocked(rawURL)
	onState := c.handlers.OnState
	c.mu.Unlock()

	emitState(onState, changed)
	start()
}

// Disconnect cancels any pending reconnect and closes the connection with
// code 1000. It never triggers a reconnect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.cancelTimerLocked()
	c.gen++
	c.closeLinkLocked(true)
	changed := c.setStateLocked(StateDisconnected)
	onState := c.handlers.OnState
	c.mu.Unlock()

	emitState(onState, changed)
}

// Send encodes v as JSON and writes it if the channel is connected.
// It reports whether the frame was written. Nothing is queued.
func (c *Channel) Send(v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode outbound message")
		return false
	}

	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if state != StateConnected || conn == nil {
		metrics.ChannelSendsDropped.Inc()
		c.logger.Warn().Str("state", state.String()).Msg("channel not connected, dropping outbound message")
		return false
	}

	c.writeMu.Lock()
	err = conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		metrics.ChannelSendsDropped.Inc()
		c.logger.Warn().Err(err).Msg("failed to write outbound message")
		return false
	}
	return true
}

// SendType sends a {"type", "payload"} envelope.
func (c *Channel) SendType(msgType string, payload interface{}) bool {
	if payload == nil {
		payload = struct{}{}
	}
	return c.Send(Envelope{Type: msgType, Payload: payload})
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connection returns the current state together with the generation of the
// link it describes. The generation changes on every Connect, reconnect dial
// and Disconnect, so two Connected readings with the same generation are the
// same connection.
func (c *Channel) Connection() (State, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.gen
}

// IsConnected reports whether State() == StateConnected.
func (c *Channel) IsConnected() bool {
	return c.State() == StateConnected
}

// Attempt returns the number of consecutive reconnect attempts.
func (c *Channel) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// URL returns the endpoint of the last Connect.
func (c *Channel) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// ConnectionError returns the last transport error, or "".
func (c *Channel) ConnectionError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connErr
}

// History returns a copy of the decoded message history, oldest first.
func (c *Channel) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// LastMessage returns the most recently decoded message.
func (c *Channel) LastMessage() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastMessage == nil {
		return Message{}, false
	}
	return *c.lastMessage, true
}

// connectLocked tears down the current link and prepares a dial to rawURL.
// The returned start func launches the dial; callers run it after emitting
// the state change so handlers see connecting before connected.
func (c *Channel) connectLocked(rawURL string) ([]State, func()) {
	c.cancelTimerLocked()
	c.gen++
	c.closeLinkLocked(true)
	c.url = rawURL

	if err := validateEndpoint(rawURL); err != nil {
		c.connErr = err.Error()
		c.logger.Error().Err(err).Str("url", rawURL).Msg("cannot connect presence channel")
		return c.setStateLocked(StateDisconnected), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	c.cancelDial = cancel
	gen := c.gen
	changed := c.setStateLocked(StateConnecting)
	return changed, func() { go c.dial(ctx, gen, rawURL) }
}

func (c *Channel) dial(ctx context.Context, gen uint64, rawURL string) {
	conn, err := c.dialer.Dial(ctx, rawURL)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("url", rawURL).Int("attempt", c.attempt).Msg("presence channel dial failed")
		changed := c.handleCloseLocked(err)
		onState := c.handlers.OnState
		c.mu.Unlock()
		emitState(onState, changed)
		return
	}

	stop := make(chan struct{})
	c.conn = conn
	c.stopPing = stop
	c.attempt = 0
	c.connErr = ""
	changed := c.setStateLocked(StateConnected)
	onState := c.handlers.OnState
	c.mu.Unlock()

	c.logger.Info().Str("url", rawURL).Msg("presence channel connected")
	emitState(onState, changed)

	go c.pingLoop(conn, stop)
	c.readLoop(gen, conn)
}

func (c *Channel) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.Read()
		if err != nil {
			c.mu.Lock()
			if gen != c.gen {
				c.mu.Unlock()
				return
			}
			c.closeLinkLocked(false)
			changed := c.handleCloseLocked(err)
			onState := c.handlers.OnState
			c.mu.Unlock()
			emitState(onState, changed)
			return
		}

		msg := Decode(data, c.clock.Now())

		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.appendHistoryLocked(msg)
		onMessage := c.handlers.OnMessage
		c.mu.Unlock()

		metrics.RecordDecodedMessage(msg.Type)
		if onMessage != nil {
			onMessage(msg)
		}
	}
}

func (c *Channel) pingLoop(conn Conn, stop <-chan struct{}) {
	ticker := c.clock.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			c.writeMu.Lock()
			err := conn.Ping()
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug().Err(err).Msg("presence channel ping failed")
				return
			}
		}
	}
}

// handleCloseLocked applies the reconnect policy after the link ended with err.
func (c *Channel) handleCloseLocked(err error) []State {
	if isCleanClose(err) {
		c.logger.Info().Msg("presence channel closed by server")
		return c.setStateLocked(StateDisconnected)
	}

	c.connErr = err.Error()
	if c.attempt >= c.cfg.MaxAttempts {
		metrics.ChannelReconnectExhausted.Inc()
		c.logger.Error().
			Int("attempts", c.attempt).
			Str("error", c.connErr).
			Msg("presence channel gave up reconnecting")
		return c.setStateLocked(StateDisconnected)
	}

	delay := backoffDelay(c.cfg.BaseDelay, c.cfg.MaxDelay, c.attempt)
	c.attempt++
	metrics.ChannelReconnectAttempts.Inc()

	gen, url := c.gen, c.url
	c.timer = c.clock.AfterFunc(delay, func() { c.reconnect(gen, url) })
	c.logger.Info().
		Int("attempt", c.attempt).
		Int("max_attempts", c.cfg.MaxAttempts).
		Dur("delay", delay).
		Msg("presence channel reconnect scheduled")
	return c.setStateLocked(StateReconnecting)
}

// backoffDelay returns base * 2^attempt, or limit once that would exceed it
// or overflow.
func backoffDelay(base, limit time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 62 || base > limit>>uint(attempt) {
		return limit
	}
	return base << uint(attempt)
}

func (c *Channel) reconnect(gen uint64, url string) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	changed, start := c.connectLocked(url)
	onState := c.handlers.OnState
	c.mu.Unlock()

	emitState(onState, changed)
	start()
}

func (c *Channel) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// closeLinkLocked drops the current connection. With clean set, a close
// frame with code 1000 is sent first.
func (c *Channel) closeLinkLocked(clean bool) {
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if c.stopPing != nil {
		close(c.stopPing)
		c.stopPing = nil
	}
	if c.conn == nil {
		return
	}
	conn := c.conn
	c.conn = nil
	if clean {
		if err := conn.CloseWith(CloseNormal, closeReasonOK); err != nil {
			c.logger.Debug().Err(err).Msg("error closing presence channel")
		}
		return
	}
	_ = conn.Close()
}

func (c *Channel) appendHistoryLocked(msg Message) {
	c.history = append(c.history, msg)
	if over := len(c.history) - c.cfg.HistorySize; over > 0 {
		// Copy so the backing array does not grow without bound.
		c.history = append([]Message(nil), c.history[over:]...)
	}
	last := msg
	c.lastMessage = &last
}

func (c *Channel) setStateLocked(s State) []State {
	if c.state == s {
		return nil
	}
	c.state = s
	metrics.SetChannelState(int(s))
	return []State{s}
}

func emitState(fn func(State), changed []State) {
	if fn == nil {
		return
	}
	for _, s := range changed {
		fn(s)
	}
}
