// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hajkmap/hajk-presence/internal/clock"
	"github.com/hajkmap/hajk-presence/internal/i18n"
	"github.com/hajkmap/hajk-presence/internal/logging"
	"github.com/hajkmap/hajk-presence/internal/metrics"
	"github.com/hajkmap/hajk-presence/internal/presence"
	"github.com/hajkmap/hajk-presence/internal/websocket"
)

// ErrClosed is returned by Current after the controller has been closed.
var ErrClosed = errors.New("session controller closed")

// User is the authenticated admin.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// DisplayName is the full name, falling back to email, then id.
func (u User) DisplayName() string {
	switch {
	case u.FullName != "":
		return u.FullName
	case u.Email != "":
		return u.Email
	default:
		return u.ID
	}
}

// Link is the part of websocket.Channel the controller drives.
type Link interface {
	Connect(url string)
	Disconnect()
	SendType(msgType string, payload interface{}) bool
	State() websocket.State
	Connection() (websocket.State, uint64)
	SetHandlers(h websocket.Handlers)
}

// Config holds controller settings.
type Config struct {
	BaseURL        string
	Language       string
	SweepInterval  time.Duration
	MaxAge         time.Duration
	JoinAutoClose  time.Duration
	LeaveAutoClose time.Duration
	Position       Position
	// QueueSize bounds the channel messages waiting for the loop. Messages
	// beyond it are dropped; the server's next admin-sync repairs the view.
	QueueSize int
}

// DefaultConfig returns the standard controller settings.
func DefaultConfig() Config {
	return Config{
		Language:       "en",
		SweepInterval:  60 * time.Second,
		MaxAge:         presence.DefaultMaxAge,
		JoinAutoClose:  3 * time.Second,
		LeaveAutoClose: 2 * time.Second,
		Position:       PositionBottomRight,
		QueueSize:      1024,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Language == "" {
		c.Language = def.Language
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.MaxAge <= 0 {
		c.MaxAge = def.MaxAge
	}
	if c.JoinAutoClose <= 0 {
		c.JoinAutoClose = def.JoinAutoClose
	}
	if c.LeaveAutoClose <= 0 {
		c.LeaveAutoClose = def.LeaveAutoClose
	}
	if c.Position == "" {
		c.Position = def.Position
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	return c
}

// Snapshot is the controller's view after an event has been handled.
type Snapshot struct {
	State      websocket.State     `json:"-"`
	StateName  string              `json:"state"`
	User       *User               `json:"user,omitempty"`
	Registered bool                `json:"registered"`
	Path       string              `json:"path"`
	Resource   *presence.Resource  `json:"resource,omitempty"`
	Self       *presence.Presence  `json:"self,omitempty"`
	Others     []presence.Presence `json:"others"`
	Admins     []presence.Presence `json:"admins"`
}

type eventKind int

const (
	eventUser eventKind = iota
	eventNavigate
	eventState
	eventMessage
	eventQuery
)

type event struct {
	kind  eventKind
	user  *User
	path  string
	state websocket.State
	msg   websocket.Message
	reply chan Snapshot
}

// Controller ties authentication, navigation, the channel and the presence
// registry together. All of its state is owned by the Run loop; the public
// methods only queue events for it.
type Controller struct {
	cfg      Config
	link     Link
	registry *presence.Registry
	clock    clock.Clock
	notifier Notifier
	tr       *i18n.Translator
	logger   zerolog.Logger
	endpoint string

	qmu      sync.Mutex
	queue    []event
	messages int
	wake     chan struct{}

	updates   chan Snapshot
	closed    chan struct{}
	closeOnce sync.Once

	// Loop-owned.
	user       *User
	actorID    string
	registered bool
	// registeredGen is the link generation register was sent on.
	registeredGen uint64
	lastSentKey   string
	path          string
	resource      *presence.Resource
	baselineKey   string
	baseline      map[string]presence.Presence
}

// New creates a controller and attaches it to link. A nil notifier logs
// notifications instead; a nil clock uses wall time.
func New(cfg Config, link Link, notifier Notifier, clk clock.Clock) *Controller {
	cfg = cfg.withDefaults()
	if clk == nil {
		clk = clock.New()
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}

	c := &Controller{
		cfg:      cfg,
		link:     link,
		registry: presence.NewRegistry(clk, "client"),
		clock:    clk,
		notifier: notifier,
		tr:       i18n.New(cfg.Language),
		logger:   logging.WithComponent("presence-session"),
		wake:     make(chan struct{}, 1),
		updates:  make(chan Snapshot, 1),
		closed:   make(chan struct{}),
	}

	if cfg.BaseURL != "" {
		endpoint, err := DeriveEndpoint(cfg.BaseURL)
		if err != nil {
			c.logger.Error().Err(err).Str("base_url", cfg.BaseURL).Msg("cannot derive presence endpoint")
		}
		c.endpoint = endpoint
	}

	link.SetHandlers(websocket.Handlers{
		OnMessage: c.HandleMessage,
		OnState:   c.HandleState,
	})
	return c
}

// Registry exposes the registry for read-only projections such as badges.
func (c *Controller) Registry() presence.Reader {
	return c.registry
}

// Updates delivers the latest snapshot after each handled event. Slow
// readers only ever see the newest one.
func (c *Controller) Updates() <-chan Snapshot {
	return c.updates
}

// SetUser reports the authenticated admin. nil means logged out.
func (c *Controller) SetUser(u *User) {
	if u != nil {
		cp := *u
		u = &cp
	}
	c.post(event{kind: eventUser, user: u})
}

// Navigate reports the admin console's current location path.
func (c *Controller) Navigate(path string) {
	c.post(event{kind: eventNavigate, path: path})
}

// HandleMessage queues a decoded channel message.
func (c *Controller) HandleMessage(msg websocket.Message) {
	c.post(event{kind: eventMessage, msg: msg})
}

// HandleState queues a channel state change.
func (c *Controller) HandleState(s websocket.State) {
	c.post(event{kind: eventState, state: s})
}

// Current returns a snapshot taken by the loop once every event queued
// before the call has been handled.
func (c *Controller) Current(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	c.post(event{kind: eventQuery, reply: reply})
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-c.closed:
		return Snapshot{}, ErrClosed
	}
}

// Close stops Run. It is safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Run handles events until ctx is done or Close is called, then tears the
// session down. The sweep ticker lives only as long as Run.
func (c *Controller) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	defer c.teardown()

	c.logger.Info().
		Dur("sweep_interval", c.cfg.SweepInterval).
		Dur("max_age", c.cfg.MaxAge).
		Msg("presence session started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return nil
		case <-c.wake:
			c.drain()
		case <-ticker.C():
			c.sweep()
			c.publish()
		}
	}
}

func (c *Controller) post(ev event) {
	c.qmu.Lock()
	if ev.kind == eventMessage {
		if c.messages >= c.cfg.QueueSize {
			c.qmu.Unlock()
			c.logger.Warn().Str("type", ev.msg.Type).Msg("session queue full, dropping message")
			return
		}
		c.messages++
	}
	c.queue = append(c.queue, ev)
	c.qmu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// drain handles queued events in order, including any queued while
// handling (link calls report state synchronously).
func (c *Controller) drain() {
	for {
		c.qmu.Lock()
		if len(c.queue) == 0 {
			c.qmu.Unlock()
			break
		}
		ev := c.queue[0]
		c.queue[0] = event{}
		c.queue = c.queue[1:]
		if ev.kind == eventMessage {
			c.messages--
		}
		c.qmu.Unlock()

		c.handle(ev)
	}
	c.publish()
}

func (c *Controller) handle(ev event) {
	switch ev.kind {
	case eventUser:
		c.handleUser(ev.user)
	case eventNavigate:
		c.handleNavigate(ev.path)
	case eventState:
		c.handleState(ev.state)
	case eventMessage:
		c.handleMessage(ev.msg)
	case eventQuery:
		ev.reply <- c.snapshot()
	}
}

func (c *Controller) handleUser(u *User) {
	if u == nil || u.ID == "" {
		if c.actorID != "" {
			c.logger.Info().Str("user_id", c.actorID).Msg("admin logged out, closing presence session")
		}
		c.link.Disconnect()
		c.reset()
		return
	}

	if u.ID == c.actorID {
		c.user = u
		if c.link.State() == websocket.StateDisconnected {
			// The channel gave up or was closed; logging in again is how
			// the session recovers.
			c.connect()
		}
		return
	}

	if c.actorID != "" {
		c.link.Disconnect()
		c.reset()
	}
	c.user = u
	c.actorID = u.ID
	c.logger.Info().
		Str("user_id", u.ID).
		Str("email", logging.SanitizeEmail(u.Email)).
		Msg("admin authenticated, opening presence session")
	c.connect()
}

func (c *Controller) connect() {
	c.registered = false
	if c.endpoint == "" {
		c.logger.Warn().Msg("no presence endpoint configured, staying offline")
		return
	}
	c.link.Connect(c.endpoint)
}

// reset forgets everything tied to the current login. The path is kept:
// the router still shows it.
func (c *Controller) reset() {
	c.user = nil
	c.actorID = ""
	c.registered = false
	c.lastSentKey = ""
	c.registry.Clear()
	c.baselineKey = ""
	c.baseline = nil
	c.resource, _ = resourceFor(c.path)
}

func (c *Controller) handleState(s websocket.State) {
	live, gen := c.link.Connection()
	current := c.registered && live == websocket.StateConnected && gen == c.registeredGen

	if s != websocket.StateConnected {
		// Queued from before the connection we are registered on.
		if current {
			return
		}
		// The server forgets us with the connection.
		c.registered = false
		c.lastSentKey = ""
		c.registry.SetSelf(nil)
		return
	}
	if c.user == nil || current || live != websocket.StateConnected {
		return
	}

	payload := websocket.RegisterPayload{UserID: c.user.ID, UserName: c.user.DisplayName()}
	if !c.link.SendType(websocket.MessageTypeRegister, payload) {
		return
	}
	c.registered = true
	c.registeredGen = gen
	c.logger.Debug().Str("user_id", c.user.ID).Uint64("generation", gen).Msg("registered with presence server")
	c.broadcastNavigation()
}

func (c *Controller) handleNavigate(path string) {
	c.path = path
	c.resource, _ = resourceFor(path)
	c.broadcastNavigation()
	c.evaluateNotifications()
}

// broadcastNavigation tells the server where we are, unless it already
// knows.
func (c *Controller) broadcastNavigation() {
	if c.user == nil || !c.registered || c.link.State() != websocket.StateConnected {
		return
	}

	res, ok := presence.MapPathToResource(c.path)
	key := ""
	if ok {
		key = res.Key()
	}
	if key == c.lastSentKey {
		return
	}
	c.lastSentKey = key

	if !ok {
		c.link.SendType(websocket.MessageTypePresenceLeave, nil)
		c.registry.SetSelf(nil)
		return
	}

	self := presence.New(c.user.ID, c.user.DisplayName(), res, c.clock.Now())
	c.registry.SetSelf(&self)
	c.link.SendType(websocket.MessageTypePresenceUpdate, websocket.ResourcePayload{
		ID:           self.ID,
		ResourceType: self.ResourceType,
		ResourceID:   self.ResourceID,
	})
}

func (c *Controller) handleMessage(msg websocket.Message) {
	if c.actorID == "" {
		return
	}

	switch msg.Type {
	case websocket.MessageTypeAdminSync:
		admins, ok := decodeAdmins(msg)
		if !ok {
			c.logger.Debug().Msg("dropping malformed admin-sync")
			return
		}
		c.registry.SetAll(admins)
	case websocket.MessageTypePresenceJoin, websocket.MessageTypePresenceUpdate:
		var p presence.Presence
		if err := msg.DecodePayload(&p); err != nil || p.ID == "" {
			c.logger.Debug().Str("type", msg.Type).Msg("dropping malformed presence")
			return
		}
		c.registry.Upsert(p)
	case websocket.MessageTypePresenceLeave:
		var p websocket.LeavePayload
		if err := msg.DecodePayload(&p); err != nil || p.ID == "" {
			c.logger.Debug().Msg("dropping malformed presence-leave")
			return
		}
		if !c.registry.Remove(p.ID) {
			return
		}
	default:
		return
	}
	c.evaluateNotifications()
}

// decodeAdmins reads {"admins": [...]} and, for older servers, a bare list.
func decodeAdmins(msg websocket.Message) ([]presence.Presence, bool) {
	var payload websocket.AdminSyncPayload
	if err := msg.DecodePayload(&payload); err == nil {
		return payload.Admins, true
	}
	var list []presence.Presence
	if err := msg.DecodePayload(&list); err == nil {
		return list, true
	}
	return nil, false
}

func (c *Controller) sweep() {
	if evicted := c.registry.EvictStale(c.cfg.MaxAge); len(evicted) > 0 {
		c.logger.Debug().Strs("ids", evicted).Msg("evicted stale presences")
		c.evaluateNotifications()
	}
}

// evaluateNotifications compares the actors on the current resource with
// the previous look at the same resource. Moving to another resource only
// takes a new baseline.
func (c *Controller) evaluateNotifications() {
	key := ""
	var current map[string]presence.Presence
	if c.resource != nil {
		key = c.resource.Key()
		current = presence.ByActor(c.registry.Query(c.resource.Type, c.resource.ID))
	}
	if c.user != nil {
		delete(current, c.user.ID)
	}

	if key != c.baselineKey || c.baseline == nil {
		c.baselineKey = key
		c.baseline = current
		if c.baseline == nil {
			c.baseline = map[string]presence.Presence{}
		}
		return
	}
	if c.resource == nil {
		return
	}

	rt := c.resource.Type
	for _, p := range sortedByLabel(current, c.baseline) {
		c.notify(c.tr.StartedEditing(p.Label(), rt), c.cfg.JoinAutoClose, "join")
	}
	for _, p := range sortedByLabel(c.baseline, current) {
		c.notify(c.tr.StoppedEditing(p.Label(), rt), c.cfg.LeaveAutoClose, "leave")
	}
	c.baseline = current
	if c.baseline == nil {
		c.baseline = map[string]presence.Presence{}
	}
}

func (c *Controller) notify(text string, autoClose time.Duration, kind string) {
	metrics.RecordNotification(kind)
	c.notifier.Notify(text, NotifyOptions{Position: c.cfg.Position, AutoClose: autoClose})
}

// sortedByLabel returns the entries of a whose actor is missing from b.
func sortedByLabel(a, b map[string]presence.Presence) []presence.Presence {
	var out []presence.Presence
	for actor, p := range a {
		if _, ok := b[actor]; !ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label() != out[j].Label() {
			return out[i].Label() < out[j].Label()
		}
		return out[i].ActorID < out[j].ActorID
	})
	return out
}

func (c *Controller) teardown() {
	c.link.Disconnect()
	c.reset()
	c.publish()
	c.logger.Info().Msg("presence session stopped")
}

func (c *Controller) snapshot() Snapshot {
	state := c.link.State()
	s := Snapshot{
		State:      state,
		StateName:  state.String(),
		Registered: c.registered,
		Path:       c.path,
		Admins:     c.registry.Snapshot(),
		Others:     []presence.Presence{},
	}
	if c.user != nil {
		u := *c.user
		s.User = &u
	}
	if c.resource != nil {
		res := *c.resource
		s.Resource = &res
		s.Others = presence.OthersOnResource(c.registry, res.Type, res.ID)
	}
	if self, ok := c.registry.Self(); ok {
		s.Self = &self
	}
	return s
}

// publish replaces any unread snapshot with the current one.
func (c *Controller) publish() {
	s := c.snapshot()
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- s:
	default:
	}
}

func resourceFor(path string) (*presence.Resource, bool) {
	res, ok := presence.MapPathToResource(path)
	if !ok {
		return nil, false
	}
	return &res, true
}
