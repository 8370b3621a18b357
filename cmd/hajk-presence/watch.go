// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hajkmap/hajk-presence/internal/config"
	"github.com/hajkmap/hajk-presence/internal/i18n"
	"github.com/hajkmap/hajk-presence/internal/presence"
	"github.com/hajkmap/hajk-presence/internal/session"
	"github.com/hajkmap/hajk-presence/internal/websocket"
)

type watchOptions struct {
	baseURL  string
	userID   string
	name     string
	email    string
	language string
	path     string
	stdin    bool
	asJSON   bool
	duration time.Duration
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Join the presence channel and print who is editing what",
		Long: "watch logs in as an admin, reports the admin console path given with --path " +
			"(or streamed on stdin with --stdin) and prints the session view and notifications " +
			"until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			return runWatch(cmd, cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "base-url", "", "Hajk backend base URL (default HAJK_BASE_URL)")
	f.StringVar(&opts.userID, "user-id", "", "admin user id (default HAJK_USER_ID)")
	f.StringVar(&opts.name, "name", "", "admin display name (default HAJK_USER_NAME)")
	f.StringVar(&opts.email, "email", "", "admin email (default HAJK_USER_EMAIL)")
	f.StringVar(&opts.language, "lang", "", "notification language, one of "+supportedLanguages()+" (default HAJK_LANGUAGE)")
	f.StringVar(&opts.path, "path", "", "admin console path to report, e.g. /maps/1")
	f.BoolVar(&opts.stdin, "stdin", false, "read further paths from stdin, one per line")
	f.BoolVar(&opts.asJSON, "json", false, "print each view as a JSON line")
	f.DurationVar(&opts.duration, "for", 0, "stop after this long (0 runs until interrupted)")

	return cmd
}

// watchView is one printed line: the session view plus the badge for the
// current resource.
type watchView struct {
	session.Snapshot
	Badge []string `json:"badge"`
}

func supportedLanguages() string {
	tags := i18n.Supported()
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.String()
	}
	return strings.Join(names, ", ")
}

// watchPrinter serializes output from the update loop and the notifier.
// Connection changes and the badge are also announced as localized
// notification lines.
type watchPrinter struct {
	mu        sync.Mutex
	out       io.Writer
	tr        *i18n.Translator
	asJSON    bool
	last      string
	lastState string
	lastBadge string
}

func (p *watchPrinter) notify(message string, _ session.NotifyOptions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.noteLocked(message)
}

func (p *watchPrinter) noteLocked(message string) {
	if p.asJSON {
		line, _ := json.Marshal(map[string]string{"notification": message})
		fmt.Fprintln(p.out, string(line))
		return
	}
	fmt.Fprintf(p.out, "* %s\n", message)
}

func (p *watchPrinter) view(v watchView) {
	var line string
	if p.asJSON {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		line = string(data)
	} else {
		line = formatView(v)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if v.StateName != p.lastState {
		p.lastState = v.StateName
		p.noteLocked(p.tr.Connection(v.StateName))
	}
	if badge := strings.Join(v.Badge, ", "); badge != p.lastBadge {
		p.lastBadge = badge
		if badge != "" {
			p.noteLocked(p.tr.OthersEditing(v.Badge))
		}
	}
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(p.out, line)
}

func formatView(v watchView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", v.StateName)
	if v.Registered {
		b.WriteString(" registered")
	}
	if v.Path != "" {
		fmt.Fprintf(&b, " path=%s", v.Path)
	}
	if v.Resource != nil {
		fmt.Fprintf(&b, " resource=%s", v.Resource.Key())
		if len(v.Badge) == 0 {
			b.WriteString(" others=none")
		} else {
			fmt.Fprintf(&b, " others=%s", strings.Join(v.Badge, ", "))
		}
	}
	fmt.Fprintf(&b, " admins=%d", len(presence.ByActor(v.Admins)))
	return b.String()
}

func runWatch(cmd *cobra.Command, cfg *config.Config, opts *watchOptions) error {
	client := cfg.Client
	if opts.baseURL != "" {
		client.BaseURL = opts.baseURL
	}
	if opts.userID != "" {
		client.UserID = opts.userID
	}
	if opts.name != "" {
		client.FullName = opts.name
	}
	if opts.email != "" {
		client.Email = opts.email
	}
	if opts.language != "" {
		client.Language = opts.language
	}
	if client.BaseURL == "" {
		return errors.New("base URL is required (--base-url or HAJK_BASE_URL)")
	}
	if client.UserID == "" {
		return errors.New("user id is required (--user-id or HAJK_USER_ID)")
	}
	if _, err := session.DeriveEndpoint(client.BaseURL); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	printer := &watchPrinter{
		out:    cmd.OutOrStdout(),
		tr:     i18n.New(client.Language),
		asJSON: opts.asJSON,
	}

	channel := websocket.NewChannel(websocket.ChannelConfig{
		BaseDelay:   cfg.Channel.BaseDelay,
		MaxDelay:    cfg.Channel.MaxDelay,
		MaxAttempts: cfg.Channel.MaxAttempts,
		HistorySize: cfg.Channel.HistorySize,
		DialTimeout: cfg.Channel.DialTimeout,
	}, websocket.NewGorillaDialer(nil), nil)

	ctrl := session.New(session.Config{
		BaseURL:       client.BaseURL,
		Language:      client.Language,
		SweepInterval: cfg.Presence.SweepInterval,
		MaxAge:        cfg.Presence.MaxAge,
		QueueSize:     client.QueueSize,
	}, channel, session.NotifierFunc(printer.notify), nil)

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	ctrl.SetUser(&session.User{ID: client.UserID, FullName: client.FullName, Email: client.Email})
	if opts.path != "" {
		ctrl.Navigate(opts.path)
	}
	if opts.stdin {
		go streamPaths(ctx, cmd.InOrStdin(), ctrl)
	}

	for {
		select {
		case s := <-ctrl.Updates():
			printer.view(project(ctrl.Registry(), s))
		case err := <-done:
			// Flush the final view published on teardown.
			select {
			case s := <-ctrl.Updates():
				printer.view(project(ctrl.Registry(), s))
			default:
			}
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		}
	}
}

func project(r presence.Reader, s session.Snapshot) watchView {
	v := watchView{Snapshot: s, Badge: []string{}}
	if s.Resource != nil {
		v.Badge = presence.BadgeNames(r, s.Resource.Type, s.Resource.ID)
	}
	return v
}

// streamPaths feeds each non-empty stdin line to the controller as a
// navigation.
func streamPaths(ctx context.Context, in io.Reader, ctrl *session.Controller) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if path := strings.TrimSpace(scanner.Text()); path != "" {
			ctrl.Navigate(path)
		}
	}
}
