// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package session

import (
	"time"

	"github.com/hajkmap/hajk-presence/internal/logging"
)

// Position is where a toast appears.
type Position string

// PositionBottomRight is the position used for presence toasts.
const PositionBottomRight Position = "bottom-right"

// NotifyOptions controls how a toast is shown.
type NotifyOptions struct {
	Position  Position      `json:"position"`
	AutoClose time.Duration `json:"autoClose"`
}

// Notifier shows short-lived messages to the admin.
type Notifier interface {
	Notify(message string, opts NotifyOptions)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string, opts NotifyOptions)

// Notify calls f.
func (f NotifierFunc) Notify(message string, opts NotifyOptions) {
	f(message, opts)
}

// LogNotifier writes notifications to the log.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(message string, opts NotifyOptions) {
	logging.Info().
		Str("position", string(opts.Position)).
		Dur("auto_close", opts.AutoClose).
		Msg(message)
}
