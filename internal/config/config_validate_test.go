// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"rate limit disabled skips bounds", func(c *Config) {
			c.Server.RateLimitDisabled = true
			c.Server.RateLimitReqs = 0
		}, ""},
		{"rate limit requests", func(c *Config) { c.Server.RateLimitReqs = 0 }, "RATE_LIMIT_REQUESTS"},
		{"unknown environment", func(c *Config) { c.Server.Environment = "qa" }, "ENVIRONMENT"},
		{"send buffer", func(c *Config) { c.WebSocket.SendBuffer = 0 }, "WS_SEND_BUFFER"},
		{"channel history", func(c *Config) { c.Channel.HistorySize = 0 }, "CHANNEL_HISTORY_SIZE"},
		{"negative attempts", func(c *Config) { c.Channel.MaxAttempts = -1 }, "CHANNEL_MAX_ATTEMPTS"},
		{"zero attempts allowed", func(c *Config) { c.Channel.MaxAttempts = 0 }, ""},
		{"max delay below base", func(c *Config) { c.Channel.MaxDelay = 500 * time.Millisecond }, "CHANNEL_MAX_DELAY"},
		{"long retry budget allowed", func(c *Config) { c.Channel.MaxAttempts = 1000 }, ""},
		{"base url without host", func(c *Config) { c.Client.BaseURL = "https://" }, "host is required"},
		{"base url with path", func(c *Config) { c.Client.BaseURL = "http://localhost:3002/api/v2" }, ""},
		{"language", func(c *Config) { c.Client.Language = "not a tag" }, "HAJK_LANGUAGE"},
		{"nats subject wildcard", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.Subject = "hajk.>"
		}, "NATS_SUBJECT"},
		{"nats instance with dot", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.InstanceID = "a.b"
		}, "NATS_INSTANCE_ID"},
		{"disabled nats is not checked", func(c *Config) { c.NATS.URL = "::" }, ""},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestShouldWarnAboutCORS(t *testing.T) {
	cfg := defaultConfig()
	if cfg.ShouldWarnAboutCORS() {
		t.Error("development wildcard CORS should not warn")
	}
	cfg.Server.Environment = "production"
	if !cfg.ShouldWarnAboutCORS() {
		t.Error("production wildcard CORS should warn")
	}
	cfg.Server.CORSOrigins = []string{"https://admin.example.com"}
	if cfg.ShouldWarnAboutCORS() {
		t.Error("explicit origins should not warn")
	}
}

func TestValidateNATSURL(t *testing.T) {
	for _, u := range []string{"nats://localhost:4222", "tls://nats.example.com", "wss://nats.example.com/ws"} {
		if err := validateNATSURL(u); err != nil {
			t.Errorf("validateNATSURL(%q) = %v", u, err)
		}
	}
	for _, u := range []string{"http://nats:4222", "nats://", "://bad"} {
		if err := validateNATSURL(u); err == nil {
			t.Errorf("validateNATSURL(%q) should fail", u)
		}
	}
}
