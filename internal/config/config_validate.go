// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package config

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/hajkmap/hajk-presence/internal/logging"
)

// Validate checks that the configuration is complete and within bounds.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateWebSocket(); err != nil {
		return err
	}

	if err := c.validatePresence(); err != nil {
		return err
	}

	if err := c.validateChannel(); err != nil {
		return err
	}

	if err := c.validateClient(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	return c.validateLogging()
}

var validEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if !validEnvironments[c.Server.Environment] {
		return fmt.Errorf("ENVIRONMENT must be one of: development, staging, production")
	}
	if err := c.validateOrigins(); err != nil {
		return err
	}
	return c.validateRateLimits()
}

// validateOrigins rejects a wildcard websocket origin list in production.
// Anyone able to reach the relay could otherwise watch who edits what.
func (c *Config) validateOrigins() error {
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" && c.IsProduction() {
			return fmt.Errorf("ALLOWED_ORIGINS=* is not allowed when ENVIRONMENT=production; " +
				"list the admin console origins, e.g. ALLOWED_ORIGINS=https://admin.example.com")
		}
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports whether the CORS configuration deserves a
// startup warning.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.IsProduction() && c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateRateLimits() error {
	if c.Server.RateLimitDisabled {
		return nil
	}
	if c.Server.RateLimitReqs < minRateLimitRequests || c.Server.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Server.RateLimitWindow < minRateLimitWindow || c.Server.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	if c.WebSocket.SendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1")
	}
	if c.WebSocket.RateLimit <= 0 {
		return fmt.Errorf("WS_RATE_LIMIT must be positive")
	}
	if c.WebSocket.RateBurst < 1 {
		return fmt.Errorf("WS_RATE_BURST must be at least 1")
	}
	return nil
}

func (c *Config) validatePresence() error {
	if c.Presence.SweepInterval <= 0 {
		return fmt.Errorf("PRESENCE_SWEEP_INTERVAL must be positive")
	}
	if c.Presence.MaxAge <= 0 {
		return fmt.Errorf("PRESENCE_MAX_AGE must be positive")
	}
	return nil
}

func (c *Config) validateChannel() error {
	if c.Channel.BaseDelay <= 0 {
		return fmt.Errorf("CHANNEL_BASE_DELAY must be positive")
	}
	if c.Channel.MaxDelay < c.Channel.BaseDelay {
		return fmt.Errorf("CHANNEL_MAX_DELAY must not be shorter than CHANNEL_BASE_DELAY")
	}
	if c.Channel.MaxAttempts < 0 {
		return fmt.Errorf("CHANNEL_MAX_ATTEMPTS must not be negative")
	}
	if c.Channel.HistorySize < 1 {
		return fmt.Errorf("CHANNEL_HISTORY_SIZE must be at least 1")
	}
	if c.Channel.DialTimeout <= 0 {
		return fmt.Errorf("CHANNEL_DIAL_TIMEOUT must be positive")
	}
	return nil
}

// validateClient checks the watch client settings. The base URL is only
// required by the watch command, so an empty value passes here.
func (c *Config) validateClient() error {
	if c.Client.BaseURL != "" {
		if err := validateBaseURL(c.Client.BaseURL, "HAJK_BASE_URL"); err != nil {
			return err
		}
	}
	if _, err := language.Parse(c.Client.Language); err != nil {
		return fmt.Errorf("HAJK_LANGUAGE %q is not a valid language tag: %w", c.Client.Language, err)
	}
	if c.Client.QueueSize < 1 {
		return fmt.Errorf("SESSION_QUEUE_SIZE must be at least 1")
	}
	return nil
}

// validateNATS validates the relay settings (only if enabled).
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL: %w", err)
	}
	if c.NATS.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
	}
	if strings.ContainsAny(c.NATS.Subject, "*> ") {
		return fmt.Errorf("NATS_SUBJECT must not contain wildcards or spaces: %q", c.NATS.Subject)
	}
	if strings.ContainsAny(c.NATS.InstanceID, "*>. ") {
		return fmt.Errorf("NATS_INSTANCE_ID must be a single subject token: %q", c.NATS.InstanceID)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic, disabled")
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

// IsProduction reports whether ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
