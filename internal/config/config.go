// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds the configuration for the relay server and the watch client.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any mapped setting
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load config")
//	}
//	srv := http.Server{Addr: cfg.Server.Addr()}
//
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Presence  PresenceConfig  `koanf:"presence"`
	Channel   ChannelConfig   `koanf:"channel"`
	Client    ClientConfig    `koanf:"client"`
	NATS      NATSConfig      `koanf:"nats"` // Optional: fan-out between relay replicas
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 3002)
//   - HTTP_TIMEOUT: Read/write timeout for plain HTTP requests (default: 30s)
//   - SHUTDOWN_TIMEOUT: Graceful shutdown limit (default: 10s)
//   - ENVIRONMENT: development or production (default: development)
//   - CORS_ORIGINS: Comma-separated CORS origins (default: *)
//   - ALLOWED_ORIGINS: Comma-separated origins accepted on websocket upgrade; empty allows all
//   - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT: HTTP rate limiting
type ServerConfig struct {
	Port              int           `koanf:"port"`
	Host              string        `koanf:"host"`
	Timeout           time.Duration `koanf:"timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	Environment       string        `koanf:"environment"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	AllowedOrigins    []string      `koanf:"allowed_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// WebSocketConfig holds per-connection hub settings.
type WebSocketConfig struct {
	Greeting   string  `koanf:"greeting"`
	SendBuffer int     `koanf:"send_buffer"`
	RateLimit  float64 `koanf:"rate_limit"`
	RateBurst  int     `koanf:"rate_burst"`
}

// PresenceConfig controls registry freshness on both sides of the wire.
//
// Environment Variables:
//   - PRESENCE_SWEEP_INTERVAL: How often stale presences are evicted (default: 60s)
//   - PRESENCE_MAX_AGE: Staleness threshold (default: 5m)
type PresenceConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval"`
	MaxAge        time.Duration `koanf:"max_age"`
}

// ChannelConfig controls the client reconnection policy.
type ChannelConfig struct {
	BaseDelay   time.Duration `koanf:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay"`
	MaxAttempts int           `koanf:"max_attempts"`
	HistorySize int           `koanf:"history_size"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

// ClientConfig identifies the admin a watch client acts for.
type ClientConfig struct {
	BaseURL   string `koanf:"base_url"`
	Language  string `koanf:"language"`
	UserID    string `koanf:"user_id"`
	FullName  string `koanf:"full_name"`
	Email     string `koanf:"email"`
	QueueSize int    `koanf:"queue_size"`
}

// NATSConfig enables the relay between hub replicas.
//
// Environment Variables:
//   - NATS_ENABLED: Enable the relay (default: false)
//   - NATS_URL: Server URL (default: nats://127.0.0.1:4222)
//   - NATS_SUBJECT: Subject prefix (default: hajk.presence)
//   - NATS_INSTANCE_ID: This replica's id; generated when empty
type NATSConfig struct {
	Enabled    bool   `koanf:"enabled"`
	URL        string `koanf:"url"`
	Subject    string `koanf:"subject"`
	InstanceID string `koanf:"instance_id"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load loads configuration from defaults, an optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
