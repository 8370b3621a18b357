// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hajkmap/hajk-presence/internal/api"
	"github.com/hajkmap/hajk-presence/internal/config"
	"github.com/hajkmap/hajk-presence/internal/logging"
	"github.com/hajkmap/hajk-presence/internal/supervisor"
	"github.com/hajkmap/hajk-presence/internal/supervisor/services"
	ws "github.com/hajkmap/hajk-presence/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("config_file", config.ConfigFilePath()).
		Msg("Starting Hajk presence relay with supervisor tree")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: CORS is configured with wildcard origin (CORS_ORIGINS=*)")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  Any website can read the presence list of your admins.")
		logging.Warn().Msg("  RECOMMENDED: Set specific origins in production:")
		logging.Warn().Msg("    CORS_ORIGINS=https://admin.example.com")
		logging.Warn().Msg("============================================================")
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		logging.Warn().Msg("ALLOWED_ORIGINS is empty: websocket upgrades are accepted from any origin")
	}
	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	// Only the log level is reloadable; everything else needs a restart.
	if path := config.ConfigFilePath(); path != "" {
		err := config.WatchConfigFile(path, func() {
			newCfg, err := config.LoadWithKoanf()
			if err != nil {
				logging.Warn().Err(err).Msg("Config reload failed")
				return
			}
			logging.SetLevelString(newCfg.Logging.Level)
			logging.Info().Str("level", newCfg.Logging.Level).Msg("Log level reloaded")
		})
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Config file watch disabled")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	hub := ws.NewHub(ws.HubConfig{
		SweepInterval: cfg.Presence.SweepInterval,
		MaxAge:        cfg.Presence.MaxAge,
		Greeting:      cfg.WebSocket.Greeting,
		SendBuffer:    cfg.WebSocket.SendBuffer,
		RateLimit:     cfg.WebSocket.RateLimit,
		RateBurst:     cfg.WebSocket.RateBurst,
	}, nil)
	tree.AddMessagingService(services.NewHubService(hub))
	logging.Info().
		Dur("sweep_interval", cfg.Presence.SweepInterval).
		Dur("max_age", cfg.Presence.MaxAge).
		Msg("Presence hub added to supervisor tree")

	handlerCfg := api.HandlerConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Version:        version,
	}
	if cfg.NATS.Enabled {
		link := newRelayLink(hub, &cfg.NATS)
		handlerCfg.Relay = link
		tree.AddMessagingService(services.NewRelayService(link.Connect))
		logging.Info().
			Str("url", logging.SanitizeURL(cfg.NATS.URL)).
			Str("subject", cfg.NATS.Subject).
			Str("instance", link.instance).
			Msg("NATS relay added to supervisor tree")
	} else {
		logging.Info().Msg("NATS relay disabled - running as a single instance")
	}

	mw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSAllowedMethods: []string{http.MethodGet, http.MethodOptions},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
		RateLimitDisabled:  cfg.Server.RateLimitDisabled,
	})
	handler := api.NewHandler(hub, handlerCfg)

	// No WriteTimeout: upgraded connections outlive any request deadline.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, mw),
		ReadHeaderTimeout: cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// The tree delivers exactly one result, after ctx is done or it gives up.
	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal, waiting for supervisor to finish...")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
		os.Exit(1)
	}

	logging.Info().Msg("Hajk presence relay stopped gracefully")
}
