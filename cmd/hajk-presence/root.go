// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hajkmap/hajk-presence/internal/config"
	"github.com/hajkmap/hajk-presence/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "hajk-presence",
		Short:         "Hajk presence client: see who else is editing in the admin console",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := opts.logLevel
			if level == "" {
				level = "warn"
			}
			logging.Init(logging.Config{
				Level:  level,
				Format: "console",
				Output: cmd.ErrOrStderr(),
			})
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (overrides CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(
		newVersionCmd(),
		newWatchCmd(opts),
		newFeatureInfoCmd(),
	)

	return rootCmd
}

// loadConfig reads the shared configuration, honoring --config.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		if err := os.Setenv("CONFIG_PATH", o.configPath); err != nil {
			return nil, err
		}
	}
	return config.Load()
}
