// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
