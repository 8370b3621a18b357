// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

/*
Command hajk-presence is a terminal client for the Hajk presence relay.

	hajk-presence watch --base-url https://hajk.example.com --user-id anna --path /maps/1
	hajk-presence featureinfo --file response.xml --content-type application/vnd.ogc.gml
	hajk-presence version

watch logs in as an admin, reports the given admin console paths and prints
who else is editing the same resource. Paths can also be streamed on stdin,
one per line, with --stdin.

featureinfo fetches or reads a WMS GetFeatureInfo response and prints its
features grouped by layer.

Settings not given as flags come from the same configuration sources as the
server (config.yaml, CONFIG_PATH, HAJK_* environment variables).
*/
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
