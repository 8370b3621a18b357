// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

// Package featureinfo normalizes WMS GetFeatureInfo responses for the
// property checker. The response Content-Type selects a parser (GeoJSON,
// GML, HTML or plain text); anything else is ErrUnsupported. Features are
// then grouped by layer in the order the server returned them.
package featureinfo
