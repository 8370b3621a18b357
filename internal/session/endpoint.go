// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package session

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// EndpointPath is where the relay server accepts presence connections.
const EndpointPath = "/api/v3/websockets"

// ErrInvalidBaseURL is returned when a base API URL has no usable host or
// scheme.
var ErrInvalidBaseURL = errors.New("invalid base url")

// DeriveEndpoint turns the admin API base URL into the realtime endpoint.
// The host is kept, http becomes ws and https becomes wss; the path is
// always EndpointPath. Any existing path, query or fragment is dropped.
//
//	https://hajk.example.com/api/v2  ->  wss://hajk.example.com/api/v3/websockets
func DeriveEndpoint(base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBaseURL)
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidBaseURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidBaseURL)
	}

	out := url.URL{Scheme: u.Scheme, Host: u.Host, Path: EndpointPath}
	return out.String(), nil
}
