// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package featureinfo

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxBodySize caps GetFeatureInfo responses read into memory.
const maxBodySize = 8 << 20

// ReadResponse parses an HTTP GetFeatureInfo response using its
// Content-Type header. The body is closed.
func ReadResponse(resp *http.Response) (FeatureCollection, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return FeatureCollection{}, fmt.Errorf("feature info request failed: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return FeatureCollection{}, fmt.Errorf("read feature info body: %w", err)
	}
	return Parse(ParseContentType(resp.Header.Get("Content-Type")), body)
}

// Fetch issues a GetFeatureInfo GET request and parses the response.
func Fetch(ctx context.Context, client *http.Client, url string) (FeatureCollection, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FeatureCollection{}, fmt.Errorf("build feature info request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return FeatureCollection{}, fmt.Errorf("feature info request: %w", err)
	}
	return ReadResponse(resp)
}
