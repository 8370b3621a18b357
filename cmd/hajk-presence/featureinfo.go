// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hajkmap/hajk-presence/internal/featureinfo"
)

type featureInfoOptions struct {
	url         string
	file        string
	contentType string
	asJSON      bool
	timeout     time.Duration
}

// extensionTypes guesses a content type for --file when none is given.
var extensionTypes = map[string]string{
	".json":    "application/json",
	".geojson": "application/geojson",
	".gml":     "application/vnd.ogc.gml",
	".xml":     "text/xml",
	".html":    "text/html",
	".htm":     "text/html",
	".txt":     "text/plain",
}

func newFeatureInfoCmd() *cobra.Command {
	opts := &featureInfoOptions{}

	cmd := &cobra.Command{
		Use:   "featureinfo",
		Short: "Parse a WMS GetFeatureInfo response and print features by layer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFeatureInfo(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "", "GetFeatureInfo request URL")
	f.StringVar(&opts.file, "file", "", "saved response body ('-' reads stdin)")
	f.StringVar(&opts.contentType, "content-type", "", "content type of --file (guessed from the extension when empty)")
	f.BoolVar(&opts.asJSON, "json", false, "print the grouped features as JSON")
	f.DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout for --url")
	cmd.MarkFlagsMutuallyExclusive("url", "file")
	cmd.MarkFlagsOneRequired("url", "file")

	return cmd
}

func runFeatureInfo(cmd *cobra.Command, opts *featureInfoOptions) error {
	var (
		fc  featureinfo.FeatureCollection
		err error
	)
	if opts.url != "" {
		client := &http.Client{Timeout: opts.timeout}
		fc, err = featureinfo.Fetch(cmd.Context(), client, opts.url)
	} else {
		fc, err = readFeatureInfoFile(cmd.InOrStdin(), opts)
	}
	if err != nil {
		if errors.Is(err, featureinfo.ErrUnsupported) {
			return fmt.Errorf("%w (supported: %s)", err, strings.Join(supportedTypes(), ", "))
		}
		return err
	}

	groups := featureinfo.GroupByLayer(fc.Features)
	out := cmd.OutOrStdout()
	if opts.asJSON {
		if groups == nil {
			groups = []featureinfo.Group{}
		}
		data, err := json.MarshalIndent(groups, "", "  ")
		if err != nil {
			return fmt.Errorf("encode features: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	return printGroups(out, fc.ContentType, groups)
}

func readFeatureInfoFile(stdin io.Reader, opts *featureInfoOptions) (featureinfo.FeatureCollection, error) {
	var (
		body []byte
		err  error
	)
	if opts.file == "-" {
		body, err = io.ReadAll(stdin)
	} else {
		body, err = os.ReadFile(opts.file)
	}
	if err != nil {
		return featureinfo.FeatureCollection{}, fmt.Errorf("read %s: %w", opts.file, err)
	}

	header := opts.contentType
	if header == "" {
		header = extensionTypes[strings.ToLower(filepath.Ext(opts.file))]
	}
	return featureinfo.Parse(featureinfo.ParseContentType(header), body)
}

func printGroups(w io.Writer, ct featureinfo.ContentType, groups []featureinfo.Group) error {
	if len(groups) == 0 {
		_, err := fmt.Fprintf(w, "no features (%s)\n", ct)
		return err
	}
	for _, g := range groups {
		layer := g.Layer
		if layer == "" {
			layer = "(unnamed layer)"
		}
		fmt.Fprintf(w, "%s: %d feature(s)\n", layer, len(g.Features))
		for _, f := range g.Features {
			if f.Text != "" {
				fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(f.Text, "\n", "\n  "))
				continue
			}
			if f.ID != "" {
				fmt.Fprintf(w, "  - %s\n", f.ID)
			} else {
				fmt.Fprintln(w, "  -")
			}
			keys := make([]string, 0, len(f.Properties))
			for k := range f.Properties {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "      %s: %v\n", k, f.Properties[k])
			}
		}
	}
	return nil
}

func supportedTypes() []string {
	types := make([]string, 0, len(extensionTypes))
	seen := make(map[string]bool)
	for _, t := range extensionTypes {
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}
