// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package featureinfo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

var (
	// ErrUnsupported is returned for content types no parser handles.
	ErrUnsupported = errors.New("unsupported feature info content type")
	// ErrMalformed wraps parse failures of a supported content type.
	ErrMalformed = errors.New("malformed feature info response")
)

// ContentType is the kind of GetFeatureInfo response.
type ContentType int

const (
	ContentUnsupported ContentType = iota
	ContentJSON
	ContentGML
	ContentHTML
	ContentPlain
)

func (c ContentType) String() string {
	switch c {
	case ContentJSON:
		return "json"
	case ContentGML:
		return "gml"
	case ContentHTML:
		return "html"
	case ContentPlain:
		return "plain"
	default:
		return "unsupported"
	}
}

var mediaTypes = map[string]ContentType{
	"application/json":              ContentJSON,
	"application/geojson":           ContentJSON,
	"application/geo+json":          ContentJSON,
	"application/vnd.ogc.gml":       ContentGML,
	"application/vnd.ogc.gml/3.1.1": ContentGML,
	"text/xml":                      ContentGML,
	"text/html":                     ContentHTML,
	"text/plain":                    ContentPlain,
}

// ParseContentType maps a Content-Type header value to a ContentType.
// Parameters such as charset are ignored. WMS servers put a second slash
// in GML versions, so this does not use mime.ParseMediaType.
func ParseContentType(header string) ContentType {
	mt := header
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	mt = strings.ToLower(strings.TrimSpace(mt))
	if ct, ok := mediaTypes[mt]; ok {
		return ct
	}
	return ContentUnsupported
}

// Feature is one feature from a GetFeatureInfo response.
type Feature struct {
	ID         string                 `json:"id,omitempty"`
	Layer      string                 `json:"layer"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   json.RawMessage        `json:"geometry,omitempty"`
	// Text holds the raw body for HTML and plain responses.
	Text string `json:"text,omitempty"`
}

// FeatureCollection is the normalized result of Parse.
type FeatureCollection struct {
	ContentType ContentType `json:"-"`
	Features    []Feature   `json:"features"`
}

type parser func(body []byte) ([]Feature, error)

var parsers = map[ContentType]parser{
	ContentJSON:  parseGeoJSON,
	ContentGML:   parseGML,
	ContentHTML:  parseText,
	ContentPlain: parseText,
}

// Parse normalizes a GetFeatureInfo body of the given content type.
func Parse(ct ContentType, body []byte) (FeatureCollection, error) {
	p, ok := parsers[ct]
	if !ok {
		return FeatureCollection{ContentType: ct}, ErrUnsupported
	}
	features, err := p(body)
	if err != nil {
		return FeatureCollection{ContentType: ct}, fmt.Errorf("%w: %s: %v", ErrMalformed, ct, err)
	}
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{ContentType: ct, Features: features}, nil
}

func parseText(body []byte) ([]Feature, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return nil, nil
	}
	return []Feature{{Properties: map[string]interface{}{}, Text: text}}, nil
}

// Group is the features of one layer.
type Group struct {
	Layer    string    `json:"layer"`
	Features []Feature `json:"features"`
}

// GroupByLayer groups features by layer in order of first appearance.
func GroupByLayer(features []Feature) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, f := range features {
		i, ok := index[f.Layer]
		if !ok {
			i = len(groups)
			index[f.Layer] = i
			groups = append(groups, Group{Layer: f.Layer})
		}
		groups[i].Features = append(groups[i].Features, f)
	}
	return groups
}
