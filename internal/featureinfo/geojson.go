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

type geoJSONFeature struct {
	Type       string                 `json:"type"`
	ID         json.RawMessage        `json:"id"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geoJSONDocument struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
	geoJSONFeature
}

func parseGeoJSON(body []byte) ([]Feature, error) {
	var doc geoJSONDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	var raw []geoJSONFeature
	switch doc.Type {
	case "FeatureCollection":
		raw = doc.Features
	case "Feature":
		raw = []geoJSONFeature{doc.geoJSONFeature}
		raw[0].Type = doc.Type
	default:
		return nil, fmt.Errorf("unexpected GeoJSON type %q", doc.Type)
	}

	out := make([]Feature, 0, len(raw))
	for _, f := range raw {
		id, err := featureID(f.ID)
		if err != nil {
			return nil, err
		}
		props := f.Properties
		if props == nil {
			props = map[string]interface{}{}
		}
		var geom json.RawMessage
		if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
			geom = f.Geometry
		}
		out = append(out, Feature{
			ID:         id,
			Layer:      layerFromID(id),
			Properties: props,
			Geometry:   geom,
		})
	}
	return out, nil
}

// featureID accepts string and numeric GeoJSON ids.
func featureID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", errors.New("feature id must be a string or number")
}

// layerFromID derives the layer from "<layer>.<fid>" ids as served by
// GeoServer and QGIS Server.
func layerFromID(id string) string {
	i := strings.LastIndexByte(id, '.')
	if i <= 0 {
		return ""
	}
	return id[:i]
}
