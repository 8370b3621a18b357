// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package featureinfo

import (
	"errors"
	"strings"

	"github.com/beevik/etree"
)

// parseGML reads both GML shapes WMS servers return: WFS-style
// featureMember(s) wrappers (GeoServer) and MapServer's
// msGMLOutput/<layer>_layer/<layer>_feature nesting.
func parseGML(body []byte) ([]Feature, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("empty document")
	}

	if root.Tag == "msGMLOutput" {
		return parseMapServerGML(root), nil
	}

	var out []Feature
	for _, elem := range doc.FindElements(".//*") {
		if elem.Tag != "featureMember" && elem.Tag != "featureMembers" {
			continue
		}
		for _, fe := range elem.ChildElements() {
			out = append(out, gmlFeature(fe, fe.Tag))
		}
	}
	return out, nil
}

func parseMapServerGML(root *etree.Element) []Feature {
	var out []Feature
	for _, layer := range root.ChildElements() {
		if !strings.HasSuffix(layer.Tag, "_layer") {
			continue
		}
		name := strings.TrimSuffix(layer.Tag, "_layer")
		for _, fe := range layer.ChildElements() {
			if strings.HasSuffix(fe.Tag, "_feature") {
				out = append(out, gmlFeature(fe, name))
			}
		}
	}
	return out
}

// gmlFeature collects leaf children as properties. Elements in the gml
// namespace and elements with children (geometries) are skipped.
func gmlFeature(fe *etree.Element, layer string) Feature {
	f := Feature{Layer: layer, Properties: map[string]interface{}{}}
	for _, attr := range fe.Attr {
		if attr.Key == "fid" || (attr.Key == "id" && attr.Space == "gml") {
			f.ID = attr.Value
		}
	}
	for _, child := range fe.ChildElements() {
		if child.Space == "gml" || len(child.ChildElements()) > 0 {
			continue
		}
		f.Properties[child.Tag] = strings.TrimSpace(child.Text())
	}
	return f
}
