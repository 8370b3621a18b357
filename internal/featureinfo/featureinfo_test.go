// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package featureinfo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseContentType(t *testing.T) {
	tests := []struct {
		header string
		want   ContentType
	}{
		{"application/json", ContentJSON},
		{"application/json; charset=utf-8", ContentJSON},
		{"application/geojson", ContentJSON},
		{"application/vnd.ogc.gml", ContentGML},
		{"application/vnd.ogc.gml/3.1.1", ContentGML},
		{"text/xml; subtype=gml/3.1.1", ContentGML},
		{"TEXT/HTML", ContentHTML},
		{"text/plain", ContentPlain},
		{"image/png", ContentUnsupported},
		{"", ContentUnsupported},
	}
	for _, tt := range tests {
		if got := ParseContentType(tt.header); got != tt.want {
			t.Errorf("ParseContentType(%q) = %s, want %s", tt.header, got, tt.want)
		}
	}
}

const geoJSONBody = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "roads.1", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"name": "Main", "lanes": 2}},
    {"type": "Feature", "id": "parcels.7", "geometry": null, "properties": {"owner": "City"}},
    {"type": "Feature", "id": "roads.2", "geometry": null, "properties": null},
    {"type": "Feature", "id": 42, "properties": {}}
  ]
}`

func TestParse_GeoJSON(t *testing.T) {
	fc, err := Parse(ContentJSON, []byte(geoJSONBody))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if fc.ContentType != ContentJSON || len(fc.Features) != 4 {
		t.Fatalf("collection = %+v", fc)
	}

	first := fc.Features[0]
	if first.ID != "roads.1" || first.Layer != "roads" || first.Properties["name"] != "Main" {
		t.Errorf("first feature = %+v", first)
	}
	if first.Properties["lanes"] != float64(2) {
		t.Errorf("lanes = %#v, want float64(2)", first.Properties["lanes"])
	}
	if len(first.Geometry) == 0 {
		t.Error("geometry should be kept")
	}
	if fc.Features[1].Geometry != nil {
		t.Errorf("null geometry = %s, want nil", fc.Features[1].Geometry)
	}
	if fc.Features[2].Properties == nil {
		t.Error("null properties should become an empty map")
	}
	if fc.Features[3].ID != "42" || fc.Features[3].Layer != "" {
		t.Errorf("numeric id feature = %+v", fc.Features[3])
	}

	groups := GroupByLayer(fc.Features)
	if len(groups) != 3 {
		t.Fatalf("groups = %+v", groups)
	}
	if groups[0].Layer != "roads" || len(groups[0].Features) != 2 || groups[1].Layer != "parcels" || groups[2].Layer != "" {
		t.Errorf("group order = %s/%d, %s, %s", groups[0].Layer, len(groups[0].Features), groups[1].Layer, groups[2].Layer)
	}
}

func TestParse_SingleGeoJSONFeature(t *testing.T) {
	fc, err := Parse(ContentJSON, []byte(`{"type":"Feature","id":"lakes.3","properties":{"depth":12}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(fc.Features) != 1 || fc.Features[0].Layer != "lakes" {
		t.Errorf("features = %+v", fc.Features)
	}
}

const geoServerGML = `<?xml version="1.0" encoding="UTF-8"?>
<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs" xmlns:gml="http://www.opengis.net/gml" xmlns:topp="http://www.openplans.org/topp">
  <gml:featureMember>
    <topp:states fid="states.1">
      <gml:boundedBy><gml:Box><gml:coordinates>1,2 3,4</gml:coordinates></gml:Box></gml:boundedBy>
      <topp:the_geom><gml:MultiPolygon/></topp:the_geom>
      <topp:STATE_NAME>Illinois</topp:STATE_NAME>
      <topp:PERSONS> 11430602 </topp:PERSONS>
    </topp:states>
  </gml:featureMember>
  <gml:featureMember>
    <topp:roads gml:id="roads.9">
      <topp:NAME>Route 66</topp:NAME>
    </topp:roads>
  </gml:featureMember>
</wfs:FeatureCollection>`

const mapServerGML = `<?xml version="1.0" encoding="UTF-8"?>
<msGMLOutput xmlns:gml="http://www.opengis.net/gml">
  <parcels_layer>
    <gml:name>parcels</gml:name>
    <parcels_feature>
      <gml:boundedBy/>
      <ID>17</ID>
      <OWNER>City</OWNER>
    </parcels_feature>
    <parcels_feature>
      <ID>18</ID>
    </parcels_feature>
  </parcels_layer>
</msGMLOutput>`

func TestParse_GML(t *testing.T) {
	fc, err := Parse(ContentGML, []byte(geoServerGML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %+v", fc.Features)
	}
	states := fc.Features[0]
	if states.ID != "states.1" || states.Layer != "states" {
		t.Errorf("states feature = %+v", states)
	}
	if states.Properties["STATE_NAME"] != "Illinois" || states.Properties["PERSONS"] != "11430602" {
		t.Errorf("states properties = %v", states.Properties)
	}
	if _, ok := states.Properties["the_geom"]; ok {
		t.Error("geometry elements must not become properties")
	}
	if _, ok := states.Properties["boundedBy"]; ok {
		t.Error("gml elements must not become properties")
	}
	if fc.Features[1].ID != "roads.9" || fc.Features[1].Layer != "roads" {
		t.Errorf("roads feature = %+v", fc.Features[1])
	}
}

func TestParse_MapServerGML(t *testing.T) {
	fc, err := Parse(ContentGML, []byte(mapServerGML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	groups := GroupByLayer(fc.Features)
	if len(groups) != 1 || groups[0].Layer != "parcels" || len(groups[0].Features) != 2 {
		t.Fatalf("groups = %+v", groups)
	}
	if got := groups[0].Features[0].Properties; got["OWNER"] != "City" || got["ID"] != "17" || len(got) != 2 {
		t.Errorf("properties = %v", got)
	}
}

func TestParse_TextAndErrors(t *testing.T) {
	fc, err := Parse(ContentHTML, []byte("  <table><tr><td>x</td></tr></table>\n"))
	if err != nil || len(fc.Features) != 1 || fc.Features[0].Text != "<table><tr><td>x</td></tr></table>" {
		t.Errorf("html = %+v, %v", fc, err)
	}
	fc, err = Parse(ContentPlain, []byte("   "))
	if err != nil || len(fc.Features) != 0 || fc.Features == nil {
		t.Errorf("empty plain = %+v, %v", fc, err)
	}

	if _, err := Parse(ContentUnsupported, []byte("x")); !errors.Is(err, ErrUnsupported) {
		t.Errorf("unsupported error = %v", err)
	}
	if _, err := Parse(ContentJSON, []byte("{not json")); !errors.Is(err, ErrMalformed) {
		t.Errorf("bad json error = %v", err)
	}
	if _, err := Parse(ContentJSON, []byte(`{"type":"Point"}`)); !errors.Is(err, ErrMalformed) {
		t.Errorf("non-feature json error = %v", err)
	}
	if _, err := Parse(ContentGML, []byte("<unclosed")); !errors.Is(err, ErrMalformed) {
		t.Errorf("bad xml error = %v", err)
	}
	if _, err := Parse(ContentGML, nil); !errors.Is(err, ErrMalformed) {
		t.Errorf("empty xml error = %v", err)
	}
}

func TestGroupByLayer_Empty(t *testing.T) {
	if groups := GroupByLayer(nil); len(groups) != 0 {
		t.Errorf("groups = %v", groups)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("INFO_FORMAT") {
		case "application/json":
			w.Header().Set("Content-Type", "application/json;charset=UTF-8")
			_, _ = w.Write([]byte(geoJSONBody))
		case "image/png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
		default:
			http.Error(w, "bad request", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	fc, err := Fetch(ctx, srv.Client(), srv.URL+"/wms?REQUEST=GetFeatureInfo&INFO_FORMAT=application/json")
	if err != nil || len(fc.Features) != 4 {
		t.Errorf("json fetch = %d features, %v", len(fc.Features), err)
	}
	if _, err := Fetch(ctx, srv.Client(), srv.URL+"/wms?INFO_FORMAT=image/png"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("png fetch error = %v", err)
	}
	if _, err := Fetch(ctx, srv.Client(), srv.URL+"/wms"); err == nil {
		t.Error("non-2xx response should fail")
	}
}
