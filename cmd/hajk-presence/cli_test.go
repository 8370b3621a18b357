// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gorilla "github.com/gorilla/websocket"

	"github.com/hajkmap/hajk-presence/internal/api"
	"github.com/hajkmap/hajk-presence/internal/featureinfo"
	"github.com/hajkmap/hajk-presence/internal/i18n"
	"github.com/hajkmap/hajk-presence/internal/logging"
	"github.com/hajkmap/hajk-presence/internal/websocket"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

// executeCLI runs the root command with args and returns stdout.
func executeCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HAJK_BASE_URL", "")
	t.Setenv("HAJK_USER_ID", "")

	var stdout bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

const sampleGeoJSON = `{"type":"FeatureCollection","features":[
  {"type":"Feature","id":"roads.1","properties":{"name":"Main"}},
  {"type":"Feature","id":"parcels.7","properties":{"owner":"City"}},
  {"type":"Feature","id":"roads.2","properties":{"name":"Side"}}
]}`

const sampleGML = `<?xml version="1.0" encoding="UTF-8"?>
<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs" xmlns:gml="http://www.opengis.net/gml" xmlns:topp="http://www.openplans.org/topp">
  <gml:featureMember>
    <topp:states fid="states.1">
      <topp:STATE_NAME>Illinois</topp:STATE_NAME>
    </topp:states>
  </gml:featureMember>
</wfs:FeatureCollection>`

func TestVersion(t *testing.T) {
	out, err := executeCLI(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("version output = %q", out)
	}
}

func TestFeatureInfo_FileGroupsByLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "response.geojson")
	if err := os.WriteFile(path, []byte(sampleGeoJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := executeCLI(t, "", "featureinfo", "--file", path)
	if err != nil {
		t.Fatalf("featureinfo: %v", err)
	}
	roads := strings.Index(out, "roads: 2 feature(s)")
	parcels := strings.Index(out, "parcels: 1 feature(s)")
	if roads < 0 || parcels < 0 || roads > parcels {
		t.Errorf("groups missing or out of order:\n%s", out)
	}
	if !strings.Contains(out, "name: Main") || !strings.Contains(out, "owner: City") {
		t.Errorf("properties missing:\n%s", out)
	}
}

func TestFeatureInfo_StdinPlainText(t *testing.T) {
	out, err := executeCLI(t, "Layer roads\n  name = Main\n", "featureinfo", "--file", "-", "--content-type", "text/plain")
	if err != nil {
		t.Fatalf("featureinfo: %v", err)
	}
	if !strings.Contains(out, "(unnamed layer): 1 feature(s)") || !strings.Contains(out, "Layer roads") {
		t.Errorf("output = %q", out)
	}
}

func TestFeatureInfo_Unsupported(t *testing.T) {
	_, err := executeCLI(t, "%PDF", "featureinfo", "--file", "-", "--content-type", "application/pdf")
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("err = %v, want unsupported", err)
	}
	if !strings.Contains(err.Error(), "text/html") {
		t.Errorf("error should list supported types: %v", err)
	}
}

func TestFeatureInfo_RequiresSource(t *testing.T) {
	if _, err := executeCLI(t, "", "featureinfo"); err == nil {
		t.Error("featureinfo without --url or --file should fail")
	}
	if _, err := executeCLI(t, "", "featureinfo", "--url", "http://x", "--file", "y"); err == nil {
		t.Error("--url and --file together should fail")
	}
}

func TestFeatureInfo_URLAsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.ogc.gml; charset=utf-8")
		_, _ = io.WriteString(w, sampleGML)
	}))
	defer srv.Close()

	out, err := executeCLI(t, "", "featureinfo", "--url", srv.URL+"/wms?REQUEST=GetFeatureInfo", "--json")
	if err != nil {
		t.Fatalf("featureinfo: %v", err)
	}
	var groups []featureinfo.Group
	if err := json.Unmarshal([]byte(out), &groups); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(groups) != 1 || groups[0].Layer != "states" || len(groups[0].Features) != 1 {
		t.Errorf("groups = %+v", groups)
	}
}

func TestWatch_RequiresIdentity(t *testing.T) {
	_, err := executeCLI(t, "", "watch", "--user-id", "anna")
	if err == nil || !strings.Contains(err.Error(), "base URL") {
		t.Errorf("missing base URL: err = %v", err)
	}

	_, err = executeCLI(t, "", "watch", "--base-url", "http://localhost:3002")
	if err == nil || !strings.Contains(err.Error(), "user id") {
		t.Errorf("missing user id: err = %v", err)
	}

	_, err = executeCLI(t, "", "watch", "--base-url", "ftp://localhost", "--user-id", "anna")
	if err == nil {
		t.Error("unsupported base URL scheme should fail")
	}
}

func TestWatch_ShowsOtherAdmins(t *testing.T) {
	hub := websocket.NewHub(websocket.DefaultHubConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(hub, api.HandlerConfig{}), nil))
	defer func() {
		srv.Close()
		cancel()
		<-done
	}()

	bob, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v3/websockets", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer bob.Close()
	for _, frame := range []string{
		`{"type":"register","payload":{"userId":"bob","userName":"Bob"}}`,
		`{"type":"presence-update","payload":{"resourceType":"map","resourceId":"1"}}`,
	} {
		if err := bob.WriteMessage(gorilla.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(hub.Presences()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("bob's presence never reached the hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	out, err := executeCLI(t, "", "watch",
		"--base-url", srv.URL,
		"--user-id", "anna",
		"--name", "Anna",
		"--path", "/maps/1",
		"--for", "1500ms",
	)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !strings.Contains(out, "resource=map:1 others=Bob") {
		t.Errorf("watch output should show Bob on map:1:\n%s", out)
	}
	if !strings.Contains(out, "[connected] registered") {
		t.Errorf("watch output should show a registered session:\n%s", out)
	}
	if !strings.Contains(out, "* Also editing: Bob") {
		t.Errorf("watch output should announce Bob on the badge line:\n%s", out)
	}
}

func TestWatchPrinter_AnnouncesConnectionAndBadge(t *testing.T) {
	var buf bytes.Buffer
	p := &watchPrinter{out: &buf, tr: i18n.New("sv")}

	v := watchView{Badge: []string{}}
	v.StateName = "connecting"
	p.view(v)
	v.StateName = "connected"
	v.Badge = []string{"Bob"}
	p.view(v)
	p.view(v)

	want := []string{
		"* Närvaroanslutning: connecting",
		"[connecting] admins=0",
		"* Närvaroanslutning: connected",
		"* Redigerar också: Bob",
		"[connected] admins=0",
	}
	if got := strings.Split(strings.TrimSpace(buf.String()), "\n"); !reflect.DeepEqual(got, want) {
		t.Errorf("printed lines = %q, want %q", got, want)
	}
}

func TestFormatView(t *testing.T) {
	v := watchView{Badge: []string{}}
	v.StateName = "disconnected"
	v.Path = "/settings"
	if got := formatView(v); got != "[disconnected] path=/settings admins=0" {
		t.Errorf("formatView = %q", got)
	}
}
