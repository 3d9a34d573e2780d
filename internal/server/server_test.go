package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ChicagoDave/popglobe/pkg/geo"
	"github.com/ChicagoDave/popglobe/pkg/globe"
	"github.com/ChicagoDave/popglobe/pkg/hierarchy"
	"github.com/ChicagoDave/popglobe/pkg/scene"
	"github.com/ChicagoDave/popglobe/pkg/topo"
)

const testWorld = `{
  "type": "Topology",
  "arcs": [[[70, 10], [90, 10], [90, 30], [70, 30], [70, 10]]],
  "objects": {"countries": {"type": "GeometryCollection", "geometries": [
    {"type": "Polygon", "id": "356", "arcs": [[0]]}
  ]}}
}`

const testStates = `{
  "type": "Topology",
  "arcs": [[[-124, 32], [-114, 32], [-114, 42], [-124, 42], [-124, 32]]],
  "objects": {"states": {"type": "GeometryCollection", "geometries": [
    {"type": "Polygon", "id": 6, "arcs": [[0]], "properties": {"name": "California"}}
  ]}}
}`

type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	doc, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("HTTP 404 for %s", url)
	}
	return []byte(doc), nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ds, err := hierarchy.Default()
	if err != nil {
		t.Fatal(err)
	}
	for i := range ds.Subdivisions {
		ds.Subdivisions[i].URL = "mem://states"
	}
	ds.Counties = hierarchy.CountyConfig{}

	f := mapFetcher{"mem://world": testWorld, "mem://states": testStates}
	g := scene.NewGraph(1, geo.Equirectangular{Width: 360, Height: 180})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session, err := globe.Open(context.Background(), globe.Config{
		Dataset:  ds,
		Surface:  g,
		Topology: topo.NewCache(f),
		WorldURL: "mem://world",
		Logger:   logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(session.Dispose)

	s := New(Config{AllowAll: true}, session, g, logger)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var resp map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
		}
	}
	return w, resp
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w, resp := do(t, s, "GET", "/healthz", nil)
	if w.Code != http.StatusOK || resp["status"] != "ok" {
		t.Errorf("healthz = %d %v", w.Code, resp)
	}
}

func TestSceneEndpoint(t *testing.T) {
	s := newTestServer(t)
	w, resp := do(t, s, "GET", "/api/scene", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	for _, key := range []string{"metadata", "entities", "groups"} {
		if _, ok := resp[key]; !ok {
			t.Errorf("missing %q in scene response", key)
		}
	}
	if n := len(resp["entities"].([]any)); n == 0 {
		t.Error("scene has no entities")
	}
}

func TestListEndpoint(t *testing.T) {
	s := newTestServer(t)
	_, resp := do(t, s, "GET", "/api/list", nil)
	items := resp["items"].([]any)
	if len(items) != len(s.session.Hierarchy().Countries()) {
		t.Errorf("expected one row per country, got %d", len(items))
	}
	first := items[0].(map[string]any)
	if first["key"] != "country:IND" || first["kind"] != "country" {
		t.Errorf("first row = %v", first)
	}
	if !strings.HasPrefix(first["color"].(string), "#") {
		t.Errorf("color = %v", first["color"])
	}

	_, resp = do(t, s, "GET", "/api/list?q=Indai", nil)
	if len(resp["items"].([]any)) != 0 {
		t.Errorf("unexpected matches for Indai")
	}
	sugg, _ := resp["suggestions"].([]any)
	if len(sugg) == 0 || sugg[0] != "India" {
		t.Errorf("suggestions = %v", resp["suggestions"])
	}
}

func TestPickEndpoint(t *testing.T) {
	s := newTestServer(t)
	// India's marker, one pixel per degree.
	w, resp := do(t, s, "GET", "/api/pick?x=258.96&y=69.41", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	entity, _ := resp["entity"].(map[string]any)
	if entity["key"] != "country:IND" {
		t.Errorf("pick = %v", resp)
	}

	_, resp = do(t, s, "GET", "/api/pick?x=10&y=170", nil)
	if resp["entity"] != nil {
		t.Errorf("expected empty pick, got %v", resp["entity"])
	}

	w, _ = do(t, s, "GET", "/api/pick?x=abc&y=1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad x: expected 400, got %d", w.Code)
	}
}

func TestHoverEndpoint(t *testing.T) {
	s := newTestServer(t)
	_, resp := do(t, s, "POST", "/api/hover", map[string]float64{"x": 258.96, "y": 69.41})
	if resp["changed"] != true {
		t.Errorf("first hover should change: %v", resp)
	}
	_, resp = do(t, s, "POST", "/api/hover", map[string]float64{"x": 258.96, "y": 69.41})
	if resp["changed"] != false {
		t.Errorf("repeat hover should not change: %v", resp)
	}
	_, resp = do(t, s, "GET", "/api/state", nil)
	if resp["hovered"] != "country:IND" {
		t.Errorf("state hovered = %v", resp["hovered"])
	}
}

func TestSelectEndpoint(t *testing.T) {
	s := newTestServer(t)
	_, resp := do(t, s, "POST", "/api/select", map[string]string{"key": "country:IND"})
	fly, _ := resp["fly_to"].(map[string]any)
	if fly["height"] != float64(3_000_000) {
		t.Errorf("fly_to = %v", resp["fly_to"])
	}
	if s.session.Index().Highlighted() != "country:IND" {
		t.Error("India should be highlighted")
	}

	_, resp = do(t, s, "POST", "/api/select", map[string]string{"key": "country:XXX"})
	if _, ok := resp["fly_to"]; ok || resp["entity"] != nil {
		t.Errorf("unknown key should clear selection: %v", resp)
	}

	w, _ := do(t, s, "POST", "/api/select", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty body: expected 400, got %d", w.Code)
	}
}

func TestCameraEndpoint(t *testing.T) {
	s := newTestServer(t)
	_, resp := do(t, s, "POST", "/api/camera", map[string]float64{"height": 1_000_000})
	if resp["subdivisions"] != true || resp["buildings"] != true {
		t.Errorf("camera decision = %v", resp)
	}
	w, _ := do(t, s, "POST", "/api/camera", map[string]float64{"height": 0})
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero height: expected 400, got %d", w.Code)
	}
}

func TestExpandEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, resp := do(t, s, "POST", "/api/expand/country/USA", nil)
	if resp["expanded"] != true {
		t.Errorf("expand USA = %v", resp)
	}
	w, _ := do(t, s, "POST", "/api/expand/country/XXX", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown country: expected 404, got %d", w.Code)
	}

	_, resp = do(t, s, "POST", "/api/expand/state/06", nil)
	if resp["expanded"] != true || resp["counties"] != float64(8) {
		t.Errorf("expand 06 = %v", resp)
	}
	w, _ = do(t, s, "POST", "/api/expand/state/99", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown state: expected 404, got %d", w.Code)
	}
}

func TestValidationEndpoint(t *testing.T) {
	s := newTestServer(t)
	w, resp := do(t, s, "GET", "/api/validation", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["valid"] != true {
		t.Errorf("bundled data should validate: %v", resp["errors"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, "GET", "/api/pick?x=258.96&y=69.41", nil)
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), "popglobe_picks_total") {
		t.Error("metrics output missing pick counter")
	}
}

func TestRedrawFeed(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.session.SetCamera(1_000_000)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev redrawEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "redraw" || ev.Seq == 0 {
		t.Errorf("event = %+v", ev)
	}
}

func TestWebSocketOriginPolicy(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		allowAll bool
		want     bool
	}{
		{"no origin", "", false, true},
		{"localhost", "http://localhost:5173", false, true},
		{"loopback", "http://127.0.0.1:8080", false, true},
		{"same host", "https://example.com", false, true},
		{"foreign", "http://evil.test", false, false},
		{"https localhost", "https://localhost:5173", false, false},
		{"foreign with allow all", "http://evil.test", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://example.com/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := originChecker(tt.allowAll)(r); got != tt.want {
				t.Errorf("origin %q allowAll=%v: got %v, want %v", tt.origin, tt.allowAll, got, tt.want)
			}
		})
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	h := newHub(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	ts := httptest.NewServer(http.HandlerFunc(h.handleWebSocket))
	defer ts.Close()

	header := http.Header{"Origin": []string{"http://evil.test"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), header)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
	if h.count() != 0 {
		t.Errorf("rejected client registered")
	}
}
