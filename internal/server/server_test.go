package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cgast/questcheck/internal/grader"
	"github.com/cgast/questcheck/pkg/attempt"
	"github.com/cgast/questcheck/pkg/events"
	"github.com/cgast/questcheck/pkg/mission"
	"github.com/cgast/questcheck/pkg/protocol"
)

type testEnv struct {
	srv    *httptest.Server
	bus    *events.MemoryBus
	grader *grader.Grader
	cat    *mission.Catalog
}

func newTestEnv(t *testing.T, withStore bool) *testEnv {
	t.Helper()
	cat, err := mission.Default()
	if err != nil {
		t.Fatal(err)
	}
	bus := events.NewMemoryBus(0)
	reg := prometheus.NewRegistry()

	opts := []grader.Option{grader.WithBus(bus), grader.WithRegisterer(reg)}
	if withStore {
		store, err := attempt.NewBoltStore(filepath.Join(t.TempDir(), "attempts.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { store.Close() })
		opts = append(opts, grader.WithStore(store))
	}
	g := grader.New(cat, opts...)

	s := New(g, bus, WithGatherer(reg), WithMaxBodyBytes(4096))
	s.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, bus: bus, grader: g, cat: cat}
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) post(t *testing.T, path, contentType, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.srv.URL+path, contentType, strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)
	resp := env.get(t, "/health")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	var body map[string]string
	decode(t, resp, &body)
	want := map[string]string{"status": "ok", "service": "questcheck", "timestamp": "2025-03-01T12:00:00.000Z"}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s = %q, want %q", k, body[k], v)
		}
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.get(t, "/health")
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("request id not assigned")
	}

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if got := resp2.Header.Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}
}

func TestMissions(t *testing.T) {
	env := newTestEnv(t, false)

	var list []protocol.MissionSummary
	decode(t, env.get(t, "/api/missions"), &list)
	if len(list) != 12 {
		t.Errorf("got %d missions, want 12", len(list))
	}

	var starters []protocol.MissionSummary
	decode(t, env.get(t, "/api/missions?difficulty=starter"), &starters)
	if len(starters) == 0 || len(starters) >= 12 {
		t.Errorf("got %d starter missions", len(starters))
	}

	var m map[string]any
	decode(t, env.get(t, "/api/missions/mission-servo"), &m)
	if m["id"] != "mission-servo" {
		t.Errorf("id = %v", m["id"])
	}

	if resp := env.get(t, "/api/missions/nope"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	var info protocol.CatalogInfo
	decode(t, env.get(t, "/api/catalog"), &info)
	if info.Version != "2025.1" || info.Missions != 12 {
		t.Errorf("catalog = %+v", info)
	}
}

func TestValidateJSON(t *testing.T) {
	env := newTestEnv(t, true)
	m, _ := env.cat.Get("mission-blink")
	body, _ := json.Marshal(map[string]string{"learner": "ada", "source": m.StarterCode})

	resp := env.post(t, "/api/missions/mission-blink/validate", "application/json", string(body))
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, b)
	}
	var res protocol.ValidateResult
	decode(t, resp, &res)
	if !res.Result.IsPass || res.AttemptID == "" {
		t.Errorf("result = %+v", res)
	}
	if len(res.Unlocked) != 1 || res.Unlocked[0] != "mission-pwm" {
		t.Errorf("Unlocked = %v", res.Unlocked)
	}

	var path protocol.PathResult
	decode(t, env.get(t, "/api/path?learner=ada"), &path)
	if path.Next == nil || path.Next.ID != "mission-pwm" {
		t.Errorf("path = %+v", path)
	}

	var list []attempt.Attempt
	decode(t, env.get(t, "/api/attempts?learner=ada&passed=true"), &list)
	if len(list) != 1 || list[0].MissionID != "mission-blink" {
		t.Errorf("attempts = %+v", list)
	}
}

func TestValidatePlainText(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.post(t, "/api/missions/mission-blink/validate?learner=ada", "text/plain", "void loop() { delay(1000); }")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res protocol.ValidateResult
	decode(t, resp, &res)
	if res.Result.IsPass {
		t.Error("expected failure")
	}
	if res.AttemptID != "" {
		t.Errorf("AttemptID = %q without a store", res.AttemptID)
	}
	if got := len(res.Result.MissingCheckpointIDs); got != 3 {
		t.Errorf("missing = %d, want 3", got)
	}
}

func TestValidateErrors(t *testing.T) {
	env := newTestEnv(t, false)
	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		want        int
	}{
		{"unknown mission", "/api/missions/nope/validate", "text/plain", "x", http.StatusNotFound},
		{"bad json", "/api/missions/mission-blink/validate", "application/json", "{", http.StatusBadRequest},
		{"too large", "/api/missions/mission-blink/validate", "text/plain", strings.Repeat("x", 5000), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.post(t, tt.path, tt.contentType, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	if resp := env.get(t, "/api/missions/mission-blink/validate"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET validate status = %d, want 405", resp.StatusCode)
	}
}

func TestAttemptsQuery(t *testing.T) {
	env := newTestEnv(t, false)
	if resp := env.get(t, "/api/attempts"); resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501 without a store", resp.StatusCode)
	}

	env = newTestEnv(t, true)
	for _, q := range []string{"?passed=maybe", "?limit=-1", "?limit=x"} {
		if resp := env.get(t, "/api/attempts"+q); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
	var list []attempt.Attempt
	decode(t, env.get(t, "/api/attempts"), &list)
	if list == nil || len(list) != 0 {
		t.Errorf("attempts = %v, want empty list", list)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, false)
	env.post(t, "/api/missions/mission-blink/validate", "text/plain", "x")

	resp := env.get(t, "/metrics")
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), `questcheck_validations_total{mission="mission-blink",outcome="fail"} 1`) {
		t.Errorf("metrics output missing counter:\n%s", b)
	}
}

func TestEventsSSE(t *testing.T) {
	env := newTestEnv(t, false)
	env.bus.Publish(events.NewEvent(events.EventCatalogLoaded, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "event: catalog.loaded\n" {
		t.Errorf("first line = %q", line)
	}
	data, _ := r.ReadString('\n')
	if !strings.HasPrefix(data, "data: {") {
		t.Errorf("data line = %q", data)
	}

	if resp := env.get(t, "/api/events?since=yesterday"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", resp.StatusCode)
	}
}

func TestWebSocket(t *testing.T) {
	env := newTestEnv(t, false)
	env.bus.Publish(events.NewEvent(events.EventCatalogLoaded, nil))

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev events.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ev.Type != events.EventCatalogLoaded {
		t.Errorf("replayed type = %s", ev.Type)
	}

	// Live events arrive once the subscription is in place; keep
	// publishing until one comes through.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				env.bus.Publish(events.NewEvent(events.EventValidateStart, nil).ForSubmission("mission-blink", "ada"))
			}
		}
	}()

	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ev.Type != events.EventValidateStart || ev.Learner != "ada" {
		t.Errorf("live event = %+v", ev)
	}
}
