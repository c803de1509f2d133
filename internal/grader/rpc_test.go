package grader

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cgast/questcheck/pkg/protocol"
)

func newRPC(t *testing.T, withStore bool) (*protocol.Handler, *Grader) {
	t.Helper()
	opts := []Option{WithSourceName("embedded")}
	if withStore {
		opts = append(opts, WithStore(newTestStore(t)))
	}
	g := New(defaultCatalog(t), opts...)
	h := protocol.NewHandler()
	g.Register(h)
	return h, g
}

// call round-trips a request through JSON so results come back as plain
// decoded values.
func call(t *testing.T, h *protocol.Handler, method string, params any, out any) *protocol.Error {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	resp := h.Handle(context.Background(), protocol.Request{
		JSONRPC: "2.0", ID: 1, Method: method, Params: raw,
	})
	if resp.Error != nil {
		return resp.Error
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decode %s result: %v", method, err)
	}
	return nil
}

func TestRegisterMethods(t *testing.T) {
	h, _ := newRPC(t, false)
	want := []string{
		protocol.MethodCatalogInfo,
		protocol.MethodMissionValidate,
		protocol.MethodMissionsGet,
		protocol.MethodMissionsList,
		protocol.MethodPathNext,
		protocol.MethodAttemptsList,
	}
	got := h.Methods()
	if len(got) != len(want) {
		t.Fatalf("Methods() = %v", got)
	}
	for _, m := range want {
		found := false
		for _, g := range got {
			if g == m {
				found = true
			}
		}
		if !found {
			t.Errorf("method %s not registered", m)
		}
	}
}

func TestRPCCatalogInfo(t *testing.T) {
	h, _ := newRPC(t, false)
	var info protocol.CatalogInfo
	if err := call(t, h, protocol.MethodCatalogInfo, nil, &info); err != nil {
		t.Fatal(err)
	}
	want := protocol.CatalogInfo{Version: "2025.1", Source: "embedded", Missions: 12}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("catalog.info mismatch (-want +got):\n%s", diff)
	}
}

func TestRPCMissionsList(t *testing.T) {
	h, _ := newRPC(t, false)

	var all []protocol.MissionSummary
	if err := call(t, h, protocol.MethodMissionsList, nil, &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 12 || all[0].ID != "mission-blink" {
		t.Fatalf("missions.list = %+v", all)
	}
	if all[0].Prerequisites == nil || len(all[0].Prerequisites) != 0 {
		t.Errorf("blink prerequisites = %v, want empty list", all[0].Prerequisites)
	}

	var hard []protocol.MissionSummary
	if err := call(t, h, protocol.MethodMissionsList, protocol.MissionsListParams{Difficulty: "hard"}, &hard); err != nil {
		t.Fatal(err)
	}
	for _, m := range hard {
		if m.Difficulty != "hard" {
			t.Errorf("%s has difficulty %s", m.ID, m.Difficulty)
		}
	}
}

func TestRPCMissionsGet(t *testing.T) {
	h, _ := newRPC(t, false)

	var m map[string]any
	if err := call(t, h, protocol.MethodMissionsGet, protocol.MissionParams{ID: "mission-pwm"}, &m); err != nil {
		t.Fatal(err)
	}
	if m["id"] != "mission-pwm" {
		t.Errorf("id = %v", m["id"])
	}

	err := call(t, h, protocol.MethodMissionsGet, protocol.MissionParams{ID: "nope"}, &m)
	if err == nil || err.Code != protocol.CodeMissionNotFound {
		t.Errorf("error = %v, want code %d", err, protocol.CodeMissionNotFound)
	}
}

func TestRPCValidate(t *testing.T) {
	h, g := newRPC(t, true)
	m, _ := g.Catalog().Get("mission-blink")

	var res protocol.ValidateResult
	params := protocol.ValidateParams{MissionID: m.ID, Learner: "ada", Source: m.StarterCode}
	if err := call(t, h, protocol.MethodMissionValidate, params, &res); err != nil {
		t.Fatal(err)
	}
	if !res.Result.IsPass || res.Cached || res.AttemptID == "" {
		t.Errorf("first validate = %+v", res)
	}
	if diff := cmp.Diff([]string{"mission-pwm"}, res.Unlocked); diff != "" {
		t.Errorf("Unlocked mismatch (-want +got):\n%s", diff)
	}

	if err := call(t, h, protocol.MethodMissionValidate, params, &res); err != nil {
		t.Fatal(err)
	}
	if !res.Cached {
		t.Error("repeat submission should be cached")
	}

	var path protocol.PathResult
	if err := call(t, h, protocol.MethodPathNext, protocol.PathParams{Learner: "ada"}, &path); err != nil {
		t.Fatal(err)
	}
	if path.Next == nil || path.Next.ID != "mission-pwm" {
		t.Errorf("path.next = %+v", path)
	}

	var attempts []map[string]any
	if err := call(t, h, protocol.MethodAttemptsList, protocol.AttemptsListParams{Learner: "ada"}, &attempts); err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 2 {
		t.Errorf("attempts.list returned %d, want 2", len(attempts))
	}
}

func TestRPCErrors(t *testing.T) {
	h, _ := newRPC(t, false)
	tests := []struct {
		name   string
		method string
		params any
		code   int
	}{
		{"unknown mission", protocol.MethodMissionValidate, protocol.ValidateParams{MissionID: "nope"}, protocol.CodeMissionNotFound},
		{"missing mission id", protocol.MethodMissionValidate, protocol.ValidateParams{Source: "x"}, protocol.CodeInvalidSubmission},
		{"bad params", protocol.MethodMissionValidate, []int{1}, protocol.CodeInvalidParams},
		{"store disabled", protocol.MethodAttemptsList, nil, protocol.CodeStoreDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out any
			err := call(t, h, tt.method, tt.params, &out)
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Code != tt.code {
				t.Errorf("Code = %d, want %d (%s)", err.Code, tt.code, err.Message)
			}
		})
	}
}

func TestRPCServe(t *testing.T) {
	h, _ := newRPC(t, false)
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"catalog.info"}
{"jsonrpc":"2.0","id":2,"method":"path.next","params":{"learner":"ada"}}
`)
	var out bytes.Buffer
	if err := h.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d responses, want 2: %s", len(lines), out.String())
	}
	var resp struct {
		Result protocol.PathResult `json:"result"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Result.Next == nil || resp.Result.Next.ID != "mission-blink" {
		t.Errorf("path.next = %+v", resp.Result)
	}
}
