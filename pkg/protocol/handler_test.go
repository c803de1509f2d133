package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHandlerMethodNotFound(t *testing.T) {
	h := NewHandler()
	req := Request{JSONRPC: "2.0", ID: 1, Method: "nonexistent"}

	resp := h.Handle(context.Background(), req)
	if resp.Error == nil {
		t.Fatal("expected error")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("Code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}

func TestHandlerInvalidVersion(t *testing.T) {
	h := NewHandler()
	req := Request{JSONRPC: "1.0", ID: 1, Method: "test"}

	resp := h.Handle(context.Background(), req)
	if resp.Error == nil {
		t.Fatal("expected error for invalid version")
	}
	if resp.Error.Code != CodeInvalidRequest {
		t.Errorf("Code = %d, want %d", resp.Error.Code, CodeInvalidRequest)
	}
}

func TestHandlerSuccess(t *testing.T) {
	h := NewHandler()
	h.Register("echo", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		return map[string]string{"echo": string(params)}, nil
	})

	req := Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "echo",
		Params:  json.RawMessage(`"hello"`),
	}

	resp := h.Handle(context.Background(), req)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	result, ok := resp.Result.(map[string]string)
	if !ok {
		t.Fatalf("unexpected result type: %T", resp.Result)
	}
	if result["echo"] != `"hello"` {
		t.Errorf("echo = %q", result["echo"])
	}
}

func TestHandlerError(t *testing.T) {
	h := NewHandler()
	h.Register("fail", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		return nil, &Error{Code: CodeMissionNotFound, Message: "boom"}
	})

	req := Request{JSONRPC: "2.0", ID: 2, Method: "fail"}
	resp := h.Handle(context.Background(), req)

	if resp.Error == nil {
		t.Fatal("expected error")
	}
	if resp.Error.Code != CodeMissionNotFound {
		t.Errorf("Code = %d", resp.Error.Code)
	}
	if resp.ID != 2 {
		t.Errorf("ID = %v", resp.ID)
	}
}

func TestHandleRaw(t *testing.T) {
	h := NewHandler()
	h.Register("ping", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		return "pong", nil
	})

	raw := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	resp := h.HandleRaw(context.Background(), raw)

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if resp.Result != "pong" {
		t.Errorf("Result = %v", resp.Result)
	}
}

func TestHandleRawParseError(t *testing.T) {
	h := NewHandler()
	resp := h.HandleRaw(context.Background(), []byte(`{invalid json`))

	if resp.Error == nil {
		t.Fatal("expected parse error")
	}
	if resp.Error.Code != CodeParseError {
		t.Errorf("Code = %d", resp.Error.Code)
	}
}

func TestServe(t *testing.T) {
	h := NewHandler()
	h.Register("ping", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		return "pong", nil
	})

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}

{"jsonrpc":"2.0","id":2,"method":"missing"}
not json
`)
	var out bytes.Buffer
	if err := h.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	dec := json.NewDecoder(&out)
	var responses []Response
	for dec.More() {
		var r Response
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		responses = append(responses, r)
	}
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}
	if responses[0].Result != "pong" {
		t.Errorf("first result = %v", responses[0].Result)
	}
	if responses[1].Error == nil || responses[1].Error.Code != CodeMethodNotFound {
		t.Errorf("second error = %+v", responses[1].Error)
	}
	if responses[2].Error == nil || responses[2].Error.Code != CodeParseError {
		t.Errorf("third error = %+v", responses[2].Error)
	}
}

func TestServeCancelled(t *testing.T) {
	h := NewHandler()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Serve(ctx, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"x"}`+"\n"), &bytes.Buffer{})
	if err != context.Canceled {
		t.Errorf("Serve error = %v, want context.Canceled", err)
	}
}

func TestParseParams(t *testing.T) {
	raw := json.RawMessage(`{"mission_id":"mission-blink","source":"delay(1);"}`)
	params, err := ParseParams[ValidateParams](raw)
	if err != nil {
		t.Fatalf("ParseParams: %v", err)
	}
	if params.MissionID != "mission-blink" {
		t.Errorf("MissionID = %q", params.MissionID)
	}
}

func TestParseParamsNil(t *testing.T) {
	params, err := ParseParams[ValidateParams](nil)
	if err != nil {
		t.Fatalf("ParseParams(nil): %v", err)
	}
	if params.MissionID != "" {
		t.Errorf("expected empty mission id, got %q", params.MissionID)
	}
}

func TestParseParamsInvalid(t *testing.T) {
	_, err := ParseParams[ValidateParams](json.RawMessage(`"not an object"`))
	if err == nil {
		t.Fatal("expected error for invalid params")
	}
	if err.Code != CodeInvalidParams {
		t.Errorf("Code = %d", err.Code)
	}
}

func TestHandlerMethods(t *testing.T) {
	h := NewHandler()
	noop := func(ctx context.Context, params json.RawMessage) (any, *Error) { return nil, nil }
	h.Register("b", noop)
	h.Register("a", noop)

	if diff := cmp.Diff([]string{"a", "b"}, h.Methods()); diff != "" {
		t.Errorf("Methods mismatch (-want +got):\n%s", diff)
	}
}
