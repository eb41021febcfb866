package mcp

import (
	"encoding/json"
	"testing"
)

func TestWrap_Request(t *testing.T) {
	t.Parallel()

	msg, err := Wrap([]byte(`{"jsonrpc":"2.0","id":7,"method":"tools/list","params":{"a":1}}`))
	if err != nil {
		t.Fatalf("Wrap() error: %v", err)
	}

	if !msg.IsRequest() {
		t.Error("IsRequest() = false, want true")
	}
	if msg.IsNotification() {
		t.Error("IsNotification() = true, want false")
	}
	if msg.Method() != "tools/list" {
		t.Errorf("Method() = %q, want tools/list", msg.Method())
	}
	if string(msg.RawID()) != "7" {
		t.Errorf("RawID() = %s, want 7", msg.RawID())
	}
	if string(msg.Params()) != `{"a":1}` {
		t.Errorf("Params() = %s, want the raw params", msg.Params())
	}
}

func TestWrap_IDForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "number", raw: `{"jsonrpc":"2.0","id":42,"method":"ping"}`, want: "42"},
		{name: "string", raw: `{"jsonrpc":"2.0","id":"abc","method":"ping"}`, want: `"abc"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg, err := Wrap([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Wrap() error: %v", err)
			}
			if string(msg.RawID()) != tt.want {
				t.Errorf("RawID() = %s, want %s", msg.RawID(), tt.want)
			}
		})
	}
}

func TestWrap_Notification(t *testing.T) {
	t.Parallel()

	msg, err := Wrap([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	if err != nil {
		t.Fatalf("Wrap() error: %v", err)
	}
	if !msg.IsNotification() {
		t.Error("IsNotification() = false, want true for an id-less request")
	}
}

func TestWrap_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := Wrap([]byte(`{broken`)); err == nil {
		t.Error("Wrap() with malformed JSON succeeded, want error")
	}
}

func TestNewResultFrame(t *testing.T) {
	t.Parallel()

	frame, err := NewResultFrame(json.RawMessage(`"req-1"`), map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("NewResultFrame() error: %v", err)
	}

	var env struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  map[string]any  `json:"result"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("frame decode error: %v", err)
	}
	if env.JSONRPC != "2.0" {
		t.Errorf("jsonrpc = %q, want 2.0", env.JSONRPC)
	}
	if string(env.ID) != `"req-1"` {
		t.Errorf("id = %s, want \"req-1\"", env.ID)
	}
	if env.Result["k"] != "v" {
		t.Errorf("result = %v, want the payload", env.Result)
	}
}

func TestNewErrorFrame_NilID(t *testing.T) {
	t.Parallel()

	frame, err := NewErrorFrame(nil, CodeMethodNotFound, "method not found: x")
	if err != nil {
		t.Fatalf("NewErrorFrame() error: %v", err)
	}

	var env struct {
		ID    json.RawMessage `json:"id"`
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("frame decode error: %v", err)
	}
	if string(env.ID) != "null" {
		t.Errorf("id = %s, want null", env.ID)
	}
	if env.Error.Code != CodeMethodNotFound {
		t.Errorf("code = %d, want %d", env.Error.Code, CodeMethodNotFound)
	}
}

func TestTextResult(t *testing.T) {
	t.Parallel()

	result, err := TextResult(map[string]bool{"success": true}, false)
	if err != nil {
		t.Fatalf("TextResult() error: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("Content = %+v, want one text block", result.Content)
	}
	if result.IsError {
		t.Error("IsError = true, want false")
	}

	var payload map[string]bool
	if err := json.Unmarshal([]byte(result.Content[0].Text), &payload); err != nil {
		t.Fatalf("text block is not JSON: %v", err)
	}
	if !payload["success"] {
		t.Error("payload lost through the text block")
	}
}
