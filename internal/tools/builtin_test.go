package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBuiltinRegistryHasCoreTools(t *testing.T) {
	r := NewBuiltinRegistry()
	defs := r.List(context.Background())
	names := make(map[string]bool, len(defs))
	for _, d := range defs {
		names[d.Name] = true
	}
	for _, want := range []string{"current_time", "scratchpad"} {
		if !names[want] {
			t.Errorf("missing builtin tool %q", want)
		}
	}
}

func TestCurrentTimeTool(t *testing.T) {
	r := NewBuiltinRegistry()
	ctx := context.Background()

	res := r.Invoke(ctx, "current_time", json.RawMessage(`{}`))
	if !res.Success {
		t.Fatalf("current_time failed: %s", res.Error)
	}
	if _, err := time.Parse(time.RFC3339, res.Output); err != nil {
		t.Errorf("output %q is not RFC 3339: %v", res.Output, err)
	}

	res = r.Invoke(ctx, "current_time", json.RawMessage(`{"timezone":"Not/AZone"}`))
	if res.Success {
		t.Error("expected failure for unknown timezone")
	}
}

func TestScratchpadRoundTrip(t *testing.T) {
	r := NewBuiltinRegistry()
	ctx := context.Background()

	res := r.Invoke(ctx, "scratchpad", json.RawMessage(`{"action":"write","name":"plan","content":"check the logs first"}`))
	if !res.Success {
		t.Fatalf("write failed: %s", res.Error)
	}

	res = r.Invoke(ctx, "scratchpad", json.RawMessage(`{"action":"read","name":"plan"}`))
	if !res.Success || res.Output != "check the logs first" {
		t.Errorf("read = %+v, want saved content", res)
	}

	res = r.Invoke(ctx, "scratchpad", json.RawMessage(`{"action":"list"}`))
	if !res.Success || !strings.Contains(res.Output, "plan") {
		t.Errorf("list = %+v, want to include note name", res)
	}

	res = r.Invoke(ctx, "scratchpad", json.RawMessage(`{"action":"read","name":"missing"}`))
	if res.Success {
		t.Error("expected failure reading missing note")
	}

	res = r.Invoke(ctx, "scratchpad", json.RawMessage(`{"action":"drop"}`))
	if res.Success {
		t.Error("expected failure for unknown action")
	}
}
