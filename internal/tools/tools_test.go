package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/loomhq/loom/internal/remotetool"
)

func TestRegistryInvoke(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Definition{Name: "echo", Description: "echoes input"}, func(ctx context.Context, input json.RawMessage) Result {
		var args struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(input, &args); err != nil {
			return Fail(err.Error())
		}
		return Ok(args.Text)
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res := r.Invoke(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`))
	if !res.Success || res.Output != "hi" {
		t.Errorf("Invoke = %+v", res)
	}

	res = r.Invoke(context.Background(), "missing", nil)
	if res.Success || !strings.Contains(res.Error, "unknown tool") {
		t.Errorf("unknown tool: %+v", res)
	}
}

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Definition{}, func(context.Context, json.RawMessage) Result { return Ok("") }); err == nil {
		t.Error("nameless tool accepted")
	}
	if err := r.Register(Definition{Name: "x"}, nil); err == nil {
		t.Error("nil handler accepted")
	}
}

func TestRegistryRecoversPanic(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{Name: "boom"}, func(context.Context, json.RawMessage) Result {
		panic("kaboom")
	})
	res := r.Invoke(context.Background(), "boom", nil)
	if res.Success || !strings.Contains(res.Error, "kaboom") {
		t.Errorf("panic not converted to failure: %+v", res)
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.Register(Definition{Name: name}, func(context.Context, json.RawMessage) Result { return Ok("") })
	}
	defs := r.List(context.Background())
	want := []string{"alpha", "mid", "zeta"}
	for i, w := range want {
		if defs[i].Name != w {
			t.Errorf("defs[%d] = %q, want %q", i, defs[i].Name, w)
		}
	}
}

// fakeRemote scripts the remote side of the router.
type fakeRemote struct {
	tools   []remotetool.RemoteTool
	invoked []string
	result  remotetool.Result
}

func (f *fakeRemote) AggregateTools(ctx context.Context) []remotetool.RemoteTool {
	return f.tools
}

func (f *fakeRemote) Invoke(ctx context.Context, id string, args json.RawMessage) remotetool.Result {
	f.invoked = append(f.invoked, id)
	return f.result
}

func TestRouterSyntacticRouting(t *testing.T) {
	local := NewRegistry()
	localCalled := false
	local.Register(Definition{Name: "notes"}, func(context.Context, json.RawMessage) Result {
		localCalled = true
		return Ok("local")
	})
	remote := &fakeRemote{result: remotetool.Result{Success: true, Output: "remote"}}
	router := NewRouter(local, remote)

	res := router.Invoke(context.Background(), "notes", nil)
	if !localCalled || res.Output != "local" {
		t.Errorf("local routing: called=%v res=%+v", localCalled, res)
	}

	res = router.Invoke(context.Background(), "search__lookup", nil)
	if res.Output != "remote" {
		t.Errorf("remote routing: %+v", res)
	}
	if len(remote.invoked) != 1 || remote.invoked[0] != "search__lookup" {
		t.Errorf("remote invoked = %v", remote.invoked)
	}
}

func TestRouterListMergesCatalogs(t *testing.T) {
	local := NewRegistry()
	local.Register(Definition{Name: "notes"}, func(context.Context, json.RawMessage) Result { return Ok("") })
	remote := &fakeRemote{tools: []remotetool.RemoteTool{
		{ID: "search__lookup", Endpoint: "search", Spec: remotetool.ToolSpec{Name: "lookup", Description: "web lookup"}},
	}}
	router := NewRouter(local, remote)

	defs := router.List(context.Background())
	if len(defs) != 2 {
		t.Fatalf("got %d defs, want 2", len(defs))
	}
	if defs[0].Name != "notes" || defs[1].Name != "search__lookup" {
		t.Errorf("defs = %v, %v", defs[0].Name, defs[1].Name)
	}
	if defs[1].Description != "web lookup" {
		t.Errorf("remote description not carried: %q", defs[1].Description)
	}
}

func TestRouterWithoutRemote(t *testing.T) {
	router := NewRouter(NewRegistry(), nil)
	if res := router.Invoke(context.Background(), "search__lookup", nil); res.Success {
		t.Errorf("remote id with no remote source should fail: %+v", res)
	}
	if router.HasPermission("search__lookup") {
		t.Error("remote id should lack permission with no remote source")
	}
}
