package remotetool

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeTransport scripts connect/list/call outcomes per endpoint.
type fakeTransport struct {
	name        string
	connectErrs int // fail this many Connect calls before succeeding
	connects    int
	listErr     error
	tools       []ToolSpec
	callErr     error
	result      Result
	calls       []string
	closed      bool
}

func (f *fakeTransport) Connect(ctx context.Context) (ServerInfo, error) {
	f.connects++
	if f.connects <= f.connectErrs {
		return ServerInfo{}, errors.New("connection refused")
	}
	return ServerInfo{Name: f.name, Version: "1.0"}, nil
}

func (f *fakeTransport) ListTools(ctx context.Context) ([]ToolSpec, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools, nil
}

func (f *fakeTransport) CallTool(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	f.calls = append(f.calls, name)
	if f.callErr != nil {
		return Result{}, f.callErr
	}
	return f.result, nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func factoryFor(transports map[string]*fakeTransport) TransportFactory {
	return func(cfg EndpointConfig) (Transport, error) {
		t, ok := transports[NormalizeName(cfg.Name)]
		if !ok {
			return nil, errors.New("no transport for " + cfg.Name)
		}
		return t, nil
	}
}

func fastConfig(name string) EndpointConfig {
	return EndpointConfig{
		Name:        name,
		Transport:   "http",
		URL:         "http://localhost:0",
		Enabled:     true,
		BackoffBase: time.Microsecond,
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Search", "search"},
		{"my_server", "my-server"},
		{"My Cool Server!", "my-cool-server"},
		{"a__b", "a-b"},
		{"  padded  ", "padded"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToolIDRoundTrip(t *testing.T) {
	id := FormatToolID("My Server", "web__lookup")
	endpoint, tool, ok := ParseToolID(id)
	if !ok {
		t.Fatalf("ParseToolID(%q) not ok", id)
	}
	if endpoint != "my-server" || tool != "web__lookup" {
		t.Errorf("got (%q, %q), want (my-server, web__lookup)", endpoint, tool)
	}

	for _, bad := range []string{"", "noseparator", "__leading", "trailing__"} {
		if _, _, ok := ParseToolID(bad); ok {
			t.Errorf("ParseToolID(%q) should fail", bad)
		}
	}
}

func TestBackoffSchedule(t *testing.T) {
	c := NewConnection(EndpointConfig{
		Name:           "ep",
		BackoffBase:    time.Second,
		BackoffCeiling: 10 * time.Second,
	}, nil)

	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		10 * time.Second, 10 * time.Second,
	}
	for i, w := range want {
		if got := c.backoffDelay(i + 1); got != w {
			t.Errorf("backoffDelay(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestConnectionLazyAndRecovers(t *testing.T) {
	ft := &fakeTransport{name: "ep", connectErrs: 2, tools: []ToolSpec{{Name: "ping"}}}
	c := NewConnection(fastConfig("ep"), factoryFor(map[string]*fakeTransport{"ep": ft}))
	c.sleep = func(time.Duration) {}

	if c.State() != StateDisconnected {
		t.Fatalf("initial state = %s, want disconnected", c.State())
	}
	if ft.connects != 0 {
		t.Fatal("connected before first request")
	}

	tools, err := c.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "ping" {
		t.Errorf("tools = %v", tools)
	}
	if c.State() != StateConnected {
		t.Errorf("state = %s, want connected", c.State())
	}
	if ft.connects != 3 {
		t.Errorf("connects = %d, want 3 (two failures then success)", ft.connects)
	}
}

func TestConnectionExhaustsBudgetThenFails(t *testing.T) {
	ft := &fakeTransport{name: "ep", connectErrs: 100}
	cfg := fastConfig("ep")
	cfg.MaxReconnects = 3
	c := NewConnection(cfg, factoryFor(map[string]*fakeTransport{"ep": ft}))
	c.sleep = func(time.Duration) {}

	_, err := c.Tools(context.Background())
	if err == nil {
		t.Fatal("expected connect failure")
	}
	if c.State() != StateFailed {
		t.Fatalf("state = %s, want failed", c.State())
	}

	// Requests against a failed endpoint do not retry.
	before := ft.connects
	if _, err := c.Call(context.Background(), "ping", nil); !errors.Is(err, ErrEndpointFailed) {
		t.Errorf("Call on failed endpoint: err = %v, want ErrEndpointFailed", err)
	}
	if ft.connects != before {
		t.Error("failed endpoint attempted reconnection without explicit Reconnect")
	}

	// Explicit reconnect clears the failure.
	ft.connectErrs = 0
	if err := c.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if c.State() != StateConnected {
		t.Errorf("state after Reconnect = %s, want connected", c.State())
	}
}

func TestCatalogCache(t *testing.T) {
	ft := &fakeTransport{name: "ep", tools: []ToolSpec{{Name: "a"}}}
	c := NewConnection(fastConfig("ep"), factoryFor(map[string]*fakeTransport{"ep": ft}))

	if _, err := c.Tools(context.Background()); err != nil {
		t.Fatalf("Tools: %v", err)
	}
	ft.tools = []ToolSpec{{Name: "a"}, {Name: "b"}}

	tools, err := c.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	if len(tools) != 1 {
		t.Errorf("cached catalog refreshed early: got %d tools", len(tools))
	}

	// Expire the cache.
	c.mu.Lock()
	c.catalogTime = time.Now().Add(-time.Hour)
	c.mu.Unlock()
	tools, err = c.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools after expiry: %v", err)
	}
	if len(tools) != 2 {
		t.Errorf("stale catalog not refreshed: got %d tools", len(tools))
	}
}

func TestManagerAggregationDegradesGracefully(t *testing.T) {
	transports := map[string]*fakeTransport{
		"alpha": {name: "alpha", tools: []ToolSpec{{Name: "read"}, {Name: "write"}}},
		"beta":  {name: "beta", connectErrs: 100},
		"gamma": {name: "gamma", tools: []ToolSpec{{Name: "search"}}},
	}
	cfgs := []EndpointConfig{fastConfig("alpha"), fastConfig("beta"), fastConfig("gamma")}
	for i := range cfgs {
		cfgs[i].MaxReconnects = 1
		cfgs[i].Priority = i
	}
	m := NewManager(cfgs, factoryFor(transports))
	defer m.Close()
	if conn, ok := m.Connection("beta"); ok {
		conn.sleep = func(time.Duration) {}
	}

	tools := m.AggregateTools(context.Background())
	ids := make([]string, len(tools))
	for i, rt := range tools {
		ids[i] = rt.ID
	}
	want := []string{"alpha__read", "alpha__write", "gamma__search"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestManagerInvoke(t *testing.T) {
	ft := &fakeTransport{name: "alpha", result: Result{Success: true, Output: "done"}}
	m := NewManager([]EndpointConfig{fastConfig("alpha")}, factoryFor(map[string]*fakeTransport{"alpha": ft}))
	defer m.Close()

	res := m.Invoke(context.Background(), "alpha__read", json.RawMessage(`{"path":"x"}`))
	if !res.Success || res.Output != "done" {
		t.Errorf("Invoke = %+v", res)
	}
	if len(ft.calls) != 1 || ft.calls[0] != "read" {
		t.Errorf("transport calls = %v, want [read]", ft.calls)
	}

	if res := m.Invoke(context.Background(), "nope__read", nil); res.Success {
		t.Error("unknown endpoint should fail")
	}
	if res := m.Invoke(context.Background(), "noseparator", nil); res.Success {
		t.Error("malformed id should fail")
	}
}

func TestManagerReload(t *testing.T) {
	transports := map[string]*fakeTransport{
		"alpha": {name: "alpha", tools: []ToolSpec{{Name: "a"}}},
		"beta":  {name: "beta", tools: []ToolSpec{{Name: "b"}}},
	}
	m := NewManager([]EndpointConfig{fastConfig("alpha")}, factoryFor(transports))
	defer m.Close()

	m.AggregateTools(context.Background())

	// Swap alpha out, beta in.
	m.Reload([]EndpointConfig{fastConfig("beta")})
	tools := m.AggregateTools(context.Background())
	if len(tools) != 1 || tools[0].ID != "beta__b" {
		t.Errorf("after reload: %v", tools)
	}
	if !transports["alpha"].closed {
		t.Error("removed endpoint's transport not closed")
	}

	// Disabled endpoints drop out.
	disabled := fastConfig("beta")
	disabled.Enabled = false
	m.Reload([]EndpointConfig{disabled})
	if got := m.AggregateTools(context.Background()); len(got) != 0 {
		t.Errorf("disabled endpoint still listed: %v", got)
	}
}

func TestLoadEndpoints(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "endpoints.yaml")
	content := `endpoints:
  - name: search
    url: http://localhost:9001
    priority: 1
  - name: files
    url: http://localhost:9002
    enabled: false
    max_reconnects: 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfgs, err := LoadEndpoints(path)
	if err != nil {
		t.Fatalf("LoadEndpoints: %v", err)
	}
	if len(cfgs) != 2 {
		t.Fatalf("got %d endpoints, want 2", len(cfgs))
	}
	if !cfgs[0].Enabled {
		t.Error("absent enabled field should default to true")
	}
	if cfgs[1].Enabled {
		t.Error("enabled: false not honored")
	}
	if cfgs[1].MaxReconnects != 2 {
		t.Errorf("max_reconnects = %d, want 2", cfgs[1].MaxReconnects)
	}

	dup := `endpoints:
  - name: Same
    url: http://a
  - name: same
    url: http://b
`
	if err := os.WriteFile(path, []byte(dup), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadEndpoints(path); err == nil {
		t.Error("duplicate names should fail")
	}
}
