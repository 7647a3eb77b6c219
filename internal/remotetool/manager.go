package remotetool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Manager aggregates tools across all configured endpoints and routes
// invocations by namespaced id. Endpoint failures degrade gracefully:
// an unreachable endpoint drops out of the aggregate catalog instead of
// failing the whole listing.
type Manager struct {
	mu       sync.RWMutex
	conns    map[string]*Connection
	configs  map[string]EndpointConfig
	factory  TransportFactory
	debugLog func(format string, args ...interface{})
}

// NewManager builds a manager over the given endpoint configs. A nil
// factory uses the default transport factory.
func NewManager(cfgs []EndpointConfig, factory TransportFactory) *Manager {
	if factory == nil {
		factory = DefaultTransportFactory
	}
	m := &Manager{
		conns:    make(map[string]*Connection),
		configs:  make(map[string]EndpointConfig),
		factory:  factory,
		debugLog: func(format string, args ...interface{}) {},
	}
	m.Reload(cfgs)
	return m
}

// SetDebugLogger installs a logger for manager and connection events.
func (m *Manager) SetDebugLogger(fn func(format string, args ...interface{})) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.debugLog = fn
	for _, c := range m.conns {
		c.SetDebugLogger(fn)
	}
	m.mu.Unlock()
}

// Reload replaces the endpoint set: new endpoints are added, removed ones
// are closed, and endpoints whose config changed are rebuilt. Existing
// connections with unchanged configs are kept, preserving their state
// and warm catalogs.
func (m *Manager) Reload(cfgs []EndpointConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(cfgs))
	for _, cfg := range cfgs {
		name := NormalizeName(cfg.Name)
		if name == "" {
			continue
		}
		seen[name] = true
		if prev, ok := m.configs[name]; ok && prev == cfg {
			continue
		}
		if old, ok := m.conns[name]; ok {
			old.Close()
			m.debugLog("[remotetool] endpoint %s reconfigured", name)
		}
		m.configs[name] = cfg
		if cfg.Enabled {
			conn := NewConnection(cfg, m.factory)
			conn.SetDebugLogger(m.debugLog)
			m.conns[name] = conn
		} else {
			delete(m.conns, name)
		}
	}

	for name, conn := range m.conns {
		if !seen[name] {
			conn.Close()
			delete(m.conns, name)
			delete(m.configs, name)
			m.debugLog("[remotetool] endpoint %s removed", name)
		}
	}
	for name := range m.configs {
		if !seen[name] {
			delete(m.configs, name)
		}
	}
}

// connections returns enabled connections in priority order (lower
// priority value first, name as tiebreak).
func (m *Manager) connections() []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].cfg.Priority, out[j].cfg.Priority
		if pi != pj {
			return pi < pj
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

// AggregateTools lists every tool across all enabled endpoints under its
// namespaced id. Endpoints that cannot be listed are skipped; their error
// is logged, not returned, so one dead endpoint never hides the rest.
func (m *Manager) AggregateTools(ctx context.Context) []RemoteTool {
	var out []RemoteTool
	for _, conn := range m.connections() {
		tools, err := conn.Tools(ctx)
		if err != nil {
			m.debugLog("[remotetool] skipping endpoint %s: %v", conn.Name(), err)
			continue
		}
		for _, spec := range tools {
			out = append(out, RemoteTool{
				ID:       FormatToolID(conn.Name(), spec.Name),
				Endpoint: conn.Name(),
				Spec:     spec,
			})
		}
	}
	return out
}

// Invoke routes a namespaced tool id to its endpoint and calls the tool.
// Unknown endpoints and malformed ids come back as failed Results.
func (m *Manager) Invoke(ctx context.Context, id string, args json.RawMessage) Result {
	endpoint, tool, ok := ParseToolID(id)
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("malformed tool id %q", id)}
	}

	m.mu.RLock()
	conn, exists := m.conns[endpoint]
	m.mu.RUnlock()
	if !exists {
		return Result{Success: false, Error: fmt.Sprintf("unknown endpoint %q for tool %q", endpoint, id)}
	}

	res, err := conn.Call(ctx, tool, args)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return res
}

// Connection returns the connection for a normalized endpoint name.
func (m *Manager) Connection(name string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conns[NormalizeName(name)]
	return c, ok
}

// Stats returns snapshots for every enabled endpoint in priority order.
func (m *Manager) Stats() []ConnStats {
	conns := m.connections()
	out := make([]ConnStats, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Stats())
	}
	return out
}

// Close tears down every connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for name, c := range m.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.conns, name)
	}
	return firstErr
}
