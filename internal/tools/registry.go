package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Registry holds locally implemented tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name replaces the previous tool.
func (r *Registry) Register(def Definition, handler Handler) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition has no name")
	}
	if handler == nil {
		return fmt.Errorf("tool %q has no handler", def.Name)
	}
	r.mu.Lock()
	r.tools[def.Name] = Tool{Definition: def, Handler: handler}
	r.mu.Unlock()
	return nil
}

// Get returns the tool for a name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered definition sorted by name.
func (r *Registry) List(ctx context.Context) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Definition)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke runs a registered tool. A panicking handler is converted into a
// failed Result so one bad tool cannot take down the agent loop.
func (r *Registry) Invoke(ctx context.Context, name string, input json.RawMessage) (res Result) {
	t, ok := r.Get(name)
	if !ok {
		return Fail(fmt.Sprintf("unknown tool %q", name))
	}
	defer func() {
		if rec := recover(); rec != nil {
			res = Fail(fmt.Sprintf("tool %q panicked: %v", name, rec))
		}
	}()
	return t.Handler(ctx, input)
}

// HasPermission reports whether the tool is registered.
func (r *Registry) HasPermission(name string) bool {
	_, ok := r.Get(name)
	return ok
}

var _ Invoker = (*Registry)(nil)
