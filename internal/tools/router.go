package tools

import (
	"context"
	"encoding/json"

	"github.com/loomhq/loom/internal/remotetool"
)

// RemoteSource is the slice of the endpoint manager the router needs.
type RemoteSource interface {
	AggregateTools(ctx context.Context) []remotetool.RemoteTool
	Invoke(ctx context.Context, id string, args json.RawMessage) remotetool.Result
}

// Router merges the local registry with remote endpoint tools behind one
// Invoker. Routing is purely syntactic: names carrying the endpoint
// namespace separator go to the remote manager, everything else to the
// local registry. Local tool names never contain the separator, so the
// two namespaces cannot collide.
type Router struct {
	local  *Registry
	remote RemoteSource
}

// NewRouter builds a composite router. The remote source may be nil when
// no endpoints are configured.
func NewRouter(local *Registry, remote RemoteSource) *Router {
	if local == nil {
		local = NewRegistry()
	}
	return &Router{local: local, remote: remote}
}

// List returns local definitions followed by the aggregated remote catalog
// under namespaced names.
func (r *Router) List(ctx context.Context) []Definition {
	defs := r.local.List(ctx)
	if r.remote == nil {
		return defs
	}
	for _, rt := range r.remote.AggregateTools(ctx) {
		defs = append(defs, Definition{
			Name:        rt.ID,
			Description: rt.Spec.Description,
			Properties:  rt.Spec.InputSchema,
			Required:    rt.Spec.Required,
		})
	}
	return defs
}

// Invoke dispatches by name shape and normalizes both sides to a Result.
func (r *Router) Invoke(ctx context.Context, name string, input json.RawMessage) Result {
	if remotetool.IsRemoteID(name) {
		if r.remote == nil {
			return Fail("no remote endpoints configured")
		}
		res := r.remote.Invoke(ctx, name, input)
		return Result{Success: res.Success, Output: res.Output, Error: res.Error}
	}
	return r.local.Invoke(ctx, name, input)
}

// HasPermission reports whether the name resolves to a known tool. Remote
// ids are checked syntactically only; the endpoint decides at call time.
func (r *Router) HasPermission(name string) bool {
	if remotetool.IsRemoteID(name) {
		return r.remote != nil
	}
	return r.local.HasPermission(name)
}

var _ Invoker = (*Router)(nil)
