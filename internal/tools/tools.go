// Package tools defines the tool abstraction sub-agents call during their
// reasoning loop, a registry for locally implemented tools, and a composite
// router that merges local tools with remote endpoint tools.
package tools

import (
	"context"
	"encoding/json"
)

// Definition describes a tool to the model.
type Definition struct {
	// Name is the identifier the model calls the tool by.
	Name string
	// Description tells the model when to use the tool.
	Description string
	// Properties is the JSON-schema properties map for the input object.
	Properties map[string]interface{}
	// Required lists mandatory input fields.
	Required []string
}

// Result is the uniform outcome of any tool invocation, local or remote.
// Tool failures are values, not errors: a failed call feeds back into the
// conversation so the model can react to it.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Fail builds a failed Result from an error message.
func Fail(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Ok builds a successful Result.
func Ok(output string) Result {
	return Result{Success: true, Output: output}
}

// Handler executes a local tool. Input is the raw JSON arguments from the
// model. Handlers report failures through the Result, never by panicking.
type Handler func(ctx context.Context, input json.RawMessage) Result

// Tool pairs a definition with its handler.
type Tool struct {
	Definition Definition
	Handler    Handler
}

// Invoker is the surface the agent runner dispatches tool calls through.
type Invoker interface {
	// List returns every available tool definition.
	List(ctx context.Context) []Definition
	// Invoke runs the named tool. Unknown names come back as failed Results.
	Invoke(ctx context.Context, name string, input json.RawMessage) Result
	// HasPermission reports whether the named tool may be called at all.
	HasPermission(name string) bool
}
