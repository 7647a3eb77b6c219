// Package provider defines the model-provider contract the engine consumes
// and ships an Anthropic API adapter.
package provider

import (
	"context"

	"github.com/loomhq/loom/pkg/models"
)

// StopReason distinguishes why a model response ended.
type StopReason string

const (
	// StopEndTurn indicates the model finished its turn.
	StopEndTurn StopReason = "end_turn"
	// StopToolUse indicates the model requested tool calls.
	StopToolUse StopReason = "tool_use"
	// StopMaxTokens indicates the response hit the output token limit.
	StopMaxTokens StopReason = "max_tokens"
)

// ToolSchema describes one tool offered to the model.
type ToolSchema struct {
	// Name is the tool identifier, possibly endpoint-namespaced.
	Name string
	// Description tells the model what the tool does.
	Description string
	// Properties is the JSON-schema properties map for the input.
	Properties map[string]interface{}
	// Required lists the mandatory input fields.
	Required []string
}

// Request is one model call.
type Request struct {
	// System is the system prompt.
	System string
	// Messages is the conversation history.
	Messages []models.Message
	// Tools are the tool schemas offered for this call. Empty means no tools.
	Tools []ToolSchema
	// MaxTokens caps the response length. Zero uses the adapter default.
	MaxTokens int64
	// Temperature overrides sampling temperature when >= 0. Negative uses the default.
	Temperature float64
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Response is the accumulated result of one model call.
type Response struct {
	// Text is the concatenated assistant text output.
	Text string
	// Reasoning holds any thinking blocks the model produced.
	Reasoning []string
	// ToolCalls are the tool invocations the model requested, in order.
	ToolCalls []models.ToolCallRequest
	// StopReason distinguishes "stop" from "more tool calls requested".
	StopReason StopReason
	// Usage reports the call's token consumption.
	Usage Usage
}

// EventType identifies a streaming event kind.
type EventType string

const (
	// EventToken is one chunk of assistant text.
	EventToken EventType = "token"
	// EventReasoning is one chunk of thinking output.
	EventReasoning EventType = "reasoning"
	// EventToolCall is a fully-accumulated tool invocation request.
	EventToolCall EventType = "tool_call"
)

// StreamEvent is one event in a streamed response.
type StreamEvent struct {
	Type      EventType
	Token     string
	Reasoning string
	ToolCall  *models.ToolCallRequest
}

// ModelProvider is the engine's contract with a language model backend.
type ModelProvider interface {
	// Generate makes a blocking model call.
	Generate(ctx context.Context, req Request) (*Response, error)
	// Stream makes a model call, invoking onEvent per chunk as it arrives,
	// and returns the fully accumulated response.
	Stream(ctx context.Context, req Request, onEvent func(StreamEvent)) (*Response, error)
	// CalculateCost converts a token count into dollars for this model.
	CalculateCost(promptTokens, completionTokens int64) float64
	// Model returns the model identifier.
	Model() string
}
