package models

import (
	"encoding/json"
	"time"
)

// AgentStatus represents the current state of a sub-agent worker.
type AgentStatus string

const (
	// AgentStatusInitializing indicates the worker is being set up.
	AgentStatusInitializing AgentStatus = "initializing"
	// AgentStatusRunning indicates the worker's loop is executing.
	AgentStatusRunning AgentStatus = "running"
	// AgentStatusCompleted indicates the worker finished successfully.
	AgentStatusCompleted AgentStatus = "completed"
	// AgentStatusFailed indicates the worker terminated with an error.
	AgentStatusFailed AgentStatus = "failed"
	// AgentStatusCancelled indicates the worker was cancelled cooperatively.
	AgentStatusCancelled AgentStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusInitializing, AgentStatusRunning, AgentStatusCompleted, AgentStatusFailed, AgentStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is final.
func (s AgentStatus) Terminal() bool {
	switch s {
	case AgentStatusCompleted, AgentStatusFailed, AgentStatusCancelled:
		return true
	default:
		return false
	}
}

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	// RoleSystem marks synthesized guidance and summary messages.
	RoleSystem MessageRole = "system"
	// RoleUser marks task input and tool results fed back to the model.
	RoleUser MessageRole = "user"
	// RoleAssistant marks model output.
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry in a worker's conversation history.
type Message struct {
	// Role is the author of the message.
	Role MessageRole `json:"role"`
	// Content is the textual body.
	Content string `json:"content"`
	// ToolCalls holds tool invocations requested by an assistant message.
	ToolCalls []ToolCallRequest `json:"tool_calls,omitempty"`
	// ToolCallID links a tool-result message back to its request.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCallRequest is a tool invocation requested by the model.
type ToolCallRequest struct {
	// ID is the model-assigned call identifier.
	ID string `json:"id"`
	// Name is the tool identifier, possibly endpoint-namespaced.
	Name string `json:"name"`
	// Input is the serialized tool arguments.
	Input json.RawMessage `json:"input"`
}

// ToolCallRecord is a completed tool invocation in a worker's log.
type ToolCallRecord struct {
	// Name is the tool identifier that was invoked.
	Name string `json:"name"`
	// Input is the serialized arguments passed to the tool.
	Input json.RawMessage `json:"input"`
	// Output is the tool's result content.
	Output string `json:"output"`
	// Success indicates whether the tool reported success.
	Success bool `json:"success"`
	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`
	// Timestamp is when the invocation completed.
	Timestamp time.Time `json:"timestamp"`
}

// ReasoningStep is one recorded thinking step from a worker.
type ReasoningStep struct {
	// Content is the reasoning text.
	Content string `json:"content"`
	// Iteration is the loop iteration that produced it.
	Iteration int `json:"iteration"`
	// Timestamp is when it was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// ArtifactType classifies an extracted artifact.
type ArtifactType string

const (
	// ArtifactCode is a fenced code block extracted from a final response.
	ArtifactCode ArtifactType = "code"
	// ArtifactData is a fenced JSON block that parsed successfully.
	ArtifactData ArtifactType = "data"
)

// Artifact is a durable output extracted from a worker's final response.
type Artifact struct {
	// Type classifies the artifact.
	Type ArtifactType `json:"type"`
	// Language is the fence language tag, if any.
	Language string `json:"language,omitempty"`
	// Content is the artifact body.
	Content string `json:"content"`
	// CreatedAt is when the artifact was extracted.
	CreatedAt time.Time `json:"created_at"`
}

// Usage tracks token and cost totals.
type Usage struct {
	// InputTokens is the total prompt tokens consumed.
	InputTokens int64 `json:"input_tokens"`
	// OutputTokens is the total completion tokens produced.
	OutputTokens int64 `json:"output_tokens"`
	// Cost is the accumulated dollar cost.
	Cost float64 `json:"cost"`
}

// SubAgentState is the full externally-observable state of one worker.
// It is owned exclusively by the worker's runner during execution and
// persisted incrementally so it can be reconstructed while in flight.
type SubAgentState struct {
	// ID is the worker identifier.
	ID string `json:"id"`
	// RunID is the owning run.
	RunID string `json:"run_id"`
	// TaskID is the task node this worker executes.
	TaskID string `json:"task_id"`
	// AgentType is the capability profile of this worker.
	AgentType AgentType `json:"agent_type"`
	// Status is the current state of the worker.
	Status AgentStatus `json:"status"`
	// Messages is the accumulated conversation history.
	Messages []Message `json:"messages,omitempty"`
	// ToolCalls is the completed tool invocation log.
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
	// Reasoning is the recorded reasoning-step log.
	Reasoning []ReasoningStep `json:"reasoning,omitempty"`
	// Artifacts holds outputs extracted from the final response.
	Artifacts []Artifact `json:"artifacts,omitempty"`
	// Usage is the running token and cost totals.
	Usage Usage `json:"usage"`
	// PendingGuidance is the at-most-one unconsumed guidance string.
	PendingGuidance string `json:"pending_guidance,omitempty"`
	// Error holds the terminal failure message, if any.
	Error string `json:"error,omitempty"`
	// StartedAt is when the worker entered running.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when the worker reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
