package models

import "time"

// RunStatus represents the overall state of an orchestrated run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is active.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted indicates the run finished successfully.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the run terminated with a failure.
	RunStatusFailed RunStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// OrchestratorState is the shared per-run state mutated by concurrent workers.
// The numeric counters race across workers completing near-simultaneously, so
// every mutation goes through the store's atomic increment operations rather
// than read-modify-write on this struct.
type OrchestratorState struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`
	// Status is the overall run state.
	Status RunStatus `json:"status"`
	// PlanID is the active plan, if one exists.
	PlanID string `json:"plan_id,omitempty"`
	// ActiveAgents is the set of currently running worker IDs.
	ActiveAgents []string `json:"active_agents,omitempty"`
	// LoopCounters maps task node ID to its retry/attempt counter.
	LoopCounters map[string]int `json:"loop_counters,omitempty"`
	// Interventions is the cumulative intervention counter.
	Interventions int `json:"interventions"`
	// Usage is the run-wide token and cost totals.
	Usage Usage `json:"usage"`
	// Error holds the terminal failure message, if any.
	Error string `json:"error,omitempty"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when the run reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ContextSummary is a generated replacement for a contiguous prefix of a
// worker's message history. It is ephemeral: produced by the budgeter,
// consumed immediately by the runner, and persisted only as part of the
// rewritten history.
type ContextSummary struct {
	// ID identifies the summary.
	ID string `json:"id"`
	// Content is the synthesized summary text.
	Content string `json:"content"`
	// MessagesReplaced is how many messages the summary stands in for.
	MessagesReplaced int `json:"messages_replaced"`
	// OriginalTokens is the estimated token count before compression.
	OriginalTokens int `json:"original_tokens"`
	// SummaryTokens is the estimated token count after compression.
	SummaryTokens int `json:"summary_tokens"`
	// CreatedAt is when the summary was generated.
	CreatedAt time.Time `json:"created_at"`
}
