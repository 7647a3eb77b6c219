// Package state provides SQLite-based persistence for the orchestration engine.
package state

import (
	"io"

	"github.com/loomhq/loom/pkg/models"
)

// PlanStore handles plan and task-node persistence operations.
type PlanStore interface {
	CreatePlan(p *models.TaskPlan) error
	GetPlan(id string) (*models.TaskPlan, error)
	GetPlanByRun(runID string) (*models.TaskPlan, error)
	UpdatePlanStatus(id string, status models.PlanStatus) error
	GetNode(id string) (*models.TaskNode, error)
	UpdateNode(n *models.TaskNode) error
}

// AgentStateStore handles sub-agent worker persistence operations.
// The Append* operations are atomic appends to the worker's logs so the
// full history of an in-flight worker can be reconstructed externally.
type AgentStateStore interface {
	CreateAgentState(s *models.SubAgentState) error
	GetAgentState(id string) (*models.SubAgentState, error)
	UpdateAgentStatus(id string, status models.AgentStatus, errMsg string) error
	SetPendingGuidance(id, guidance string) error
	AppendMessage(agentID string, m models.Message) error
	ReplaceMessages(agentID string, msgs []models.Message) error
	AppendToolCall(agentID string, r models.ToolCallRecord) error
	AppendReasoning(agentID string, r models.ReasoningStep) error
	AppendArtifact(agentID string, a models.Artifact) error
	AddAgentUsage(agentID string, inputTokens, outputTokens int64, cost float64) error
}

// RunStore handles run-level shared state. The increment operations are
// atomic in SQL so concurrent worker completions never lose updates.
type RunStore interface {
	CreateRun(r *models.OrchestratorState) error
	GetRun(runID string) (*models.OrchestratorState, error)
	ListRuns(limit int) ([]*models.OrchestratorState, error)
	UpdateRunStatus(runID string, status models.RunStatus, errMsg string) error
	SetRunPlan(runID, planID string) error
	AddRunUsage(runID string, inputTokens, outputTokens int64, cost float64) error
	IncrementLoopCounter(runID, taskID string) (int, error)
	IncrementInterventions(runID string) (int, error)
	AddActiveAgent(runID, agentID string) error
	RemoveActiveAgent(runID, agentID string) error
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the interface for state persistence.
// This interface allows the engine to work with any state backend
// without depending on the concrete SQLite implementation.
type Store interface {
	io.Closer
	Migrator
	PlanStore
	AgentStateStore
	RunStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store           = (*DB)(nil)
	_ Migrator        = (*DB)(nil)
	_ PlanStore       = (*DB)(nil)
	_ AgentStateStore = (*DB)(nil)
	_ RunStore        = (*DB)(nil)
)
