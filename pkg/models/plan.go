package models

import "time"

// PlanStatus represents the current state of a task plan.
type PlanStatus string

const (
	// PlanStatusExecuting indicates the plan is being worked on.
	PlanStatusExecuting PlanStatus = "executing"
	// PlanStatusCompleted indicates every node reached a terminal state with no failures.
	PlanStatusCompleted PlanStatus = "completed"
	// PlanStatusFailed indicates the plan finished with at least one failed or cancelled node.
	PlanStatusFailed PlanStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusExecuting, PlanStatusCompleted, PlanStatusFailed:
		return true
	default:
		return false
	}
}

// TaskStatus represents the current state of a task node.
type TaskStatus string

const (
	// TaskStatusPending indicates the node has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates a worker has been assigned.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the node finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the node failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the node was cancelled before completing.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is final. Terminal states are never left.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// AgentType identifies the capability profile a task node is assigned to.
type AgentType string

const (
	// AgentTypeResearcher gathers information and context.
	AgentTypeResearcher AgentType = "researcher"
	// AgentTypeCoder writes and modifies code.
	AgentTypeCoder AgentType = "coder"
	// AgentTypeAnalyst inspects data and draws conclusions.
	AgentTypeAnalyst AgentType = "analyst"
	// AgentTypeWriter produces prose deliverables.
	AgentTypeWriter AgentType = "writer"
	// AgentTypeReviewer critiques the output of other agents.
	AgentTypeReviewer AgentType = "reviewer"
)

// AgentTypes lists every known agent type.
var AgentTypes = []AgentType{
	AgentTypeResearcher,
	AgentTypeCoder,
	AgentTypeAnalyst,
	AgentTypeWriter,
	AgentTypeReviewer,
}

// Valid returns true if the agent type is one of the fixed enumerated set.
func (a AgentType) Valid() bool {
	for _, t := range AgentTypes {
		if a == t {
			return true
		}
	}
	return false
}

// TaskNode represents one unit of work in a plan's dependency graph.
type TaskNode struct {
	// ID is the durable identifier for this node.
	ID string `json:"id"`
	// PlanID is the ID of the owning plan.
	PlanID string `json:"plan_id"`
	// Description is what the node's worker is asked to do.
	Description string `json:"description"`
	// AgentType is the capability profile assigned to this node.
	AgentType AgentType `json:"agent_type"`
	// DependsOn lists node IDs that must complete before this node starts.
	DependsOn []string `json:"depends_on,omitempty"`
	// Status is the current state of the node.
	Status TaskStatus `json:"status"`
	// Result holds the worker's output once the node completes.
	Result string `json:"result,omitempty"`
	// Error contains the failure message if the node failed.
	Error string `json:"error,omitempty"`
	// RetryCount is the number of times this node has been re-attempted.
	RetryCount int `json:"retry_count,omitempty"`
	// AssignedTo is the ID of the worker executing this node.
	AssignedTo string `json:"assigned_to,omitempty"`
	// CreatedAt is when the node was persisted.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the node reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskPlan identifies a run's dependency graph of task nodes.
// One plan exists per run at a time; only the graph manager mutates it.
type TaskPlan struct {
	// ID is the durable identifier for this plan.
	ID string `json:"id"`
	// RunID is the run this plan belongs to.
	RunID string `json:"run_id"`
	// Rationale is the free-text reasoning supplied with the plan submission.
	Rationale string `json:"rationale,omitempty"`
	// Status is the current state of the plan.
	Status PlanStatus `json:"status"`
	// Nodes is the ordered collection of task nodes.
	Nodes []*TaskNode `json:"nodes"`
	// CreatedAt is when the plan was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// PlanShape classifies a plan's dependency structure. It is derived, never stored.
type PlanShape string

const (
	// PlanShapeSequential indicates a simple chain of tasks.
	PlanShapeSequential PlanShape = "sequential"
	// PlanShapeGraph indicates fan-out, fan-in, or multiple roots.
	PlanShapeGraph PlanShape = "graph"
)

// Shape returns the structural classification of the plan: "graph" if any node
// has more than one dependent, any node has more than one dependency, or more
// than one root exists; "sequential" otherwise.
func (p *TaskPlan) Shape() PlanShape {
	roots := 0
	dependents := make(map[string]int)
	for _, n := range p.Nodes {
		if len(n.DependsOn) == 0 {
			roots++
		}
		if len(n.DependsOn) > 1 {
			return PlanShapeGraph
		}
		for _, dep := range n.DependsOn {
			dependents[dep]++
		}
	}
	if roots > 1 {
		return PlanShapeGraph
	}
	for _, count := range dependents {
		if count > 1 {
			return PlanShapeGraph
		}
	}
	return PlanShapeSequential
}

// Completed returns true when no node remains pending or in progress.
func (p *TaskPlan) Completed() bool {
	for _, n := range p.Nodes {
		if !n.Status.Terminal() {
			return false
		}
	}
	return true
}

// Succeeded returns true when the plan completed with zero failed or cancelled nodes.
func (p *TaskPlan) Succeeded() bool {
	if !p.Completed() {
		return false
	}
	for _, n := range p.Nodes {
		if n.Status != TaskStatusCompleted {
			return false
		}
	}
	return true
}
