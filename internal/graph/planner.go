package graph

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loomhq/loom/internal/state"
	"github.com/loomhq/loom/pkg/models"
)

// TaskSubmission is one task in a flat plan submission. TempID is a
// caller-local identifier used only to express dependencies within the
// same submission.
type TaskSubmission struct {
	TempID      string   `json:"temp_id"`
	Description string   `json:"description"`
	AgentType   string   `json:"agent_type"`
	DependsOn   []string `json:"depends_on,omitempty"`
}

// Planner validates plan submissions and persists the resulting plan.
// It is the only component that mutates a plan.
type Planner struct {
	store state.PlanStore
}

// NewPlanner creates a Planner backed by the given store.
func NewPlanner(store state.PlanStore) *Planner {
	return &Planner{store: store}
}

// CreatePlan validates a flat submission, maps temporary ids to durable ids,
// and persists the plan with every node pending. Validation failures are
// rejected before any persistence and are never retried.
func (p *Planner) CreatePlan(runID, rationale string, tasks []TaskSubmission) (*models.TaskPlan, error) {
	if err := ValidateSubmission(tasks); err != nil {
		return nil, err
	}

	now := time.Now()
	plan := &models.TaskPlan{
		ID:        uuid.New().String(),
		RunID:     runID,
		Rationale: rationale,
		Status:    models.PlanStatusExecuting,
		CreatedAt: now,
	}

	// Map temporary ids to durable ids before rewriting dependencies.
	durable := make(map[string]string, len(tasks))
	for _, t := range tasks {
		durable[t.TempID] = uuid.New().String()
	}

	for _, t := range tasks {
		node := &models.TaskNode{
			ID:          durable[t.TempID],
			PlanID:      plan.ID,
			Description: t.Description,
			AgentType:   models.AgentType(t.AgentType),
			Status:      models.TaskStatusPending,
			CreatedAt:   now,
		}
		for _, dep := range t.DependsOn {
			node.DependsOn = append(node.DependsOn, durable[dep])
		}
		plan.Nodes = append(plan.Nodes, node)
	}

	if err := p.store.CreatePlan(plan); err != nil {
		return nil, fmt.Errorf("persist plan: %w", err)
	}
	return plan, nil
}

// ValidateSubmission checks a flat submission without persisting anything:
// non-empty task list, unique temporary ids, known agent types, dependencies
// resolving within the submission, no self-dependencies, and no cycles.
func ValidateSubmission(tasks []TaskSubmission) error {
	if len(tasks) == 0 {
		return fmt.Errorf("plan submission contains no tasks")
	}

	byTemp := make(map[string]TaskSubmission, len(tasks))
	for _, t := range tasks {
		if t.TempID == "" {
			return fmt.Errorf("task %q has an empty temporary id", t.Description)
		}
		if _, dup := byTemp[t.TempID]; dup {
			return fmt.Errorf("duplicate temporary id %q", t.TempID)
		}
		if !models.AgentType(t.AgentType).Valid() {
			return fmt.Errorf("task %q has unknown agent type %q", t.TempID, t.AgentType)
		}
		byTemp[t.TempID] = t
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if dep == t.TempID {
				return fmt.Errorf("task %q depends on itself", t.TempID)
			}
			if _, ok := byTemp[dep]; !ok {
				return fmt.Errorf("task %q depends on unknown task %q", t.TempID, dep)
			}
		}
	}

	return detectCycle(tasks)
}

// detectCycle runs a three-color DFS over the submission. Any edge into an
// in-progress (gray) node is a back edge, hence a cycle.
func detectCycle(tasks []TaskSubmission) error {
	deps := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		deps[t.TempID] = t.DependsOn
	}

	// 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(tasks))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range deps[id] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, t := range tasks {
		if colors[t.TempID] == 0 {
			if visit(t.TempID) {
				return ErrCycleDetected
			}
		}
	}
	return nil
}
