package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/loomhq/loom/pkg/models"
)

// CreatePlan persists a plan together with all of its task nodes in a single
// transaction. Node order within the plan is preserved.
func (db *DB) CreatePlan(p *models.TaskPlan) error {
	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO plans (id, run_id, rationale, status, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, p.ID, p.RunID, p.Rationale, string(p.Status), formatTime(p.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}

		for i, n := range p.Nodes {
			deps, err := json.Marshal(n.DependsOn)
			if err != nil {
				return fmt.Errorf("marshal depends_on for node %s: %w", n.ID, err)
			}
			_, err = tx.Exec(`
				INSERT INTO task_nodes (id, plan_id, position, description, agent_type, depends_on, status, retry_count, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, n.ID, p.ID, i, n.Description, string(n.AgentType), string(deps), string(n.Status), n.RetryCount, formatTime(n.CreatedAt))
			if err != nil {
				return fmt.Errorf("insert task node %s: %w", n.ID, err)
			}
		}
		return nil
	})
}

// GetPlan loads a plan and its nodes by plan ID.
func (db *DB) GetPlan(id string) (*models.TaskPlan, error) {
	return db.getPlanWhere("id = ?", id)
}

// GetPlanByRun loads the plan belonging to a run. One plan exists per run
// at a time; the most recent one is returned.
func (db *DB) GetPlanByRun(runID string) (*models.TaskPlan, error) {
	return db.getPlanWhere("run_id = ? ORDER BY created_at DESC LIMIT 1", runID)
}

func (db *DB) getPlanWhere(where string, args ...any) (*models.TaskPlan, error) {
	row := db.QueryRow("SELECT id, run_id, rationale, status, created_at FROM plans WHERE "+where, args...)

	var p models.TaskPlan
	var rationale sql.NullString
	var createdAt string
	if err := row.Scan(&p.ID, &p.RunID, &rationale, (*string)(&p.Status), &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("plan not found")
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	p.Rationale = rationale.String
	if t, err := parseTime(createdAt); err == nil {
		p.CreatedAt = t
	}

	nodes, err := db.listNodes(p.ID)
	if err != nil {
		return nil, err
	}
	p.Nodes = nodes
	return &p, nil
}

func (db *DB) listNodes(planID string) ([]*models.TaskNode, error) {
	rows, err := db.Query(`
		SELECT id, plan_id, description, agent_type, depends_on, status, result, error, retry_count, assigned_to, created_at, completed_at
		FROM task_nodes WHERE plan_id = ? ORDER BY position
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list task nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*models.TaskNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// GetNode loads a single task node by ID.
func (db *DB) GetNode(id string) (*models.TaskNode, error) {
	rows, err := db.Query(`
		SELECT id, plan_id, description, agent_type, depends_on, status, result, error, retry_count, assigned_to, created_at, completed_at
		FROM task_nodes WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get task node: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("task node %s not found", id)
	}
	return scanNode(rows)
}

func scanNode(rows *sql.Rows) (*models.TaskNode, error) {
	var n models.TaskNode
	var deps, result, errMsg, assignedTo sql.NullString
	var createdAt string
	var completedAt sql.NullString

	err := rows.Scan(&n.ID, &n.PlanID, &n.Description, (*string)(&n.AgentType), &deps,
		(*string)(&n.Status), &result, &errMsg, &n.RetryCount, &assignedTo, &createdAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("scan task node: %w", err)
	}

	if deps.Valid && deps.String != "" {
		if err := json.Unmarshal([]byte(deps.String), &n.DependsOn); err != nil {
			return nil, fmt.Errorf("unmarshal depends_on for node %s: %w", n.ID, err)
		}
	}
	n.Result = result.String
	n.Error = errMsg.String
	n.AssignedTo = assignedTo.String
	if t, err := parseTime(createdAt); err == nil {
		n.CreatedAt = t
	}
	n.CompletedAt = parseNullableTime(completedAt)
	return &n, nil
}

// UpdateNode persists the mutable fields of a task node.
func (db *DB) UpdateNode(n *models.TaskNode) error {
	var completedAt any
	if n.CompletedAt != nil {
		completedAt = formatTime(*n.CompletedAt)
	}

	result, err := db.Exec(`
		UPDATE task_nodes
		SET status = ?, result = ?, error = ?, retry_count = ?, assigned_to = ?, completed_at = ?
		WHERE id = ?
	`, string(n.Status), n.Result, n.Error, n.RetryCount, n.AssignedTo, completedAt, n.ID)
	if err != nil {
		return fmt.Errorf("update task node: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task node %s not found", n.ID)
	}
	return nil
}

// UpdatePlanStatus sets a plan's status.
func (db *DB) UpdatePlanStatus(id string, status models.PlanStatus) error {
	result, err := db.Exec("UPDATE plans SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("update plan status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("plan %s not found", id)
	}
	return nil
}
