package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/loomhq/loom/pkg/models"
)

// CreateRun persists a new run row.
func (db *DB) CreateRun(r *models.OrchestratorState) error {
	_, err := db.Exec(`
		INSERT INTO runs (run_id, status, plan_id, started_at)
		VALUES (?, ?, ?, ?)
	`, r.RunID, string(r.Status), r.PlanID, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun reconstructs the run's shared state, including loop counters and
// the active worker set.
func (db *DB) GetRun(runID string) (*models.OrchestratorState, error) {
	row := db.QueryRow(`
		SELECT run_id, status, plan_id, error, input_tokens, output_tokens, cost, interventions, started_at, completed_at
		FROM runs WHERE run_id = ?
	`, runID)

	var r models.OrchestratorState
	var planID, errMsg sql.NullString
	var startedAt string
	var completedAt sql.NullString
	err := row.Scan(&r.RunID, (*string)(&r.Status), &planID, &errMsg,
		&r.Usage.InputTokens, &r.Usage.OutputTokens, &r.Usage.Cost, &r.Interventions, &startedAt, &completedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.PlanID = planID.String
	r.Error = errMsg.String
	if t, err := parseTime(startedAt); err == nil {
		r.StartedAt = t
	}
	r.CompletedAt = parseNullableTime(completedAt)

	counters, err := db.Query("SELECT task_id, attempts FROM run_counters WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("list run counters: %w", err)
	}
	defer counters.Close()
	r.LoopCounters = make(map[string]int)
	for counters.Next() {
		var taskID string
		var attempts int
		if err := counters.Scan(&taskID, &attempts); err != nil {
			return nil, fmt.Errorf("scan run counter: %w", err)
		}
		r.LoopCounters[taskID] = attempts
	}
	if err := counters.Err(); err != nil {
		return nil, err
	}

	agents, err := db.Query("SELECT agent_id FROM active_agents WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}
	defer agents.Close()
	for agents.Next() {
		var agentID string
		if err := agents.Scan(&agentID); err != nil {
			return nil, fmt.Errorf("scan active agent: %w", err)
		}
		r.ActiveAgents = append(r.ActiveAgents, agentID)
	}
	return &r, agents.Err()
}

// ListRuns returns the most recent runs, newest first. Counters and the
// active-agent set are not populated; use GetRun for a full reconstruction.
func (db *DB) ListRuns(limit int) ([]*models.OrchestratorState, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT run_id, status, plan_id, error, input_tokens, output_tokens, cost, interventions, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*models.OrchestratorState
	for rows.Next() {
		var r models.OrchestratorState
		var planID, errMsg sql.NullString
		var startedAt string
		var completedAt sql.NullString
		err := rows.Scan(&r.RunID, (*string)(&r.Status), &planID, &errMsg,
			&r.Usage.InputTokens, &r.Usage.OutputTokens, &r.Usage.Cost, &r.Interventions, &startedAt, &completedAt)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.PlanID = planID.String
		r.Error = errMsg.String
		if t, err := parseTime(startedAt); err == nil {
			r.StartedAt = t
		}
		r.CompletedAt = parseNullableTime(completedAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// UpdateRunStatus sets the run's status. Terminal states stamp completion time.
func (db *DB) UpdateRunStatus(runID string, status models.RunStatus, errMsg string) error {
	var completedAt any
	if status != models.RunStatusRunning {
		completedAt = formatTime(time.Now())
	}
	result, err := db.Exec(`
		UPDATE runs SET status = ?, error = ?, completed_at = COALESCE(?, completed_at)
		WHERE run_id = ?
	`, string(status), errMsg, completedAt, runID)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// SetRunPlan records the active plan for a run.
func (db *DB) SetRunPlan(runID, planID string) error {
	_, err := db.Exec("UPDATE runs SET plan_id = ? WHERE run_id = ?", planID, runID)
	if err != nil {
		return fmt.Errorf("set run plan: %w", err)
	}
	return nil
}

// AddRunUsage atomically adds token and cost deltas to the run-wide totals.
// The increment happens in SQL so two workers completing near-simultaneously
// never lose an update.
func (db *DB) AddRunUsage(runID string, inputTokens, outputTokens int64, cost float64) error {
	_, err := db.Exec(`
		UPDATE runs
		SET input_tokens = input_tokens + ?, output_tokens = output_tokens + ?, cost = cost + ?
		WHERE run_id = ?
	`, inputTokens, outputTokens, cost, runID)
	if err != nil {
		return fmt.Errorf("add run usage: %w", err)
	}
	return nil
}

// IncrementLoopCounter atomically increments the per-task attempt counter and
// returns the new value.
func (db *DB) IncrementLoopCounter(runID, taskID string) (int, error) {
	var attempts int
	err := db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO run_counters (run_id, task_id, attempts) VALUES (?, ?, 1)
			ON CONFLICT(run_id, task_id) DO UPDATE SET attempts = attempts + 1
		`, runID, taskID)
		if err != nil {
			return fmt.Errorf("increment loop counter: %w", err)
		}
		row := tx.QueryRow("SELECT attempts FROM run_counters WHERE run_id = ? AND task_id = ?", runID, taskID)
		return row.Scan(&attempts)
	})
	return attempts, err
}

// IncrementInterventions atomically increments the run-wide intervention
// counter and returns the new value.
func (db *DB) IncrementInterventions(runID string) (int, error) {
	var interventions int
	err := db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE runs SET interventions = interventions + 1 WHERE run_id = ?", runID)
		if err != nil {
			return fmt.Errorf("increment interventions: %w", err)
		}
		row := tx.QueryRow("SELECT interventions FROM runs WHERE run_id = ?", runID)
		return row.Scan(&interventions)
	})
	return interventions, err
}

// AddActiveAgent records a worker in the run's active set.
func (db *DB) AddActiveAgent(runID, agentID string) error {
	_, err := db.Exec(`
		INSERT INTO active_agents (run_id, agent_id) VALUES (?, ?)
		ON CONFLICT(run_id, agent_id) DO NOTHING
	`, runID, agentID)
	if err != nil {
		return fmt.Errorf("add active agent: %w", err)
	}
	return nil
}

// RemoveActiveAgent removes a worker from the run's active set.
func (db *DB) RemoveActiveAgent(runID, agentID string) error {
	_, err := db.Exec("DELETE FROM active_agents WHERE run_id = ? AND agent_id = ?", runID, agentID)
	if err != nil {
		return fmt.Errorf("remove active agent: %w", err)
	}
	return nil
}
