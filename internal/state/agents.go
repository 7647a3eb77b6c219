package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loomhq/loom/pkg/models"
)

// Log entry kinds stored in the agent_log table.
const (
	logKindMessage   = "message"
	logKindToolCall  = "tool_call"
	logKindReasoning = "reasoning"
	logKindArtifact  = "artifact"
)

// CreateAgentState persists a new sub-agent worker row.
func (db *DB) CreateAgentState(s *models.SubAgentState) error {
	_, err := db.Exec(`
		INSERT INTO agent_states (id, run_id, task_id, agent_type, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.RunID, s.TaskID, string(s.AgentType), string(s.Status), formatTime(s.StartedAt))
	if err != nil {
		return fmt.Errorf("insert agent state: %w", err)
	}
	return nil
}

// GetAgentState reconstructs the full worker state, including message history
// and logs, so an external observer can inspect an in-flight worker.
func (db *DB) GetAgentState(id string) (*models.SubAgentState, error) {
	row := db.QueryRow(`
		SELECT id, run_id, task_id, agent_type, status, pending_guidance, error, input_tokens, output_tokens, cost, started_at, completed_at
		FROM agent_states WHERE id = ?
	`, id)

	var s models.SubAgentState
	var guidance, errMsg sql.NullString
	var startedAt string
	var completedAt sql.NullString
	err := row.Scan(&s.ID, &s.RunID, &s.TaskID, (*string)(&s.AgentType), (*string)(&s.Status),
		&guidance, &errMsg, &s.Usage.InputTokens, &s.Usage.OutputTokens, &s.Usage.Cost, &startedAt, &completedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("agent %s not found", id)
		}
		return nil, fmt.Errorf("scan agent state: %w", err)
	}
	s.PendingGuidance = guidance.String
	s.Error = errMsg.String
	if t, err := parseTime(startedAt); err == nil {
		s.StartedAt = t
	}
	s.CompletedAt = parseNullableTime(completedAt)

	if err := db.loadAgentLogs(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) loadAgentLogs(s *models.SubAgentState) error {
	rows, err := db.Query("SELECT kind, payload FROM agent_log WHERE agent_id = ? ORDER BY seq", s.ID)
	if err != nil {
		return fmt.Errorf("list agent log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return fmt.Errorf("scan agent log: %w", err)
		}
		switch kind {
		case logKindMessage:
			var m models.Message
			if err := json.Unmarshal([]byte(payload), &m); err != nil {
				return fmt.Errorf("unmarshal message: %w", err)
			}
			s.Messages = append(s.Messages, m)
		case logKindToolCall:
			var r models.ToolCallRecord
			if err := json.Unmarshal([]byte(payload), &r); err != nil {
				return fmt.Errorf("unmarshal tool call: %w", err)
			}
			s.ToolCalls = append(s.ToolCalls, r)
		case logKindReasoning:
			var r models.ReasoningStep
			if err := json.Unmarshal([]byte(payload), &r); err != nil {
				return fmt.Errorf("unmarshal reasoning step: %w", err)
			}
			s.Reasoning = append(s.Reasoning, r)
		case logKindArtifact:
			var a models.Artifact
			if err := json.Unmarshal([]byte(payload), &a); err != nil {
				return fmt.Errorf("unmarshal artifact: %w", err)
			}
			s.Artifacts = append(s.Artifacts, a)
		}
	}
	return rows.Err()
}

// UpdateAgentStatus sets the worker's status and, for terminal states, stamps
// the completion time. The error message is stored for failed workers.
func (db *DB) UpdateAgentStatus(id string, status models.AgentStatus, errMsg string) error {
	var completedAt any
	if status.Terminal() {
		completedAt = formatTime(time.Now())
	}

	result, err := db.Exec(`
		UPDATE agent_states SET status = ?, error = ?, completed_at = COALESCE(?, completed_at)
		WHERE id = ?
	`, string(status), errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("agent %s not found", id)
	}
	return nil
}

// SetPendingGuidance stores the at-most-one unconsumed guidance string.
// An empty string clears the slot.
func (db *DB) SetPendingGuidance(id, guidance string) error {
	result, err := db.Exec("UPDATE agent_states SET pending_guidance = ? WHERE id = ?", guidance, id)
	if err != nil {
		return fmt.Errorf("set pending guidance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("agent %s not found", id)
	}
	return nil
}

// AppendMessage atomically appends one message to the worker's history.
func (db *DB) AppendMessage(agentID string, m models.Message) error {
	return db.appendLog(agentID, logKindMessage, m)
}

// ReplaceMessages rewrites the worker's entire message history in one
// transaction. Used when the budgeter compresses history into a summary.
func (db *DB) ReplaceMessages(agentID string, msgs []models.Message) error {
	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM agent_log WHERE agent_id = ? AND kind = ?", agentID, logKindMessage); err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		now := formatTime(time.Now())
		for _, m := range msgs {
			payload, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("marshal message: %w", err)
			}
			_, err = tx.Exec("INSERT INTO agent_log (agent_id, kind, payload, created_at) VALUES (?, ?, ?, ?)",
				agentID, logKindMessage, string(payload), now)
			if err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
		}
		return nil
	})
}

// AppendToolCall atomically appends one record to the worker's tool-call log.
func (db *DB) AppendToolCall(agentID string, r models.ToolCallRecord) error {
	return db.appendLog(agentID, logKindToolCall, r)
}

// AppendReasoning atomically appends one step to the worker's reasoning log.
func (db *DB) AppendReasoning(agentID string, r models.ReasoningStep) error {
	return db.appendLog(agentID, logKindReasoning, r)
}

// AppendArtifact atomically appends one artifact to the worker's artifact log.
func (db *DB) AppendArtifact(agentID string, a models.Artifact) error {
	return db.appendLog(agentID, logKindArtifact, a)
}

func (db *DB) appendLog(agentID, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	_, err = db.Exec("INSERT INTO agent_log (agent_id, kind, payload, created_at) VALUES (?, ?, ?, ?)",
		agentID, kind, string(data), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("append %s: %w", kind, err)
	}
	return nil
}

// AddAgentUsage atomically adds token and cost deltas to the worker's totals.
func (db *DB) AddAgentUsage(agentID string, inputTokens, outputTokens int64, cost float64) error {
	result, err := db.Exec(`
		UPDATE agent_states
		SET input_tokens = input_tokens + ?, output_tokens = output_tokens + ?, cost = cost + ?
		WHERE id = ?
	`, inputTokens, outputTokens, cost, agentID)
	if err != nil {
		return fmt.Errorf("add agent usage: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("agent %s not found", agentID)
	}
	return nil
}
