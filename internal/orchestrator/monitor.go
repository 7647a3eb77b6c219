package orchestrator

import (
	"fmt"

	"github.com/loomhq/loom/internal/state"
)

// MonitorDecision is the action the loop monitor takes for a task attempt.
type MonitorDecision string

const (
	// DecisionContinue lets the attempt proceed normally.
	DecisionContinue MonitorDecision = "continue"
	// DecisionIntervene injects corrective guidance into the worker.
	DecisionIntervene MonitorDecision = "intervene"
	// DecisionAbort cancels the worker; the task fails.
	DecisionAbort MonitorDecision = "abort"
)

// MonitorConfig sets the attempt thresholds.
type MonitorConfig struct {
	// InterventionThreshold is the attempt count at which guidance is
	// injected. Zero uses the default.
	InterventionThreshold int
	// AbortThreshold is the attempt count at which the worker is cancelled.
	// Zero uses the default.
	AbortThreshold int
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.InterventionThreshold <= 0 {
		c.InterventionThreshold = 3
	}
	if c.AbortThreshold <= c.InterventionThreshold {
		c.AbortThreshold = c.InterventionThreshold * 2
	}
	return c
}

// Monitor detects tasks stuck in retry loops. Attempt counts live in the
// store and are incremented atomically there, so concurrent workers on
// the same run never lose counts.
type Monitor struct {
	store state.RunStore
	cfg   MonitorConfig
}

// NewMonitor builds a monitor over the run store.
func NewMonitor(store state.RunStore, cfg MonitorConfig) *Monitor {
	return &Monitor{store: store, cfg: cfg.withDefaults()}
}

// RecordAttempt bumps the task's attempt counter and decides what to do.
// The guidance string is non-empty only for DecisionIntervene.
func (m *Monitor) RecordAttempt(runID, taskID string) (MonitorDecision, string, error) {
	attempts, err := m.store.IncrementLoopCounter(runID, taskID)
	if err != nil {
		return DecisionContinue, "", fmt.Errorf("counting attempt for task %s: %w", taskID, err)
	}

	switch {
	case attempts >= m.cfg.AbortThreshold:
		return DecisionAbort, "", nil
	case attempts >= m.cfg.InterventionThreshold:
		if _, err := m.store.IncrementInterventions(runID); err != nil {
			return DecisionIntervene, "", fmt.Errorf("counting intervention: %w", err)
		}
		guidance := fmt.Sprintf(
			"This is attempt %d at this task. Previous attempts did not produce a usable result. Step back, identify what blocked the earlier attempts, and take a materially different approach instead of repeating the same steps.",
			attempts)
		return DecisionIntervene, guidance, nil
	default:
		return DecisionContinue, "", nil
	}
}
