package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loomhq/loom/internal/events"
	"github.com/loomhq/loom/internal/graph"
	"github.com/loomhq/loom/internal/provider"
	"github.com/loomhq/loom/internal/state"
	"github.com/loomhq/loom/pkg/models"
)

// RunResult is the outcome of one coordinated run.
type RunResult struct {
	// RunID identifies the run in the store.
	RunID string
	// Answer is the final response to the user.
	Answer string
	// PlanID is set when the run executed a task plan.
	PlanID string
	// Direct is true when the request was answered without tasks.
	Direct bool
}

// Coordinator drives one run end to end: it decides between a direct
// answer and a task plan, executes the plan over the worker pool, watches
// for stuck tasks, and synthesizes the final answer.
type Coordinator struct {
	store      state.Store
	provider   provider.ModelProvider
	pool       *Pool
	monitor    *Monitor
	decomposer *Decomposer
	planner    *graph.Planner
	sink       events.Sink

	debugLog func(format string, args ...interface{})
}

// NewCoordinator wires a coordinator from its parts.
func NewCoordinator(store state.Store, p provider.ModelProvider, pool *Pool, monitor *Monitor, sink events.Sink) *Coordinator {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Coordinator{
		store:      store,
		provider:   p,
		pool:       pool,
		monitor:    monitor,
		decomposer: NewDecomposer(p),
		planner:    graph.NewPlanner(store),
		sink:       sink,
		debugLog:   func(format string, args ...interface{}) {},
	}
}

// SetDebugLogger installs a logger for run progress.
func (c *Coordinator) SetDebugLogger(fn func(format string, args ...interface{})) {
	if fn != nil {
		c.debugLog = fn
	}
}

// Run handles one user request to completion.
func (c *Coordinator) Run(ctx context.Context, request string) (*RunResult, error) {
	runID := uuid.NewString()
	if err := c.store.CreateRun(&models.OrchestratorState{
		RunID:     runID,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}

	result, err := c.run(ctx, runID, request)
	if err != nil {
		if serr := c.store.UpdateRunStatus(runID, models.RunStatusFailed, err.Error()); serr != nil {
			c.debugLog("[coordinator] recording run failure: %v", serr)
		}
		return nil, err
	}
	if err := c.store.UpdateRunStatus(runID, models.RunStatusCompleted, ""); err != nil {
		return nil, fmt.Errorf("recording run completion: %w", err)
	}
	return result, nil
}

func (c *Coordinator) run(ctx context.Context, runID, request string) (*RunResult, error) {
	proposal, err := c.decomposer.Propose(ctx, request)
	if err != nil {
		return nil, err
	}

	if proposal.Direct {
		c.debugLog("[coordinator] run %s answered directly", runID)
		return &RunResult{RunID: runID, Answer: proposal.Answer, Direct: true}, nil
	}

	plan, err := c.planner.CreatePlan(runID, proposal.Rationale, proposal.Tasks)
	if err != nil {
		return nil, fmt.Errorf("planning request: %w", err)
	}
	if err := c.store.SetRunPlan(runID, plan.ID); err != nil {
		return nil, fmt.Errorf("linking plan to run: %w", err)
	}
	c.debugLog("[coordinator] run %s planned %d tasks (%s shape)", runID, len(plan.Nodes), plan.Shape())

	g := graph.NewDependencyGraph()
	g.SetDebugLog(c.debugLog)
	if err := g.Build(plan.Nodes); err != nil {
		return nil, fmt.Errorf("building dependency graph: %w", err)
	}

	if err := c.execute(ctx, runID, g); err != nil {
		if perr := c.store.UpdatePlanStatus(plan.ID, models.PlanStatusFailed); perr != nil {
			c.debugLog("[coordinator] recording plan failure: %v", perr)
		}
		return nil, err
	}
	if err := c.store.UpdatePlanStatus(plan.ID, models.PlanStatusCompleted); err != nil {
		return nil, fmt.Errorf("recording plan completion: %w", err)
	}

	answer, err := c.synthesize(ctx, request, g)
	if err != nil {
		return nil, err
	}
	return &RunResult{RunID: runID, Answer: answer, PlanID: plan.ID}, nil
}

// execute drives the plan: spawn the ready frontier, wait for a
// completion, repeat. It returns an error when the run can no longer make
// progress or the context is cancelled.
func (c *Coordinator) execute(ctx context.Context, runID string, g *graph.DependencyGraph) error {
	for !g.Done() {
		if err := ctx.Err(); err != nil {
			c.abandonRun(g)
			return fmt.Errorf("run cancelled: %w", err)
		}

		c.spawnReady(ctx, runID, g)

		// Nothing running after filling slots means nothing can run,
		// unless a worker already finished and its completion is queued.
		if c.pool.Running() == 0 {
			select {
			case res := <-c.pool.Completions():
				c.handleCompletion(runID, g, res)
				continue
			default:
			}
			if g.Done() {
				break
			}
			c.markUnreachable(g)
			return fmt.Errorf("run stalled: failed tasks block all remaining work")
		}

		select {
		case res := <-c.pool.Completions():
			c.handleCompletion(runID, g, res)
		case <-ctx.Done():
			c.abandonRun(g)
			return fmt.Errorf("run cancelled: %w", ctx.Err())
		}
	}

	failed := g.Classify().Failed
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d tasks failed", len(failed), g.Size())
	}
	return nil
}

// spawnReady fills available pool slots from the ready frontier, asking
// the monitor about each attempt first.
func (c *Coordinator) spawnReady(ctx context.Context, runID string, g *graph.DependencyGraph) {
	for _, task := range g.GetReady() {
		if c.pool.Slots() <= 0 {
			return
		}

		decision, guidance, err := c.monitor.RecordAttempt(runID, task.ID)
		if err != nil {
			c.debugLog("[coordinator] monitor error for task %s: %v", task.ID, err)
			decision = DecisionContinue
		}
		if decision == DecisionAbort {
			c.failTask(g, task, "aborted after repeated attempts without progress")
			continue
		}

		upstream := g.UpstreamContext(task.ID)
		agentID, err := c.pool.Spawn(ctx, runID, task, upstream)
		if err != nil {
			c.debugLog("[coordinator] spawning task %s: %v", task.ID, err)
			return
		}

		task.Status = models.TaskStatusInProgress
		task.AssignedTo = agentID
		if err := c.store.UpdateNode(task); err != nil {
			c.debugLog("[coordinator] persisting task %s start: %v", task.ID, err)
		}
		c.sink.Emit(events.Event{
			Type: events.TypeStatus, RunID: runID, TaskID: task.ID, AgentID: agentID,
			Status: string(models.TaskStatusInProgress),
		})

		if decision == DecisionIntervene {
			if err := c.pool.Guide(task.ID, guidance); err != nil {
				c.debugLog("[coordinator] guiding task %s: %v", task.ID, err)
			}
		}
	}
}

// handleCompletion records a worker's outcome. Failed attempts put the
// task back on the ready frontier; the monitor decides when to stop
// retrying.
func (c *Coordinator) handleCompletion(runID string, g *graph.DependencyGraph, res TaskResult) {
	c.accumulateUsage(runID, res.AgentID)

	task := g.GetNode(res.TaskID)
	if task == nil {
		c.debugLog("[coordinator] completion for unknown task %s", res.TaskID)
		return
	}

	if res.Err != nil {
		c.debugLog("[coordinator] task %s attempt failed: %v", res.TaskID, res.Err)
		task.Status = models.TaskStatusPending
		task.RetryCount++
		task.Error = res.Err.Error()
		task.AssignedTo = ""
		if err := c.store.UpdateNode(task); err != nil {
			c.debugLog("[coordinator] persisting task %s retry: %v", task.ID, err)
		}
		return
	}

	now := time.Now().UTC()
	task.Status = models.TaskStatusCompleted
	task.Result = res.Result
	task.Error = ""
	task.CompletedAt = &now
	if err := c.store.UpdateNode(task); err != nil {
		c.debugLog("[coordinator] persisting task %s completion: %v", task.ID, err)
	}
	g.MarkComplete(task.ID)
	c.sink.Emit(events.Event{
		Type: events.TypeStatus, RunID: runID, TaskID: task.ID, AgentID: res.AgentID,
		Status: string(models.TaskStatusCompleted),
	})
}

// accumulateUsage folds a finished worker's usage into the run totals.
func (c *Coordinator) accumulateUsage(runID, agentID string) {
	st, err := c.store.GetAgentState(agentID)
	if err != nil {
		c.debugLog("[coordinator] reading agent %s usage: %v", agentID, err)
		return
	}
	if err := c.store.AddRunUsage(runID, st.Usage.InputTokens, st.Usage.OutputTokens, st.Usage.Cost); err != nil {
		c.debugLog("[coordinator] accumulating run usage: %v", err)
	}
}

func (c *Coordinator) failTask(g *graph.DependencyGraph, task *models.TaskNode, reason string) {
	task.Status = models.TaskStatusFailed
	task.Error = reason
	if err := c.store.UpdateNode(task); err != nil {
		c.debugLog("[coordinator] persisting task %s failure: %v", task.ID, err)
	}
}

// markUnreachable cancels pending tasks that can never run because a
// dependency failed.
func (c *Coordinator) markUnreachable(g *graph.DependencyGraph) {
	r := g.Classify()
	for _, task := range r.Waiting {
		task.Status = models.TaskStatusCancelled
		task.Error = "dependency failed"
		if err := c.store.UpdateNode(task); err != nil {
			c.debugLog("[coordinator] persisting task %s cancellation: %v", task.ID, err)
		}
	}
}

// abandonRun cancels running workers, waits for them to stop, and drains
// their completions so counters stay accurate.
func (c *Coordinator) abandonRun(g *graph.DependencyGraph) {
	c.pool.CancelAll()
	c.pool.Wait()
	for {
		select {
		case res := <-c.pool.Completions():
			if task := g.GetNode(res.TaskID); task != nil {
				task.Status = models.TaskStatusCancelled
				if err := c.store.UpdateNode(task); err != nil {
					c.debugLog("[coordinator] persisting task %s cancellation: %v", task.ID, err)
				}
			}
		default:
			return
		}
	}
}

const synthesisSystemPrompt = `You combine the results of completed sub-tasks into one final response to the user's original request. Integrate the results into a coherent answer. Do not describe the task structure or the agents; just answer the request.`

// synthesize produces the final answer from completed task results. When
// the synthesis call fails, the concatenated results are returned rather
// than losing the work.
func (c *Coordinator) synthesize(ctx context.Context, request string, g *graph.DependencyGraph) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Original request:\n\n%s\n\n# Completed sub-task results\n", request)
	for _, task := range completedNodes(g) {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", task.Description, task.Result)
	}

	resp, err := c.provider.Generate(ctx, provider.Request{
		System:      synthesisSystemPrompt,
		Messages:    []models.Message{{Role: models.RoleUser, Content: b.String()}},
		MaxTokens:   8192,
		Temperature: -1,
	})
	if err != nil {
		c.debugLog("[coordinator] synthesis failed, returning raw results: %v", err)
		var raw strings.Builder
		for _, task := range completedNodes(g) {
			fmt.Fprintf(&raw, "## %s\n\n%s\n\n", task.Description, task.Result)
		}
		return strings.TrimSpace(raw.String()), nil
	}
	return resp.Text, nil
}

func completedNodes(g *graph.DependencyGraph) []*models.TaskNode {
	var out []*models.TaskNode
	for _, task := range allNodes(g) {
		if task.Status == models.TaskStatusCompleted {
			out = append(out, task)
		}
	}
	return out
}

// allNodes lists the graph's nodes in submission order.
func allNodes(g *graph.DependencyGraph) []*models.TaskNode {
	var out []*models.TaskNode
	for _, id := range g.Order() {
		if n := g.GetNode(id); n != nil {
			out = append(out, n)
		}
	}
	return out
}
