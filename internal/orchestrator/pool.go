// Package orchestrator coordinates a run: planning user requests into task
// graphs, spawning bounded concurrent workers over the ready frontier, and
// watching for stuck tasks.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomhq/loom/internal/agent"
	"github.com/loomhq/loom/internal/budget"
	"github.com/loomhq/loom/internal/events"
	"github.com/loomhq/loom/internal/provider"
	"github.com/loomhq/loom/internal/state"
	"github.com/loomhq/loom/internal/tools"
	"github.com/loomhq/loom/pkg/models"
)

// TaskResult is delivered on the pool's completion channel when a worker
// reaches a terminal state.
type TaskResult struct {
	TaskID  string
	AgentID string
	Result  string
	Err     error
}

// PoolConfig configures worker spawning.
type PoolConfig struct {
	// MaxAgents bounds concurrent workers. Zero uses the default.
	MaxAgents int
	// Agent tunes each worker's loop.
	Agent agent.Config
	// Provider makes the model calls.
	Provider provider.ModelProvider
	// Store persists worker state and the run's active-agent set.
	Store state.Store
	// Invoker dispatches worker tool calls.
	Invoker tools.Invoker
	// Summarizer compacts worker conversations. Optional.
	Summarizer *budget.Summarizer
	// Sink receives worker events. Optional.
	Sink events.Sink
}

// Pool runs sub-agent workers with bounded concurrency. It tracks running
// workers by task so the coordinator can guide or cancel them by task id.
type Pool struct {
	cfg PoolConfig

	mu      sync.RWMutex
	running map[string]*agent.Runner // task id -> runner

	completions chan TaskResult
	wg          sync.WaitGroup

	debugLog func(format string, args ...interface{})
}

// NewPool builds a pool.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.MaxAgents <= 0 {
		cfg.MaxAgents = 3
	}
	if cfg.Sink == nil {
		cfg.Sink = events.NopSink{}
	}
	return &Pool{
		cfg:         cfg,
		running:     make(map[string]*agent.Runner),
		completions: make(chan TaskResult, cfg.MaxAgents*2),
		debugLog:    func(format string, args ...interface{}) {},
	}
}

// SetDebugLogger installs a logger for pool lifecycle events.
func (p *Pool) SetDebugLogger(fn func(format string, args ...interface{})) {
	if fn != nil {
		p.debugLog = fn
	}
}

// Slots returns how many more workers may spawn right now.
func (p *Pool) Slots() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.MaxAgents - len(p.running)
}

// Running returns the number of active workers.
func (p *Pool) Running() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.running)
}

// Completions delivers worker results as they finish.
func (p *Pool) Completions() <-chan TaskResult {
	return p.completions
}

// Spawn starts a worker for a task. upstream carries the concatenated
// results of the task's completed dependencies. Spawn fails when the pool
// is full or the task already has a worker.
func (p *Pool) Spawn(ctx context.Context, runID string, task *models.TaskNode, upstream string) (string, error) {
	p.mu.Lock()
	if len(p.running) >= p.cfg.MaxAgents {
		p.mu.Unlock()
		return "", fmt.Errorf("pool full: %d workers running", len(p.running))
	}
	if _, exists := p.running[task.ID]; exists {
		p.mu.Unlock()
		return "", fmt.Errorf("task %s already has a worker", task.ID)
	}

	r := agent.NewRunner(runID, task, upstream, p.cfg.Provider, p.cfg.Store, p.cfg.Invoker, p.cfg.Summarizer, p.cfg.Sink, p.cfg.Agent)
	r.SetDebugLogger(p.debugLog)
	p.running[task.ID] = r
	p.mu.Unlock()

	if err := p.cfg.Store.AddActiveAgent(runID, r.ID()); err != nil {
		p.debugLog("[pool] recording active agent %s: %v", r.ID(), err)
	}
	p.debugLog("[pool] spawned worker %s for task %s (%d/%d slots used)", r.ID(), task.ID, p.Running(), p.cfg.MaxAgents)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		result, err := r.Run(ctx)

		p.mu.Lock()
		delete(p.running, task.ID)
		p.mu.Unlock()

		if rerr := p.cfg.Store.RemoveActiveAgent(runID, r.ID()); rerr != nil {
			p.debugLog("[pool] removing active agent %s: %v", r.ID(), rerr)
		}
		p.completions <- TaskResult{TaskID: task.ID, AgentID: r.ID(), Result: result, Err: err}
	}()

	return r.ID(), nil
}

// Guide delivers corrective guidance to the worker on a task.
func (p *Pool) Guide(taskID, text string) error {
	p.mu.RLock()
	r, ok := p.running[taskID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no running worker for task %s", taskID)
	}
	return r.Guide(text)
}

// Cancel requests cooperative cancellation of the worker on a task.
func (p *Pool) Cancel(taskID string) error {
	p.mu.RLock()
	r, ok := p.running[taskID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no running worker for task %s", taskID)
	}
	r.Cancel()
	return nil
}

// CancelAll requests cancellation of every running worker.
func (p *Pool) CancelAll() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range p.running {
		r.Cancel()
	}
}

// Wait blocks until every spawned worker has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
