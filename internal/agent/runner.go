package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loomhq/loom/internal/budget"
	"github.com/loomhq/loom/internal/events"
	"github.com/loomhq/loom/internal/provider"
	"github.com/loomhq/loom/internal/state"
	"github.com/loomhq/loom/internal/tools"
	"github.com/loomhq/loom/pkg/models"
)

// Config tunes a worker's execution loop.
type Config struct {
	// MaxIterations bounds the model-call loop. Zero uses the default.
	MaxIterations int
	// MaxTokens caps each response. Zero uses the provider default.
	MaxTokens int64
	// Temperature for task calls. Negative uses the provider default.
	Temperature float64
	// Catalog maps agent types to capability profiles and tool allow-lists.
	// Nil uses the built-in catalog.
	Catalog *Catalog
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 20
	}
	if c.Temperature == 0 {
		c.Temperature = -1
	}
	if c.Catalog == nil {
		c.Catalog = DefaultCatalog()
	}
	return c
}

// Runner executes one sub-agent worker. It owns the worker's state
// exclusively during execution and persists every change incrementally,
// so external observers reconstruct the worker from the store, never by
// sharing memory with it.
type Runner struct {
	id       string
	runID    string
	task     *models.TaskNode
	upstream string

	provider   provider.ModelProvider
	store      state.AgentStateStore
	invoker    tools.Invoker
	summarizer *budget.Summarizer
	sink       events.Sink
	cfg        Config

	mu       sync.Mutex
	guidance string
	cancel   context.CancelFunc

	debugLog func(format string, args ...interface{})
}

// NewRunner builds a worker for one task node. upstream carries the
// concatenated results of completed dependency tasks.
func NewRunner(runID string, task *models.TaskNode, upstream string, p provider.ModelProvider, store state.AgentStateStore, invoker tools.Invoker, summarizer *budget.Summarizer, sink events.Sink, cfg Config) *Runner {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Runner{
		id:         uuid.NewString(),
		runID:      runID,
		task:       task,
		upstream:   upstream,
		provider:   p,
		store:      store,
		invoker:    invoker,
		summarizer: summarizer,
		sink:       sink,
		cfg:        cfg.withDefaults(),
		debugLog:   func(format string, args ...interface{}) {},
	}
}

// SetDebugLogger installs a logger for loop progress.
func (r *Runner) SetDebugLogger(fn func(format string, args ...interface{})) {
	if fn != nil {
		r.debugLog = fn
	}
}

// ID returns the worker identifier.
func (r *Runner) ID() string {
	return r.id
}

// Guide queues corrective guidance for the worker. At most one guidance
// string is pending; a second call before the worker consumes the first
// replaces it. The worker injects it at the next iteration boundary.
func (r *Runner) Guide(text string) error {
	r.mu.Lock()
	r.guidance = text
	r.mu.Unlock()
	return r.store.SetPendingGuidance(r.id, text)
}

// Cancel requests cooperative cancellation. The worker stops at the next
// iteration boundary or before its next tool call, whichever comes first.
func (r *Runner) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Runner) takeGuidance() string {
	r.mu.Lock()
	g := r.guidance
	r.guidance = ""
	r.mu.Unlock()
	return g
}

// Run executes the worker to a terminal state and returns the final
// result text. The returned error is non-nil for failed and cancelled
// terminal states.
func (r *Runner) Run(ctx context.Context) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	st := &models.SubAgentState{
		ID:        r.id,
		RunID:     r.runID,
		TaskID:    r.task.ID,
		AgentType: r.task.AgentType,
		Status:    models.AgentStatusInitializing,
		StartedAt: time.Now().UTC(),
	}
	if err := r.store.CreateAgentState(st); err != nil {
		return "", fmt.Errorf("creating agent state: %w", err)
	}

	system := BuildSystemPrompt(r.cfg.Catalog.ProfileFor(r.task.AgentType).Description)
	msgs := []models.Message{{Role: models.RoleUser, Content: BuildTaskMessage(r.task, r.upstream)}}
	if err := r.store.AppendMessage(r.id, msgs[0]); err != nil {
		return "", fmt.Errorf("persisting task message: %w", err)
	}

	defs := r.cfg.Catalog.Filter(r.task.AgentType, r.invoker.List(ctx))
	schemas, schemaChars := convertDefinitions(defs)

	if err := r.setStatus(models.AgentStatusRunning, ""); err != nil {
		return "", err
	}

	result, err := r.loop(ctx, system, msgs, schemas, schemaChars)
	switch {
	case err == nil:
		if serr := r.setStatus(models.AgentStatusCompleted, ""); serr != nil {
			return result, serr
		}
	case ctx.Err() != nil:
		r.setStatus(models.AgentStatusCancelled, err.Error())
	default:
		r.setStatus(models.AgentStatusFailed, err.Error())
	}
	r.sink.Emit(events.Event{
		Type: events.TypeDone, RunID: r.runID, AgentID: r.id, TaskID: r.task.ID,
	})
	return result, err
}

// loop drives the model-call iteration until the model stops requesting
// tools, the iteration budget runs out, or the context is cancelled.
func (r *Runner) loop(ctx context.Context, system string, msgs []models.Message, schemas []provider.ToolSchema, schemaChars int) (string, error) {
	for iteration := 1; iteration <= r.cfg.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("worker cancelled: %w", err)
		}

		if g := r.takeGuidance(); g != "" {
			guidanceMsg := models.Message{
				Role:    models.RoleSystem,
				Content: "Guidance from the orchestrator, incorporate it into your work:\n\n" + g,
			}
			msgs = append(msgs, guidanceMsg)
			if err := r.store.AppendMessage(r.id, guidanceMsg); err != nil {
				return "", fmt.Errorf("persisting guidance: %w", err)
			}
			if err := r.store.SetPendingGuidance(r.id, ""); err != nil {
				return "", fmt.Errorf("clearing guidance: %w", err)
			}
			r.sink.Emit(events.Event{
				Type: events.TypeIntervention, RunID: r.runID, AgentID: r.id, TaskID: r.task.ID, Text: g,
			})
		}

		var err error
		msgs, err = r.maybeCompact(ctx, system, msgs, schemaChars)
		if err != nil {
			return "", err
		}

		resp, err := r.callModel(ctx, system, msgs, schemas)
		if err != nil {
			return "", fmt.Errorf("model call (iteration %d): %w", iteration, err)
		}
		r.recordUsage(resp.Usage)
		r.recordReasoning(resp.Reasoning, iteration)

		assistantMsg := models.Message{
			Role:      models.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		}
		msgs = append(msgs, assistantMsg)
		if err := r.store.AppendMessage(r.id, assistantMsg); err != nil {
			return "", fmt.Errorf("persisting assistant message: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			r.extractArtifacts(resp.Text)
			return resp.Text, nil
		}

		results, err := r.dispatchTools(ctx, resp.ToolCalls)
		if err != nil {
			return "", err
		}
		msgs = append(msgs, results...)
	}
	return "", fmt.Errorf("max iterations (%d) reached", r.cfg.MaxIterations)
}

// maybeCompact runs one budgeter pass, replacing the persisted message
// history when the conversation was folded.
func (r *Runner) maybeCompact(ctx context.Context, system string, msgs []models.Message, schemaChars int) ([]models.Message, error) {
	if r.summarizer == nil {
		return msgs, nil
	}
	compacted, record, err := r.summarizer.Compact(ctx, system, msgs, schemaChars)
	if err != nil {
		return nil, fmt.Errorf("compacting context: %w", err)
	}
	if record == nil {
		return msgs, nil
	}
	if err := r.store.ReplaceMessages(r.id, compacted); err != nil {
		return nil, fmt.Errorf("persisting compacted history: %w", err)
	}
	r.debugLog("[agent %s] compacted %d messages (%d -> %d tokens)",
		r.id, record.MessagesReplaced, record.OriginalTokens, record.SummaryTokens)
	r.sink.Emit(events.Event{
		Type: events.TypeSummarized, RunID: r.runID, AgentID: r.id, TaskID: r.task.ID,
		Text: fmt.Sprintf("folded %d messages into summary", record.MessagesReplaced),
	})
	return compacted, nil
}

// callModel streams one response, forwarding chunks as events.
func (r *Runner) callModel(ctx context.Context, system string, msgs []models.Message, schemas []provider.ToolSchema) (*provider.Response, error) {
	req := provider.Request{
		System:      system,
		Messages:    msgs,
		Tools:       schemas,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	}
	return r.provider.Stream(ctx, req, func(ev provider.StreamEvent) {
		switch ev.Type {
		case provider.EventToken:
			r.sink.Emit(events.Event{
				Type: events.TypeToken, RunID: r.runID, AgentID: r.id, TaskID: r.task.ID, Text: ev.Token,
			})
		case provider.EventReasoning:
			r.sink.Emit(events.Event{
				Type: events.TypeReasoning, RunID: r.runID, AgentID: r.id, TaskID: r.task.ID, Text: ev.Reasoning,
			})
		}
	})
}

// dispatchTools runs requested tool calls sequentially in request order.
// Each result is fed back as a tool-result message. Cancellation is
// checked before every call so a long tool chain stops promptly.
func (r *Runner) dispatchTools(ctx context.Context, calls []models.ToolCallRequest) ([]models.Message, error) {
	out := make([]models.Message, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("worker cancelled before tool %s: %w", call.Name, err)
		}

		r.sink.Emit(events.Event{
			Type: events.TypeToolCall, RunID: r.runID, AgentID: r.id, TaskID: r.task.ID, Tool: call.Name,
		})

		var res tools.Result
		if !r.cfg.Catalog.Allows(r.task.AgentType, call.Name) {
			res = tools.Fail(fmt.Sprintf("tool %q is not available to this agent type", call.Name))
		} else if !r.invoker.HasPermission(call.Name) {
			res = tools.Fail(fmt.Sprintf("tool %q is not available", call.Name))
		} else {
			res = r.invoker.Invoke(ctx, call.Name, call.Input)
		}

		record := models.ToolCallRecord{
			Name:      call.Name,
			Input:     call.Input,
			Output:    res.Output,
			Success:   res.Success,
			Error:     res.Error,
			Timestamp: time.Now().UTC(),
		}
		if err := r.store.AppendToolCall(r.id, record); err != nil {
			return nil, fmt.Errorf("persisting tool call: %w", err)
		}
		r.sink.Emit(events.Event{
			Type: events.TypeToolResult, RunID: r.runID, AgentID: r.id, TaskID: r.task.ID,
			Tool: call.Name, Status: statusWord(res.Success), Err: res.Error,
		})

		resultMsg := models.Message{
			Role:       models.RoleUser,
			Content:    renderToolResult(res),
			ToolCallID: call.ID,
		}
		out = append(out, resultMsg)
		if err := r.store.AppendMessage(r.id, resultMsg); err != nil {
			return nil, fmt.Errorf("persisting tool result: %w", err)
		}
	}
	return out, nil
}

func (r *Runner) recordUsage(u provider.Usage) {
	cost := r.provider.CalculateCost(u.InputTokens, u.OutputTokens)
	if err := r.store.AddAgentUsage(r.id, u.InputTokens, u.OutputTokens, cost); err != nil {
		r.debugLog("[agent %s] recording usage: %v", r.id, err)
	}
}

func (r *Runner) recordReasoning(steps []string, iteration int) {
	for _, content := range steps {
		rec := models.ReasoningStep{Content: content, Iteration: iteration, Timestamp: time.Now().UTC()}
		if err := r.store.AppendReasoning(r.id, rec); err != nil {
			r.debugLog("[agent %s] recording reasoning: %v", r.id, err)
		}
	}
}

func (r *Runner) extractArtifacts(text string) {
	for _, a := range ExtractArtifacts(text, time.Now().UTC()) {
		if err := r.store.AppendArtifact(r.id, a); err != nil {
			r.debugLog("[agent %s] recording artifact: %v", r.id, err)
		}
	}
}

func (r *Runner) setStatus(status models.AgentStatus, errMsg string) error {
	if err := r.store.UpdateAgentStatus(r.id, status, errMsg); err != nil {
		return fmt.Errorf("updating agent status to %s: %w", status, err)
	}
	r.sink.Emit(events.Event{
		Type: events.TypeStatus, RunID: r.runID, AgentID: r.id, TaskID: r.task.ID,
		Status: string(status), Err: errMsg,
	})
	return nil
}

// convertDefinitions maps tool definitions to provider schemas and
// measures their serialized size for the context estimate.
func convertDefinitions(defs []tools.Definition) ([]provider.ToolSchema, int) {
	schemas := make([]provider.ToolSchema, len(defs))
	chars := 0
	for i, d := range defs {
		schemas[i] = provider.ToolSchema{
			Name:        d.Name,
			Description: d.Description,
			Properties:  d.Properties,
			Required:    d.Required,
		}
		chars += len(d.Name) + len(d.Description)
		if raw, err := json.Marshal(d.Properties); err == nil {
			chars += len(raw)
		}
	}
	return schemas, chars
}

func renderToolResult(res tools.Result) string {
	if res.Success {
		if res.Output == "" {
			return "(tool completed with no output)"
		}
		return res.Output
	}
	return "Tool failed: " + res.Error
}

func statusWord(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
