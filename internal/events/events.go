// Package events carries progress from running sub-agents out to observers
// such as the TUI. Emission never blocks agent execution: a slow or absent
// consumer costs dropped events, not stalled agents.
package events

import (
	"sync/atomic"
	"time"
)

// Type discriminates event payloads.
type Type string

const (
	// TypeToken is a streamed chunk of assistant text.
	TypeToken Type = "token"
	// TypeReasoning is a streamed chunk of model thinking.
	TypeReasoning Type = "reasoning"
	// TypeToolCall fires when an agent dispatches a tool.
	TypeToolCall Type = "tool_call"
	// TypeToolResult fires when a tool invocation returns.
	TypeToolResult Type = "tool_result"
	// TypeStatus fires on agent or task status transitions.
	TypeStatus Type = "status"
	// TypeSummarized fires when an agent's context window is compacted.
	TypeSummarized Type = "summarized"
	// TypeIntervention fires when the monitor injects corrective guidance.
	TypeIntervention Type = "intervention"
	// TypeDone fires when an agent reaches a terminal state.
	TypeDone Type = "done"
	// TypeError carries a non-fatal error surfaced to observers.
	TypeError Type = "error"
)

// Event is one observable happening during a run.
type Event struct {
	Type      Type      `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Text      string    `json:"text,omitempty"`
	Status    string    `json:"status,omitempty"`
	Err       string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives events. Emit must not block the caller indefinitely.
type Sink interface {
	Emit(ev Event)
}

// NopSink discards everything.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Event) {}

// ChannelSink buffers events on a channel for one consumer. When the
// buffer is full, Emit waits briefly for the consumer to catch up and
// then drops the event, counting the drop.
type ChannelSink struct {
	ch      chan Event
	timeout time.Duration
	dropped atomic.Uint64
}

// NewChannelSink builds a sink with the given buffer size. A zero or
// negative size gets a reasonable default.
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 256
	}
	return &ChannelSink{
		ch:      make(chan Event, size),
		timeout: 50 * time.Millisecond,
	}
}

// Events returns the consumer side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Emit implements Sink.
func (s *ChannelSink) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case s.ch <- ev:
		return
	default:
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case s.ch <- ev:
	case <-timer.C:
		s.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the consumer
// fell behind.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close ends the stream. Emit must not be called after Close.
func (s *ChannelSink) Close() {
	close(s.ch)
}

var (
	_ Sink = NopSink{}
	_ Sink = (*ChannelSink)(nil)
)
