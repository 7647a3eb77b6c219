// Package budget keeps a sub-agent's conversation inside its model's
// context window. It estimates token usage, decides when a conversation
// needs compaction, and picks which messages to fold into a summary.
package budget

import (
	"strings"

	"github.com/loomhq/loom/pkg/models"
)

// modelContextLimits maps known models to their context window size.
var modelContextLimits = map[string]int{
	"claude-opus-4-20250514":   200000,
	"claude-sonnet-4-20250514": 200000,
	"claude-3-7-sonnet-latest": 200000,
	"claude-3-5-haiku-latest":  200000,
}

// DefaultContextLimit is used for models missing from the table.
const DefaultContextLimit = 200000

// ContextLimitFor returns the context window size for a model. Prefix
// matching handles dated model ids.
func ContextLimitFor(model string) int {
	if limit, ok := modelContextLimits[model]; ok {
		return limit
	}
	for known, limit := range modelContextLimits {
		if strings.HasPrefix(model, strings.TrimSuffix(known, "-latest")) {
			return limit
		}
	}
	return DefaultContextLimit
}

// Config tunes the budgeter. Zero values take defaults.
type Config struct {
	// ContextLimit overrides the model table when positive.
	ContextLimit int
	// OutputReserve is headroom kept for the model's response.
	OutputReserve int
	// TriggerRatio of the usable window at which compaction starts.
	TriggerRatio float64
	// TargetRatio of the usable window the compacted conversation aims for.
	TargetRatio float64
	// MinRecentMessages are always kept verbatim, never summarized.
	MinRecentMessages int
}

func (c Config) withDefaults(model string) Config {
	if c.ContextLimit <= 0 {
		c.ContextLimit = ContextLimitFor(model)
	}
	if c.OutputReserve <= 0 {
		c.OutputReserve = 8192
	}
	if c.TriggerRatio <= 0 || c.TriggerRatio > 1 {
		c.TriggerRatio = 0.85
	}
	if c.TargetRatio <= 0 || c.TargetRatio >= c.TriggerRatio {
		c.TargetRatio = 0.5
	}
	if c.MinRecentMessages <= 0 {
		c.MinRecentMessages = 6
	}
	return c
}

// Budgeter measures conversations against a model's context window.
type Budgeter struct {
	cfg Config
}

// NewBudgeter builds a budgeter for a model.
func NewBudgeter(model string, cfg Config) *Budgeter {
	return &Budgeter{cfg: cfg.withDefaults(model)}
}

// Usable is the window available for conversation after the output reserve.
func (b *Budgeter) Usable() int {
	return b.cfg.ContextLimit - b.cfg.OutputReserve
}

// perMessageOverhead approximates role markers and framing per message.
const perMessageOverhead = 4

// EstimateText approximates token count as one token per four characters,
// rounded up.
func EstimateText(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}

// EstimateMessage covers a message's content plus any tool-call payloads.
func EstimateMessage(m models.Message) int {
	n := EstimateText(m.Content) + perMessageOverhead
	for _, tc := range m.ToolCalls {
		n += EstimateText(tc.Name) + EstimateText(string(tc.Input))
	}
	return n
}

// EstimateFixed covers the per-request cost that compaction cannot touch:
// the system prompt plus a rough allowance for the tool schemas.
func EstimateFixed(system string, toolSchemaChars int) int {
	return EstimateText(system) + (toolSchemaChars+3)/4
}

// EstimateConversation covers the fixed per-request cost plus every message.
func (b *Budgeter) EstimateConversation(system string, msgs []models.Message, toolSchemaChars int) int {
	total := EstimateFixed(system, toolSchemaChars)
	for _, m := range msgs {
		total += EstimateMessage(m)
	}
	return total
}

// NeedsCompaction reports whether the estimate has crossed the trigger.
func (b *Budgeter) NeedsCompaction(estimate int) bool {
	return float64(estimate) > b.cfg.TriggerRatio*float64(b.Usable())
}

// Plan splits the conversation into the messages to fold into a summary
// and the recent window to keep verbatim. fixedOverhead is the token cost
// that survives compaction untouched (system prompt plus tool schemas); it
// comes out of the target so the compacted conversation actually lands
// under the trigger. Plan scans newest to oldest, keeping messages until
// the kept tail fits the remaining budget, and never splits a tool-call
// message from its result. Returns ok=false when the replaceable prefix
// has one message or fewer, since summarizing it would not pay for itself.
func (b *Budgeter) Plan(msgs []models.Message, fixedOverhead int) (replace, keep []models.Message, ok bool) {
	if len(msgs) <= b.cfg.MinRecentMessages {
		return nil, msgs, false
	}

	target := int(b.cfg.TargetRatio*float64(b.Usable())) - fixedOverhead
	if target < 0 {
		target = 0
	}
	cut := len(msgs)
	kept := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := EstimateMessage(msgs[i])
		if len(msgs)-i > b.cfg.MinRecentMessages && kept+cost > target {
			break
		}
		kept += cost
		cut = i
	}

	// A tool result at the boundary keeps its tool-call message too.
	for cut > 0 && msgs[cut].ToolCallID != "" {
		cut--
	}

	if cut <= 1 {
		return nil, msgs, false
	}
	return msgs[:cut], msgs[cut:], true
}
