package budget

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/loomhq/loom/internal/provider"
	"github.com/loomhq/loom/pkg/models"
)

func TestEstimateText(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if got := EstimateText(tt.in); got != tt.want {
			t.Errorf("EstimateText(%d chars) = %d, want %d", len(tt.in), got, tt.want)
		}
	}
}

func TestEstimateMessageIncludesToolCalls(t *testing.T) {
	plain := models.Message{Role: models.RoleAssistant, Content: "hello"}
	withCall := plain
	withCall.ToolCalls = []models.ToolCallRequest{
		{ID: "t1", Name: "search", Input: json.RawMessage(`{"query":"something long enough"}`)},
	}
	if EstimateMessage(withCall) <= EstimateMessage(plain) {
		t.Error("tool call payload not counted")
	}
}

func TestNeedsCompaction(t *testing.T) {
	b := NewBudgeter("claude-sonnet-4-20250514", Config{
		ContextLimit:  1000,
		OutputReserve: 200,
		TriggerRatio:  0.8,
	})
	// usable = 800, trigger = 640
	if b.NeedsCompaction(600) {
		t.Error("below trigger should not compact")
	}
	if !b.NeedsCompaction(700) {
		t.Error("above trigger should compact")
	}
}

func makeMessages(n, contentLen int) []models.Message {
	msgs := make([]models.Message, n)
	for i := range msgs {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs[i] = models.Message{Role: role, Content: strings.Repeat("a", contentLen)}
	}
	return msgs
}

func TestPlanKeepsRecentWindow(t *testing.T) {
	b := NewBudgeter("", Config{
		ContextLimit:      4000,
		OutputReserve:     1000,
		TriggerRatio:      0.8,
		TargetRatio:       0.3,
		MinRecentMessages: 4,
	})
	msgs := makeMessages(20, 400) // ~104 tokens each

	replace, keep, ok := b.Plan(msgs, 0)
	if !ok {
		t.Fatal("Plan should find something to replace")
	}
	if len(keep) < 4 {
		t.Errorf("kept %d messages, want at least 4", len(keep))
	}
	if len(replace)+len(keep) != len(msgs) {
		t.Errorf("partition lost messages: %d + %d != %d", len(replace), len(keep), len(msgs))
	}
	// The keep window is the newest suffix.
	if keep[len(keep)-1].Content != msgs[len(msgs)-1].Content {
		t.Error("keep window is not the tail of the conversation")
	}

	kept := 0
	for _, m := range keep[4:] {
		kept += EstimateMessage(m)
	}
	target := int(0.3 * float64(b.Usable()))
	if kept > target+EstimateMessage(msgs[0]) {
		t.Errorf("kept tail (%d tokens) blows past target (%d)", kept, target)
	}
}

func TestPlanNeverSplitsToolPair(t *testing.T) {
	b := NewBudgeter("", Config{
		ContextLimit:      2000,
		OutputReserve:     500,
		TargetRatio:       0.3,
		MinRecentMessages: 2,
	})
	var msgs []models.Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs,
			models.Message{Role: models.RoleAssistant, Content: strings.Repeat("a", 200), ToolCalls: []models.ToolCallRequest{{ID: "t", Name: "x"}}},
			models.Message{Role: models.RoleUser, Content: strings.Repeat("r", 200), ToolCallID: "t"},
		)
	}

	replace, keep, ok := b.Plan(msgs, 0)
	if !ok {
		t.Fatal("Plan should replace something")
	}
	if len(keep) > 0 && keep[0].ToolCallID != "" {
		t.Error("keep window starts with an orphaned tool result")
	}
	if len(replace) > 0 {
		last := replace[len(replace)-1]
		if len(last.ToolCalls) > 0 {
			t.Error("replaced region ends with a tool call missing its result")
		}
	}
}

func TestPlanShortConversationUntouched(t *testing.T) {
	b := NewBudgeter("", Config{MinRecentMessages: 6})
	msgs := makeMessages(4, 100)
	if _, _, ok := b.Plan(msgs, 0); ok {
		t.Error("conversation within the recent window should not be compacted")
	}
}

func TestPlanSkipsSingleCandidate(t *testing.T) {
	b := NewBudgeter("", Config{
		ContextLimit:      1200,
		OutputReserve:     200,
		TriggerRatio:      0.8,
		TargetRatio:       0.5, // target = 500 of usable 1000
		MinRecentMessages: 2,
	})
	// One oversized old message, two recent ones. The scan can only cut
	// the first message, and a one-message summary is never worth a call.
	msgs := []models.Message{
		{Role: models.RoleUser, Content: strings.Repeat("a", 4000)},
		{Role: models.RoleAssistant, Content: strings.Repeat("b", 400)},
		{Role: models.RoleUser, Content: strings.Repeat("c", 400)},
	}
	if _, _, ok := b.Plan(msgs, 0); ok {
		t.Error("a candidate set of one message should not be summarized")
	}
}

func TestPlanSubtractsFixedOverhead(t *testing.T) {
	b := NewBudgeter("", Config{
		ContextLimit:      4000,
		OutputReserve:     1000,
		TriggerRatio:      0.8,
		TargetRatio:       0.3,
		MinRecentMessages: 2,
	})
	msgs := makeMessages(20, 400)

	_, keepFree, ok := b.Plan(msgs, 0)
	if !ok {
		t.Fatal("Plan with no overhead should replace something")
	}
	_, keepLoaded, ok := b.Plan(msgs, 800)
	if !ok {
		t.Fatal("Plan with overhead should replace something")
	}
	if len(keepLoaded) >= len(keepFree) {
		t.Errorf("fixed overhead not charged against the target: kept %d vs %d", len(keepLoaded), len(keepFree))
	}

	// Overhead past the whole target clamps to zero and keeps only the
	// protected recent window.
	_, keepClamped, ok := b.Plan(msgs, 10000)
	if !ok {
		t.Fatal("Plan with oversized overhead should replace something")
	}
	if len(keepClamped) != 2 {
		t.Errorf("kept %d messages under an oversized overhead, want the 2 protected ones", len(keepClamped))
	}
}

func TestRenderTranscriptTruncatesToolArgs(t *testing.T) {
	long := strings.Repeat("x", maxTranscriptArgChars*3)
	msgs := []models.Message{{
		Role: models.RoleAssistant,
		ToolCalls: []models.ToolCallRequest{
			{ID: "t1", Name: "search", Input: json.RawMessage(`{"payload":"` + long + `"}`)},
		},
	}}
	out := renderTranscript(msgs)
	if strings.Contains(out, long) {
		t.Error("full tool-call payload leaked into the transcript")
	}
	if !strings.Contains(out, "...(truncated)") {
		t.Error("long tool-call args were not marked as truncated")
	}
	if !strings.Contains(out, "called tool search") {
		t.Error("tool name missing from transcript")
	}
}

// fixedProvider returns a canned response.
type fixedProvider struct {
	text     string
	requests []provider.Request
	err      error
}

func (f *fixedProvider) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Response{Text: f.text, StopReason: provider.StopEndTurn}, nil
}

func (f *fixedProvider) Stream(ctx context.Context, req provider.Request, onEvent func(provider.StreamEvent)) (*provider.Response, error) {
	return f.Generate(ctx, req)
}

func (f *fixedProvider) CalculateCost(prompt, completion int64) float64 { return 0 }
func (f *fixedProvider) Model() string                                 { return "test-model" }

func TestCompactShrinksEstimate(t *testing.T) {
	b := NewBudgeter("", Config{
		ContextLimit:      4000,
		OutputReserve:     1000,
		TriggerRatio:      0.5,
		TargetRatio:       0.2,
		MinRecentMessages: 2,
	})
	fp := &fixedProvider{text: "short summary of everything so far"}
	s := NewSummarizer(fp, b)

	msgs := makeMessages(30, 300)
	before := b.EstimateConversation("sys", msgs, 0)
	if !b.NeedsCompaction(before) {
		t.Fatal("test conversation should exceed trigger")
	}

	compacted, record, err := s.Compact(context.Background(), "sys", msgs, 0)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if record == nil {
		t.Fatal("expected a summary record")
	}
	if compacted[0].Role != models.RoleSystem || !strings.Contains(compacted[0].Content, "short summary") {
		t.Errorf("first message is not the summary: %+v", compacted[0])
	}
	if record.MessagesReplaced != len(msgs)-(len(compacted)-1) {
		t.Errorf("MessagesReplaced = %d, compacted kept %d of %d", record.MessagesReplaced, len(compacted)-1, len(msgs))
	}

	after := b.EstimateConversation("sys", compacted, 0)
	if after >= before {
		t.Errorf("compaction did not shrink estimate: %d >= %d", after, before)
	}

	// Summarization itself runs at low temperature.
	if len(fp.requests) != 1 || fp.requests[0].Temperature != summaryTemperature {
		t.Errorf("summary request temperature = %v", fp.requests[0].Temperature)
	}
}

func TestCompactClearsTriggerWithLargeSystemPrompt(t *testing.T) {
	b := NewBudgeter("", Config{
		ContextLimit:      1200,
		OutputReserve:     200,
		TriggerRatio:      0.85, // trigger = 850 of usable 1000
		TargetRatio:       0.5,
		MinRecentMessages: 2,
	})
	fp := &fixedProvider{text: "short summary of everything so far"}
	s := NewSummarizer(fp, b)

	system := strings.Repeat("s", 2400) // ~600 tokens of fixed overhead
	msgs := makeMessages(10, 400)

	before := b.EstimateConversation(system, msgs, 0)
	if !b.NeedsCompaction(before) {
		t.Fatal("test conversation should exceed trigger")
	}

	compacted, record, err := s.Compact(context.Background(), system, msgs, 0)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if record == nil {
		t.Fatal("expected a summary record")
	}

	// The fixed overhead comes out of the retention budget, so one
	// compaction pass is enough. Otherwise every following iteration
	// would pay for another summarization call.
	after := b.EstimateConversation(system, compacted, 0)
	if b.NeedsCompaction(after) {
		t.Errorf("estimate after compaction (%d) still exceeds the trigger", after)
	}
}

func TestCompactNoopBelowTrigger(t *testing.T) {
	b := NewBudgeter("", Config{ContextLimit: 100000, OutputReserve: 1000})
	fp := &fixedProvider{text: "unused"}
	s := NewSummarizer(fp, b)

	msgs := makeMessages(10, 100)
	out, record, err := s.Compact(context.Background(), "", msgs, 0)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if record != nil {
		t.Error("no record expected below trigger")
	}
	if len(out) != len(msgs) {
		t.Error("conversation modified below trigger")
	}
	if len(fp.requests) != 0 {
		t.Error("model called below trigger")
	}
}
