package budget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loomhq/loom/internal/provider"
	"github.com/loomhq/loom/pkg/models"
)

const summarySystemPrompt = `You compress agent conversation history. Produce a dense summary, in bullet form, that preserves:
- the task being worked on and all decisions made so far
- facts, file names, identifiers, and numbers discovered
- tool calls issued, what their results established, and any errors hit
- unresolved questions and the current direction of work
Do not address the reader. Do not omit concrete details in favor of generalities.`

// summaryTemperature keeps compaction deterministic-ish.
const summaryTemperature = 0.2

// Summarizer folds older conversation history into a single summary
// message using a low-temperature model call.
type Summarizer struct {
	provider provider.ModelProvider
	budgeter *Budgeter
}

// NewSummarizer builds a summarizer over a provider and budgeter.
func NewSummarizer(p provider.ModelProvider, b *Budgeter) *Summarizer {
	return &Summarizer{provider: p, budgeter: b}
}

// Budgeter exposes the underlying budgeter.
func (s *Summarizer) Budgeter() *Budgeter {
	return s.budgeter
}

// Compact replaces the older portion of msgs with one system message
// carrying a model-written summary. It returns the new conversation and a
// record of what was folded. When nothing needs or permits compaction it
// returns the input unchanged with a nil record.
func (s *Summarizer) Compact(ctx context.Context, system string, msgs []models.Message, toolSchemaChars int) ([]models.Message, *models.ContextSummary, error) {
	estimate := s.budgeter.EstimateConversation(system, msgs, toolSchemaChars)
	if !s.budgeter.NeedsCompaction(estimate) {
		return msgs, nil, nil
	}

	replace, keep, ok := s.budgeter.Plan(msgs, EstimateFixed(system, toolSchemaChars))
	if !ok {
		return msgs, nil, nil
	}

	originalTokens := 0
	for _, m := range replace {
		originalTokens += EstimateMessage(m)
	}

	prompt := renderTranscript(replace)
	resp, err := s.provider.Generate(ctx, provider.Request{
		System: summarySystemPrompt,
		Messages: []models.Message{{
			Role:    models.RoleUser,
			Content: prompt,
		}},
		MaxTokens:   4096,
		Temperature: summaryTemperature,
	})
	if err != nil {
		return msgs, nil, fmt.Errorf("summarizing %d messages: %w", len(replace), err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return msgs, nil, fmt.Errorf("summarizer returned empty summary for %d messages", len(replace))
	}

	summary := &models.ContextSummary{
		ID:               uuid.NewString(),
		Content:          resp.Text,
		MessagesReplaced: len(replace),
		OriginalTokens:   originalTokens,
		SummaryTokens:    EstimateText(resp.Text),
		CreatedAt:        time.Now().UTC(),
	}

	compacted := make([]models.Message, 0, len(keep)+1)
	compacted = append(compacted, models.Message{
		Role:    models.RoleSystem,
		Content: "Summary of earlier conversation:\n\n" + resp.Text,
	})
	compacted = append(compacted, keep...)
	return compacted, summary, nil
}

// maxTranscriptArgChars caps tool-call arguments in the rendered
// transcript so one huge payload cannot dominate the summarization prompt.
const maxTranscriptArgChars = 200

// renderTranscript flattens messages into a plain transcript for the
// summarization prompt.
func renderTranscript(msgs []models.Message) string {
	var b strings.Builder
	b.WriteString("Summarize this conversation history:\n\n")
	for _, m := range msgs {
		b.WriteString(strings.ToUpper(string(m.Role)))
		b.WriteString(": ")
		if m.Content != "" {
			b.WriteString(m.Content)
		}
		for _, tc := range m.ToolCalls {
			args := string(tc.Input)
			if len(args) > maxTranscriptArgChars {
				args = args[:maxTranscriptArgChars] + "...(truncated)"
			}
			fmt.Fprintf(&b, "[called tool %s with %s]", tc.Name, args)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}
