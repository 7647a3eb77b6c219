package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/loomhq/loom/pkg/models"
)

// defaultMaxTokens is the response cap used when a request doesn't set one.
const defaultMaxTokens = 8192

// AnthropicProvider implements ModelProvider against the Anthropic API.
type AnthropicProvider struct {
	client anthropic.Client
	model  anthropic.Model
}

// AnthropicConfig contains configuration for creating an AnthropicProvider.
type AnthropicConfig struct {
	// Model is the Claude model to use.
	Model string
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
}

// NewAnthropicProvider creates a provider backed by the Anthropic API.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Model returns the model identifier.
func (p *AnthropicProvider) Model() string {
	return string(p.model)
}

// CalculateCost converts token counts into dollars using the pricing table.
func (p *AnthropicProvider) CalculateCost(promptTokens, completionTokens int64) float64 {
	return CostFor(string(p.model), promptTokens, completionTokens)
}

// Generate makes a blocking model call.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("API call failed: %w", err)
	}

	result := &Response{
		StopReason: mapStopReason(resp.StopReason),
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Text += variant.Text
		case anthropic.ThinkingBlock:
			result.Reasoning = append(result.Reasoning, variant.Thinking)
		case anthropic.ToolUseBlock:
			result.ToolCalls = append(result.ToolCalls, models.ToolCallRequest{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: variant.Input,
			})
		}
	}
	return result, nil
}

// Stream makes a streaming model call, invoking onEvent per chunk, and
// returns the fully accumulated response.
func (p *AnthropicProvider) Stream(ctx context.Context, req Request, onEvent func(StreamEvent)) (*Response, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.buildParams(req))

	acc := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, fmt.Errorf("accumulate stream event: %w", err)
		}

		if onEvent == nil {
			continue
		}
		switch variant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := variant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				onEvent(StreamEvent{Type: EventToken, Token: delta.Text})
			case anthropic.ThinkingDelta:
				onEvent(StreamEvent{Type: EventReasoning, Reasoning: delta.Thinking})
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("stream failed: %w", err)
	}

	result := &Response{
		StopReason: mapStopReason(acc.StopReason),
		Usage: Usage{
			InputTokens:  acc.Usage.InputTokens,
			OutputTokens: acc.Usage.OutputTokens,
		},
	}
	for _, block := range acc.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Text += variant.Text
		case anthropic.ThinkingBlock:
			result.Reasoning = append(result.Reasoning, variant.Thinking)
		case anthropic.ToolUseBlock:
			call := models.ToolCallRequest{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: variant.Input,
			}
			result.ToolCalls = append(result.ToolCalls, call)
			if onEvent != nil {
				onEvent(StreamEvent{Type: EventToolCall, ToolCall: &call})
			}
		}
	}
	return result, nil
}

func (p *AnthropicProvider) buildParams(req Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: maxTokens,
		Messages:  convertMessages(req.Messages),
		Tools:     convertTools(req.Tools),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature >= 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	return params
}

// convertMessages maps engine messages onto Anthropic message params.
// System-role history entries (injected guidance, context summaries) are
// carried as user messages since the API takes the system prompt separately.
func convertMessages(msgs []models.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case models.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Input, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case models.RoleUser, models.RoleSystem:
			if m.ToolCallID != "" {
				out = append(out, anthropic.NewUserMessage(
					anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
			} else {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}
	return out
}

func convertTools(schemas []ToolSchema) []anthropic.ToolUnionParam {
	var out []anthropic.ToolUnionParam
	for _, s := range schemas {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        s.Name,
				Description: anthropic.String(s.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: s.Properties,
					Required:   s.Required,
				},
			},
		})
	}
	return out
}

func mapStopReason(r anthropic.StopReason) StopReason {
	switch r {
	case anthropic.StopReasonToolUse:
		return StopToolUse
	case anthropic.StopReasonMaxTokens:
		return StopMaxTokens
	default:
		return StopEndTurn
	}
}
