package provider

import (
	"encoding/json"
	"testing"

	"github.com/loomhq/loom/pkg/models"
)

func TestCostFor(t *testing.T) {
	cost := CostFor("claude-sonnet-4-20250514", 1_000_000, 1_000_000)
	if cost != 18.00 {
		t.Errorf("cost = %v, want 18.00", cost)
	}
	if CostFor("unknown-model", 1000, 1000) != 0 {
		t.Error("unknown model should cost zero")
	}
}

func TestConvertMessages(t *testing.T) {
	msgs := []models.Message{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi", ToolCalls: []models.ToolCallRequest{
			{ID: "tc-1", Name: "shell", Input: json.RawMessage(`{"cmd":"ls"}`)},
		}},
		{Role: models.RoleUser, Content: "file.txt", ToolCallID: "tc-1"},
		{Role: models.RoleSystem, Content: "guidance: focus"},
	}

	out := convertMessages(msgs)
	if len(out) != 4 {
		t.Fatalf("expected 4 params, got %d", len(out))
	}
}

func TestConvertMessagesSkipsEmptyAssistant(t *testing.T) {
	out := convertMessages([]models.Message{{Role: models.RoleAssistant}})
	if len(out) != 0 {
		t.Errorf("empty assistant message should be dropped, got %d params", len(out))
	}
}

func TestConvertTools(t *testing.T) {
	out := convertTools([]ToolSchema{
		{
			Name:        "search",
			Description: "search the web",
			Properties:  map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
			Required:    []string{"query"},
		},
	})
	if len(out) != 1 {
		t.Fatalf("expected 1 tool param, got %d", len(out))
	}
	if out[0].OfTool.Name != "search" {
		t.Errorf("tool name = %q", out[0].OfTool.Name)
	}
}

func TestUsageTotal(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5}
	if u.Total() != 15 {
		t.Errorf("Total() = %d, want 15", u.Total())
	}
}
