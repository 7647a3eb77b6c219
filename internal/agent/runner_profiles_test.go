package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/loomhq/loom/internal/provider"
	"github.com/loomhq/loom/pkg/models"
)

func TestRunnerHonorsToolAllowList(t *testing.T) {
	db := testStore(t)
	restricted := &Catalog{profiles: map[models.AgentType]Profile{
		models.AgentTypeCoder: {
			Description:  "restricted coder",
			AllowedTools: []string{"some_other_tool"},
		},
	}}

	sp := &scriptedProvider{responses: []*provider.Response{
		toolCallResponse("call-1", "lookup", `{"q":"answer"}`),
		{Text: "done without tools", StopReason: provider.StopEndTurn},
	}}

	r := NewRunner("run-1", testTask(), "", sp, db, echoRegistry(t), nil, nil,
		Config{Catalog: restricted})
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result != "done without tools" {
		t.Errorf("result = %q", result)
	}

	// The restricted tool was filtered out of the offered catalog.
	if len(sp.requests) == 0 {
		t.Fatal("no model calls recorded")
	}
	for _, ts := range sp.requests[0].Tools {
		if ts.Name == "lookup" {
			t.Error("disallowed tool offered to the model")
		}
	}

	// The dispatch attempt was rejected, not executed.
	st, err := db.GetAgentState(r.ID())
	if err != nil {
		t.Fatal(err)
	}
	if len(st.ToolCalls) != 1 {
		t.Fatalf("tool call log = %+v", st.ToolCalls)
	}
	rec := st.ToolCalls[0]
	if rec.Success || !strings.Contains(rec.Error, "not available to this agent type") {
		t.Errorf("record = %+v, want rejection", rec)
	}
}
