package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loomhq/loom/internal/graph"
	"github.com/loomhq/loom/internal/provider"
	"github.com/loomhq/loom/pkg/models"
)

const decomposerSystemPrompt = `You decide how to handle a user request for a multi-agent work system.

If the request is a simple question you can answer directly with no research or tool use, answer it.
Otherwise break it into tasks for specialist agents. Available agent types: researcher, coder, analyst, writer, reviewer.

Respond with ONLY a JSON object, no prose around it:
{
  "mode": "direct" | "plan",
  "answer": "the direct answer (mode=direct only)",
  "rationale": "one sentence on how you split the work (mode=plan only)",
  "tasks": [
    {"id": "t1", "description": "...", "agent_type": "researcher", "depends_on": []},
    {"id": "t2", "description": "...", "agent_type": "writer", "depends_on": ["t1"]}
  ]
}

Rules for plans:
- Each task must be completable by one agent in one sitting.
- depends_on lists tasks whose results the task needs. Keep the graph minimal; do not add dependencies for ordering taste.
- Task ids are short labels like t1, t2. No cycles.
- Prefer the fewest tasks that cover the request. A single task is fine.`

// decomposerTemperature keeps plan structure stable across retries.
const decomposerTemperature = 0.3

// Proposal is the decomposer's decision for a request.
type Proposal struct {
	// Direct is true when the request was answered without tasks.
	Direct bool
	// Answer is the direct answer (Direct only).
	Answer string
	// Rationale explains the split (plan only).
	Rationale string
	// Tasks is the proposed task list (plan only).
	Tasks []graph.TaskSubmission
}

// Decomposer turns user requests into task plans using a model call.
type Decomposer struct {
	provider provider.ModelProvider
}

// NewDecomposer builds a decomposer.
func NewDecomposer(p provider.ModelProvider) *Decomposer {
	return &Decomposer{provider: p}
}

type proposalJSON struct {
	Mode      string `json:"mode"`
	Answer    string `json:"answer"`
	Rationale string `json:"rationale"`
	Tasks     []struct {
		ID          string   `json:"id"`
		Description string   `json:"description"`
		AgentType   string   `json:"agent_type"`
		DependsOn   []string `json:"depends_on"`
	} `json:"tasks"`
}

// Propose asks the model how to handle the request.
func (d *Decomposer) Propose(ctx context.Context, request string) (*Proposal, error) {
	resp, err := d.provider.Generate(ctx, provider.Request{
		System: decomposerSystemPrompt,
		Messages: []models.Message{
			{Role: models.RoleUser, Content: request},
		},
		MaxTokens:   4096,
		Temperature: decomposerTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("decomposing request: %w", err)
	}
	return parseProposal(resp.Text)
}

// parseProposal decodes the model's JSON, tolerating a fenced code block
// around it.
func parseProposal(text string) (*Proposal, error) {
	raw := stripFence(strings.TrimSpace(text))

	var pj proposalJSON
	if err := json.Unmarshal([]byte(raw), &pj); err != nil {
		return nil, fmt.Errorf("decomposer returned unparseable JSON: %w", err)
	}

	switch pj.Mode {
	case "direct":
		if strings.TrimSpace(pj.Answer) == "" {
			return nil, fmt.Errorf("decomposer chose direct mode with no answer")
		}
		return &Proposal{Direct: true, Answer: pj.Answer}, nil
	case "plan":
		if len(pj.Tasks) == 0 {
			return nil, fmt.Errorf("decomposer chose plan mode with no tasks")
		}
		tasks := make([]graph.TaskSubmission, len(pj.Tasks))
		for i, t := range pj.Tasks {
			tasks[i] = graph.TaskSubmission{
				TempID:      t.ID,
				Description: t.Description,
				AgentType:   t.AgentType,
				DependsOn:   t.DependsOn,
			}
		}
		return &Proposal{Rationale: pj.Rationale, Tasks: tasks}, nil
	default:
		return nil, fmt.Errorf("decomposer returned unknown mode %q", pj.Mode)
	}
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
