package orchestrator

import (
	"strings"
	"testing"
)

func TestParseProposalDirect(t *testing.T) {
	p, err := parseProposal(`{"mode":"direct","answer":"Paris"}`)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Direct || p.Answer != "Paris" {
		t.Errorf("got %+v", p)
	}
}

func TestParseProposalPlan(t *testing.T) {
	raw := `{
		"mode": "plan",
		"rationale": "research then write",
		"tasks": [
			{"id": "t1", "description": "gather sources", "agent_type": "researcher", "depends_on": []},
			{"id": "t2", "description": "write report", "agent_type": "writer", "depends_on": ["t1"]}
		]
	}`
	p, err := parseProposal(raw)
	if err != nil {
		t.Fatal(err)
	}
	if p.Direct || len(p.Tasks) != 2 {
		t.Fatalf("got %+v", p)
	}
	if p.Tasks[1].DependsOn[0] != "t1" {
		t.Errorf("dependency not carried: %+v", p.Tasks[1])
	}
}

func TestParseProposalFenced(t *testing.T) {
	raw := "```json\n{\"mode\":\"direct\",\"answer\":\"42\"}\n```"
	p, err := parseProposal(raw)
	if err != nil {
		t.Fatal(err)
	}
	if p.Answer != "42" {
		t.Errorf("got %+v", p)
	}
}

func TestParseProposalRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"not json":         "this is prose, not JSON",
		"unknown mode":     `{"mode":"maybe"}`,
		"direct no answer": `{"mode":"direct","answer":"  "}`,
		"plan no tasks":    `{"mode":"plan","tasks":[]}`,
	}
	for name, raw := range cases {
		if _, err := parseProposal(raw); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestStripFence(t *testing.T) {
	if got := stripFence("plain"); got != "plain" {
		t.Errorf("got %q", got)
	}
	got := stripFence("```json\n{\"a\":1}\n```")
	if !strings.HasPrefix(got, "{") || !strings.HasSuffix(got, "}") {
		t.Errorf("got %q", got)
	}
}
