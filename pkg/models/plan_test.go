package models

import "testing"

func TestTaskStatusValid(t *testing.T) {
	valid := []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if TaskStatus("unknown").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	cases := []struct {
		status   TaskStatus
		terminal bool
	}{
		{TaskStatusPending, false},
		{TaskStatusInProgress, false},
		{TaskStatusCompleted, true},
		{TaskStatusFailed, true},
		{TaskStatusCancelled, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Errorf("%s: Terminal() = %v, want %v", tc.status, got, tc.terminal)
		}
	}
}

func TestAgentTypeValid(t *testing.T) {
	for _, a := range AgentTypes {
		if !a.Valid() {
			t.Errorf("expected %q to be valid", a)
		}
	}
	if AgentType("wizard").Valid() {
		t.Error("expected unknown agent type to be invalid")
	}
}

func TestPlanShape(t *testing.T) {
	cases := []struct {
		name  string
		nodes []*TaskNode
		want  PlanShape
	}{
		{
			name: "single node",
			nodes: []*TaskNode{
				{ID: "a"},
			},
			want: PlanShapeSequential,
		},
		{
			name: "chain",
			nodes: []*TaskNode{
				{ID: "a"},
				{ID: "b", DependsOn: []string{"a"}},
				{ID: "c", DependsOn: []string{"b"}},
			},
			want: PlanShapeSequential,
		},
		{
			name: "fan-out",
			nodes: []*TaskNode{
				{ID: "a"},
				{ID: "b", DependsOn: []string{"a"}},
				{ID: "c", DependsOn: []string{"a"}},
			},
			want: PlanShapeGraph,
		},
		{
			name: "fan-in",
			nodes: []*TaskNode{
				{ID: "a"},
				{ID: "b"},
				{ID: "c", DependsOn: []string{"a", "b"}},
			},
			want: PlanShapeGraph,
		},
		{
			name: "multiple roots",
			nodes: []*TaskNode{
				{ID: "a"},
				{ID: "b"},
			},
			want: PlanShapeGraph,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &TaskPlan{Nodes: tc.nodes}
			if got := p.Shape(); got != tc.want {
				t.Errorf("Shape() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPlanCompletedAndSucceeded(t *testing.T) {
	p := &TaskPlan{Nodes: []*TaskNode{
		{ID: "a", Status: TaskStatusCompleted},
		{ID: "b", Status: TaskStatusInProgress},
	}}
	if p.Completed() {
		t.Error("plan with in-progress node should not be completed")
	}

	p.Nodes[1].Status = TaskStatusFailed
	if !p.Completed() {
		t.Error("plan with all terminal nodes should be completed")
	}
	if p.Succeeded() {
		t.Error("plan with a failed node should not be succeeded")
	}

	p.Nodes[1].Status = TaskStatusCompleted
	if !p.Succeeded() {
		t.Error("plan with all completed nodes should be succeeded")
	}
}
