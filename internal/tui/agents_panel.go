package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// tailLimit bounds how much streamed text each card retains.
const tailLimit = 512

// agentCard holds the display state for one worker.
type agentCard struct {
	ID     string
	TaskID string
	Status string
	Action string
	Tail   string
}

// AgentsPanel shows one card per agent the run has touched.
type AgentsPanel struct {
	cards  map[string]*agentCard
	order  []string
	width  int
	height int

	titleStyle  lipgloss.Style
	borderStyle lipgloss.Style
	statusStyle map[string]lipgloss.Style
	dimStyle    lipgloss.Style
	emptyStyle  lipgloss.Style
}

// NewAgentsPanel creates an empty panel.
func NewAgentsPanel() *AgentsPanel {
	return &AgentsPanel{
		cards: make(map[string]*agentCard),

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),
		statusStyle: map[string]lipgloss.Style{
			"running":   lipgloss.NewStyle().Foreground(lipgloss.Color("63")),
			"completed": lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			"failed":    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
			"cancelled": lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		},
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		emptyStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true),
	}
}

// SetSize updates the panel dimensions.
func (p *AgentsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

func (p *AgentsPanel) card(agentID string) *agentCard {
	if agentID == "" {
		agentID = "coordinator"
	}
	c, ok := p.cards[agentID]
	if !ok {
		c = &agentCard{ID: agentID, Status: "running", Action: "thinking"}
		p.cards[agentID] = c
		p.order = append(p.order, agentID)
	}
	return c
}

// SetStatus records a status transition for an agent.
func (p *AgentsPanel) SetStatus(agentID, taskID, status string) {
	c := p.card(agentID)
	if taskID != "" {
		c.TaskID = taskID
	}
	if status != "" {
		c.Status = status
	}
}

// SetAction records what the agent is currently doing.
func (p *AgentsPanel) SetAction(agentID, action string) {
	p.card(agentID).Action = action
}

// AppendText accumulates streamed output, keeping only the tail.
func (p *AgentsPanel) AppendText(agentID, text string) {
	c := p.card(agentID)
	c.Tail += text
	if len(c.Tail) > tailLimit {
		c.Tail = c.Tail[len(c.Tail)-tailLimit:]
	}
}

// RunningCount returns how many agents are currently running.
func (p *AgentsPanel) RunningCount() int {
	count := 0
	for _, c := range p.cards {
		if c.Status == "running" || c.Status == "initializing" {
			count++
		}
	}
	return count
}

// Agents returns card IDs in first-seen order.
func (p *AgentsPanel) Agents() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// View renders the panel.
func (p *AgentsPanel) View() string {
	var b strings.Builder
	b.WriteString(p.titleStyle.Render("Agents"))
	b.WriteString("\n")

	if len(p.cards) == 0 {
		b.WriteString(p.emptyStyle.Render("  waiting for agents"))
	} else {
		ids := p.visibleIDs()
		for _, id := range ids {
			b.WriteString(p.renderCard(p.cards[id]))
			b.WriteString("\n")
		}
	}

	return p.borderStyle.
		Width(max(p.width-2, 20)).
		Height(max(p.height-2, 3)).
		Render(b.String())
}

// visibleIDs sorts running agents first, then by first-seen order, and
// truncates to what fits.
func (p *AgentsPanel) visibleIDs() []string {
	ids := make([]string, len(p.order))
	copy(ids, p.order)
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	sort.SliceStable(ids, func(i, j int) bool {
		ri := p.cards[ids[i]].Status == "running"
		rj := p.cards[ids[j]].Status == "running"
		if ri != rj {
			return ri
		}
		return pos[ids[i]] < pos[ids[j]]
	})

	// Two lines per card plus panel chrome.
	maxCards := (p.height - 4) / 2
	if maxCards < 1 {
		maxCards = 1
	}
	if len(ids) > maxCards {
		ids = ids[:maxCards]
	}
	return ids
}

func (p *AgentsPanel) renderCard(c *agentCard) string {
	style, ok := p.statusStyle[c.Status]
	if !ok {
		style = p.dimStyle
	}

	head := fmt.Sprintf("  %s %s", shortID(c.ID), style.Render(c.Status))
	if c.TaskID != "" {
		head += p.dimStyle.Render("  task " + shortID(c.TaskID))
	}
	if c.Action != "" && (c.Status == "running" || c.Status == "initializing") {
		head += "  " + c.Action
	}

	tail := lastLine(c.Tail)
	if maxw := p.width - 8; maxw > 10 && len(tail) > maxw {
		tail = tail[len(tail)-maxw:]
	}
	if tail == "" {
		return head
	}
	return head + "\n" + p.dimStyle.Render("    "+tail)
}

// lastLine returns the final non-empty line of streamed text.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
