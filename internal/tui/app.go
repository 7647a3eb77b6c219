// Package tui renders a live view of a run: one card per active agent,
// a scrolling activity log, and run-level totals, all driven by the
// orchestrator's event stream.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/loomhq/loom/internal/events"
)

// EventMsg wraps one orchestrator event for the update loop.
type EventMsg struct {
	Event events.Event
}

// StreamClosedMsg signals that the event channel was closed, meaning the
// run is over and no further updates will arrive.
type StreamClosedMsg struct{}

// RunDoneMsg carries the final answer once the coordinator returns.
type RunDoneMsg struct {
	Answer string
	Err    error
}

// App is the root bubbletea model.
type App struct {
	agents *AgentsPanel
	log    *LogPanel

	spin    spinner.Model
	eventCh <-chan events.Event

	width  int
	height int

	runID    string
	done     bool
	failed   bool
	finalMsg string
	quitting bool

	headerStyle lipgloss.Style
	footerStyle lipgloss.Style
	errStyle    lipgloss.Style
	okStyle     lipgloss.Style
}

// New builds an App consuming the given event channel.
func New(eventCh <-chan events.Event) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	return &App{
		agents:  NewAgentsPanel(),
		log:     NewLogPanel(),
		spin:    sp,
		eventCh: eventCh,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),
		footerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(0, 1),
		errStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		okStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spin.Tick, a.waitForEvent())
}

// waitForEvent blocks on the event channel and converts the next event
// into a message. Channel close becomes StreamClosedMsg.
func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-a.eventCh
		if !ok {
			return StreamClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case EventMsg:
		a.apply(msg.Event)
		return a, a.waitForEvent()

	case StreamClosedMsg:
		// Keep the final screen up until the user quits.
		return a, nil

	case RunDoneMsg:
		a.done = true
		if msg.Err != nil {
			a.failed = true
			a.finalMsg = msg.Err.Error()
		} else {
			a.finalMsg = msg.Answer
		}
		return a, nil
	}

	return a, nil
}

// apply folds one event into the panel state.
func (a *App) apply(ev events.Event) {
	if ev.RunID != "" {
		a.runID = ev.RunID
	}

	switch ev.Type {
	case events.TypeToken, events.TypeReasoning:
		a.agents.AppendText(ev.AgentID, ev.Text)

	case events.TypeToolCall:
		a.agents.SetAction(ev.AgentID, "tool: "+ev.Tool)
		a.log.Add("INFO", fmt.Sprintf("agent %s calling %s", shortID(ev.AgentID), ev.Tool))

	case events.TypeToolResult:
		a.agents.SetAction(ev.AgentID, "thinking")

	case events.TypeStatus:
		a.agents.SetStatus(ev.AgentID, ev.TaskID, ev.Status)
		a.log.Add("INFO", fmt.Sprintf("agent %s %s", shortID(ev.AgentID), ev.Status))

	case events.TypeSummarized:
		a.log.Add("INFO", fmt.Sprintf("agent %s context compacted", shortID(ev.AgentID)))

	case events.TypeIntervention:
		a.log.Add("WARN", fmt.Sprintf("guidance for agent %s: %s", shortID(ev.AgentID), ev.Text))

	case events.TypeDone:
		a.agents.SetStatus(ev.AgentID, ev.TaskID, ev.Status)
		a.log.Add("INFO", fmt.Sprintf("agent %s finished: %s", shortID(ev.AgentID), ev.Status))

	case events.TypeError:
		a.log.Add("ERROR", ev.Err)
	}
}

// layout distributes the terminal between the two panels.
func (a *App) layout() {
	bodyHeight := a.height - 4
	if bodyHeight < 6 {
		bodyHeight = 6
	}
	agentsHeight := bodyHeight * 2 / 3
	a.agents.SetSize(a.width, agentsHeight)
	a.log.SetSize(a.width, bodyHeight-agentsHeight)
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(a.viewHeader())
	b.WriteString("\n")
	b.WriteString(a.agents.View())
	b.WriteString("\n")
	b.WriteString(a.log.View())
	b.WriteString("\n")
	b.WriteString(a.viewFooter())
	return b.String()
}

func (a *App) viewHeader() string {
	title := "loom"
	if a.runID != "" {
		title = "loom " + shortID(a.runID)
	}
	if !a.done {
		title = a.spin.View() + " " + title
	}
	return a.headerStyle.Render(title)
}

func (a *App) viewFooter() string {
	if a.done {
		status := a.okStyle.Render("done")
		if a.failed {
			status = a.errStyle.Render("failed")
		}

		msg := a.finalMsg
		if maxw := a.width - 20; maxw > 10 && len(msg) > maxw {
			msg = msg[:maxw] + "..."
		}
		return a.footerStyle.Render(fmt.Sprintf("%s %s | press q to exit", status, msg))
	}
	return a.footerStyle.Render(fmt.Sprintf("%d running | press q to abort", a.agents.RunningCount()))
}

// shortID trims UUIDs down to their first segment for display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Run starts the TUI and blocks until it exits. The returned program
// can receive RunDoneMsg via Send once the coordinator finishes.
func Run(eventCh <-chan events.Event) error {
	p := tea.NewProgram(New(eventCh), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// NewProgram builds a program without starting it, so the caller can
// Send completion messages from the goroutine driving the run.
func NewProgram(eventCh <-chan events.Event) *tea.Program {
	return tea.NewProgram(New(eventCh), tea.WithAltScreen())
}

var _ tea.Model = (*App)(nil)

// timeNow is swappable in tests.
var timeNow = time.Now
