package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// maxLogEntries bounds the retained log history.
const maxLogEntries = 500

// LogEntry is one line in the activity log.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
}

// LogPanel shows a scrolling tail of run activity.
type LogPanel struct {
	entries []LogEntry
	width   int
	height  int

	titleStyle  lipgloss.Style
	borderStyle lipgloss.Style
	levelStyle  map[string]lipgloss.Style
	timeStyle   lipgloss.Style
	emptyStyle  lipgloss.Style
}

// NewLogPanel creates an empty log panel.
func NewLogPanel() *LogPanel {
	return &LogPanel{
		entries: make([]LogEntry, 0, 64),

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),
		levelStyle: map[string]lipgloss.Style{
			"INFO":  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			"WARN":  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			"ERROR": lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		},
		timeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		emptyStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true),
	}
}

// Add appends an entry, trimming oldest history past the cap.
func (p *LogPanel) Add(level, message string) {
	p.entries = append(p.entries, LogEntry{
		Timestamp: timeNow(),
		Level:     level,
		Message:   message,
	})
	if len(p.entries) > maxLogEntries {
		p.entries = p.entries[len(p.entries)-maxLogEntries:]
	}
}

// Entries returns the retained log history.
func (p *LogPanel) Entries() []LogEntry {
	return p.entries
}

// SetSize updates the panel dimensions.
func (p *LogPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// View renders the panel showing the most recent entries that fit.
func (p *LogPanel) View() string {
	var b strings.Builder
	b.WriteString(p.titleStyle.Render("Activity"))
	b.WriteString("\n")

	if len(p.entries) == 0 {
		b.WriteString(p.emptyStyle.Render("  no activity yet"))
	} else {
		visible := p.height - 4
		if visible < 1 {
			visible = 1
		}
		start := 0
		if len(p.entries) > visible {
			start = len(p.entries) - visible
		}
		for _, e := range p.entries[start:] {
			style, ok := p.levelStyle[e.Level]
			if !ok {
				style = p.timeStyle
			}
			line := fmt.Sprintf("  %s %s %s",
				p.timeStyle.Render(e.Timestamp.Format("15:04:05")),
				style.Render(fmt.Sprintf("%-5s", e.Level)),
				e.Message)
			if maxw := p.width - 4; maxw > 20 && len(line) > maxw {
				line = line[:maxw]
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return p.borderStyle.
		Width(max(p.width-2, 20)).
		Height(max(p.height-2, 3)).
		Render(b.String())
}
