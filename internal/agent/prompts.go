// Package agent runs one sub-agent worker: the model loop, tool dispatch,
// context compaction, and incremental state persistence.
package agent

import (
	"fmt"
	"strings"

	"github.com/loomhq/loom/pkg/models"
)

// BuildSystemPrompt assembles a worker's system prompt from its profile
// description and the shared working rules.
func BuildSystemPrompt(profile string) string {
	var b strings.Builder
	b.WriteString(profile)
	b.WriteString("\n\n")
	b.WriteString(`Rules:
- Work only on the task you are given. Do not expand its scope.
- Use the available tools when they would improve your answer.
- When the task is complete, state your final result plainly. Do not ask follow-up questions; there is no interactive user.`)
	return b.String()
}

// BuildTaskMessage renders the initial user message: the task description
// plus context produced by completed upstream tasks.
func BuildTaskMessage(task *models.TaskNode, upstreamContext string) string {
	if upstreamContext == "" {
		return fmt.Sprintf("Complete this task:\n\n%s", task.Description)
	}
	return fmt.Sprintf("Complete this task:\n\n%s\n\n# Context from completed upstream tasks\n\n%s", task.Description, upstreamContext)
}
