package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// NewBuiltinRegistry returns a registry preloaded with the small local
// tool set every worker gets regardless of endpoint configuration.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, t := range []Tool{currentTimeTool(), scratchpadTool()} {
		if err := r.Register(t.Definition, t.Handler); err != nil {
			panic(err)
		}
	}
	return r
}

func currentTimeTool() Tool {
	return Tool{
		Definition: Definition{
			Name:        "current_time",
			Description: "Returns the current date and time in RFC 3339 format, with an optional IANA timezone.",
			Properties: map[string]interface{}{
				"timezone": map[string]interface{}{
					"type":        "string",
					"description": "IANA timezone name such as America/New_York. Defaults to UTC.",
				},
			},
		},
		Handler: func(ctx context.Context, input json.RawMessage) Result {
			var args struct {
				Timezone string `json:"timezone"`
			}
			if len(input) > 0 {
				if err := json.Unmarshal(input, &args); err != nil {
					return Fail(fmt.Sprintf("invalid input: %v", err))
				}
			}
			loc := time.UTC
			if args.Timezone != "" {
				var err error
				loc, err = time.LoadLocation(args.Timezone)
				if err != nil {
					return Fail(fmt.Sprintf("unknown timezone %q", args.Timezone))
				}
			}
			return Ok(time.Now().In(loc).Format(time.RFC3339))
		},
	}
}

// scratchpadTool gives a worker a place to stash intermediate notes and
// read them back later in the same process.
func scratchpadTool() Tool {
	var mu sync.Mutex
	notes := make(map[string]string)

	return Tool{
		Definition: Definition{
			Name:        "scratchpad",
			Description: "Stores and retrieves short named notes for use later in the task. Action 'write' saves a note, 'read' returns one, 'list' returns all note names.",
			Properties: map[string]interface{}{
				"action": map[string]interface{}{
					"type": "string",
					"enum": []string{"write", "read", "list"},
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Note name. Required for write and read.",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Note body. Required for write.",
				},
			},
			Required: []string{"action"},
		},
		Handler: func(ctx context.Context, input json.RawMessage) Result {
			var args struct {
				Action  string `json:"action"`
				Name    string `json:"name"`
				Content string `json:"content"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return Fail(fmt.Sprintf("invalid input: %v", err))
			}

			mu.Lock()
			defer mu.Unlock()
			switch args.Action {
			case "write":
				if args.Name == "" {
					return Fail("write requires a name")
				}
				notes[args.Name] = args.Content
				return Ok(fmt.Sprintf("saved note %q", args.Name))
			case "read":
				content, ok := notes[args.Name]
				if !ok {
					return Fail(fmt.Sprintf("no note named %q", args.Name))
				}
				return Ok(content)
			case "list":
				if len(notes) == 0 {
					return Ok("no notes")
				}
				names := make([]string, 0, len(notes))
				for name := range notes {
					names = append(names, name)
				}
				out, _ := json.Marshal(names)
				return Ok(string(out))
			default:
				return Fail(fmt.Sprintf("unknown action %q", args.Action))
			}
		},
	}
}
