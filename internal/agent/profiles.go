package agent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loomhq/loom/internal/remotetool"
	"github.com/loomhq/loom/internal/tools"
	"github.com/loomhq/loom/pkg/models"
)

// Profile describes what one agent type is good at and which tools it may
// use. An empty AllowedTools list means every tool is available.
type Profile struct {
	// Description is woven into the worker's system prompt so the model
	// works in character.
	Description string `yaml:"description"`
	// AllowedTools restricts the worker's tool catalog. Entries match a
	// tool name exactly, or an endpoint name to allow that endpoint's
	// whole namespaced set.
	AllowedTools []string `yaml:"allowed_tools,omitempty"`
}

// generalistProfile is the fallback for unknown agent types.
var generalistProfile = Profile{
	Description: "You are a capable generalist assistant. Complete the task diligently.",
}

func defaultProfiles() map[models.AgentType]Profile {
	return map[models.AgentType]Profile{
		models.AgentTypeResearcher: {
			Description: `You are a research specialist. You gather information thoroughly before drawing conclusions. Prefer tool calls over assumptions, cite what you found, and clearly separate established facts from inference.`,
		},
		models.AgentTypeCoder: {
			Description: `You are a software engineer. You write working, idiomatic code with attention to edge cases. Put deliverable code in fenced code blocks with a language tag. Explain non-obvious decisions briefly.`,
		},
		models.AgentTypeAnalyst: {
			Description: `You are a data analyst. You reason quantitatively, check your arithmetic, and state the assumptions behind every figure. Present structured findings, not raw dumps.`,
		},
		models.AgentTypeWriter: {
			Description: `You are a technical writer. You produce clear, well-organized prose aimed at the stated audience. Structure long output with headings.`,
		},
		models.AgentTypeReviewer: {
			Description: `You are a critical reviewer. You examine work for correctness, completeness, and internal consistency. Report concrete problems with their location and severity, then an overall judgment.`,
		},
	}
}

// Catalog maps agent types to their capability profiles.
type Catalog struct {
	profiles map[models.AgentType]Profile
}

// DefaultCatalog returns the built-in capability catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{profiles: defaultProfiles()}
}

// catalogFile is the on-disk override shape.
type catalogFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadCatalog reads profile overrides from a YAML file and merges them
// over the built-in catalog. A file entry replaces the whole profile for
// its type; types the file does not mention keep their defaults.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles file: %w", err)
	}

	var file catalogFile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing profiles file: %w", err)
	}

	c := DefaultCatalog()
	for name, p := range file.Profiles {
		if p.Description == "" {
			// Partial overrides keep the default description.
			p.Description = c.ProfileFor(models.AgentType(name)).Description
		}
		c.profiles[models.AgentType(name)] = p
	}
	return c, nil
}

// ProfileFor returns the capability profile for an agent type. Unknown
// types get a generic profile rather than failing the worker.
func (c *Catalog) ProfileFor(t models.AgentType) Profile {
	if p, ok := c.profiles[t]; ok {
		return p
	}
	return generalistProfile
}

// Allows reports whether the agent type may use the named tool.
func (c *Catalog) Allows(t models.AgentType, tool string) bool {
	allowed := c.ProfileFor(t).AllowedTools
	if len(allowed) == 0 {
		return true
	}
	for _, entry := range allowed {
		if entry == tool {
			return true
		}
		if strings.HasPrefix(tool, entry+remotetool.Separator) {
			return true
		}
	}
	return false
}

// Filter returns the definitions the agent type is allowed to use.
func (c *Catalog) Filter(t models.AgentType, defs []tools.Definition) []tools.Definition {
	if len(c.ProfileFor(t).AllowedTools) == 0 {
		return defs
	}
	out := make([]tools.Definition, 0, len(defs))
	for _, d := range defs {
		if c.Allows(t, d.Name) {
			out = append(out, d)
		}
	}
	return out
}
