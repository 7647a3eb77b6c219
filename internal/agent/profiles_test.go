package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loomhq/loom/internal/tools"
	"github.com/loomhq/loom/pkg/models"
)

func TestDefaultCatalogProfiles(t *testing.T) {
	c := DefaultCatalog()

	p := c.ProfileFor(models.AgentTypeResearcher)
	if !strings.Contains(p.Description, "research") {
		t.Errorf("researcher profile = %q", p.Description)
	}
	if len(p.AllowedTools) != 0 {
		t.Errorf("default profiles should allow all tools, got %v", p.AllowedTools)
	}

	fallback := c.ProfileFor(models.AgentType("archaeologist"))
	if !strings.Contains(fallback.Description, "generalist") {
		t.Errorf("unknown type should fall back to generalist, got %q", fallback.Description)
	}
}

func TestCatalogAllows(t *testing.T) {
	c := &Catalog{profiles: map[models.AgentType]Profile{
		models.AgentTypeResearcher: {
			Description:  "restricted researcher",
			AllowedTools: []string{"current_time", "search"},
		},
	}}

	tests := []struct {
		agentType models.AgentType
		tool      string
		want      bool
	}{
		{models.AgentTypeResearcher, "current_time", true},
		{models.AgentTypeResearcher, "search__lookup", true},
		{models.AgentTypeResearcher, "search__fetch", true},
		{models.AgentTypeResearcher, "scratchpad", false},
		{models.AgentTypeResearcher, "other__lookup", false},
		// No allow-list means everything is allowed.
		{models.AgentTypeWriter, "scratchpad", true},
		{models.AgentTypeWriter, "other__lookup", true},
	}
	for _, tt := range tests {
		if got := c.Allows(tt.agentType, tt.tool); got != tt.want {
			t.Errorf("Allows(%s, %q) = %v, want %v", tt.agentType, tt.tool, got, tt.want)
		}
	}
}

func TestCatalogFilter(t *testing.T) {
	c := &Catalog{profiles: map[models.AgentType]Profile{
		models.AgentTypeWriter: {
			Description:  "writer",
			AllowedTools: []string{"scratchpad"},
		},
	}}
	defs := []tools.Definition{
		{Name: "current_time"},
		{Name: "scratchpad"},
		{Name: "search__lookup"},
	}

	got := c.Filter(models.AgentTypeWriter, defs)
	if len(got) != 1 || got[0].Name != "scratchpad" {
		t.Errorf("Filter = %v", got)
	}

	// A type with no allow-list keeps the full catalog.
	if got := c.Filter(models.AgentTypeCoder, defs); len(got) != len(defs) {
		t.Errorf("unrestricted Filter dropped tools: %v", got)
	}
}

func TestLoadCatalogMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `profiles:
  researcher:
    allowed_tools: [search, current_time]
  coder:
    description: You write embedded firmware in C.
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	// Researcher kept its default description but gained a restriction.
	researcher := c.ProfileFor(models.AgentTypeResearcher)
	if !strings.Contains(researcher.Description, "research") {
		t.Errorf("researcher description = %q", researcher.Description)
	}
	if !c.Allows(models.AgentTypeResearcher, "search__lookup") || c.Allows(models.AgentTypeResearcher, "scratchpad") {
		t.Error("researcher allow-list not applied")
	}

	// Coder got a new description and stays unrestricted.
	coder := c.ProfileFor(models.AgentTypeCoder)
	if !strings.Contains(coder.Description, "firmware") {
		t.Errorf("coder description = %q", coder.Description)
	}
	if !c.Allows(models.AgentTypeCoder, "anything") {
		t.Error("coder should be unrestricted")
	}

	// Untouched types keep their defaults.
	if !strings.Contains(c.ProfileFor(models.AgentTypeWriter).Description, "writer") {
		t.Error("writer default lost")
	}
}

func TestLoadCatalogRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `profiles:
  researcher:
    alowed_tools: [search]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Error("expected error for misspelled field")
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
