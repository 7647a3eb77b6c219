package agent

import (
	"testing"
	"time"

	"github.com/loomhq/loom/pkg/models"
)

func TestExtractArtifacts(t *testing.T) {
	now := time.Now()
	text := "Here is the function:\n\n```go\nfunc Add(a, b int) int { return a + b }\n```\n\nAnd the config:\n\n```json\n{\"retries\": 3}\n```\n\nDone."

	arts := ExtractArtifacts(text, now)
	if len(arts) != 2 {
		t.Fatalf("got %d artifacts, want 2", len(arts))
	}
	if arts[0].Type != models.ArtifactCode || arts[0].Language != "go" {
		t.Errorf("first artifact = %+v", arts[0])
	}
	if arts[1].Type != models.ArtifactData {
		t.Errorf("valid json block should be a data artifact: %+v", arts[1])
	}
}

func TestExtractArtifactsInvalidJSONIsCode(t *testing.T) {
	arts := ExtractArtifacts("```json\n{not valid json\n```", time.Now())
	if len(arts) != 1 || arts[0].Type != models.ArtifactCode {
		t.Errorf("invalid json should fall back to code: %+v", arts)
	}
}

func TestExtractArtifactsIgnoresEmptyAndUnclosed(t *testing.T) {
	if arts := ExtractArtifacts("```go\n\n```", time.Now()); len(arts) != 0 {
		t.Errorf("empty block extracted: %+v", arts)
	}
	if arts := ExtractArtifacts("```go\nfunc main() {}", time.Now()); len(arts) != 0 {
		t.Errorf("unclosed block extracted: %+v", arts)
	}
	if arts := ExtractArtifacts("no fences here", time.Now()); len(arts) != 0 {
		t.Errorf("plain text extracted: %+v", arts)
	}
}
