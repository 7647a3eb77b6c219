package agent

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/loomhq/loom/pkg/models"
)

// ExtractArtifacts pulls durable outputs from a worker's final response:
// fenced code blocks become code artifacts, and fenced blocks tagged json
// that actually parse become data artifacts.
func ExtractArtifacts(text string, now time.Time) []models.Artifact {
	var artifacts []models.Artifact
	rest := text
	for {
		start := strings.Index(rest, "```")
		if start < 0 {
			break
		}
		rest = rest[start+3:]

		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			break
		}
		lang := strings.TrimSpace(rest[:nl])
		rest = rest[nl+1:]

		end := strings.Index(rest, "```")
		if end < 0 {
			break
		}
		body := strings.TrimRight(rest[:end], "\n")
		rest = rest[end+3:]

		if strings.TrimSpace(body) == "" {
			continue
		}

		if strings.EqualFold(lang, "json") && json.Valid([]byte(body)) {
			artifacts = append(artifacts, models.Artifact{
				Type:      models.ArtifactData,
				Language:  "json",
				Content:   body,
				CreatedAt: now,
			})
			continue
		}
		artifacts = append(artifacts, models.Artifact{
			Type:      models.ArtifactCode,
			Language:  lang,
			Content:   body,
			CreatedAt: now,
		})
	}
	return artifacts
}
