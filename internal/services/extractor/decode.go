package extractor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/aerofleet/internal/models"
)

// fencePattern matches a reply that is a single markdown code block.
var fencePattern = regexp.MustCompile(`(?s)^\s*` + "```" + `(?:json|JSON)?\s*\n?(.*?)\n?\s*` + "```" + `\s*$`)

// stripMarkdownFences removes markdown code fences from a model reply.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)

	if matches := fencePattern.FindStringSubmatch(s); len(matches) > 1 {
		s = matches[1]
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// decodeJSON unmarshals the JSON payload of a model reply into out.
// Models often wrap the payload in fences or lead-in prose, so the
// reply is cut down to its first object or array before decoding. A
// reply with no parseable JSON yields models.ErrExtractorFailure.
func decodeJSON(reply string, out interface{}) error {
	cleaned := stripMarkdownFences(reply)

	start := strings.IndexAny(cleaned, "{[")
	if start < 0 {
		return fmt.Errorf("%w: reply contains no JSON", models.ErrExtractorFailure)
	}

	end := strings.LastIndex(cleaned, "}")
	if cleaned[start] == '[' {
		end = strings.LastIndex(cleaned, "]")
	}
	if end <= start {
		return fmt.Errorf("%w: reply contains no JSON", models.ErrExtractorFailure)
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err != nil {
		return fmt.Errorf("%w: %v", models.ErrExtractorFailure, err)
	}
	return nil
}
