package interfaces

import (
	"context"

	"github.com/ternarybob/aerofleet/internal/models"
)

// Extractor turns prepared page content into structured data through an
// LLM provider. Prompts embed the expected JSON shape; the implementation
// tolerates fenced or prose-wrapped replies.
type Extractor interface {
	// ExtractJSON sends the prompt and unmarshals the reply into out.
	// A reply with no parseable JSON yields models.ErrExtractorFailure.
	ExtractJSON(ctx context.Context, prompt string, opts models.ExtractOptions, out interface{}) error

	// Provider identifies the backing provider ("claude" or "gemini") for
	// logs and audit records.
	Provider() string
}
