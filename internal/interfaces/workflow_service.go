package interfaces

import (
	"context"

	"github.com/ternarybob/aerofleet/internal/models"
)

// WorkflowService runs the four-phase fleet update for one airline:
// discovery, batched details collection, batched validation, sequential
// persistence. One call corresponds to one leased job.
type WorkflowService interface {
	// RunFullUpdate executes all phases and returns the aggregate result.
	// Empty discovery is a zero-result success. DryRun skips persistence
	// entirely; ForceFullScrape bypasses the page cache.
	RunFullUpdate(ctx context.Context, airlineCode string, opts models.WorkflowOptions) (*models.WorkflowResult, error)
}
