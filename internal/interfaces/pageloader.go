package interfaces

import (
	"context"

	"github.com/ternarybob/aerofleet/internal/models"
)

// PageLoader fetches URLs through a pooled headless browser and returns
// the rendered page. Implementations consult the page cache unless the
// caller bypasses it.
type PageLoader interface {
	// Fetch loads url and returns the rendered HTML, final URL, title and
	// HTTP status. Navigation failures, timeouts, HTTP error statuses and
	// empty documents come back wrapped in models.ErrSourceUnavailable.
	Fetch(ctx context.Context, url string, opts models.FetchOptions) (*models.PageResult, error)

	// Close shuts down the browser pool.
	Close() error
}
