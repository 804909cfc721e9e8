package interfaces

import (
	"github.com/ternarybob/aerofleet/internal/models"
)

// ExtractionAuditor keeps a local queryable log of extractor calls for
// diagnostics. Implementations must be safe for concurrent use and must
// never let an audit failure disturb extraction itself.
type ExtractionAuditor interface {
	// Record stores one call record. Failures are logged and swallowed.
	Record(record models.ExtractionRecord)

	// Recent returns up to limit records, newest first.
	Recent(limit int) ([]models.ExtractionRecord, error)

	// Close flushes and closes the store.
	Close() error
}
