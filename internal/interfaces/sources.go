package interfaces

import (
	"github.com/ternarybob/aerofleet/internal/models"
)

// SourceCatalog expands the embedded source templates into concrete URLs.
// The catalog is data (embedded YAML), so adding a fleet database is a
// template edit, not a code change.
type SourceCatalog interface {
	// DiscoverySources returns fleet-listing URLs for the airline name,
	// ordered by priority.
	DiscoverySources(airlineName string) []models.DiscoverySource

	// DetailSources returns per-registration detail URLs, ordered by
	// priority.
	DetailSources(registration string) []models.DiscoverySource
}
