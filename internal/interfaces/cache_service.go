// Package interfaces provides service interfaces for dependency injection.
package interfaces

import (
	"github.com/ternarybob/aerofleet/internal/models"
)

// PageCache is the TTL cache consulted by the page loader. Entries expire
// through the store's native TTL; readers never see stale pages.
type PageCache interface {
	// Get returns the cached page for url, or (nil, nil) on a miss
	// (including expiry).
	Get(url string) (*models.CachedPage, error)

	// Set stores the page under its URL with the configured TTL.
	Set(page *models.CachedPage) error

	// Close flushes and closes the store.
	Close() error
}
