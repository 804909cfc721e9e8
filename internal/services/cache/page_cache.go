// Package cache provides the TTL page cache consulted by the page loader.
// Entries expire through Badger's native TTL, so there is no sweeper.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

// PageCache stores rendered pages in Badger keyed by a hash of the URL.
type PageCache struct {
	db     *badger.DB
	ttl    time.Duration
	logger arbor.ILogger
}

// NewPageCache opens (or creates) the cache store at dir.
func NewPageCache(logger arbor.ILogger, dir string, ttl time.Duration) (interfaces.PageCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	options := badger.DefaultOptions(dir)
	options.Logger = nil // Disable default badger logger to use arbor

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open page cache: %w", err)
	}

	logger.Debug().Str("dir", dir).Str("ttl", ttl.String()).Msg("Page cache initialized")

	return &PageCache{
		db:     db,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Get returns the cached page for url, or (nil, nil) on a miss. Expired
// entries surface as misses.
func (c *PageCache) Get(url string) (*models.CachedPage, error) {
	var page models.CachedPage
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(url))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &page)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read page cache: %w", err)
	}
	return &page, nil
}

// Set stores the page under its URL with the configured TTL.
func (c *PageCache) Set(page *models.CachedPage) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to marshal cached page: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(cacheKey(page.URL), data).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to write page cache: %w", err)
	}
	return nil
}

// Close closes the underlying store.
func (c *PageCache) Close() error {
	return c.db.Close()
}

// cacheKey hashes the URL so arbitrarily long URLs map to fixed-size keys.
func cacheKey(url string) []byte {
	sum := sha256.Sum256([]byte(url))
	return []byte("page:" + hex.EncodeToString(sum[:]))
}

// NullPageCache is a no-op implementation of PageCache used when caching
// is disabled.
type NullPageCache struct{}

// NewNullPageCache creates a new null page cache
func NewNullPageCache() *NullPageCache {
	return &NullPageCache{}
}

// Get always misses (no-op)
func (c *NullPageCache) Get(url string) (*models.CachedPage, error) {
	return nil, nil
}

// Set does nothing (no-op)
func (c *NullPageCache) Set(page *models.CachedPage) error {
	return nil
}

// Close does nothing (no-op)
func (c *NullPageCache) Close() error {
	return nil
}
