package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aerofleet/internal/models"
)

func TestPageCache_RoundTrip(t *testing.T) {
	cache, err := NewPageCache(arbor.NewLogger(), t.TempDir(), time.Hour)
	require.NoError(t, err)
	defer cache.Close()

	// Miss on an empty cache
	page, err := cache.Get("https://example.com/fleet")
	require.NoError(t, err)
	assert.Nil(t, page)

	stored := &models.CachedPage{
		URL:        "https://example.com/fleet",
		FinalURL:   "https://example.com/fleet/",
		HTTPStatus: 200,
		Title:      "Our Fleet",
		HTML:       "<html><body><table><tr><td>VH-ABC</td></tr></table></body></html>",
		FetchedAt:  time.Now().UTC(),
	}
	require.NoError(t, cache.Set(stored))

	page, err = cache.Get("https://example.com/fleet")
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, stored.Title, page.Title)
	assert.Equal(t, stored.HTML, page.HTML)
	assert.Equal(t, stored.HTTPStatus, page.HTTPStatus)

	// Different URL is still a miss
	page, err = cache.Get("https://example.com/other")
	require.NoError(t, err)
	assert.Nil(t, page)
}

func TestPageCache_Expiry(t *testing.T) {
	cache, err := NewPageCache(arbor.NewLogger(), t.TempDir(), 50*time.Millisecond)
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Set(&models.CachedPage{
		URL:       "https://example.com/fleet",
		HTML:      "<html></html>",
		FetchedAt: time.Now().UTC(),
	}))

	// Present before the TTL elapses
	page, err := cache.Get("https://example.com/fleet")
	require.NoError(t, err)
	require.NotNil(t, page)

	time.Sleep(80 * time.Millisecond)

	// Expired entries read as misses
	page, err = cache.Get("https://example.com/fleet")
	require.NoError(t, err)
	assert.Nil(t, page)
}

func TestNullPageCache(t *testing.T) {
	cache := NewNullPageCache()

	require.NoError(t, cache.Set(&models.CachedPage{URL: "https://example.com"}))

	page, err := cache.Get("https://example.com")
	require.NoError(t, err)
	assert.Nil(t, page)
	assert.NoError(t, cache.Close())
}
