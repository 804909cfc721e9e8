package pageloader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/models"
)

// newTestLoader builds a Loader around an uninitialized pool so tests
// can exercise the cache and limiter paths without a real browser.
func newTestLoader(cache *fakeCache, perHostDelay time.Duration) *Loader {
	logger := arbor.NewLogger()
	return &Loader{
		pool:           NewBrowserPool(common.BrowserConfig{MaxInstances: 1}, logger),
		cache:          cache,
		limiters:       make(map[string]*rate.Limiter),
		perHostDelay:   perHostDelay,
		defaultTimeout: time.Second,
		settle:         time.Millisecond,
		logger:         logger,
	}
}

func TestFetch_CacheHit(t *testing.T) {
	cache := &fakeCache{pages: map[string]*models.CachedPage{
		"https://example.com/fleet": {
			URL:        "https://example.com/fleet",
			FinalURL:   "https://example.com/fleet/",
			HTTPStatus: 200,
			Title:      "Fleet",
			HTML:       "<html><body>VH-ABC</body></html>",
			FetchedAt:  time.Now().UTC(),
		},
	}}
	loader := newTestLoader(cache, 0)

	result, err := loader.Fetch(context.Background(), "https://example.com/fleet", models.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/fleet/", result.FinalURL)
	assert.Equal(t, 200, result.HTTPStatus)
	assert.Equal(t, "Fleet", result.Title)
	assert.Contains(t, result.HTML, "VH-ABC")
	assert.Equal(t, 0, cache.sets, "cache hit must not rewrite the entry")
}

func TestFetch_BypassCacheSkipsLookup(t *testing.T) {
	cache := &fakeCache{pages: map[string]*models.CachedPage{
		"https://example.com/fleet": {URL: "https://example.com/fleet", HTML: "<html></html>"},
	}}
	loader := newTestLoader(cache, 0)

	// The pool is uninitialized, so reaching it proves the cache was
	// skipped on the way in.
	_, err := loader.Fetch(context.Background(), "https://example.com/fleet", models.FetchOptions{BypassCache: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
	assert.Equal(t, 0, cache.gets)
}

func TestHostKey(t *testing.T) {
	assert.Equal(t, "www.planespotters.net", hostKey("https://Www.PlaneSpotters.net/airline/qantas"))
	assert.Equal(t, "example.com:8080", hostKey("http://example.com:8080/fleet"))
	assert.Equal(t, "unknown", hostKey("not-a-url"))
	assert.Equal(t, "unknown", hostKey(""))
}

func TestHostLimiter_ReusedPerHost(t *testing.T) {
	loader := newTestLoader(&fakeCache{}, time.Second)

	first := loader.hostLimiter("example.com")
	second := loader.hostLimiter("example.com")
	other := loader.hostLimiter("other.com")

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
}

func TestWaitForHost_CancelledContext(t *testing.T) {
	loader := newTestLoader(&fakeCache{}, time.Hour)

	// First request rides the burst allowance.
	err := loader.waitForHost(context.Background(), "https://example.com/a")
	require.NoError(t, err)

	// Second request would wait an hour; the context gives up first.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = loader.waitForHost(ctx, "https://example.com/b")
	require.Error(t, err)
}

// fakeCache is an in-memory PageCache that counts operations.
type fakeCache struct {
	pages map[string]*models.CachedPage
	gets  int
	sets  int
}

func (f *fakeCache) Get(url string) (*models.CachedPage, error) {
	f.gets++
	return f.pages[url], nil
}

func (f *fakeCache) Set(page *models.CachedPage) error {
	f.sets++
	if f.pages == nil {
		f.pages = make(map[string]*models.CachedPage)
	}
	f.pages[page.URL] = page
	return nil
}

func (f *fakeCache) Close() error {
	return nil
}
