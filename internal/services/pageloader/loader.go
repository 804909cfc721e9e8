// Package pageloader renders source pages through a pooled headless
// browser with per-host rate limiting and a TTL cache in front.
package pageloader

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

// Loader implements interfaces.PageLoader on top of the browser pool.
type Loader struct {
	pool           *BrowserPool
	cache          interfaces.PageCache
	limiters       map[string]*rate.Limiter
	limitersMu     sync.Mutex
	perHostDelay   time.Duration
	defaultTimeout time.Duration
	settle         time.Duration
	logger         arbor.ILogger
}

// NewLoader builds the browser pool and returns a ready page loader.
func NewLoader(browserCfg common.BrowserConfig, scraperCfg common.ScraperConfig, cache interfaces.PageCache, logger arbor.ILogger) (interfaces.PageLoader, error) {
	pool := NewBrowserPool(browserCfg, logger)
	if err := pool.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize browser pool: %w", err)
	}

	return &Loader{
		pool:           pool,
		cache:          cache,
		limiters:       make(map[string]*rate.Limiter),
		perHostDelay:   scraperCfg.RateLimit(),
		defaultTimeout: scraperCfg.SourceTimeout(),
		settle:         browserCfg.PageSettle(),
		logger:         logger,
	}, nil
}

// Fetch loads url through the cache, the per-host limiter and the
// browser pool, in that order.
func (l *Loader) Fetch(ctx context.Context, pageURL string, opts models.FetchOptions) (*models.PageResult, error) {
	if !opts.BypassCache {
		cached, err := l.cache.Get(pageURL)
		if err != nil {
			l.logger.Warn().Err(err).Str("url", pageURL).Msg("Page cache read failed")
		}
		if cached != nil {
			l.logger.Debug().
				Str("url", pageURL).
				Str("fetched_at", cached.FetchedAt.Format(time.RFC3339)).
				Msg("Page cache hit")
			return &models.PageResult{
				URL:        cached.URL,
				FinalURL:   cached.FinalURL,
				HTTPStatus: cached.HTTPStatus,
				Title:      cached.Title,
				HTML:       cached.HTML,
			}, nil
		}
	}

	if err := l.waitForHost(ctx, pageURL); err != nil {
		return nil, err
	}

	browserCtx, release, err := l.pool.Get()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSourceUnavailable, err)
	}
	defer release()

	timeout := l.defaultTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	start := time.Now()
	result, err := l.render(browserCtx, pageURL, timeout)
	if err != nil {
		return nil, err
	}

	if result.HTTPStatus >= 400 {
		l.logger.Warn().
			Str("url", pageURL).
			Int("status", result.HTTPStatus).
			Msg("Source returned HTTP error status")
		return nil, fmt.Errorf("%w: %s returned HTTP %d", models.ErrSourceUnavailable, pageURL, result.HTTPStatus)
	}

	if !opts.BypassCache {
		cacheErr := l.cache.Set(&models.CachedPage{
			URL:        result.URL,
			FinalURL:   result.FinalURL,
			HTTPStatus: result.HTTPStatus,
			Title:      result.Title,
			HTML:       result.HTML,
			FetchedAt:  time.Now().UTC(),
		})
		if cacheErr != nil {
			l.logger.Warn().Err(cacheErr).Str("url", pageURL).Msg("Page cache write failed")
		}
	}

	l.logger.Debug().
		Str("url", pageURL).
		Int("status", result.HTTPStatus).
		Int("html_length", len(result.HTML)).
		Dur("duration", time.Since(start)).
		Msg("Page fetched")
	return result, nil
}

// render runs the navigation on a pooled browser context with its own
// deadline. Status comes from the performance API; pages that never
// report one count as 200.
func (l *Loader) render(browserCtx context.Context, pageURL string, timeout time.Duration) (*models.PageResult, error) {
	if err := browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("%w: browser context cancelled: %v", models.ErrSourceUnavailable, err)
	}

	tabCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var (
		htmlContent string
		finalURL    string
		title       string
		statusCode  int64 = 200
	)

	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.EmulateViewport(1920, 1080),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(l.settle),
		chromedp.Location(&finalURL),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &htmlContent),
		chromedp.Evaluate(`window.performance?.getEntriesByType?.('navigation')?.[0]?.responseStatus || 200`, &statusCode),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: navigation failed for %s: %v", models.ErrSourceUnavailable, pageURL, err)
	}
	if htmlContent == "" {
		return nil, fmt.Errorf("%w: %s returned an empty document", models.ErrSourceUnavailable, pageURL)
	}

	return &models.PageResult{
		URL:        pageURL,
		FinalURL:   finalURL,
		HTTPStatus: int(statusCode),
		Title:      title,
		HTML:       htmlContent,
	}, nil
}

// waitForHost blocks until the per-host limiter admits the request.
func (l *Loader) waitForHost(ctx context.Context, pageURL string) error {
	host := hostKey(pageURL)
	limiter := l.hostLimiter(host)
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled for %s: %w", host, err)
	}
	return nil
}

// hostLimiter returns the limiter for host, creating it on first use.
func (l *Loader) hostLimiter(host string) *rate.Limiter {
	l.limitersMu.Lock()
	defer l.limitersMu.Unlock()

	limiter, ok := l.limiters[host]
	if !ok {
		if l.perHostDelay > 0 {
			limiter = rate.NewLimiter(rate.Every(l.perHostDelay), 1)
		} else {
			limiter = rate.NewLimiter(rate.Inf, 1)
		}
		l.limiters[host] = limiter
	}
	return limiter
}

// hostKey normalizes a URL to its lowercase host for limiter lookup.
// Unparseable URLs share one bucket rather than escaping rate limits.
func hostKey(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return strings.ToLower(parsed.Host)
}

// Close shuts down the browser pool.
func (l *Loader) Close() error {
	return l.pool.Shutdown()
}
