package models

import "time"

// FetchOptions tunes one page fetch.
type FetchOptions struct {
	Timeout     time.Duration // zero takes the loader default
	BypassCache bool          // skip the page cache both ways
}

// PageResult is a rendered page as returned by the page loader.
type PageResult struct {
	URL        string `json:"url"`
	FinalURL   string `json:"final_url"` // after redirects
	HTTPStatus int    `json:"http_status"`
	Title      string `json:"title"`
	HTML       string `json:"html"`
}

// CachedPage is the page-cache entry for one URL. Expiry is enforced by
// the store's entry TTL, not by readers.
type CachedPage struct {
	URL        string    `json:"url"`
	FinalURL   string    `json:"final_url"`
	HTTPStatus int       `json:"http_status"`
	Title      string    `json:"title"`
	HTML       string    `json:"html"`
	FetchedAt  time.Time `json:"fetched_at"`
}
