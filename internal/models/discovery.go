package models

import "time"

// SourceType classifies where a discovery source comes from. Official
// sources (the airline itself) outrank third-party fleet databases.
type SourceType string

const (
	SourceTypeOfficial SourceType = "official"
	SourceTypeDatabase SourceType = "database"
	SourceTypeTracker  SourceType = "tracker"
	SourceTypeNone     SourceType = "none"
)

// DiscoverySource is one candidate URL for fleet discovery, tried in
// ascending priority order.
type DiscoverySource struct {
	URL      string     `json:"url"`
	Type     SourceType `json:"type"`
	Priority int        `json:"priority"`
}

// DiscoveryOptions tunes a single discovery run.
type DiscoveryOptions struct {
	ForceFullScrape bool              // bypass the page cache
	Sources         []DiscoverySource // non-nil replaces the default source list entirely
}

// DiscoveryResult is the outcome of fleet discovery for one airline.
// Method names the type of the source that produced the registrations;
// "none" means every source came up empty.
type DiscoveryResult struct {
	AirlineCode   string     `json:"airline_code"`
	Registrations []string   `json:"registrations"`
	SourceURLs    []string   `json:"source_urls"`
	Confidence    float64    `json:"confidence"` // 0..1
	Method        SourceType `json:"method"`
	DiscoveredAt  time.Time  `json:"discovered_at"`
}
