package models

import "time"

// Airline is a carrier whose fleet the engine maintains. IATA and ICAO
// codes are unique case-insensitively; either may serve as the lookup key.
type Airline struct {
	ID                int64       `json:"id"`
	IATACode          string      `json:"iata_code"` // 2-3 chars, e.g. "BA"
	ICAOCode          string      `json:"icao_code"` // 3 chars, e.g. "BAW"
	Name              string      `json:"name"`
	Country           string      `json:"country,omitempty"`
	HubAirport        string      `json:"hub_airport,omitempty"`
	WebsiteURL        string      `json:"website_url,omitempty"`
	ScrapeEnabled     bool        `json:"scrape_enabled"`
	ScrapeSourceURLs  []SourceURL `json:"scrape_source_urls,omitempty"` // stored as jsonb, ordered by priority
	ScrapeCron        string      `json:"scrape_schedule_cron,omitempty"`
	FleetSizeEstimate int         `json:"fleet_size_estimate,omitempty"`
	LastScrapedAt     *time.Time  `json:"last_scraped_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// SourceURL is one curated discovery source attached to an airline row.
type SourceURL struct {
	URL      string `json:"url"`
	Priority int    `json:"priority"` // lower runs first
}
