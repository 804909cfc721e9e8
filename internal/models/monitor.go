package models

import "time"

// QueueHealth is the windowed queue view served by monitoring.
type QueueHealth struct {
	Pending        int     `json:"pending"`
	Running        int     `json:"running"`
	Completed24h   int     `json:"completed_24h"`
	Failed24h      int     `json:"failed_24h"`
	Total7d        int     `json:"total_7d"`
	AvgDurationSec float64 `json:"avg_duration_seconds"`
}

// AirlineCoverage reports how current the catalog is across enabled
// airlines. Stale means last scraped more than thirty days ago.
type AirlineCoverage struct {
	Total        int `json:"total"`
	Scraped      int `json:"scraped"`
	NeverScraped int `json:"never_scraped"`
	Stale        int `json:"stale"`
}

// DataQuality buckets aircraft by confidence score: high >= 0.8,
// medium >= 0.5, low > 0, unscored otherwise.
type DataQuality struct {
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Unscored int `json:"unscored"`
}

// MonitorSnapshot is the full read-only status view.
type MonitorSnapshot struct {
	Queue       QueueHealth     `json:"queue"`
	RecentJobs  []*ScrapingJob  `json:"recent_jobs"`
	Coverage    AirlineCoverage `json:"coverage"`
	Quality     DataQuality     `json:"quality"`
	GeneratedAt time.Time       `json:"generated_at"`
}
