package models

import "time"

// WorkflowOptions tunes one full-update run.
type WorkflowOptions struct {
	ForceFullScrape bool // refetch every source, bypassing the page cache
	DryRun          bool // run all phases but persist nothing
}

// WorkflowDetails is the per-phase narrative attached to a result.
type WorkflowDetails struct {
	Discovery  string   `json:"discovery"`
	Processing []string `json:"processing"`
	Errors     []string `json:"errors"`
}

// WorkflowResult summarises one full fleet update.
// Found counts discovered registrations; added+updated+skipped accounts
// for every one of them; errors counts per-aircraft failures that were
// logged and dropped.
type WorkflowResult struct {
	AirlineCode     string          `json:"airline_code"`
	AircraftFound   int             `json:"aircraft_found"`
	AircraftAdded   int             `json:"aircraft_added"`
	AircraftUpdated int             `json:"aircraft_updated"`
	AircraftSkipped int             `json:"aircraft_skipped"`
	Errors          int             `json:"errors"`
	DurationMS      int64           `json:"duration_ms"`
	ConfidenceAvg   float64         `json:"confidence_avg"`
	Details         WorkflowDetails `json:"details"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     time.Time       `json:"completed_at"`
}

// Counters folds the result into the queue's completion tally.
func (r *WorkflowResult) Counters() JobCounters {
	return JobCounters{
		Discovered: r.AircraftFound,
		New:        r.AircraftAdded,
		Updated:    r.AircraftUpdated,
		Errors:     r.Errors,
	}
}
