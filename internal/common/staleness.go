package common

import (
	"fmt"
	"time"
)

// StalenessResult contains the result of a staleness check.
type StalenessResult struct {
	// IsStale indicates whether the airline is due for a re-scrape.
	IsStale bool
	// NextCheckTime is when the airline next becomes due. Zero when the
	// airline is already stale.
	NextCheckTime time.Time
	// Reason provides a human-readable explanation for the decision.
	Reason string
}

// CheckAirlineStaleness decides whether an airline's fleet data is old
// enough to re-scrape. Airlines that have never been scraped are always
// stale; otherwise the age of last_scraped_at is compared to staleAfter.
//
// Bulk selection happens in SQL; this helper gives the scheduler a
// per-airline explanation for its enqueue log.
func CheckAirlineStaleness(lastScrapedAt *time.Time, now time.Time, staleAfter time.Duration) StalenessResult {
	if lastScrapedAt == nil || lastScrapedAt.IsZero() {
		return StalenessResult{
			IsStale: true,
			Reason:  "never scraped",
		}
	}

	scraped := lastScrapedAt.UTC()
	now = now.UTC()
	age := now.Sub(scraped)

	if age >= staleAfter {
		return StalenessResult{
			IsStale: true,
			Reason: fmt.Sprintf("last scraped %s ago (threshold %s)",
				age.Round(time.Minute), staleAfter),
		}
	}

	due := scraped.Add(staleAfter)
	return StalenessResult{
		IsStale:       false,
		NextCheckTime: due,
		Reason: fmt.Sprintf("scraped %s ago, due again at %s",
			age.Round(time.Minute), due.Format("2006-01-02 15:04 MST")),
	}
}
