package common

import (
	"testing"
	"time"
)

func TestCheckAirlineStaleness(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	staleAfter := 7 * 24 * time.Hour

	tests := []struct {
		name          string
		lastScrapedAt *time.Time
		wantStale     bool
	}{
		{"never scraped", nil, true},
		{"zero timestamp", &time.Time{}, true},
		{"scraped yesterday", timePtr(now.Add(-24 * time.Hour)), false},
		{"scraped exactly at threshold", timePtr(now.Add(-7 * 24 * time.Hour)), true},
		{"scraped eight days ago", timePtr(now.Add(-8 * 24 * time.Hour)), true},
		{"scraped just now", timePtr(now), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckAirlineStaleness(tt.lastScrapedAt, now, staleAfter)
			if result.IsStale != tt.wantStale {
				t.Errorf("IsStale = %v, want %v (reason: %s)", result.IsStale, tt.wantStale, result.Reason)
			}
			if result.Reason == "" {
				t.Error("Reason should never be empty")
			}
		})
	}
}

func TestCheckAirlineStalenessNextCheck(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	scraped := now.Add(-2 * 24 * time.Hour)
	staleAfter := 7 * 24 * time.Hour

	result := CheckAirlineStaleness(&scraped, now, staleAfter)
	if result.IsStale {
		t.Fatalf("airline scraped 2 days ago should not be stale: %s", result.Reason)
	}

	wantDue := scraped.Add(staleAfter)
	if !result.NextCheckTime.Equal(wantDue) {
		t.Errorf("NextCheckTime = %v, want %v", result.NextCheckTime, wantDue)
	}
}

func TestCheckAirlineStalenessNeverScrapedHasNoNextCheck(t *testing.T) {
	result := CheckAirlineStaleness(nil, time.Now(), 7*24*time.Hour)
	if !result.NextCheckTime.IsZero() {
		t.Errorf("NextCheckTime for a stale airline should be zero, got %v", result.NextCheckTime)
	}
	if result.Reason != "never scraped" {
		t.Errorf("Reason = %q, want %q", result.Reason, "never scraped")
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
