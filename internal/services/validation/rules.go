package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/aerofleet/internal/models"
)

// Powered flight starts in 1903; anything earlier is a parse artifact.
var earliestDelivery = time.Date(1903, time.January, 1, 0, 0, 0, 0, time.UTC)

// formatIssues checks field shapes: registration format, date sanity and
// seat arithmetic.
func formatIssues(candidate *models.AircraftDetails, now time.Time) []models.ValidationIssue {
	var issues []models.ValidationIssue

	if candidate.Registration == "" || !models.ValidRegistrationFormat(candidate.Registration) {
		issues = append(issues, models.ValidationIssue{
			Field:    "registration",
			Severity: models.SeverityError,
			Message:  fmt.Sprintf("registration %q does not match any known national format", candidate.Registration),
		})
	}

	if candidate.DeliveryDate != nil {
		if candidate.DeliveryDate.After(now) {
			issues = append(issues, models.ValidationIssue{
				Field:    "delivery_date",
				Severity: models.SeverityWarning,
				Message:  fmt.Sprintf("delivery date %s is in the future", candidate.DeliveryDate.Format("2006-01-02")),
			})
		}
		if candidate.DeliveryDate.Before(earliestDelivery) {
			issues = append(issues, models.ValidationIssue{
				Field:    "delivery_date",
				Severity: models.SeverityError,
				Message:  fmt.Sprintf("delivery date %s predates powered flight", candidate.DeliveryDate.Format("2006-01-02")),
			})
		}
	}

	if sum, any := candidate.SeatConfig.CabinSum(); any && candidate.SeatConfig.Total != nil && sum != *candidate.SeatConfig.Total {
		issues = append(issues, models.ValidationIssue{
			Field:          "seat_configuration",
			Severity:       models.SeverityWarning,
			Message:        fmt.Sprintf("cabin counts sum to %d but total says %d", sum, *candidate.SeatConfig.Total),
			SuggestedValue: sum,
		})
	}
	if candidate.SeatConfig != nil && candidate.SeatConfig.Total != nil && *candidate.SeatConfig.Total > 1000 {
		issues = append(issues, models.ValidationIssue{
			Field:    "seat_configuration",
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("total of %d seats exceeds any flying airframe", *candidate.SeatConfig.Total),
		})
	}

	return issues
}

// logicIssues checks internal consistency between fields.
func logicIssues(candidate *models.AircraftDetails, now time.Time) []models.ValidationIssue {
	var issues []models.ValidationIssue

	if candidate.LastFlightDate != nil && candidate.DeliveryDate != nil &&
		candidate.LastFlightDate.Before(*candidate.DeliveryDate) {
		issues = append(issues, models.ValidationIssue{
			Field:    "last_flight_date",
			Severity: models.SeverityError,
			Message: fmt.Sprintf("last flight %s predates delivery %s",
				candidate.LastFlightDate.Format("2006-01-02"),
				candidate.DeliveryDate.Format("2006-01-02")),
		})
	}

	if candidate.AgeYears != nil && candidate.DeliveryDate != nil {
		expected := now.Year() - candidate.DeliveryDate.Year()
		diff := *candidate.AgeYears - expected
		if diff < -1 || diff > 1 {
			issues = append(issues, models.ValidationIssue{
				Field:          "age_years",
				Severity:       models.SeverityWarning,
				Message:        fmt.Sprintf("age %d does not match delivery year %d", *candidate.AgeYears, candidate.DeliveryDate.Year()),
				SuggestedValue: expected,
			})
		}
	}

	if !candidate.Status.Valid() {
		issues = append(issues, models.ValidationIssue{
			Field:          "status",
			Severity:       models.SeverityWarning,
			Message:        fmt.Sprintf("status %q is not a recognised state", string(candidate.Status)),
			SuggestedValue: string(models.StatusUnknown),
		})
	}

	return issues
}

// crossReferenceIssues compares the candidate against the stored record.
func crossReferenceIssues(candidate, existing *models.AircraftDetails) []models.ValidationIssue {
	if existing == nil {
		return nil
	}
	var issues []models.ValidationIssue

	if existing.MSN != "" && candidate.MSN != "" && candidate.MSN != existing.MSN {
		issues = append(issues, models.ValidationIssue{
			Field:          "manufacturer_serial_number",
			Severity:       models.SeverityError,
			Message:        fmt.Sprintf("MSN changed from %s to %s; serial numbers are immutable", existing.MSN, candidate.MSN),
			SuggestedValue: existing.MSN,
		})
	}

	if existing.DeliveryDate != nil && candidate.DeliveryDate != nil &&
		!existing.DeliveryDate.Equal(*candidate.DeliveryDate) {
		issues = append(issues, models.ValidationIssue{
			Field:    "delivery_date",
			Severity: models.SeverityWarning,
			Message: fmt.Sprintf("delivery date changed from %s to %s",
				existing.DeliveryDate.Format("2006-01-02"),
				candidate.DeliveryDate.Format("2006-01-02")),
		})
	}

	if existing.ConfidenceScore-candidate.ConfidenceScore > 0.2 {
		issues = append(issues, models.ValidationIssue{
			Field:    "confidence_score",
			Severity: models.SeverityInfo,
			Message: fmt.Sprintf("confidence dropped from %.2f to %.2f",
				existing.ConfidenceScore, candidate.ConfidenceScore),
		})
	}

	return issues
}

// typeSpecIssues checks the candidate against its reference type row.
// A nil spec means the stated type code is unknown to the catalog.
func typeSpecIssues(candidate *models.AircraftDetails, spec *models.AircraftType) []models.ValidationIssue {
	var issues []models.ValidationIssue

	if spec == nil {
		issues = append(issues, models.ValidationIssue{
			Field:    "aircraft_type",
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("aircraft type %q is not in the reference catalog", candidate.AircraftType),
		})
		return issues
	}

	if candidate.Manufacturer != "" && spec.Manufacturer != "" &&
		!strings.EqualFold(candidate.Manufacturer, spec.Manufacturer) {
		issues = append(issues, models.ValidationIssue{
			Field:          "manufacturer",
			Severity:       models.SeverityWarning,
			Message:        fmt.Sprintf("manufacturer %q disagrees with type %s built by %s", candidate.Manufacturer, candidate.AircraftType, spec.Manufacturer),
			SuggestedValue: spec.Manufacturer,
		})
	}

	if candidate.SeatConfig != nil && candidate.SeatConfig.Total != nil &&
		spec.TypicalSeats > 0 && spec.MaxSeats > 0 {
		total := float64(*candidate.SeatConfig.Total)
		low := 0.7 * float64(spec.TypicalSeats)
		high := 1.1 * float64(spec.MaxSeats)
		if total < low || total > high {
			issues = append(issues, models.ValidationIssue{
				Field:    "seat_configuration",
				Severity: models.SeverityWarning,
				Message: fmt.Sprintf("%d seats is implausible for a %s (typical %d, max %d)",
					*candidate.SeatConfig.Total, candidate.AircraftType, spec.TypicalSeats, spec.MaxSeats),
			})
		}
	}

	return issues
}
