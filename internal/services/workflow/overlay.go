package workflow

import (
	"github.com/ternarybob/aerofleet/internal/models"
)

// applyRecommended produces the effective record for persistence: the
// candidate with validation's recommended values overlaid and the
// confidence score replaced by the verdict's. The candidate itself is
// never mutated.
func applyRecommended(candidate *models.AircraftDetails, verdict *models.ValidationResult) *models.AircraftDetails {
	effective := *candidate
	if candidate.SeatConfig != nil {
		seats := *candidate.SeatConfig
		effective.SeatConfig = &seats
	}
	if candidate.DataSources != nil {
		effective.DataSources = append([]string(nil), candidate.DataSources...)
	}
	effective.ConfidenceScore = verdict.ConfidenceScore

	for field, value := range verdict.RecommendedValues {
		switch field {
		case "manufacturer_serial_number":
			if s, ok := value.(string); ok && s != "" {
				effective.MSN = s
			}
		case "manufacturer":
			if s, ok := value.(string); ok && s != "" {
				effective.Manufacturer = s
			}
		case "status":
			if s, ok := value.(string); ok && s != "" {
				effective.Status = models.AircraftStatus(s)
			}
		case "age_years":
			if n, ok := asInt(value); ok {
				age := n
				effective.AgeYears = &age
			}
		case "seat_configuration":
			if n, ok := asInt(value); ok && effective.SeatConfig != nil {
				total := n
				effective.SeatConfig.Total = &total
			}
		}
	}
	return &effective
}

// asInt widens the numeric shapes a suggested value can arrive in. The
// semantic pass decodes JSON, so float64 shows up alongside native ints.
func asInt(value interface{}) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
