package details

import (
	"time"

	"github.com/ternarybob/aerofleet/internal/models"
)

// contribution is one record feeding the merge: the seeded existing
// aircraft or one source's extracted partial, tagged with where it came
// from.
type contribution struct {
	details *models.AircraftDetails
	source  string
}

// mergeDetails folds the optional seed and the source partials (already
// in priority order) into one candidate record.
//
// Scalars take the first non-empty value in merge order, seed first, so
// MSN is sticky once stored. Status is the exception: a non-Unknown
// partial overrides the seed. Seat configurations are kept whole, the
// most complete one winning. LastFlightDate takes the most recent value.
func mergeDetails(registration string, seed *contribution, partials []contribution) *models.AircraftDetails {
	merged := &models.AircraftDetails{
		Registration: registration,
		Status:       models.StatusUnknown,
	}

	ordered := make([]contribution, 0, len(partials)+1)
	if seed != nil {
		ordered = append(ordered, *seed)
	}
	ordered = append(ordered, partials...)

	for _, c := range ordered {
		d := c.details
		if merged.AircraftType == "" && d.AircraftType != "" {
			merged.AircraftType = d.AircraftType
		}
		if merged.Manufacturer == "" && d.Manufacturer != "" {
			merged.Manufacturer = d.Manufacturer
		}
		if merged.Model == "" && d.Model != "" {
			merged.Model = d.Model
		}
		if merged.MSN == "" && d.MSN != "" {
			merged.MSN = d.MSN
		}
		if merged.DeliveryDate == nil && d.DeliveryDate != nil {
			t := *d.DeliveryDate
			merged.DeliveryDate = &t
		}
		if merged.AgeYears == nil && d.AgeYears != nil {
			v := *d.AgeYears
			merged.AgeYears = &v
		}
		if merged.CurrentLocation == "" && d.CurrentLocation != "" {
			merged.CurrentLocation = d.CurrentLocation
		}
		if merged.Engines == "" && d.Engines != "" {
			merged.Engines = d.Engines
		}
		if d.LastFlightDate != nil && (merged.LastFlightDate == nil || d.LastFlightDate.After(*merged.LastFlightDate)) {
			t := *d.LastFlightDate
			merged.LastFlightDate = &t
		}
		if d.SeatConfig.PopulatedFields() > merged.SeatConfig.PopulatedFields() {
			merged.SeatConfig = cloneSeatConfig(d.SeatConfig)
		}
		merged.DataSources = appendSource(merged.DataSources, c.source)
	}

	merged.Status = mergeStatus(seed, partials)

	if merged.AgeYears == nil && merged.DeliveryDate != nil {
		age := time.Now().UTC().Year() - merged.DeliveryDate.Year()
		merged.AgeYears = &age
	}

	return merged
}

// mergeStatus picks the candidate status: the first non-Unknown partial
// wins over the seed; the seed's status is the fallback.
func mergeStatus(seed *contribution, partials []contribution) models.AircraftStatus {
	status := models.StatusUnknown
	if seed != nil && seed.details.Status != "" {
		status = seed.details.Status
	}
	for _, c := range partials {
		if c.details.Status != "" && c.details.Status != models.StatusUnknown {
			return c.details.Status
		}
	}
	return status
}

// detailsConfidence scores the merged record: up to 0.3 for source
// corroboration plus per-field bonuses, clamped to 1.0. sourceCount is
// the seed (when present) plus each productive source partial.
func detailsConfidence(d *models.AircraftDetails, sourceCount int) float64 {
	confidence := 0.15 * float64(min(sourceCount, 2))
	if d.AircraftType != "" {
		confidence += 0.15
	}
	if d.Manufacturer != "" {
		confidence += 0.1
	}
	if d.Model != "" {
		confidence += 0.1
	}
	if d.MSN != "" {
		confidence += 0.15
	}
	if d.DeliveryDate != nil {
		confidence += 0.1
	}
	if d.SeatConfig.PopulatedFields() > 0 {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func cloneSeatConfig(s *models.SeatConfiguration) *models.SeatConfiguration {
	if s == nil {
		return nil
	}
	clone := &models.SeatConfiguration{}
	if s.First != nil {
		v := *s.First
		clone.First = &v
	}
	if s.Business != nil {
		v := *s.Business
		clone.Business = &v
	}
	if s.PremiumEconomy != nil {
		v := *s.PremiumEconomy
		clone.PremiumEconomy = &v
	}
	if s.Economy != nil {
		v := *s.Economy
		clone.Economy = &v
	}
	if s.Total != nil {
		v := *s.Total
		clone.Total = &v
	}
	return clone
}

func appendSource(sources []string, source string) []string {
	if source == "" {
		return sources
	}
	for _, s := range sources {
		if s == source {
			return sources
		}
	}
	return append(sources, source)
}
