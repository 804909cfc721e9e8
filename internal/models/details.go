package models

import "time"

// SeatConfiguration is the per-cabin layout reported by a source. Nil
// fields were not mentioned by the source; zero means an explicit zero.
type SeatConfiguration struct {
	First          *int `json:"first,omitempty"`
	Business       *int `json:"business,omitempty"`
	PremiumEconomy *int `json:"premium_economy,omitempty"`
	Economy        *int `json:"economy,omitempty"`
	Total          *int `json:"total,omitempty"`
}

// PopulatedFields counts how many fields a source actually reported.
// Merge keeps the most complete configuration, not a field-wise union.
func (s *SeatConfiguration) PopulatedFields() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, f := range []*int{s.First, s.Business, s.PremiumEconomy, s.Economy, s.Total} {
		if f != nil {
			n++
		}
	}
	return n
}

// CabinSum returns the sum of the per-cabin counts and whether any cabin
// count was present at all.
func (s *SeatConfiguration) CabinSum() (int, bool) {
	if s == nil {
		return 0, false
	}
	sum, any := 0, false
	for _, f := range []*int{s.First, s.Business, s.PremiumEconomy, s.Economy} {
		if f != nil {
			sum += *f
			any = true
		}
	}
	return sum, any
}

// AircraftDetails is the merged per-registration record produced by the
// details agent and consumed by validation and persistence. Every field
// except Registration may be empty when sources disagree or are silent.
type AircraftDetails struct {
	Registration    string             `json:"registration"`
	AircraftType    string             `json:"aircraft_type,omitempty"` // IATA or ICAO type code
	Manufacturer    string             `json:"manufacturer,omitempty"`
	Model           string             `json:"model,omitempty"`
	MSN             string             `json:"manufacturer_serial_number,omitempty"`
	SeatConfig      *SeatConfiguration `json:"seat_configuration,omitempty"`
	DeliveryDate    *time.Time         `json:"delivery_date,omitempty"`
	AgeYears        *int               `json:"age_years,omitempty"`
	Status          AircraftStatus     `json:"status,omitempty"`
	CurrentLocation string             `json:"current_location,omitempty"`
	LastFlightDate  *time.Time         `json:"last_flight_date,omitempty"`
	Engines         string             `json:"engines,omitempty"`
	ConfidenceScore float64            `json:"confidence_score"`
	DataSources     []string           `json:"data_sources,omitempty"`
	ExtractedAt     time.Time          `json:"extracted_at"`
}

// DetailsOptions tunes a single per-registration details run.
type DetailsOptions struct {
	AirlineCode     string // optional hint for source templates
	ForceFullScrape bool   // bypass the page cache
}

// EssentialFieldCount returns how many of the seven completeness fields
// are populated: registration, type, manufacturer, model, MSN, delivery
// date and seat configuration.
func (d *AircraftDetails) EssentialFieldCount() int {
	n := 0
	if d.Registration != "" {
		n++
	}
	if d.AircraftType != "" {
		n++
	}
	if d.Manufacturer != "" {
		n++
	}
	if d.Model != "" {
		n++
	}
	if d.MSN != "" {
		n++
	}
	if d.DeliveryDate != nil {
		n++
	}
	if d.SeatConfig.PopulatedFields() > 0 {
		n++
	}
	return n
}
