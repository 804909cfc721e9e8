package models

import (
	"encoding/json"
	"time"
)

// AircraftStatus is the operational state of an airframe.
type AircraftStatus string

const (
	StatusActive      AircraftStatus = "Active"
	StatusStored      AircraftStatus = "Stored"
	StatusMaintenance AircraftStatus = "Maintenance"
	StatusRetired     AircraftStatus = "Retired"
	StatusScrapped    AircraftStatus = "Scrapped"
	StatusUnknown     AircraftStatus = "Unknown"
)

// Valid reports whether s is one of the recognised statuses.
func (s AircraftStatus) Valid() bool {
	switch s {
	case StatusActive, StatusStored, StatusMaintenance, StatusRetired, StatusScrapped, StatusUnknown:
		return true
	}
	return false
}

// AircraftType is a reference-model row (e.g. "77W" / "B77W"). The engine
// reads types for cross-validation and never writes them.
type AircraftType struct {
	ID           int64     `json:"id"`
	IATACode     string    `json:"iata_code,omitempty"`
	ICAOCode     string    `json:"icao_code,omitempty"`
	Manufacturer string    `json:"manufacturer"`
	Model        string    `json:"model"`
	TypicalSeats int       `json:"typical_seats,omitempty"`
	MaxSeats     int       `json:"max_seats,omitempty"`
	RangeKM      int       `json:"range_km,omitempty"`
	EngineType   string    `json:"engine_type,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Aircraft is one airframe, keyed case-insensitively by registration.
// MSN is immutable once set; status always reflects the latest scrape.
type Aircraft struct {
	ID               int64            `json:"id"`
	CurrentAirlineID int64            `json:"current_airline_id"`
	AircraftTypeID   *int64           `json:"aircraft_type_id,omitempty"`
	Registration     string           `json:"registration"`
	MSN              string           `json:"manufacturer_serial_number,omitempty"`
	DeliveryDate     *time.Time       `json:"delivery_date,omitempty"`
	AgeYears         *int             `json:"age_years,omitempty"`
	Status           AircraftStatus   `json:"status"`
	LastSeenDate     *time.Time       `json:"last_seen_date,omitempty"`
	Metadata         AircraftMetadata `json:"metadata"` // jsonb column
	LastScrapedAt    *time.Time       `json:"last_scraped_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	// Joined for reads, never written through this struct.
	Type          *AircraftType          `json:"type,omitempty"`
	Configuration *AircraftConfiguration `json:"configuration,omitempty"`
}

// AircraftMetadata is the scrape provenance stored in aircraft.metadata.
type AircraftMetadata struct {
	ConfidenceScore float64  `json:"confidence_score"`
	DataSources     []string `json:"data_sources,omitempty"` // deduplicated
	ExtractedAt     string   `json:"extracted_at,omitempty"` // ISO-8601 UTC
}

// ToJSON serializes metadata for the jsonb column.
func (m *AircraftMetadata) ToJSON() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// AircraftConfiguration is a cabin layout. At most one row per aircraft
// carries IsCurrent=true; replacement retires all prior rows atomically.
type AircraftConfiguration struct {
	ID                  int64     `json:"id"`
	AircraftID          int64     `json:"aircraft_id"`
	ClassFirst          *int      `json:"class_first,omitempty"`
	ClassBusiness       *int      `json:"class_business,omitempty"`
	ClassPremiumEconomy *int      `json:"class_premium_economy,omitempty"`
	ClassEconomy        *int      `json:"class_economy,omitempty"`
	TotalSeats          *int      `json:"total_seats,omitempty"`
	IsCurrent           bool      `json:"is_current"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
