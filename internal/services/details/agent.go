// Package details collects per-registration aircraft records from
// ranked sources and merges them with the stored record.
package details

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
	"github.com/ternarybob/aerofleet/internal/services/content"
)

const excerptBudget = 8000

const systemPrompt = "You are an aviation data analyst. Extract only facts the page states; never guess. Reply with JSON only."

const promptTemplate = `The following page describes the aircraft with registration %s.

Extract the fields below from the page. Use null for anything the page does not state. Dates use YYYY-MM-DD.

Reply with JSON of exactly this shape and nothing else:
{
  "aircraft_type": "IATA or ICAO type code, e.g. 738 or B738",
  "manufacturer": "e.g. Boeing",
  "model": "e.g. 737-800",
  "manufacturer_serial_number": "MSN as printed",
  "seat_configuration": {"first": null, "business": null, "premium_economy": null, "economy": null, "total": null},
  "delivery_date": "YYYY-MM-DD",
  "age_years": null,
  "status": "Active, Stored, Maintenance, Retired, Scrapped or Unknown",
  "current_location": "airport or city",
  "last_flight_date": "YYYY-MM-DD",
  "engines": "engine type"
}

Page (markdown):
%s`

// detailReply mirrors the JSON schema the prompt asks for.
type detailReply struct {
	AircraftType      string                    `json:"aircraft_type"`
	Manufacturer      string                    `json:"manufacturer"`
	Model             string                    `json:"model"`
	MSN               string                    `json:"manufacturer_serial_number"`
	SeatConfiguration *models.SeatConfiguration `json:"seat_configuration"`
	DeliveryDate      string                    `json:"delivery_date"`
	AgeYears          *int                      `json:"age_years"`
	Status            string                    `json:"status"`
	CurrentLocation   string                    `json:"current_location"`
	LastFlightDate    string                    `json:"last_flight_date"`
	Engines           string                    `json:"engines"`
}

// Agent implements interfaces.DetailsAgent.
type Agent struct {
	aircraft  interfaces.AircraftStorage
	loader    interfaces.PageLoader
	extractor interfaces.Extractor
	content   *content.Processor
	catalog   interfaces.SourceCatalog
	logger    arbor.ILogger
}

// NewAgent creates a details agent.
func NewAgent(aircraft interfaces.AircraftStorage, loader interfaces.PageLoader, extractor interfaces.Extractor, processor *content.Processor, catalog interfaces.SourceCatalog, logger arbor.ILogger) interfaces.DetailsAgent {
	return &Agent{
		aircraft:  aircraft,
		loader:    loader,
		extractor: extractor,
		content:   processor,
		catalog:   catalog,
		logger:    logger,
	}
}

// Collect fetches detail partials for the registration from every
// catalog source, seeds the merge with the stored record, and scores the
// result. Source failures degrade to missing fields, never to an error.
func (a *Agent) Collect(ctx context.Context, registration string, opts models.DetailsOptions) (*models.AircraftDetails, error) {
	reg := models.NormalizeRegistration(registration)
	if reg == "" {
		return nil, fmt.Errorf("%w: empty registration", models.ErrInvalidRegistration)
	}

	var seed *contribution
	existing, err := a.aircraft.FindByRegistration(ctx, reg)
	if err != nil {
		a.logger.Warn().
			Err(err).
			Str("registration", reg).
			Msg("Existing record lookup failed, collecting without seed")
	} else if existing != nil {
		seed = &contribution{details: seedFromAircraft(existing), source: "existing-record"}
	}

	partials := make([]contribution, 0, 4)
	for _, source := range a.catalog.DetailSources(reg) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		partial, err := a.collectFrom(ctx, reg, source.URL, opts.ForceFullScrape)
		if err != nil {
			a.logger.Debug().
				Err(err).
				Str("registration", reg).
				Str("url", source.URL).
				Msg("Detail source failed, continuing")
			continue
		}
		if partial == nil {
			continue
		}
		partials = append(partials, contribution{details: partial, source: hostOf(source.URL)})
	}

	merged := mergeDetails(reg, seed, partials)
	sourceCount := len(partials)
	if seed != nil {
		sourceCount++
	}
	merged.ConfidenceScore = detailsConfidence(merged, sourceCount)
	merged.ExtractedAt = time.Now().UTC()

	a.logger.Info().
		Str("registration", reg).
		Int("sources", sourceCount).
		Int("essential_fields", merged.EssentialFieldCount()).
		Float64("confidence", merged.ConfidenceScore).
		Msg("Aircraft details collected")
	return merged, nil
}

// collectFrom fetches one detail source and extracts its partial record.
// Returns (nil, nil) when the page does not describe this aircraft or
// states nothing usable.
func (a *Agent) collectFrom(ctx context.Context, registration, sourceURL string, bypassCache bool) (*models.AircraftDetails, error) {
	page, err := a.loader.Fetch(ctx, sourceURL, models.FetchOptions{BypassCache: bypassCache})
	if err != nil {
		return nil, err
	}

	prepared, err := a.content.Prepare(page.HTML, page.FinalURL, excerptBudget)
	if err != nil {
		return nil, fmt.Errorf("content preparation failed: %w", err)
	}

	title := page.Title
	if title == "" {
		title = prepared.Title
	}
	if missingPage(title) {
		a.logger.Debug().
			Str("registration", registration).
			Str("url", sourceURL).
			Str("title", title).
			Msg("Source has no page for this registration")
		return nil, nil
	}

	var reply detailReply
	extractOpts := models.ExtractOptions{
		Operation:    "details",
		SystemPrompt: systemPrompt,
	}
	prompt := fmt.Sprintf(promptTemplate, registration, prepared.Markdown)
	if err := a.extractor.ExtractJSON(ctx, prompt, extractOpts, &reply); err != nil {
		return nil, err
	}

	partial := reply.toDetails(registration)
	if emptyPartial(partial) {
		return nil, nil
	}
	return partial, nil
}

// toDetails converts the wire reply into a partial record.
func (r *detailReply) toDetails(registration string) *models.AircraftDetails {
	return &models.AircraftDetails{
		Registration:    registration,
		AircraftType:    strings.TrimSpace(r.AircraftType),
		Manufacturer:    strings.TrimSpace(r.Manufacturer),
		Model:           strings.TrimSpace(r.Model),
		MSN:             strings.TrimSpace(r.MSN),
		SeatConfig:      r.SeatConfiguration,
		DeliveryDate:    parseDate(r.DeliveryDate),
		AgeYears:        r.AgeYears,
		Status:          canonicalStatus(r.Status),
		CurrentLocation: strings.TrimSpace(r.CurrentLocation),
		LastFlightDate:  parseDate(r.LastFlightDate),
		Engines:         strings.TrimSpace(r.Engines),
	}
}

// emptyPartial reports whether a partial states nothing beyond the
// registration. Empty partials do not count as contributing sources.
func emptyPartial(d *models.AircraftDetails) bool {
	return d.AircraftType == "" &&
		d.Manufacturer == "" &&
		d.Model == "" &&
		d.MSN == "" &&
		d.SeatConfig.PopulatedFields() == 0 &&
		d.DeliveryDate == nil &&
		d.AgeYears == nil &&
		(d.Status == "" || d.Status == models.StatusUnknown) &&
		d.CurrentLocation == "" &&
		d.LastFlightDate == nil &&
		d.Engines == ""
}

// missingPage sniffs titles of database pages that resolved but have no
// record for the registration.
func missingPage(title string) bool {
	lower := strings.ToLower(title)
	return strings.Contains(lower, "not found") || strings.Contains(lower, "404")
}

// parseDate accepts YYYY-MM-DD (the prompted format) and RFC 3339.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	return nil
}

// canonicalStatus maps a source status onto the enum case-insensitively.
// Unrecognised values pass through for validation to flag.
func canonicalStatus(s string) models.AircraftStatus {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, known := range []models.AircraftStatus{
		models.StatusActive, models.StatusStored, models.StatusMaintenance,
		models.StatusRetired, models.StatusScrapped, models.StatusUnknown,
	} {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	return models.AircraftStatus(s)
}

// seedFromAircraft projects the stored aircraft onto the details shape
// so it can participate in the merge.
func seedFromAircraft(a *models.Aircraft) *models.AircraftDetails {
	seed := &models.AircraftDetails{
		Registration:    a.Registration,
		MSN:             a.MSN,
		DeliveryDate:    a.DeliveryDate,
		AgeYears:        a.AgeYears,
		Status:          a.Status,
		LastFlightDate:  a.LastSeenDate,
		ConfidenceScore: a.Metadata.ConfidenceScore,
	}
	if a.Type != nil {
		seed.AircraftType = a.Type.IATACode
		if seed.AircraftType == "" {
			seed.AircraftType = a.Type.ICAOCode
		}
		seed.Manufacturer = a.Type.Manufacturer
		seed.Model = a.Type.Model
	}
	if a.Configuration != nil {
		seed.SeatConfig = &models.SeatConfiguration{
			First:          a.Configuration.ClassFirst,
			Business:       a.Configuration.ClassBusiness,
			PremiumEconomy: a.Configuration.ClassPremiumEconomy,
			Economy:        a.Configuration.ClassEconomy,
			Total:          a.Configuration.TotalSeats,
		}
	}
	return seed
}

// hostOf returns the lowercase host of a source URL for data_sources.
func hostOf(sourceURL string) string {
	parsed, err := url.Parse(sourceURL)
	if err != nil || parsed.Host == "" {
		return sourceURL
	}
	return strings.ToLower(parsed.Host)
}
