// Package workflow orchestrates one full fleet update: discovery,
// batched details collection, batched validation, then sequential
// persistence. One run corresponds to one leased job.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

// Service implements interfaces.WorkflowService.
type Service struct {
	discovery  interfaces.DiscoveryAgent
	details    interfaces.DetailsAgent
	validation interfaces.ValidationAgent
	airlines   interfaces.AirlineStorage
	aircraft   interfaces.AircraftStorage
	config     *common.ScraperConfig
	logger     arbor.ILogger
}

// NewService creates a workflow service.
func NewService(
	discovery interfaces.DiscoveryAgent,
	details interfaces.DetailsAgent,
	validation interfaces.ValidationAgent,
	airlines interfaces.AirlineStorage,
	aircraft interfaces.AircraftStorage,
	config *common.ScraperConfig,
	logger arbor.ILogger,
) interfaces.WorkflowService {
	return &Service{
		discovery:  discovery,
		details:    details,
		validation: validation,
		airlines:   airlines,
		aircraft:   aircraft,
		config:     config,
		logger:     logger,
	}
}

// validated pairs an effective record (recommended values applied,
// confidence taken from validation) with its verdict for logging.
type validated struct {
	record  *models.AircraftDetails
	verdict *models.ValidationResult
}

// RunFullUpdate executes all four phases for one airline. Discovery
// yielding nothing is a zero-result success. DryRun runs everything but
// phase four; every aircraft then counts as skipped and no timestamps
// move.
func (s *Service) RunFullUpdate(ctx context.Context, airlineCode string, opts models.WorkflowOptions) (*models.WorkflowResult, error) {
	started := time.Now().UTC()
	logger := s.logger.WithCorrelationId(uuid.New().String())

	airline, err := s.airlines.FindByCode(ctx, airlineCode)
	if err != nil {
		return nil, err
	}

	result := &models.WorkflowResult{
		AirlineCode: airline.IATACode,
		StartedAt:   started,
	}

	logger.Info().
		Str("airline", airline.IATACode).
		Bool("force_full_scrape", opts.ForceFullScrape).
		Bool("dry_run", opts.DryRun).
		Msg("Fleet update started")

	// Phase 1: discovery.
	discovered, err := s.discovery.Discover(ctx, airline.IATACode, models.DiscoveryOptions{
		ForceFullScrape: opts.ForceFullScrape,
	})
	if err != nil {
		return nil, err
	}
	result.AircraftFound = len(discovered.Registrations)
	result.Details.Discovery = fmt.Sprintf("%s sources yielded %d registrations (confidence %.2f)",
		discovered.Method, len(discovered.Registrations), discovered.Confidence)

	if len(discovered.Registrations) == 0 {
		logger.Warn().
			Str("airline", airline.IATACode).
			Msg("Discovery found no registrations, nothing to update")
		return s.finish(result, nil), nil
	}

	// Phase 2: details fan-out.
	collected := s.collectDetails(ctx, logger, discovered.Registrations, opts, result)
	if err := ctx.Err(); err != nil {
		return s.finish(result, nil), err
	}

	// Phase 3: validation fan-out.
	effective := s.validateDetails(ctx, logger, collected, result)
	if err := ctx.Err(); err != nil {
		return s.finish(result, nil), err
	}

	// Phase 4: sequential persistence.
	if opts.DryRun {
		for _, v := range effective {
			result.AircraftSkipped++
			result.Details.Processing = append(result.Details.Processing,
				fmt.Sprintf("%s: skipped (dry run)", v.record.Registration))
		}
		logger.Info().
			Str("airline", airline.IATACode).
			Int("aircraft", len(effective)).
			Msg("Dry run, persistence skipped")
		return s.finish(result, effective), nil
	}

	for _, v := range effective {
		if err := ctx.Err(); err != nil {
			return s.finish(result, effective), err
		}
		s.persistOne(ctx, logger, airline, v, result)
	}

	if err := s.airlines.TouchScrapedAt(ctx, airline.IATACode); err != nil {
		logger.Warn().
			Err(err).
			Str("airline", airline.IATACode).
			Msg("Failed to stamp airline scrape time")
	}

	final := s.finish(result, effective)
	logger.Info().
		Str("airline", airline.IATACode).
		Int("found", final.AircraftFound).
		Int("added", final.AircraftAdded).
		Int("updated", final.AircraftUpdated).
		Int("skipped", final.AircraftSkipped).
		Int("errors", final.Errors).
		Int64("duration_ms", final.DurationMS).
		Msg("Fleet update completed")
	return final, nil
}

// collectDetails runs the details agent over the registrations in
// concurrent batches. Failed collections are logged, counted and
// skipped; the survivors keep discovery order.
func (s *Service) collectDetails(ctx context.Context, logger arbor.ILogger, registrations []string, opts models.WorkflowOptions, result *models.WorkflowResult) []*models.AircraftDetails {
	batchSize := s.config.WorkflowConcurrency
	if batchSize < 1 {
		batchSize = 1
	}

	collected := make([]*models.AircraftDetails, len(registrations))
	for start := 0; start < len(registrations); start += batchSize {
		if ctx.Err() != nil {
			break
		}
		if start > 0 {
			s.sleepBetweenBatches(ctx)
		}

		end := start + batchSize
		if end > len(registrations) {
			end = len(registrations)
		}
		batch := registrations[start:end]

		var wg sync.WaitGroup
		for i, registration := range batch {
			wg.Add(1)
			go func(slot int, reg string) {
				defer wg.Done()
				details, err := s.details.Collect(ctx, reg, models.DetailsOptions{
					AirlineCode:     result.AirlineCode,
					ForceFullScrape: opts.ForceFullScrape,
				})
				if err != nil {
					logger.Warn().
						Err(err).
						Str("registration", reg).
						Msg("Details collection failed, dropping aircraft")
					return
				}
				collected[start+slot] = details
			}(i, registration)
		}
		wg.Wait()
	}

	survivors := make([]*models.AircraftDetails, 0, len(registrations))
	for i, details := range collected {
		if details == nil {
			result.Errors++
			result.AircraftSkipped++
			result.Details.Errors = append(result.Details.Errors,
				fmt.Sprintf("%s: details collection failed", registrations[i]))
			continue
		}
		survivors = append(survivors, details)
	}
	return survivors
}

// validateDetails runs the validation agent over the collected records in
// concurrent batches and materialises each effective record: recommended
// values overlaid, confidence taken from the verdict.
func (s *Service) validateDetails(ctx context.Context, logger arbor.ILogger, collected []*models.AircraftDetails, result *models.WorkflowResult) []validated {
	batchSize := s.config.WorkflowConcurrency
	if batchSize < 1 {
		batchSize = 1
	}

	verdicts := make([]validated, len(collected))
	for start := 0; start < len(collected); start += batchSize {
		if ctx.Err() != nil {
			break
		}
		if start > 0 {
			s.sleepBetweenBatches(ctx)
		}

		end := start + batchSize
		if end > len(collected) {
			end = len(collected)
		}
		batch := collected[start:end]

		var wg sync.WaitGroup
		for i, candidate := range batch {
			wg.Add(1)
			go func(slot int, c *models.AircraftDetails) {
				defer wg.Done()

				existing := s.loadExisting(ctx, logger, c.Registration)
				verdict, err := s.validation.Validate(ctx, c, existing)
				if err != nil {
					logger.Warn().
						Err(err).
						Str("registration", c.Registration).
						Msg("Validation failed, dropping aircraft")
					return
				}
				verdicts[start+slot] = validated{
					record:  applyRecommended(c, verdict),
					verdict: verdict,
				}
			}(i, candidate)
		}
		wg.Wait()
	}

	effective := make([]validated, 0, len(collected))
	for i, v := range verdicts {
		if v.record == nil {
			result.Errors++
			result.AircraftSkipped++
			result.Details.Errors = append(result.Details.Errors,
				fmt.Sprintf("%s: validation failed", collected[i].Registration))
			continue
		}
		if !v.verdict.IsValid {
			// Issues are data: they travel with the record and lower its
			// confidence but never block persistence.
			logger.Warn().
				Str("registration", v.record.Registration).
				Str("summary", v.verdict.Summary).
				Msg("Validation found errors, persisting with reduced confidence")
		}
		effective = append(effective, v)
	}
	return effective
}

// loadExisting projects the stored aircraft onto the details shape for
// cross-reference checks. Lookup failures degrade to no existing record.
func (s *Service) loadExisting(ctx context.Context, logger arbor.ILogger, registration string) *models.AircraftDetails {
	stored, err := s.aircraft.FindByRegistration(ctx, registration)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("registration", registration).
			Msg("Existing record lookup failed, validating without cross-reference")
		return nil
	}
	if stored == nil {
		return nil
	}
	return detailsFromStored(stored)
}

// persistOne writes one effective record: update when the registration
// exists, insert otherwise, then replace the seating configuration when
// the record carries any seat data. Failures count against the errors
// tally and the loop continues.
func (s *Service) persistOne(ctx context.Context, logger arbor.ILogger, airline *models.Airline, v validated, result *models.WorkflowResult) {
	record := v.record
	if record.Registration == "" {
		result.AircraftSkipped++
		result.Details.Processing = append(result.Details.Processing, "(blank): skipped, empty registration")
		return
	}

	row := s.buildRow(ctx, logger, airline, record)

	stored, err := s.aircraft.FindByRegistration(ctx, record.Registration)
	if err != nil {
		s.recordPersistFailure(result, record.Registration, err)
		return
	}

	var (
		aircraftID int64
		action     string
	)
	if stored == nil {
		aircraftID, err = s.aircraft.Insert(ctx, row)
		action = "added"
	} else {
		aircraftID, err = s.aircraft.Update(ctx, record.Registration, row)
		action = "updated"
	}
	if err != nil {
		s.recordPersistFailure(result, record.Registration, err)
		return
	}

	if record.SeatConfig.PopulatedFields() > 0 {
		if err := s.aircraft.ReplaceCurrentConfiguration(ctx, aircraftID, configurationFrom(aircraftID, record.SeatConfig)); err != nil {
			logger.Warn().
				Err(err).
				Str("registration", record.Registration).
				Msg("Failed to replace seating configuration")
			result.Details.Errors = append(result.Details.Errors,
				fmt.Sprintf("%s: configuration replace failed: %v", record.Registration, err))
			result.Errors++
		}
	}

	if action == "added" {
		result.AircraftAdded++
	} else {
		result.AircraftUpdated++
	}
	result.Details.Processing = append(result.Details.Processing,
		fmt.Sprintf("%s: %s (confidence %.2f)", record.Registration, action, record.ConfidenceScore))
}

// buildRow converts an effective record into the aircraft row shape. An
// unknown type code leaves the type reference empty; the record still
// persists with its validation issues on file.
func (s *Service) buildRow(ctx context.Context, logger arbor.ILogger, airline *models.Airline, record *models.AircraftDetails) *models.Aircraft {
	row := &models.Aircraft{
		CurrentAirlineID: airline.ID,
		Registration:     record.Registration,
		MSN:              record.MSN,
		DeliveryDate:     record.DeliveryDate,
		AgeYears:         record.AgeYears,
		Status:           record.Status,
		LastSeenDate:     record.LastFlightDate,
		Metadata: models.AircraftMetadata{
			ConfidenceScore: record.ConfidenceScore,
			DataSources:     record.DataSources,
			ExtractedAt:     record.ExtractedAt.UTC().Format(time.RFC3339),
		},
	}
	if row.Status == "" {
		row.Status = models.StatusUnknown
	}

	if record.AircraftType != "" {
		spec, err := s.aircraft.FindTypeByCode(ctx, record.AircraftType)
		switch {
		case err == nil:
			row.AircraftTypeID = &spec.ID
		case errors.Is(err, models.ErrAircraftTypeNotFound):
			logger.Debug().
				Str("registration", record.Registration).
				Str("type_code", record.AircraftType).
				Msg("Type code not in catalog, persisting without type reference")
		default:
			logger.Warn().
				Err(err).
				Str("registration", record.Registration).
				Msg("Type lookup failed, persisting without type reference")
		}
	}
	return row
}

func (s *Service) recordPersistFailure(result *models.WorkflowResult, registration string, err error) {
	result.Errors++
	result.AircraftSkipped++
	result.Details.Errors = append(result.Details.Errors,
		fmt.Sprintf("%s: persist failed: %v", registration, err))
}

// sleepBetweenBatches paces the fan-out phases so detail sources see a
// bounded request rate. Context cancellation cuts the wait short.
func (s *Service) sleepBetweenBatches(ctx context.Context) {
	delay := s.config.RateLimit()
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// finish computes the aggregate confidence and duration.
func (s *Service) finish(result *models.WorkflowResult, effective []validated) *models.WorkflowResult {
	if len(effective) > 0 {
		var sum float64
		for _, v := range effective {
			sum += v.record.ConfidenceScore
		}
		result.ConfidenceAvg = sum / float64(len(effective))
	}
	result.CompletedAt = time.Now().UTC()
	result.DurationMS = result.CompletedAt.Sub(result.StartedAt).Milliseconds()
	return result
}

// detailsFromStored projects an aircraft row onto the details shape for
// the validation cross-reference.
func detailsFromStored(a *models.Aircraft) *models.AircraftDetails {
	existing := &models.AircraftDetails{
		Registration:    a.Registration,
		MSN:             a.MSN,
		DeliveryDate:    a.DeliveryDate,
		AgeYears:        a.AgeYears,
		Status:          a.Status,
		LastFlightDate:  a.LastSeenDate,
		ConfidenceScore: a.Metadata.ConfidenceScore,
		DataSources:     a.Metadata.DataSources,
	}
	if a.Type != nil {
		existing.AircraftType = a.Type.IATACode
		if existing.AircraftType == "" {
			existing.AircraftType = a.Type.ICAOCode
		}
		existing.Manufacturer = a.Type.Manufacturer
		existing.Model = a.Type.Model
	}
	if a.Configuration != nil {
		existing.SeatConfig = &models.SeatConfiguration{
			First:          a.Configuration.ClassFirst,
			Business:       a.Configuration.ClassBusiness,
			PremiumEconomy: a.Configuration.ClassPremiumEconomy,
			Economy:        a.Configuration.ClassEconomy,
			Total:          a.Configuration.TotalSeats,
		}
	}
	return existing
}

// configurationFrom converts seat data into a configuration row.
func configurationFrom(aircraftID int64, seats *models.SeatConfiguration) *models.AircraftConfiguration {
	return &models.AircraftConfiguration{
		AircraftID:          aircraftID,
		ClassFirst:          seats.First,
		ClassBusiness:       seats.Business,
		ClassPremiumEconomy: seats.PremiumEconomy,
		ClassEconomy:        seats.Economy,
		TotalSeats:          seats.Total,
		IsCurrent:           true,
	}
}
