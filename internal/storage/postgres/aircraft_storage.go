package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

// AircraftStorage implements aircraft, type and configuration persistence
// over PostgreSQL.
type AircraftStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewAircraftStorage creates a new aircraft storage instance
func NewAircraftStorage(db *DB, logger arbor.ILogger) interfaces.AircraftStorage {
	return &AircraftStorage{
		db:     db,
		logger: logger,
	}
}

// FindTypeByCode resolves an aircraft type by IATA or ICAO type code.
func (s *AircraftStorage) FindTypeByCode(ctx context.Context, code string) (*models.AircraftType, error) {
	var t models.AircraftType
	err := s.db.pool.QueryRow(ctx, `
		SELECT id, iata_code, icao_code, manufacturer, model, typical_seats,
			max_seats, range_km, engine_type, created_at, updated_at
		FROM aircraft_types
		WHERE upper(iata_code) = upper($1) OR upper(icao_code) = upper($1)
		LIMIT 1`, code).Scan(
		&t.ID, &t.IATACode, &t.ICAOCode, &t.Manufacturer, &t.Model,
		&t.TypicalSeats, &t.MaxSeats, &t.RangeKM, &t.EngineType,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrAircraftTypeNotFound, code)
		}
		return nil, fmt.Errorf("failed to find aircraft type %s: %w", code, err)
	}
	return &t, nil
}

// FindByRegistration returns the aircraft with its type and current
// configuration joined, or (nil, nil) when the registration is unknown.
func (s *AircraftStorage) FindByRegistration(ctx context.Context, registration string) (*models.Aircraft, error) {
	var (
		a        models.Aircraft
		msn      *string
		status   string
		typeID   *int64
		typeIATA, typeICAO, typeManu, typeModel, typeEngine *string
		typicalSeats, maxSeats, rangeKM                     *int
		configID *int64
		first, business, premium, economy, total *int
	)

	err := s.db.pool.QueryRow(ctx, `
		SELECT a.id, a.current_airline_id, a.aircraft_type_id, a.registration,
			a.manufacturer_serial_number, a.delivery_date, a.age_years, a.status,
			a.last_seen_date, a.metadata, a.last_scraped_at, a.created_at, a.updated_at,
			t.id, t.iata_code, t.icao_code, t.manufacturer, t.model,
			t.typical_seats, t.max_seats, t.range_km, t.engine_type,
			c.id, c.class_first, c.class_business, c.class_premium_economy,
			c.class_economy, c.total_seats
		FROM aircraft a
		LEFT JOIN aircraft_types t ON t.id = a.aircraft_type_id
		LEFT JOIN aircraft_configurations c ON c.aircraft_id = a.id AND c.is_current
		WHERE upper(a.registration) = upper($1)`, registration).Scan(
		&a.ID, &a.CurrentAirlineID, &a.AircraftTypeID, &a.Registration,
		&msn, &a.DeliveryDate, &a.AgeYears, &status,
		&a.LastSeenDate, &a.Metadata, &a.LastScrapedAt, &a.CreatedAt, &a.UpdatedAt,
		&typeID, &typeIATA, &typeICAO, &typeManu, &typeModel,
		&typicalSeats, &maxSeats, &rangeKM, &typeEngine,
		&configID, &first, &business, &premium, &economy, &total,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find aircraft %s: %w", registration, err)
	}

	if msn != nil {
		a.MSN = *msn
	}
	a.Status = models.AircraftStatus(status)

	if typeID != nil {
		a.Type = &models.AircraftType{
			ID:           *typeID,
			IATACode:     derefString(typeIATA),
			ICAOCode:     derefString(typeICAO),
			Manufacturer: derefString(typeManu),
			Model:        derefString(typeModel),
			TypicalSeats: derefInt(typicalSeats),
			MaxSeats:     derefInt(maxSeats),
			RangeKM:      derefInt(rangeKM),
			EngineType:   derefString(typeEngine),
		}
	}

	if configID != nil {
		a.Configuration = &models.AircraftConfiguration{
			ID:                  *configID,
			AircraftID:          a.ID,
			ClassFirst:          first,
			ClassBusiness:       business,
			ClassPremiumEconomy: premium,
			ClassEconomy:        economy,
			TotalSeats:          total,
			IsCurrent:           true,
		}
	}

	return &a, nil
}

// Insert creates a new aircraft row. Registration is stored normalized;
// the case-insensitive unique index rejects duplicates atomically.
func (s *AircraftStorage) Insert(ctx context.Context, aircraft *models.Aircraft) (int64, error) {
	var id int64
	err := s.db.pool.QueryRow(ctx, `
		INSERT INTO aircraft (current_airline_id, aircraft_type_id, registration,
			manufacturer_serial_number, delivery_date, age_years, status,
			last_seen_date, metadata, last_scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING id`,
		aircraft.CurrentAirlineID,
		aircraft.AircraftTypeID,
		models.NormalizeRegistration(aircraft.Registration),
		nullableString(aircraft.MSN),
		aircraft.DeliveryDate,
		aircraft.AgeYears,
		string(aircraft.Status),
		aircraft.LastSeenDate,
		aircraft.Metadata,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert aircraft %s: %w", aircraft.Registration, err)
	}

	s.logger.Debug().
		Str("registration", aircraft.Registration).
		Int64("id", id).
		Msg("Aircraft inserted")

	return id, nil
}

// Update patches an existing aircraft by registration. Non-null patch
// fields overwrite; MSN keeps its present value once set; delivery_date
// never degrades to null; status and metadata always overwrite.
func (s *AircraftStorage) Update(ctx context.Context, registration string, patch *models.Aircraft) (int64, error) {
	var airlineID interface{}
	if patch.CurrentAirlineID != 0 {
		airlineID = patch.CurrentAirlineID
	}

	var id int64
	err := s.db.pool.QueryRow(ctx, `
		UPDATE aircraft SET
			current_airline_id = COALESCE($2::bigint, current_airline_id),
			aircraft_type_id = COALESCE($3::bigint, aircraft_type_id),
			manufacturer_serial_number = COALESCE(manufacturer_serial_number, $4::text),
			delivery_date = COALESCE($5::date, delivery_date),
			age_years = COALESCE($6::integer, age_years),
			status = $7,
			last_seen_date = COALESCE($8::date, last_seen_date),
			metadata = $9,
			last_scraped_at = now(),
			updated_at = now()
		WHERE upper(registration) = upper($1)
		RETURNING id`,
		registration,
		airlineID,
		patch.AircraftTypeID,
		nullableString(patch.MSN),
		patch.DeliveryDate,
		patch.AgeYears,
		string(patch.Status),
		patch.LastSeenDate,
		patch.Metadata,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("no aircraft with registration %s to update", registration)
		}
		return 0, fmt.Errorf("failed to update aircraft %s: %w", registration, err)
	}

	return id, nil
}

// ReplaceCurrentConfiguration retires all configuration rows of the
// aircraft and inserts config as the single current one. One transaction,
// so readers never observe zero or two current rows.
func (s *AircraftStorage) ReplaceCurrentConfiguration(ctx context.Context, aircraftID int64, config *models.AircraftConfiguration) error {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE aircraft_configurations SET is_current = false, updated_at = now()
		WHERE aircraft_id = $1 AND is_current`, aircraftID); err != nil {
		return fmt.Errorf("failed to retire configurations for aircraft %d: %w", aircraftID, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO aircraft_configurations (aircraft_id, class_first, class_business,
			class_premium_economy, class_economy, total_seats, is_current)
		VALUES ($1, $2, $3, $4, $5, $6, true)`,
		aircraftID,
		config.ClassFirst,
		config.ClassBusiness,
		config.ClassPremiumEconomy,
		config.ClassEconomy,
		config.TotalSeats,
	); err != nil {
		return fmt.Errorf("failed to insert configuration for aircraft %d: %w", aircraftID, err)
	}

	return tx.Commit(ctx)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
