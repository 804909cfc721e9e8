package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

const airlineColumns = `id, iata_code, icao_code, name, country, hub_airport,
	website_url, scrape_enabled, scrape_source_urls, scrape_schedule_cron,
	fleet_size_estimate, last_scraped_at, created_at, updated_at`

// AirlineStorage implements airline reads over PostgreSQL.
type AirlineStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewAirlineStorage creates a new airline storage instance
func NewAirlineStorage(db *DB, logger arbor.ILogger) interfaces.AirlineStorage {
	return &AirlineStorage{
		db:     db,
		logger: logger,
	}
}

// FindByCode resolves an airline by IATA or ICAO code, case-insensitively.
func (s *AirlineStorage) FindByCode(ctx context.Context, code string) (*models.Airline, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM airlines
		WHERE upper(iata_code) = upper($1) OR upper(icao_code) = upper($1)
		LIMIT 1`, airlineColumns)

	airline, err := scanAirline(s.db.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrAirlineNotFound, code)
		}
		return nil, fmt.Errorf("failed to find airline %s: %w", code, err)
	}
	return airline, nil
}

// ListDue returns scrape-enabled airlines that were never scraped or whose
// last scrape is older than staleAfter. Never-scraped airlines sort first
// so a fresh deployment drains them before re-scrapes.
func (s *AirlineStorage) ListDue(ctx context.Context, staleAfter time.Duration, limit int) ([]*models.Airline, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)

	query := fmt.Sprintf(`
		SELECT %s FROM airlines
		WHERE scrape_enabled
		  AND (last_scraped_at IS NULL OR last_scraped_at < $1)
		ORDER BY last_scraped_at ASC NULLS FIRST
		LIMIT $2`, airlineColumns)

	rows, err := s.db.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due airlines: %w", err)
	}
	defer rows.Close()

	var airlines []*models.Airline
	for rows.Next() {
		airline, err := scanAirline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan airline row: %w", err)
		}
		airlines = append(airlines, airline)
	}
	return airlines, rows.Err()
}

// TouchScrapedAt stamps last_scraped_at for the airline.
func (s *AirlineStorage) TouchScrapedAt(ctx context.Context, code string) error {
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE airlines SET last_scraped_at = now(), updated_at = now()
		WHERE upper(iata_code) = upper($1) OR upper(icao_code) = upper($1)`, code)
	if err != nil {
		return fmt.Errorf("failed to touch airline %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", models.ErrAirlineNotFound, code)
	}
	return nil
}

// scanAirline reads one airline row. Works for both QueryRow and Rows.
func scanAirline(row pgx.Row) (*models.Airline, error) {
	var a models.Airline
	var sourceURLs []byte

	err := row.Scan(
		&a.ID, &a.IATACode, &a.ICAOCode, &a.Name, &a.Country, &a.HubAirport,
		&a.WebsiteURL, &a.ScrapeEnabled, &sourceURLs, &a.ScrapeCron,
		&a.FleetSizeEstimate, &a.LastScrapedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(sourceURLs) > 0 {
		if err := json.Unmarshal(sourceURLs, &a.ScrapeSourceURLs); err != nil {
			return nil, fmt.Errorf("failed to decode scrape_source_urls: %w", err)
		}
	}
	return &a, nil
}
