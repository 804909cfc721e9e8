package postgres

import (
	"context"
	"fmt"
)

const schemaSQL = `
-- Airlines whose fleets the engine maintains. Codes are unique
-- case-insensitively; jobs reference airlines by code, not by FK, so
-- deleting an airline never cascades into job history.
CREATE TABLE IF NOT EXISTS airlines (
	id BIGSERIAL PRIMARY KEY,
	iata_code TEXT NOT NULL,
	icao_code TEXT NOT NULL,
	name TEXT NOT NULL,
	country TEXT NOT NULL DEFAULT '',
	hub_airport TEXT NOT NULL DEFAULT '',
	website_url TEXT NOT NULL DEFAULT '',
	scrape_enabled BOOLEAN NOT NULL DEFAULT true,
	scrape_source_urls JSONB NOT NULL DEFAULT '[]'::jsonb,
	scrape_schedule_cron TEXT NOT NULL DEFAULT '',
	fleet_size_estimate INTEGER NOT NULL DEFAULT 0,
	last_scraped_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_airlines_iata ON airlines (upper(iata_code));
CREATE UNIQUE INDEX IF NOT EXISTS idx_airlines_icao ON airlines (upper(icao_code));

-- Reference aircraft types. The engine only reads these.
CREATE TABLE IF NOT EXISTS aircraft_types (
	id BIGSERIAL PRIMARY KEY,
	iata_code TEXT NOT NULL DEFAULT '',
	icao_code TEXT NOT NULL DEFAULT '',
	manufacturer TEXT NOT NULL,
	model TEXT NOT NULL,
	typical_seats INTEGER NOT NULL DEFAULT 0,
	max_seats INTEGER NOT NULL DEFAULT 0,
	range_km INTEGER NOT NULL DEFAULT 0,
	engine_type TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_aircraft_types_iata ON aircraft_types (upper(iata_code));
CREATE INDEX IF NOT EXISTS idx_aircraft_types_icao ON aircraft_types (upper(icao_code));

-- One row per airframe, keyed case-insensitively by registration.
CREATE TABLE IF NOT EXISTS aircraft (
	id BIGSERIAL PRIMARY KEY,
	current_airline_id BIGINT NOT NULL REFERENCES airlines(id),
	aircraft_type_id BIGINT REFERENCES aircraft_types(id),
	registration TEXT NOT NULL,
	manufacturer_serial_number TEXT,
	delivery_date DATE,
	age_years INTEGER,
	status TEXT NOT NULL DEFAULT 'Unknown',
	last_seen_date DATE,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	last_scraped_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_aircraft_registration ON aircraft (upper(registration));
CREATE INDEX IF NOT EXISTS idx_aircraft_airline ON aircraft (current_airline_id);

-- Cabin layouts. The partial unique index below enforces a single
-- current configuration per aircraft.
CREATE TABLE IF NOT EXISTS aircraft_configurations (
	id BIGSERIAL PRIMARY KEY,
	aircraft_id BIGINT NOT NULL REFERENCES aircraft(id) ON DELETE CASCADE,
	class_first INTEGER,
	class_business INTEGER,
	class_premium_economy INTEGER,
	class_economy INTEGER,
	total_seats INTEGER,
	is_current BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- Persistent job queue. scheduled_at and the retry counters live inside
-- result_summary; leased_until is the short dispatch hold used by the
-- SKIP LOCKED lease so concurrent schedulers never double-dispatch.
CREATE TABLE IF NOT EXISTS scraping_jobs (
	id BIGSERIAL PRIMARY KEY,
	job_id TEXT NOT NULL UNIQUE,
	airline_code TEXT NOT NULL,
	airline_name TEXT NOT NULL DEFAULT '',
	job_type TEXT NOT NULL DEFAULT 'full_fleet_update',
	status TEXT NOT NULL DEFAULT 'pending',
	priority TEXT NOT NULL DEFAULT 'normal',
	leased_until TIMESTAMPTZ,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	duration_seconds DOUBLE PRECISION,
	discovered_count INTEGER NOT NULL DEFAULT 0,
	new_count INTEGER NOT NULL DEFAULT 0,
	updated_count INTEGER NOT NULL DEFAULT 0,
	error_count INTEGER NOT NULL DEFAULT 0,
	progress DOUBLE PRECISION NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	result_summary JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_priority ON scraping_jobs (status, priority, created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_airline ON scraping_jobs (airline_code, status);
`

// Partial indexes need their own statement on some hosted PostgreSQL
// variants, so it runs separately from the main DDL batch.
const currentConfigIndexSQL = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_configurations_current
ON aircraft_configurations (aircraft_id) WHERE is_current;
`

// ensureSchema creates tables and indexes if they don't exist. DDL is
// idempotent; concurrent daemons racing on startup are harmless.
func (d *DB) ensureSchema(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := d.pool.Exec(ctx, currentConfigIndexSQL); err != nil {
		return fmt.Errorf("failed to create current-configuration index: %w", err)
	}
	d.logger.Debug().Msg("Database schema verified")
	return nil
}
