package postgres

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/interfaces"
)

// Manager implements the StorageManager interface over one pgx pool.
type Manager struct {
	db       *DB
	airlines interfaces.AirlineStorage
	aircraft interfaces.AircraftStorage
	jobs     interfaces.JobStorage
	monitor  interfaces.MonitorStorage
	logger   arbor.ILogger
}

// NewManager connects to PostgreSQL and wires the typed storages.
func NewManager(ctx context.Context, logger arbor.ILogger, config *common.DatabaseConfig) (interfaces.StorageManager, error) {
	db, err := NewDB(ctx, logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:       db,
		airlines: NewAirlineStorage(db, logger),
		aircraft: NewAircraftStorage(db, logger),
		jobs:     NewJobStorage(db, logger),
		monitor:  NewMonitorStorage(db, logger),
		logger:   logger,
	}, nil
}

// Airlines returns the airline storage interface
func (m *Manager) Airlines() interfaces.AirlineStorage {
	return m.airlines
}

// Aircraft returns the aircraft storage interface
func (m *Manager) Aircraft() interfaces.AircraftStorage {
	return m.aircraft
}

// Jobs returns the job storage interface
func (m *Manager) Jobs() interfaces.JobStorage {
	return m.jobs
}

// Monitor returns the monitoring storage interface
func (m *Manager) Monitor() interfaces.MonitorStorage {
	return m.monitor
}

// Ping verifies the database connection
func (m *Manager) Ping(ctx context.Context) error {
	return m.db.Ping(ctx)
}

// Close closes the connection pool
func (m *Manager) Close() {
	m.db.Close()
}
