// Package audit keeps a local queryable log of extractor calls. Records
// are diagnostics only and never feed back into scraped data.
package audit

import (
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// Auditor persists extraction records in a badgerhold store.
type Auditor struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// NewAuditor opens (or creates) the audit store at dir.
func NewAuditor(logger arbor.ILogger, dir string) (interfaces.ExtractionAuditor, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}

	logger.Debug().Str("dir", dir).Msg("Extraction audit store initialized")

	return &Auditor{
		store:  store,
		logger: logger,
	}, nil
}

// Record stores one call record. A failed write is logged and swallowed -
// auditing never disturbs extraction.
func (a *Auditor) Record(record models.ExtractionRecord) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	if err := a.store.Insert(record.ID, record); err != nil {
		a.logger.Warn().Err(err).
			Str("provider", record.Provider).
			Str("operation", record.Operation).
			Msg("Failed to write extraction audit record")
	}
}

// Recent returns up to limit records, newest first. Records are sorted in
// memory; the audit store stays small because extractor calls are rare
// relative to page fetches.
func (a *Auditor) Recent(limit int) ([]models.ExtractionRecord, error) {
	var records []models.ExtractionRecord
	if err := a.store.Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to read audit records: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Close closes the underlying store.
func (a *Auditor) Close() error {
	return a.store.Close()
}

// NullAuditor is a no-op implementation of ExtractionAuditor used when
// auditing is disabled.
type NullAuditor struct{}

// NewNullAuditor creates a new null auditor
func NewNullAuditor() *NullAuditor {
	return &NullAuditor{}
}

// Record does nothing (no-op)
func (a *NullAuditor) Record(record models.ExtractionRecord) {}

// Recent returns an empty slice (no-op)
func (a *NullAuditor) Recent(limit int) ([]models.ExtractionRecord, error) {
	return []models.ExtractionRecord{}, nil
}

// Close does nothing (no-op)
func (a *NullAuditor) Close() error {
	return nil
}
