package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aerofleet/internal/models"
)

func TestAuditor_RecordAndRecent(t *testing.T) {
	auditor, err := NewAuditor(arbor.NewLogger(), t.TempDir())
	require.NoError(t, err)
	defer auditor.Close()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, op := range []string{"discovery", "details", "validation"} {
		auditor.Record(models.ExtractionRecord{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Provider:    "claude",
			Model:       "claude-sonnet-4-5",
			Operation:   op,
			Success:     op != "details",
			DurationMS:  1200,
			PromptChars: 4000,
		})
	}

	records, err := auditor.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first
	assert.Equal(t, "validation", records[0].Operation)
	assert.Equal(t, "details", records[1].Operation)
	assert.Equal(t, "discovery", records[2].Operation)
	assert.False(t, records[1].Success)
	assert.NotEmpty(t, records[0].ID)

	// Limit caps the result
	records, err = auditor.Recent(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestNullAuditor(t *testing.T) {
	auditor := NewNullAuditor()
	auditor.Record(models.ExtractionRecord{Provider: "gemini"})

	records, err := auditor.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, auditor.Close())
}
