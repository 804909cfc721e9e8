package validation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
)

func newTestAgent(aircraft *fakeAircraft, extractor interfaces.Extractor) interfaces.ValidationAgent {
	return NewAgent(aircraft, extractor, arbor.NewLogger())
}

func cleanCandidate() *models.AircraftDetails {
	return &models.AircraftDetails{
		Registration:    "N123AB",
		AircraftType:    "738",
		Manufacturer:    "Boeing",
		Model:           "737-800",
		MSN:             "30601",
		DeliveryDate:    date(2015, time.May, 1),
		Status:          models.StatusActive,
		SeatConfig:      &models.SeatConfiguration{Business: intPtr(12), Economy: intPtr(162), Total: intPtr(174)},
		ConfidenceScore: 0.7,
	}
}

func TestValidate_CleanRecord(t *testing.T) {
	aircraft := &fakeAircraft{spec: &models.AircraftType{
		IATACode: "738", Manufacturer: "Boeing", Model: "737-800",
		TypicalSeats: 162, MaxSeats: 189,
	}}
	agent := newTestAgent(aircraft, nil)

	result, err := agent.Validate(context.Background(), cleanCandidate(), nil)
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Issues)
	assert.Empty(t, result.RecommendedValues)
	// 0.7 base + 0.2 * (7/7 essential fields).
	assert.InDelta(t, 0.9, result.ConfidenceScore, 0.001)
	assert.Contains(t, result.Summary, "passed")
	assert.False(t, result.ValidatedAt.IsZero())
}

func TestValidate_MSNChangeIsError(t *testing.T) {
	aircraft := &fakeAircraft{spec: &models.AircraftType{
		IATACode: "738", Manufacturer: "Boeing",
		TypicalSeats: 162, MaxSeats: 189,
	}}
	agent := newTestAgent(aircraft, nil)

	candidate := cleanCandidate()
	candidate.MSN = "99999"
	existing := cleanCandidate()

	result, err := agent.Validate(context.Background(), candidate, existing)
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	require.Contains(t, result.RecommendedValues, "manufacturer_serial_number")
	assert.Equal(t, "30601", result.RecommendedValues["manufacturer_serial_number"])
	// One error costs 0.2: 0.7 - 0.2 + 0.2 completeness.
	assert.InDelta(t, 0.7, result.ConfidenceScore, 0.001)
	assert.Contains(t, result.Summary, "failed")
}

func TestValidate_EmptyRecordAccumulates(t *testing.T) {
	agent := newTestAgent(&fakeAircraft{}, nil)

	// A record with only a registration, as details produces when every
	// source came up empty.
	result, err := agent.Validate(context.Background(), &models.AircraftDetails{
		Registration: "N123AB",
		Status:       models.StatusUnknown,
	}, nil)
	require.NoError(t, err)

	assert.True(t, result.IsValid, "an empty-but-well-formed record carries no errors")
	// 0 base + 0.2 * (1/7).
	assert.InDelta(t, 0.0286, result.ConfidenceScore, 0.001)
}

func TestValidate_UnknownTypeWarns(t *testing.T) {
	aircraft := &fakeAircraft{} // every lookup misses
	agent := newTestAgent(aircraft, nil)

	result, err := agent.Validate(context.Background(), cleanCandidate(), nil)
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "aircraft_type", result.Issues[0].Field)
	assert.Equal(t, models.SeverityWarning, result.Issues[0].Severity)
}

func TestValidate_SemanticIssuesMapped(t *testing.T) {
	aircraft := &fakeAircraft{spec: &models.AircraftType{
		IATACode: "738", Manufacturer: "Boeing",
		TypicalSeats: 162, MaxSeats: 189,
	}}
	extractor := &fakeExtractor{reply: `{"issues":[
		{"field":"model","severity":"warning","message":"model predates type certification"},
		{"field":"engines","severity":"bogus","message":"unusual engine for this frame"}
	]}`}
	agent := newTestAgent(aircraft, extractor)

	result, err := agent.Validate(context.Background(), cleanCandidate(), nil)
	require.NoError(t, err)

	require.Len(t, result.Issues, 2)
	assert.Equal(t, models.SeverityWarning, result.Issues[0].Severity)
	assert.Equal(t, models.SeverityInfo, result.Issues[1].Severity, "unrecognised severities degrade to info")
	assert.True(t, result.IsValid)
}

func TestValidate_SemanticFailureIsSilent(t *testing.T) {
	aircraft := &fakeAircraft{spec: &models.AircraftType{
		IATACode: "738", Manufacturer: "Boeing",
		TypicalSeats: 162, MaxSeats: 189,
	}}
	extractor := &fakeExtractor{err: models.ErrExtractorFailure}
	agent := newTestAgent(aircraft, extractor)

	result, err := agent.Validate(context.Background(), cleanCandidate(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Issues)
	assert.True(t, result.IsValid)
}

func TestRecommendedValues_SkipsInfosAndNils(t *testing.T) {
	recommended := recommendedValues([]models.ValidationIssue{
		{Field: "age_years", Severity: models.SeverityWarning, SuggestedValue: 11},
		{Field: "confidence_score", Severity: models.SeverityInfo, SuggestedValue: 0.9},
		{Field: "registration", Severity: models.SeverityError},
	})
	assert.Equal(t, map[string]interface{}{"age_years": 11}, recommended)
}

func TestValidationConfidence_Clamped(t *testing.T) {
	low := validationConfidence(&models.AircraftDetails{ConfidenceScore: 0.1}, 3, 2, 1)
	assert.Equal(t, 0.0, low)

	high := validationConfidence(cleanCandidate(), 0, 0, 0)
	assert.LessOrEqual(t, high, 1.0)
}

// --- fakes ---

type fakeAircraft struct {
	spec *models.AircraftType
}

func (f *fakeAircraft) FindTypeByCode(ctx context.Context, code string) (*models.AircraftType, error) {
	if f.spec == nil {
		return nil, models.ErrAircraftTypeNotFound
	}
	return f.spec, nil
}

func (f *fakeAircraft) FindByRegistration(ctx context.Context, registration string) (*models.Aircraft, error) {
	return nil, nil
}

func (f *fakeAircraft) Insert(ctx context.Context, aircraft *models.Aircraft) (int64, error) {
	return 0, nil
}

func (f *fakeAircraft) Update(ctx context.Context, registration string, patch *models.Aircraft) (int64, error) {
	return 0, nil
}

func (f *fakeAircraft) ReplaceCurrentConfiguration(ctx context.Context, aircraftID int64, config *models.AircraftConfiguration) error {
	return nil
}

type fakeExtractor struct {
	reply string
	err   error
}

func (f *fakeExtractor) ExtractJSON(ctx context.Context, prompt string, opts models.ExtractOptions, out interface{}) error {
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), out)
}

func (f *fakeExtractor) Provider() string {
	return "fake"
}
