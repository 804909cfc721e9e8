package details

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
	"github.com/ternarybob/aerofleet/internal/services/content"
)

func newTestAgent(aircraft *fakeAircraft, loader *fakeLoader, extractor *fakeExtractor, catalog *fakeCatalog) interfaces.DetailsAgent {
	logger := arbor.NewLogger()
	return NewAgent(aircraft, loader, extractor, content.NewProcessor(logger), catalog, logger)
}

func detailPage(url, title string) *models.PageResult {
	return &models.PageResult{
		URL:        url,
		FinalURL:   url,
		HTTPStatus: 200,
		Title:      title,
		HTML:       `<html><body><main><h1>` + title + `</h1><p>Aircraft data</p></main></body></html>`,
	}
}

func TestCollect_EmptyRegistration(t *testing.T) {
	agent := newTestAgent(&fakeAircraft{}, &fakeLoader{}, &fakeExtractor{}, &fakeCatalog{})

	_, err := agent.Collect(context.Background(), "  ", models.DetailsOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidRegistration)
}

func TestCollect_MergesSeedAndSources(t *testing.T) {
	stored := &models.Aircraft{
		ID:           7,
		Registration: "VH-ABC",
		MSN:          "1234",
		Status:       models.StatusActive,
		Type: &models.AircraftType{
			IATACode:     "738",
			Manufacturer: "Boeing",
			Model:        "737-800",
		},
		Metadata: models.AircraftMetadata{ConfidenceScore: 0.75},
	}
	catalog := &fakeCatalog{details: []models.DiscoverySource{
		{URL: "https://one.example/VH-ABC", Type: models.SourceTypeDatabase, Priority: 1},
		{URL: "https://two.example/VH-ABC", Type: models.SourceTypeTracker, Priority: 2},
	}}
	loader := &fakeLoader{pages: map[string]*models.PageResult{
		"https://one.example/VH-ABC": detailPage("https://one.example/VH-ABC", "VH-ABC Boeing 737-800"),
		"https://two.example/VH-ABC": detailPage("https://two.example/VH-ABC", "Live tracking VH-ABC"),
	}}
	extractor := &fakeExtractor{replies: []string{
		`{"manufacturer_serial_number":"9999","status":"stored","seat_configuration":{"business":12,"economy":162,"total":174}}`,
		`{"engines":"CFM56-7B26","last_flight_date":"2026-08-20"}`,
	}}
	agent := newTestAgent(&fakeAircraft{aircraft: stored}, loader, extractor, catalog)

	result, err := agent.Collect(context.Background(), "vh-abc", models.DetailsOptions{})
	require.NoError(t, err)

	assert.Equal(t, "VH-ABC", result.Registration)
	assert.Equal(t, "1234", result.MSN, "stored MSN survives a conflicting source")
	assert.Equal(t, models.StatusStored, result.Status, "source status overrides the stored one")
	assert.Equal(t, "738", result.AircraftType)
	assert.Equal(t, "Boeing", result.Manufacturer)
	assert.Equal(t, "CFM56-7B26", result.Engines)
	assert.Equal(t, 3, result.SeatConfig.PopulatedFields())
	assert.Equal(t, []string{"existing-record", "one.example", "two.example"}, result.DataSources)
	assert.InDelta(t, 0.9, result.ConfidenceScore, 0.001)
	assert.False(t, result.ExtractedAt.IsZero())
}

func TestCollect_NotFoundTitleSkipsExtraction(t *testing.T) {
	catalog := &fakeCatalog{details: []models.DiscoverySource{
		{URL: "https://one.example/ZK-NONE", Type: models.SourceTypeDatabase, Priority: 1},
	}}
	loader := &fakeLoader{pages: map[string]*models.PageResult{
		"https://one.example/ZK-NONE": detailPage("https://one.example/ZK-NONE", "Aircraft not found"),
	}}
	extractor := &fakeExtractor{}
	agent := newTestAgent(&fakeAircraft{}, loader, extractor, catalog)

	result, err := agent.Collect(context.Background(), "ZK-NONE", models.DetailsOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, extractor.calls, "a not-found page never reaches the extractor")
	assert.Equal(t, 0.0, result.ConfidenceScore)
	assert.Empty(t, result.DataSources)
}

func TestCollect_NoSeedNoSources(t *testing.T) {
	catalog := &fakeCatalog{details: []models.DiscoverySource{
		{URL: "https://one.example/N999ZZ", Type: models.SourceTypeDatabase, Priority: 1},
	}}
	loader := &fakeLoader{errs: map[string]error{
		"https://one.example/N999ZZ": models.ErrSourceUnavailable,
	}}
	agent := newTestAgent(&fakeAircraft{}, loader, &fakeExtractor{}, catalog)

	result, err := agent.Collect(context.Background(), "N999ZZ", models.DetailsOptions{})
	require.NoError(t, err, "unproductive collection is a result, not an error")

	assert.Equal(t, "N999ZZ", result.Registration)
	assert.Equal(t, 0.0, result.ConfidenceScore)
	assert.Equal(t, models.StatusUnknown, result.Status)
	assert.Equal(t, 1, result.EssentialFieldCount(), "only the registration is populated")
}

func TestCollect_EmptyPartialNotCounted(t *testing.T) {
	stored := &models.Aircraft{
		ID:           3,
		Registration: "VH-XYZ",
		MSN:          "5555",
		Status:       models.StatusActive,
	}
	catalog := &fakeCatalog{details: []models.DiscoverySource{
		{URL: "https://one.example/VH-XYZ", Type: models.SourceTypeDatabase, Priority: 1},
	}}
	loader := &fakeLoader{pages: map[string]*models.PageResult{
		"https://one.example/VH-XYZ": detailPage("https://one.example/VH-XYZ", "VH-XYZ"),
	}}
	extractor := &fakeExtractor{replies: []string{`{"status":"Unknown"}`}}
	agent := newTestAgent(&fakeAircraft{aircraft: stored}, loader, extractor, catalog)

	result, err := agent.Collect(context.Background(), "VH-XYZ", models.DetailsOptions{})
	require.NoError(t, err)

	// Seed only: 0.15 corroboration + 0.15 for the stored MSN.
	assert.InDelta(t, 0.3, result.ConfidenceScore, 0.001)
	assert.Equal(t, []string{"existing-record"}, result.DataSources)
}

func TestCollect_ForceFullScrapeBypassesCache(t *testing.T) {
	catalog := &fakeCatalog{details: []models.DiscoverySource{
		{URL: "https://one.example/VH-ABC", Type: models.SourceTypeDatabase, Priority: 1},
	}}
	loader := &fakeLoader{pages: map[string]*models.PageResult{
		"https://one.example/VH-ABC": detailPage("https://one.example/VH-ABC", "VH-ABC"),
	}}
	extractor := &fakeExtractor{replies: []string{`{"manufacturer":"Boeing"}`}}
	agent := newTestAgent(&fakeAircraft{}, loader, extractor, catalog)

	_, err := agent.Collect(context.Background(), "VH-ABC", models.DetailsOptions{ForceFullScrape: true})
	require.NoError(t, err)
	require.Len(t, loader.opts, 1)
	assert.True(t, loader.opts[0].BypassCache)
}

func TestParseDate(t *testing.T) {
	parsed := parseDate("2015-05-01")
	require.NotNil(t, parsed)
	assert.Equal(t, 2015, parsed.Year())

	parsed = parseDate("2015-05-01T00:00:00Z")
	require.NotNil(t, parsed)
	assert.Equal(t, time.May, parsed.Month())

	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("May 2015"))
	assert.Nil(t, parseDate("null"))
}

func TestCanonicalStatus(t *testing.T) {
	assert.Equal(t, models.StatusActive, canonicalStatus("active"))
	assert.Equal(t, models.StatusStored, canonicalStatus("STORED"))
	assert.Equal(t, models.AircraftStatus(""), canonicalStatus("  "))
	// Unrecognised values pass through for validation to flag.
	assert.Equal(t, models.AircraftStatus("In Service"), canonicalStatus("In Service"))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "www.planespotters.net", hostOf("https://www.Planespotters.net/search?q=VH-ABC"))
	assert.Equal(t, "bad url", hostOf("bad url"))
}

// --- fakes ---

type fakeAircraft struct {
	aircraft *models.Aircraft
}

func (f *fakeAircraft) FindTypeByCode(ctx context.Context, code string) (*models.AircraftType, error) {
	return nil, models.ErrAircraftTypeNotFound
}

func (f *fakeAircraft) FindByRegistration(ctx context.Context, registration string) (*models.Aircraft, error) {
	return f.aircraft, nil
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

type fakeLoader struct {
	pages   map[string]*models.PageResult
	errs    map[string]error
	fetched []string
	opts    []models.FetchOptions
}

func (f *fakeLoader) Fetch(ctx context.Context, url string, opts models.FetchOptions) (*models.PageResult, error) {
	f.fetched = append(f.fetched, url)
	f.opts = append(f.opts, opts)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	return nil, models.ErrSourceUnavailable
}

func (f *fakeLoader) Close() error {
	return nil
}

type fakeExtractor struct {
	replies []string
	calls   int
}

func (f *fakeExtractor) ExtractJSON(ctx context.Context, prompt string, opts models.ExtractOptions, out interface{}) error {
	if f.calls >= len(f.replies) {
		return models.ErrExtractorFailure
	}
	reply := f.replies[f.calls]
	f.calls++
	return json.Unmarshal([]byte(reply), out)
}

func (f *fakeExtractor) Provider() string {
	return "fake"
}

type fakeCatalog struct {
	details []models.DiscoverySource
}

func (f *fakeCatalog) DiscoverySources(airlineName string) []models.DiscoverySource {
	return nil
}

func (f *fakeCatalog) DetailSources(registration string) []models.DiscoverySource {
	return f.details
}
