// Package discovery finds the set of registrations an airline operates
// by working through ranked fleet sources until one produces results.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
	"github.com/ternarybob/aerofleet/internal/services/content"
)

// excerptBudget caps the markdown handed to the extractor per page.
const excerptBudget = 8000

const systemPrompt = "You are an aviation fleet data analyst. Extract aircraft registrations exactly as printed on the page and reply with JSON only."

const promptTemplate = `The following page should list aircraft operated by %s.

Find every aircraft registration (tail number) on the page. Registrations look like VH-ABC, N12345, G-ABCD, JA801A or B-1234. Ignore flight numbers, airport codes and aircraft type codes.

Reply with JSON of the shape {"registrations": ["..."]} and nothing else. Use an empty array when the page lists no registrations.

Page (markdown):
%s`

// Agent implements interfaces.DiscoveryAgent.
type Agent struct {
	airlines  interfaces.AirlineStorage
	loader    interfaces.PageLoader
	extractor interfaces.Extractor
	content   *content.Processor
	catalog   interfaces.SourceCatalog
	logger    arbor.ILogger
}

// NewAgent creates a discovery agent.
func NewAgent(airlines interfaces.AirlineStorage, loader interfaces.PageLoader, extractor interfaces.Extractor, processor *content.Processor, catalog interfaces.SourceCatalog, logger arbor.ILogger) interfaces.DiscoveryAgent {
	return &Agent{
		airlines:  airlines,
		loader:    loader,
		extractor: extractor,
		content:   processor,
		catalog:   catalog,
		logger:    logger,
	}
}

// Discover works through the airline's sources in priority order and
// returns the registrations of the first source that yields any.
func (a *Agent) Discover(ctx context.Context, airlineCode string, opts models.DiscoveryOptions) (*models.DiscoveryResult, error) {
	airline, err := a.airlines.FindByCode(ctx, airlineCode)
	if err != nil {
		return nil, err
	}

	sources := opts.Sources
	if sources == nil {
		sources = a.buildSources(airline)
	}

	result := &models.DiscoveryResult{
		AirlineCode:   airline.IATACode,
		Registrations: []string{},
		SourceURLs:    []string{},
		Method:        models.SourceTypeNone,
		DiscoveredAt:  time.Now().UTC(),
	}

	for _, source := range sources {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.SourceURLs = append(result.SourceURLs, source.URL)

		registrations, err := a.collectFrom(ctx, airline.Name, source.URL, opts.ForceFullScrape)
		if err != nil {
			a.logger.Warn().
				Err(err).
				Str("airline", airline.IATACode).
				Str("url", source.URL).
				Msg("Discovery source failed, trying next")
			continue
		}
		if len(registrations) == 0 {
			a.logger.Debug().
				Str("airline", airline.IATACode).
				Str("url", source.URL).
				Msg("Discovery source yielded no registrations")
			continue
		}

		result.Registrations = registrations
		result.Method = source.Type
		result.Confidence = discoveryConfidence(source.Type, len(registrations))
		break
	}

	a.logger.Info().
		Str("airline", airline.IATACode).
		Int("registrations", len(result.Registrations)).
		Str("method", string(result.Method)).
		Float64("confidence", result.Confidence).
		Msg("Fleet discovery completed")
	return result, nil
}

// buildSources assembles the default ordered source list: the airline's
// stored scrape URLs, then its website, then the shared catalog.
func (a *Agent) buildSources(airline *models.Airline) []models.DiscoverySource {
	sources := make([]models.DiscoverySource, 0, len(airline.ScrapeSourceURLs)+4)

	stored := append([]models.SourceURL(nil), airline.ScrapeSourceURLs...)
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].Priority < stored[j].Priority })
	for _, su := range stored {
		sources = append(sources, models.DiscoverySource{
			URL:      su.URL,
			Type:     models.SourceTypeOfficial,
			Priority: 1,
		})
	}

	if airline.WebsiteURL != "" {
		sources = append(sources, models.DiscoverySource{
			URL:      airline.WebsiteURL,
			Type:     models.SourceTypeOfficial,
			Priority: 2,
		})
	}

	sources = append(sources, a.catalog.DiscoverySources(airline.Name)...)

	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Priority < sources[j].Priority })
	return sources
}

// collectFrom fetches one source and extracts its registrations.
func (a *Agent) collectFrom(ctx context.Context, airlineName, sourceURL string, bypassCache bool) ([]string, error) {
	page, err := a.loader.Fetch(ctx, sourceURL, models.FetchOptions{BypassCache: bypassCache})
	if err != nil {
		return nil, err
	}

	prepared, err := a.content.Prepare(page.HTML, page.FinalURL, excerptBudget)
	if err != nil {
		return nil, fmt.Errorf("content preparation failed: %w", err)
	}

	var reply struct {
		Registrations []string `json:"registrations"`
	}
	extractOpts := models.ExtractOptions{
		Operation:    "discovery",
		SystemPrompt: systemPrompt,
	}
	prompt := fmt.Sprintf(promptTemplate, airlineName, prepared.Markdown)
	if err := a.extractor.ExtractJSON(ctx, prompt, extractOpts, &reply); err != nil {
		return nil, err
	}

	return filterRegistrations(reply.Registrations), nil
}

// filterRegistrations normalizes, filters and dedupes extractor output.
// Only plausible registrations survive; strict national-format checks
// belong to validation, not discovery.
func filterRegistrations(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	registrations := make([]string, 0, len(raw))
	for _, r := range raw {
		reg := models.NormalizeRegistration(r)
		if !models.PlausibleRegistration(reg) {
			continue
		}
		if _, dup := seen[reg]; dup {
			continue
		}
		seen[reg] = struct{}{}
		registrations = append(registrations, reg)
	}
	return registrations
}

// discoveryConfidence scores a productive discovery run. Official
// sources outrank databases; trackers get the base score only. Large
// result sets earn size bonuses.
func discoveryConfidence(method models.SourceType, count int) float64 {
	confidence := 0.5
	switch method {
	case models.SourceTypeOfficial:
		confidence += 0.3
	case models.SourceTypeDatabase:
		confidence += 0.2
	}
	if count >= 10 {
		confidence += 0.1
	}
	if count >= 50 {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
