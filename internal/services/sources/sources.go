// Package sources expands the embedded source catalog into concrete fleet
// data URLs. The catalog is data, not code: adding a fleet database is an
// edit to sources.yaml.
package sources

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var embeddedCatalog []byte

type sourceTemplate struct {
	URL      string            `yaml:"url"`
	Type     models.SourceType `yaml:"type"`
	Priority int               `yaml:"priority"`
}

type catalogFile struct {
	Discovery []sourceTemplate `yaml:"discovery"`
	Details   []sourceTemplate `yaml:"details"`
}

// Catalog holds the parsed source templates, priority-ordered.
type Catalog struct {
	discovery []sourceTemplate
	details   []sourceTemplate
	logger    arbor.ILogger
}

// NewCatalog parses the embedded sources.yaml.
func NewCatalog(logger arbor.ILogger) (interfaces.SourceCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(embeddedCatalog, &file); err != nil {
		return nil, fmt.Errorf("failed to parse embedded source catalog: %w", err)
	}

	sort.SliceStable(file.Discovery, func(i, j int) bool {
		return file.Discovery[i].Priority < file.Discovery[j].Priority
	})
	sort.SliceStable(file.Details, func(i, j int) bool {
		return file.Details[i].Priority < file.Details[j].Priority
	})

	logger.Debug().
		Int("discovery", len(file.Discovery)).
		Int("details", len(file.Details)).
		Msg("Source catalog loaded")

	return &Catalog{
		discovery: file.Discovery,
		details:   file.Details,
		logger:    logger,
	}, nil
}

// DiscoverySources returns fleet-listing URLs for the airline name,
// ordered by priority.
func (c *Catalog) DiscoverySources(airlineName string) []models.DiscoverySource {
	slug := Slugify(airlineName)
	out := make([]models.DiscoverySource, 0, len(c.discovery))
	for _, tpl := range c.discovery {
		out = append(out, models.DiscoverySource{
			URL:      strings.ReplaceAll(tpl.URL, "{airline}", slug),
			Type:     tpl.Type,
			Priority: tpl.Priority,
		})
	}
	return out
}

// DetailSources returns per-registration detail URLs, ordered by priority.
func (c *Catalog) DetailSources(registration string) []models.DiscoverySource {
	reg := models.NormalizeRegistration(registration)
	out := make([]models.DiscoverySource, 0, len(c.details))
	for _, tpl := range c.details {
		out = append(out, models.DiscoverySource{
			URL:      strings.ReplaceAll(tpl.URL, "{registration}", reg),
			Type:     tpl.Type,
			Priority: tpl.Priority,
		})
	}
	return out
}

// Slugify lowercases a name and folds runs of non-alphanumerics into
// single hyphens, the form fleet databases use in their airline URLs.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
