package sources

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aerofleet/internal/models"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"Qantas", "qantas"},
		{"Virgin Australia", "virgin-australia"},
		{"  Air  New  Zealand  ", "air-new-zealand"},
		{"KLM (Royal Dutch Airlines)", "klm-royal-dutch-airlines"},
		{"Lufthansa-Cargo", "lufthansa-cargo"},
		{"", ""},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, Slugify(test.name), "Slugify(%q)", test.name)
	}
}

func TestCatalog_DiscoverySources(t *testing.T) {
	catalog, err := NewCatalog(arbor.NewLogger())
	require.NoError(t, err)

	srcs := catalog.DiscoverySources("Virgin Australia")
	require.NotEmpty(t, srcs)

	for _, src := range srcs {
		assert.Contains(t, src.URL, "virgin-australia")
		assert.NotContains(t, src.URL, "{airline}")
		assert.NotEqual(t, models.SourceTypeNone, src.Type)
	}

	// Priority ascending
	for i := 1; i < len(srcs); i++ {
		assert.LessOrEqual(t, srcs[i-1].Priority, srcs[i].Priority)
	}
}

func TestCatalog_DetailSources(t *testing.T) {
	catalog, err := NewCatalog(arbor.NewLogger())
	require.NoError(t, err)

	srcs := catalog.DetailSources("vh-abc")
	require.NotEmpty(t, srcs)

	for _, src := range srcs {
		// Registration is normalized before substitution
		assert.True(t, strings.Contains(src.URL, "VH-ABC"), "URL %s should carry the registration", src.URL)
		assert.NotContains(t, src.URL, "{registration}")
	}

	for i := 1; i < len(srcs); i++ {
		assert.LessOrEqual(t, srcs[i-1].Priority, srcs[i].Priority)
	}
}
