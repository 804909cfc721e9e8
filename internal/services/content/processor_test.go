package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const fleetPageHTML = `<!DOCTYPE html>
<html>
<head><title>Qantas Fleet | Planespotters</title></head>
<body>
<nav><a href="/home">Home</a></nav>
<div class="sidebar-promo">Subscribe now!</div>
<main>
<h1>Qantas Fleet Details</h1>
<table>
<tr><th>Registration</th><th>Type</th><th>Status</th></tr>
<tr><td>VH-ABC</td><td>B738</td><td>Active</td></tr>
<tr><td>VH-XYZ</td><td>A332</td><td>Stored</td></tr>
</table>
</main>
<footer>Copyright</footer>
<script>trackPageView();</script>
</body>
</html>`

func TestProcessor_Prepare(t *testing.T) {
	processor := NewProcessor(arbor.NewLogger())

	prepared, err := processor.Prepare(fleetPageHTML, "https://example.com/fleet", 8000)
	require.NoError(t, err)

	assert.Equal(t, "Qantas Fleet | Planespotters", prepared.Title)
	assert.False(t, prepared.Truncated)

	// Fleet table content survives conversion
	assert.Contains(t, prepared.Markdown, "VH-ABC")
	assert.Contains(t, prepared.Markdown, "VH-XYZ")
	assert.Contains(t, prepared.Markdown, "Qantas Fleet Details")

	// Boilerplate does not
	assert.NotContains(t, prepared.Markdown, "trackPageView")
	assert.NotContains(t, prepared.Markdown, "Subscribe now")
	assert.NotContains(t, prepared.Markdown, "Copyright")
}

func TestProcessor_Prepare_TableOutsideMain(t *testing.T) {
	// Fleet grid rendered outside <main> must still be captured
	html := `<html><head><title>Fleet</title></head><body>
<main><p>About our airline</p></main>
<div id="fleet"><table><tr><td>VH-OQA</td></tr></table></div>
</body></html>`

	processor := NewProcessor(arbor.NewLogger())
	prepared, err := processor.Prepare(html, "https://example.com/fleet", 8000)
	require.NoError(t, err)

	assert.Contains(t, prepared.Markdown, "VH-OQA")
}

func TestProcessor_Prepare_Truncation(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><head><title>Long</title></head><body><main>")
	for i := 0; i < 500; i++ {
		b.WriteString("<p>registration row VH-AAA with enough text to pad the line out</p>")
	}
	b.WriteString("</main></body></html>")

	processor := NewProcessor(arbor.NewLogger())
	prepared, err := processor.Prepare(b.String(), "https://example.com/fleet", 2000)
	require.NoError(t, err)

	assert.True(t, prepared.Truncated)
	assert.LessOrEqual(t, len(prepared.Markdown), 2000)
	// Cut lands on a line boundary, never mid-line
	assert.False(t, strings.HasSuffix(prepared.Markdown, "enough"))
	for _, line := range strings.Split(prepared.Markdown, "\n") {
		if strings.TrimSpace(line) != "" {
			assert.True(t, strings.HasSuffix(strings.TrimSpace(line), "out"), "line should be complete: %q", line)
		}
	}
}

func TestProcessor_Prepare_TitleFallback(t *testing.T) {
	processor := NewProcessor(arbor.NewLogger())

	prepared, err := processor.Prepare(
		`<html><body><main><h1>Fleet of Qantas</h1><p>text</p></main></body></html>`,
		"https://example.com", 8000)
	require.NoError(t, err)
	assert.Equal(t, "Fleet of Qantas", prepared.Title)
}

func TestTruncateAtLine(t *testing.T) {
	s := "line one\nline two\nline three"

	out, truncated := truncateAtLine(s, 1000)
	assert.False(t, truncated)
	assert.Equal(t, s, out)

	out, truncated = truncateAtLine(s, 12)
	assert.True(t, truncated)
	assert.Equal(t, "line one", out)

	// No cap
	out, truncated = truncateAtLine(s, 0)
	assert.False(t, truncated)
	assert.Equal(t, s, out)
}
