// Package content prepares rendered HTML for the extractor: boilerplate
// removal, markdown conversion and a size-capped excerpt that keeps fleet
// tables intact.
package content

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

// Prepared is the extractor-ready form of one page.
type Prepared struct {
	Title     string `json:"title"`
	Markdown  string `json:"markdown"`
	Truncated bool   `json:"truncated"`
}

// Processor converts raw page HTML into prompt-sized markdown.
type Processor struct {
	logger arbor.ILogger
}

// NewProcessor creates a new content processor
func NewProcessor(logger arbor.ILogger) *Processor {
	return &Processor{
		logger: logger,
	}
}

// Prepare parses the HTML, strips boilerplate, converts the main content
// region to markdown and truncates it to maxChars on a line boundary so a
// fleet table row is never cut mid-registration.
func (p *Processor) Prepare(html string, sourceURL string, maxChars int) (*Prepared, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := p.extractTitle(doc)

	// Remove boilerplate elements before selecting the content region
	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()
	doc.Find("[class*=ad], [id*=ad], [class*=promo], [class*=sidebar]").Remove()

	region := p.contentRegion(doc)
	regionHTML, err := region.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize content region: %w", err)
	}

	converter := md.NewConverter(sourceURL, true, nil)
	markdown, err := converter.ConvertString(regionHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}

	markdown = collapseBlankLines(markdown)
	markdown, truncated := truncateAtLine(markdown, maxChars)

	p.logger.Debug().
		Str("source_url", sourceURL).
		Str("title", title).
		Int("markdown_chars", len(markdown)).
		Str("truncated", fmt.Sprintf("%v", truncated)).
		Msg("Page content prepared")

	return &Prepared{
		Title:     title,
		Markdown:  markdown,
		Truncated: truncated,
	}, nil
}

// extractTitle extracts the page title from various sources
func (p *Processor) extractTitle(doc *goquery.Document) string {
	// Try <title> tag first
	if title := doc.Find("title").First().Text(); title != "" {
		return strings.TrimSpace(title)
	}

	// Try Open Graph title
	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists && ogTitle != "" {
		return strings.TrimSpace(ogTitle)
	}

	// Try h1 tag
	if h1 := doc.Find("h1").First().Text(); h1 != "" {
		return strings.TrimSpace(h1)
	}

	return ""
}

// contentRegion picks the selection the markdown comes from. Main content
// containers win, but only when they actually carry the fleet table - many
// airline sites render the fleet grid outside <main>.
func (p *Processor) contentRegion(doc *goquery.Document) *goquery.Selection {
	main := doc.Find("main, article, [role=main]").First()
	if main.Length() > 0 {
		if doc.Find("table").Length() == 0 || main.Find("table").Length() > 0 {
			return main
		}
	}

	body := doc.Find("body")
	if body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// collapseBlankLines folds runs of three or more newlines into two.
func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}

// truncateAtLine cuts s to at most max characters, backing up to the last
// full line. A max of zero or less means no cap.
func truncateAtLine(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}

	cut := strings.LastIndex(s[:max], "\n")
	if cut <= 0 {
		cut = max
	}
	return strings.TrimSpace(s[:cut]), true
}
