package html

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/extractors/plaintext"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// noise is removed before conversion.
const noise = "script, style, noscript, svg, nav, footer, aside, header, form, iframe"

// contentSelectors are tried in order to find the main content.
var contentSelectors = []string{"main", "article", "[role='main']", "#content", ".content", "body"}

var multiNewlines = regexp.MustCompile(`\n{3,}`)

// Extractor handles HTML documents.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Extract converts an HTML page to Markdown text.
func (e *Extractor) Extract(_ context.Context, content []byte, uri string) (*driven.ExtractResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing html: %w", domain.ErrInvalidInput, err)
	}

	title := extractTitle(doc)
	if title == "" {
		title = plaintext.TitleFromURI(uri)
	}

	doc.Find(noise).Remove()
	body := mainContent(doc)

	inner, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("%w: rendering html: %w", domain.ErrInvalidInput, err)
	}

	converter := md.NewConverter(baseDomain(uri), true, nil)
	text, err := converter.ConvertString(inner)
	if err != nil {
		// Fall back to the visible text when conversion fails.
		text = body.Text()
	}
	text = multiNewlines.ReplaceAllString(strings.TrimSpace(text), "\n\n")

	return &driven.ExtractResult{Title: title, Text: text, MIMEType: "text/html"}, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range contentSelectors {
		s := doc.Find(sel).First()
		if s.Length() > 0 && strings.TrimSpace(s.Text()) != "" {
			return s
		}
	}
	return doc.Selection
}

// baseDomain lets relative links resolve against the page host.
func baseDomain(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}
