package driven

import "context"

// ExtractResult is the text recovered from a raw document.
type ExtractResult struct {
	Title    string
	Text     string
	MIMEType string
}

// TextExtractor converts raw bytes of a given MIME type into plain text.
type TextExtractor interface {
	// SupportedMIMETypes returns the MIME types this extractor handles.
	SupportedMIMETypes() []string

	// Extract converts content to text.
	Extract(ctx context.Context, content []byte, uri string) (*ExtractResult, error)
}

// ExtractorRegistry selects an extractor by MIME type or file extension.
type ExtractorRegistry interface {
	// Extract picks the extractor for mimeType (or uri's extension when
	// mimeType is empty) and runs it. Returns domain.ErrUnsupportedType when
	// nothing matches.
	Extract(ctx context.Context, content []byte, mimeType, uri string) (*ExtractResult, error)
}

// Fetcher retrieves a remote document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (content []byte, mimeType string, err error)
}

// CrawlOptions bounds a crawl. Zero values take the crawler's defaults.
type CrawlOptions struct {
	MaxPages int
	MaxDepth int

	// Include and Exclude are regular expressions matched against discovered
	// link URLs. A link is followed when it matches any Include pattern (or
	// Include is empty) and no Exclude pattern. The start URL is always fetched.
	Include []string
	Exclude []string
}

// CrawledPage is one page fetched during a crawl.
type CrawledPage struct {
	URL      string
	Depth    int
	Content  []byte
	MIMEType string
}

// Crawler walks a website breadth-first from a start URL, staying on its host.
type Crawler interface {
	// Crawl calls visit for every fetched page in discovery order. An error
	// from visit stops the crawl and is returned.
	Crawl(ctx context.Context, startURL string, opts CrawlOptions, visit func(CrawledPage) error) error
}
