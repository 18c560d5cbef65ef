package extractors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/logger"
)

// Ensure SiteCrawler implements the interface.
var _ driven.Crawler = (*SiteCrawler)(nil)

// Crawl limits.
const (
	DefaultCrawlPages = 50
	DefaultCrawlDepth = 3
	MaxCrawlPages     = 500
	MaxCrawlDepth     = 10
)

// skippedExtensions are never fetched while following links.
var skippedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true, ".ico": true,
	".css": true, ".js": true, ".zip": true, ".gz": true, ".tar": true, ".mp4": true, ".mp3": true,
	".woff": true, ".woff2": true, ".ttf": true, ".exe": true, ".dmg": true,
}

// SiteCrawler follows same-host links breadth-first using a Fetcher, so
// crawls share the fetcher's size cap and per-host rate limit.
type SiteCrawler struct {
	fetcher driven.Fetcher
}

// NewCrawler creates a crawler on top of fetcher.
func NewCrawler(fetcher driven.Fetcher) *SiteCrawler {
	return &SiteCrawler{fetcher: fetcher}
}

type queued struct {
	url   string
	depth int
}

// Crawl fetches startURL and the pages it links to on the same host, up to
// opts.MaxPages pages and opts.MaxDepth link hops. Pages that fail to fetch
// are logged and skipped.
func (c *SiteCrawler) Crawl(
	ctx context.Context, startURL string, opts driven.CrawlOptions, visit func(driven.CrawledPage) error,
) error {
	opts = crawlDefaults(opts)
	include, err := compilePatterns(opts.Include)
	if err != nil {
		return err
	}
	exclude, err := compilePatterns(opts.Exclude)
	if err != nil {
		return err
	}

	root, err := url.Parse(startURL)
	if err != nil || (root.Scheme != "http" && root.Scheme != "https") || root.Host == "" {
		return fmt.Errorf("%w: unsupported url %q", domain.ErrInvalidInput, startURL)
	}
	root.Fragment = ""
	if root.Path == "" {
		root.Path = "/"
	}

	queue := []queued{{url: root.String()}}
	seen := map[string]bool{root.String(): true}
	pages := 0

	for len(queue) > 0 && pages < opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := queue[0]
		queue = queue[1:]

		content, mimeType, err := c.fetcher.Fetch(ctx, next.url)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logger.Warn("crawl: skipping %s: %v", next.url, err)
			continue
		}
		pages++

		page := driven.CrawledPage{URL: next.url, Depth: next.depth, Content: content, MIMEType: mimeType}
		if err := visit(page); err != nil {
			return err
		}

		if next.depth >= opts.MaxDepth || !isHTML(mimeType) {
			continue
		}
		for _, link := range sameHostLinks(content, next.url, root.Host) {
			if seen[link] || !followable(link, include, exclude) {
				continue
			}
			seen[link] = true
			queue = append(queue, queued{url: link, depth: next.depth + 1})
		}
	}

	logger.Info("crawl of %s: %d pages fetched, %d left unvisited", root.Host, pages, len(queue))
	return nil
}

func crawlDefaults(opts driven.CrawlOptions) driven.CrawlOptions {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultCrawlPages
	}
	opts.MaxPages = min(opts.MaxPages, MaxCrawlPages)
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultCrawlDepth
	}
	opts.MaxDepth = min(opts.MaxDepth, MaxCrawlDepth)
	return opts
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: bad crawl pattern %q: %w", domain.ErrValidation, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func followable(link string, include, exclude []*regexp.Regexp) bool {
	for _, re := range exclude {
		if re.MatchString(link) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, re := range include {
		if re.MatchString(link) {
			return true
		}
	}
	return false
}

func isHTML(mimeType string) bool {
	return mimeType == "" || mimeType == "text/html" || mimeType == "application/xhtml+xml"
}

// sameHostLinks returns the absolute http(s) links in page that stay on
// host, without fragments, in document order.
func sameHostLinks(page []byte, pageURL, host string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		u, err := base.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host != host {
			return
		}
		if skippedExtensions[strings.ToLower(path.Ext(u.Path))] {
			return
		}
		u.Fragment = ""
		links = append(links, u.String())
	})
	return links
}
