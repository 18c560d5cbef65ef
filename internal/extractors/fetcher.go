package extractors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/logger"
)

// Ensure HTTPFetcher implements the interface.
var _ driven.Fetcher = (*HTTPFetcher)(nil)

// Fetcher defaults.
const (
	DefaultFetchTimeout  = 30 * time.Second
	DefaultMaxBodySize   = 20 << 20
	DefaultHostRateLimit = 2.0
	DefaultUserAgent     = "ragline/1.0 (+https://github.com/custodia-labs/ragline)"
)

// FetcherConfig configures an HTTPFetcher.
type FetcherConfig struct {
	Timeout     time.Duration
	MaxBodySize int64
	// PerHostRPS limits requests per host; zero disables the limit.
	PerHostRPS float64
	UserAgent  string
	Client     *http.Client
}

// HTTPFetcher downloads documents over HTTP(S).
type HTTPFetcher struct {
	client      *http.Client
	maxBodySize int64
	userAgent   string
	rps         float64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a fetcher, filling zero fields with defaults.
func NewFetcher(cfg FetcherConfig) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPFetcher{
		client:      client,
		maxBodySize: cfg.MaxBodySize,
		userAgent:   cfg.UserAgent,
		rps:         cfg.PerHostRPS,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Fetch downloads rawURL and returns its body and Content-Type. Bodies
// larger than the configured cap are rejected rather than truncated.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("%w: unsupported url %q", domain.ErrInvalidInput, rawURL)
	}

	if limiter := f.limiter(u.Host); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,text/markdown,*/*;q=0.8")

	logger.Debug("fetching %s", u.Redacted())
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: %s returned status %d", domain.ErrUnavailable, u.Host, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading body: %w", domain.ErrUnavailable, err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, "", fmt.Errorf("%w: document exceeds %d bytes", domain.ErrInvalidInput, f.maxBodySize)
	}
	return body, normalise(resp.Header.Get("Content-Type")), nil
}

func (f *HTTPFetcher) limiter(host string) *rate.Limiter {
	if f.rps <= 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.rps), 1)
		f.limiters[host] = l
	}
	return l
}
