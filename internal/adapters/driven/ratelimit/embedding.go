// Package ratelimit throttles calls to hosted embedding providers.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/logger"
)

// Ensure Embedder implements the interface.
var _ driven.EmbeddingProvider = (*Embedder)(nil)

// DefaultBackoff is how long calls pause after the provider reports a rate limit.
const DefaultBackoff = 30 * time.Second

// Config holds rate limiting configuration for one provider.
type Config struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
	// Backoff is the pause after a rate limit error (default: 30s).
	Backoff time.Duration
}

// Embedder wraps an EmbeddingProvider with a token bucket. A provider
// error that looks like HTTP 429 pauses every later call for Backoff.
type Embedder struct {
	next    driven.EmbeddingProvider
	limiter *rate.Limiter
	backoff time.Duration

	mu      sync.Mutex
	retryAt time.Time
	now     func() time.Time
}

// Wrap returns next throttled by cfg. A non-positive rate returns next unchanged.
func Wrap(next driven.EmbeddingProvider, cfg Config) driven.EmbeddingProvider {
	if cfg.RequestsPerSecond <= 0 {
		return next
	}
	return New(next, cfg)
}

// New creates a rate-limited embedder.
func New(next driven.EmbeddingProvider, cfg Config) *Embedder {
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = max(1, int(cfg.RequestsPerSecond))
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &Embedder{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		backoff: cfg.Backoff,
		now:     time.Now,
	}
}

// Kind returns the wrapped provider's kind.
func (e *Embedder) Kind() domain.ProviderKind {
	return e.next.Kind()
}

// GenerateEmbedding waits for a token, then delegates.
func (e *Embedder) GenerateEmbedding(ctx context.Context, text string, b domain.ProviderBinding) ([]float32, error) {
	if err := e.Wait(ctx); err != nil {
		return nil, err
	}
	vec, err := e.next.GenerateEmbedding(ctx, text, b)
	if err != nil && isRateLimited(err) {
		e.recordRateLimit()
	}
	return vec, err
}

// Wait blocks until a call may be made, honouring any active backoff.
func (e *Embedder) Wait(ctx context.Context) error {
	e.mu.Lock()
	retryAt := e.retryAt
	e.mu.Unlock()

	if wait := retryAt.Sub(e.now()); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return e.limiter.Wait(ctx)
}

func (e *Embedder) recordRateLimit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retryAt = e.now().Add(e.backoff)
	logger.Warn("%s embeddings rate limited, pausing for %s", e.next.Kind(), e.backoff)
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted")
}
