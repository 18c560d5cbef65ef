// Package ristretto provides the query embedding cache.
package ristretto

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.EmbeddingCache = (*Cache)(nil)

const (
	// DefaultTTL is how long a query embedding stays cached.
	DefaultTTL = time.Hour

	// DefaultMaxCost bounds the cache by total float32 count (about 32 MiB).
	DefaultMaxCost = 8 << 20
)

// Config holds cache sizing.
type Config struct {
	TTL     time.Duration
	MaxCost int64
}

// Cache stores query embeddings with a fixed TTL. Each entry costs its
// vector length.
type Cache struct {
	cache *ristretto.Cache[string, []float32]
	ttl   time.Duration
}

// New creates a cache. Zero values fall back to the defaults.
func New(cfg Config) (*Cache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = DefaultMaxCost
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
		NumCounters: 1e5,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &Cache{cache: c, ttl: cfg.TTL}, nil
}

// Get returns a cached vector.
func (c *Cache) Get(key string) ([]float32, bool) {
	return c.cache.Get(key)
}

// Set stores vector under key. Writes are applied asynchronously, so a Get
// immediately after Set may miss.
func (c *Cache) Set(key string, vector []float32) {
	cost := int64(len(vector))
	if cost == 0 {
		cost = 1
	}
	c.cache.SetWithTTL(key, vector, cost, c.ttl)
}

// Wait blocks until buffered writes are applied.
func (c *Cache) Wait() {
	c.cache.Wait()
}

// Close stops the cache's background goroutines.
func (c *Cache) Close() {
	c.cache.Close()
}
