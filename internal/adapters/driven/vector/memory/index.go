// Package memory provides an in-process vector index.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/ragline/internal/adapters/driven/vector"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is a brute-force cosine index held in memory, partitioned by tenant.
type Index struct {
	mu         sync.RWMutex
	tenants    map[string]map[string]domain.VectorRecord
	dimensions map[string]int
	closed     bool
}

// New creates an empty index.
func New() *Index {
	return &Index{
		tenants:    make(map[string]map[string]domain.VectorRecord),
		dimensions: make(map[string]int),
	}
}

// EnsureCollection is a no-op; partitions are created on first write.
func (i *Index) EnsureCollection(ctx context.Context) error {
	return i.TestConnection(ctx)
}

// TestConnection fails only after Close.
func (i *Index) TestConnection(_ context.Context) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return domain.ErrIndexUnavailable
	}
	return nil
}

// Upsert stores vector under id in the tenant's partition.
func (i *Index) Upsert(
	_ context.Context, id string, vec []float32, payload domain.VectorPayload, tenantID string,
) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return "", domain.ErrIndexUnavailable
	}

	key := vector.PartitionKey(tenantID, payload.EmbeddingModel)
	if err := vector.CheckDimensions(i.dimensions[key], len(vec)); err != nil {
		return "", err
	}
	i.dimensions[key] = len(vec)

	payload.TenantID = tenantID
	payload.Dimensions = len(vec)
	points, ok := i.tenants[tenantID]
	if !ok {
		points = make(map[string]domain.VectorRecord)
		i.tenants[tenantID] = points
	}
	points[id] = domain.VectorRecord{ID: id, Vector: slices.Clone(vec), Payload: payload}
	return id, nil
}

// Search scores every matching vector in the tenant's partition.
func (i *Index) Search(
	_ context.Context, vec []float32, topK int, tenantID string, filter domain.VectorFilter,
) ([]domain.VectorHit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return []domain.VectorHit{}, nil
	}

	hits := make([]domain.VectorHit, 0)
	for _, rec := range i.tenants[tenantID] {
		if len(rec.Vector) != len(vec) || !filter.Matches(rec.Payload) {
			continue
		}
		hits = append(hits, domain.VectorHit{
			ID:      rec.ID,
			Score:   vector.Cosine(vec, rec.Vector),
			Payload: rec.Payload,
		})
	}
	return vector.Rank(hits, topK), nil
}

// Delete removes id from every partition.
func (i *Index) Delete(_ context.Context, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, points := range i.tenants {
		delete(points, id)
	}
	return nil
}

// DeleteByFilter removes the tenant's vectors matching filter.
func (i *Index) DeleteByFilter(_ context.Context, tenantID string, filter domain.VectorFilter) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for id, rec := range i.tenants[tenantID] {
		if filter.Matches(rec.Payload) {
			delete(i.tenants[tenantID], id)
		}
	}
	return nil
}

// Len returns the number of vectors stored for tenantID.
func (i *Index) Len(tenantID string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.tenants[tenantID])
}

// Close marks the index unavailable.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}
