package driven

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// VectorIndex stores and searches embedding vectors partitioned by tenant.
type VectorIndex interface {
	// EnsureCollection creates the collection if missing. Idempotent.
	EnsureCollection(ctx context.Context) error

	// TestConnection returns nil if the backend is reachable.
	TestConnection(ctx context.Context) error

	// Upsert writes a vector under id, replacing any previous vector with the
	// same id. The payload's tenant is set from tenantID.
	Upsert(ctx context.Context, id string, vector []float32, payload domain.VectorPayload,
		tenantID string) (string, error)

	// Search returns up to topK hits in tenantID ordered by descending cosine
	// similarity. An unreachable backend yields an empty result, not an error.
	Search(ctx context.Context, vector []float32, topK int, tenantID string,
		filter domain.VectorFilter) ([]domain.VectorHit, error)

	// Delete removes a vector by id.
	Delete(ctx context.Context, id string) error

	// DeleteByFilter removes every vector in tenantID matching filter.
	DeleteByFilter(ctx context.Context, tenantID string, filter domain.VectorFilter) error

	// Close releases resources.
	Close() error
}
