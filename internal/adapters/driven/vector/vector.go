// Package vector holds helpers shared by the local vector index backends.
package vector

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank sorts hits by descending score, ties by ID, and keeps the first topK.
func Rank(hits []domain.VectorHit, topK int) []domain.VectorHit {
	slices.SortFunc(hits, func(a, b domain.VectorHit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// PartitionKey identifies the set of vectors that must share a dimension:
// one tenant and one embedding model.
func PartitionKey(tenantID, model string) string {
	return tenantID + "|" + model
}

// CheckDimensions returns domain.ErrDimensionMismatch when got differs from
// a known partition dimension. want == 0 means the partition is new.
func CheckDimensions(want, got int) error {
	if got == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrInvalidInput)
	}
	if want != 0 && want != got {
		return fmt.Errorf("%w: expected %d dimensions, got %d", domain.ErrDimensionMismatch, want, got)
	}
	return nil
}
