package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestVectorBackend_IsValid tests all valid and invalid backends
func TestVectorBackend_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		backend  VectorBackend
		expected bool
	}{
		{name: "qdrant is valid", backend: VectorBackendQdrant, expected: true},
		{name: "badger is valid", backend: VectorBackendBadger, expected: true},
		{name: "memory is valid", backend: VectorBackendMemory, expected: true},
		{name: "empty is invalid", backend: "", expected: false},
		{name: "unknown is invalid", backend: "pgvector", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.backend.IsValid())
		})
	}
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, DefaultChunkSize, s.Chunker.Size)
	assert.Equal(t, DefaultChunkOverlap, s.Chunker.Overlap)
	assert.Less(t, s.Chunker.Overlap, s.Chunker.Size)
	assert.Equal(t, VectorBackendBadger, s.Vector.Backend)
	assert.Equal(t, ProviderGoogle, s.EmbeddingProvider)
	assert.Equal(t, "text-embedding-004", s.EmbeddingModel)
	assert.Equal(t, DefaultSchedule, s.MaintenanceSchedule)
	assert.Positive(t, s.Jobs.MaxConcurrent)
}

func TestDefaultEmbeddingModel(t *testing.T) {
	tests := []struct {
		kind     ProviderKind
		expected string
	}{
		{ProviderOllama, "mxbai-embed-large:latest"},
		{ProviderOpenAI, "text-embedding-3-small"},
		{ProviderCustom, "text-embedding-3-small"},
		{ProviderGoogle, "text-embedding-004"},
		{ProviderAnthropic, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.expected, DefaultEmbeddingModel(tt.kind))
		})
	}
}

func TestDefaultGenerationModelFor_CoversEveryKind(t *testing.T) {
	for _, k := range AllProviderKinds {
		assert.NotEmpty(t, DefaultGenerationModelFor(k), k)
	}
	assert.Empty(t, DefaultGenerationModelFor("unknown"))
}

func TestEmbeddingDimensions_DefaultModelsAreKnown(t *testing.T) {
	dims := EmbeddingDimensions()
	for _, k := range AllProviderKinds {
		if m := DefaultEmbeddingModel(k); m != "" {
			assert.Positive(t, dims[m], m)
		}
	}
}

func TestDimensionsFor(t *testing.T) {
	assert.Equal(t, 1536, DimensionsFor("text-embedding-3-small"))
	assert.Equal(t, 384, DimensionsFor("all-minilm"))
	assert.Equal(t, DefaultDimensions, DimensionsFor("unknown-model"))
}
