package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   EmbeddingStatus
		expected bool
	}{
		{EmbeddingPending, false},
		{EmbeddingProcessing, false},
		{EmbeddingCompleted, true},
		{EmbeddingFailed, true},
		{EmbeddingSkipped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsTerminal())
		})
	}
}

func TestChunk_NeedsEmbedding(t *testing.T) {
	tests := []struct {
		name     string
		chunk    Chunk
		expected bool
	}{
		{name: "pending", chunk: Chunk{Status: EmbeddingPending}, expected: true},
		{name: "failed", chunk: Chunk{Status: EmbeddingFailed, VectorID: "v"}, expected: true},
		{name: "completed without vector", chunk: Chunk{Status: EmbeddingCompleted}, expected: true},
		{name: "completed with vector", chunk: Chunk{Status: EmbeddingCompleted, VectorID: "v"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.chunk.NeedsEmbedding())
		})
	}
}
