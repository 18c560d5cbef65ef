package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interfaces.
var (
	_ driven.DocumentStore = (*DocumentStore)(nil)
	_ driven.ChunkStore    = (*DocumentStore)(nil)
)

// DocumentStore is an in-memory implementation of driven.DocumentStore and
// driven.ChunkStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string]domain.Chunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string]domain.Chunk),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListDocuments returns documents in a knowledge base, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context, knowledgeBaseID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for id := range s.documents {
		if s.documents[id].KnowledgeBaseID == knowledgeBaseID {
			result = append(result, s.documents[id])
		}
	}
	slices.SortFunc(result, func(a, b domain.Document) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result, nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	s.deleteChunksLocked(id)
	return nil
}

// SaveChunks stores or updates chunks.
func (s *DocumentStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range chunks {
		s.chunks[chunks[i].ID] = chunks[i]
	}
	return nil
}

// UpdateChunk persists a single chunk.
func (s *DocumentStore) UpdateChunk(_ context.Context, chunk *domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[chunk.ID]; !ok {
		return domain.ErrNotFound
	}
	s.chunks[chunk.ID] = *chunk
	return nil
}

// GetChunk retrieves a chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

// ListChunks returns a document's chunks ordered by index.
func (s *DocumentStore) ListChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	return s.filterChunks(func(c *domain.Chunk) bool { return c.DocumentID == documentID }), nil
}

// ListChunksByKnowledgeBase returns a knowledge base's chunks ordered by
// document then index.
func (s *DocumentStore) ListChunksByKnowledgeBase(_ context.Context, knowledgeBaseID string) ([]domain.Chunk, error) {
	return s.filterChunks(func(c *domain.Chunk) bool { return c.KnowledgeBaseID == knowledgeBaseID }), nil
}

// DeleteChunks removes all chunks of a document.
func (s *DocumentStore) DeleteChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteChunksLocked(documentID)
	return nil
}

func (s *DocumentStore) deleteChunksLocked(documentID string) {
	for id := range s.chunks {
		if s.chunks[id].DocumentID == documentID {
			delete(s.chunks, id)
		}
	}
}

func (s *DocumentStore) filterChunks(keep func(*domain.Chunk) bool) []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Chunk
	for id := range s.chunks {
		c := s.chunks[id]
		if keep(&c) {
			result = append(result, c)
		}
	}
	slices.SortFunc(result, func(a, b domain.Chunk) int {
		if a.DocumentID != b.DocumentID {
			if a.DocumentID < b.DocumentID {
				return -1
			}
			return 1
		}
		return a.Index - b.Index
	})
	return result
}
