package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

func TestDocumentStore_SaveAndGet(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	doc := &domain.Document{ID: "doc-1", KnowledgeBaseID: "kb-1", Name: "notes.md", Status: domain.DocumentPending}
	require.NoError(t, store.SaveDocument(ctx, doc))

	got, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "notes.md", got.Name)

	// Returned copies do not alias the store.
	got.Name = "changed"
	again, _ := store.GetDocument(ctx, "doc-1")
	assert.Equal(t, "notes.md", again.Name)
}

func TestDocumentStore_GetDocument_NotFound(t *testing.T) {
	store := NewDocumentStore()
	_, err := store.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ListDocuments_NewestFirst(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "old", KnowledgeBaseID: "kb", CreatedAt: now}))
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "new", KnowledgeBaseID: "kb", CreatedAt: now.Add(time.Minute)}))
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "other", KnowledgeBaseID: "kb-2", CreatedAt: now}))

	docs, err := store.ListDocuments(ctx, "kb")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "new", docs[0].ID)
	assert.Equal(t, "old", docs[1].ID)
}

func TestDocumentStore_Chunks(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	chunks := []domain.Chunk{
		{ID: "c2", DocumentID: "doc-1", KnowledgeBaseID: "kb", Index: 1},
		{ID: "c1", DocumentID: "doc-1", KnowledgeBaseID: "kb", Index: 0},
		{ID: "c3", DocumentID: "doc-2", KnowledgeBaseID: "kb", Index: 0},
	}
	require.NoError(t, store.SaveChunks(ctx, chunks))

	listed, err := store.ListChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "c1", listed[0].ID)
	assert.Equal(t, "c2", listed[1].ID)

	all, err := store.ListChunksByKnowledgeBase(ctx, "kb")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	c := listed[0]
	c.Status = domain.EmbeddingCompleted
	c.VectorID = "c1"
	require.NoError(t, store.UpdateChunk(ctx, &c))
	got, err := store.GetChunk(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingCompleted, got.Status)

	require.NoError(t, store.DeleteChunks(ctx, "doc-1"))
	all, _ = store.ListChunksByKnowledgeBase(ctx, "kb")
	assert.Len(t, all, 1)
}

func TestDocumentStore_UpdateChunk_NotFound(t *testing.T) {
	store := NewDocumentStore()
	err := store.UpdateChunk(context.Background(), &domain.Chunk{ID: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_DeleteDocument_RemovesChunks(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "doc-1", KnowledgeBaseID: "kb"}))
	require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{{ID: "c1", DocumentID: "doc-1", KnowledgeBaseID: "kb"}}))

	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))

	_, err := store.GetChunk(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProviderStore_ScopedLookup(t *testing.T) {
	store := NewProviderStore(
		domain.ProviderConfig{ID: "p1", Kind: domain.ProviderOpenAI, Scope: domain.ScopeUser, ScopeID: "u1", IsActive: true},
		domain.ProviderConfig{ID: "p2", Kind: domain.ProviderGoogle, Scope: domain.ScopeWorkspace, ScopeID: "w1", IsActive: false},
	)
	ctx := context.Background()

	_, err := store.Lookup(ctx, domain.ScopeWorkspace, "w1", "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cfg, err := store.Lookup(ctx, domain.ScopeUser, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderOpenAI, cfg.Kind)

	active, err := store.ListActive(ctx, domain.ScopeWorkspace, "w1")
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, store.DeleteProviderConfig(ctx, "p1"))
	all, _ := store.ListProviderConfigs(ctx)
	assert.Len(t, all, 1)
}

func TestJobStore_ListJobs(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	for _, id := range []string{"j1", "j2", "j3"} {
		require.NoError(t, store.SaveJob(ctx, &domain.ProcessingJob{ID: id, KnowledgeBaseID: "kb"}))
	}
	require.NoError(t, store.SaveJob(ctx, &domain.ProcessingJob{ID: "j4", KnowledgeBaseID: "other"}))

	jobs, err := store.ListJobs(ctx, "kb", 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j3", jobs[0].ID)
	assert.Equal(t, "j2", jobs[1].ID)
}
