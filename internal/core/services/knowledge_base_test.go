package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
)

func newKBService(env *testEnv) *KnowledgeBaseService {
	return NewKnowledgeBaseService(env.kbs, env.kbs, env.docs, env.docs, env.providers, env.index,
		env.tracker, domain.DefaultAppSettings())
}

func TestKnowledgeBaseService_CreateAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)
	svc := newKBService(env)

	kb, err := svc.CreateKnowledgeBase(context.Background(), driving.CreateKnowledgeBaseRequest{
		Name:      "handbook",
		CreatedBy: testUser,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, kb.ID)
	assert.Equal(t, domain.ProviderGoogle, kb.EmbeddingProvider)
	assert.Equal(t, "text-embedding-004", kb.EmbeddingModel)
	assert.Equal(t, domain.DefaultChunkSize, kb.ChunkSize)
	assert.Equal(t, domain.DefaultChunkOverlap, kb.ChunkOverlap)

	kb, err = svc.CreateKnowledgeBase(context.Background(), driving.CreateKnowledgeBaseRequest{
		Name:              "local",
		CreatedBy:         testUser,
		EmbeddingProvider: domain.ProviderOllama,
		ChunkSize:         500,
		ChunkOverlap:      50,
	})
	require.NoError(t, err)
	assert.Equal(t, "mxbai-embed-large:latest", kb.EmbeddingModel)
	assert.Equal(t, 500, kb.ChunkSize)
	assert.Equal(t, 50, kb.ChunkOverlap)
}

func TestKnowledgeBaseService_CreateRejectsInvalid(t *testing.T) {
	env := newTestEnv(t)
	svc := newKBService(env)

	tests := []struct {
		name string
		req  driving.CreateKnowledgeBaseRequest
	}{
		{"missing name", driving.CreateKnowledgeBaseRequest{CreatedBy: testUser}},
		{"missing owner", driving.CreateKnowledgeBaseRequest{Name: "kb"}},
		{"anthropic cannot embed", driving.CreateKnowledgeBaseRequest{
			Name: "kb", CreatedBy: testUser, EmbeddingProvider: domain.ProviderAnthropic,
		}},
		{"unknown provider", driving.CreateKnowledgeBaseRequest{
			Name: "kb", CreatedBy: testUser, EmbeddingProvider: "cohere",
		}},
		{"overlap not below size", driving.CreateKnowledgeBaseRequest{
			Name: "kb", CreatedBy: testUser, ChunkSize: 100, ChunkOverlap: 100,
		}},
		{"negative size", driving.CreateKnowledgeBaseRequest{
			Name: "kb", CreatedBy: testUser, ChunkSize: -1,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateKnowledgeBase(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestKnowledgeBaseService_DeleteRemovesEverything(t *testing.T) {
	env := newTestEnv(t)
	svc := newKBService(env)
	ingest := newIngestion(env)
	kb := env.newKB(t, "kb")

	_, job, err := ingest.Ingest(context.Background(), driving.IngestRequest{
		KnowledgeBaseID: kb.ID, Content: "abcdefghijklmnopqrstuvwxyz",
	})
	require.NoError(t, err)
	waitJob(t, ingest, job.ID)

	got, err := svc.GetKnowledgeBase(context.Background(), kb.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalDocuments)

	require.NoError(t, svc.DeleteKnowledgeBase(context.Background(), kb.ID))

	assert.Zero(t, env.index.Len(domain.DefaultTenant))
	chunks, _ := env.docs.ListChunksByKnowledgeBase(context.Background(), kb.ID)
	assert.Empty(t, chunks)
	_, err = svc.GetKnowledgeBase(context.Background(), kb.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKnowledgeBaseService_DeleteRefusesWithActiveJob(t *testing.T) {
	env := newTestEnv(t)
	svc := newKBService(env)
	kb := env.newKB(t, "kb")

	release := make(chan struct{})
	defer close(release)
	_, err := env.tracker.Submit("doc", "", kb.ID, func(context.Context, ProgressFunc) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteKnowledgeBase(context.Background(), kb.ID), domain.ErrInvalidInput)
}

func TestKnowledgeBaseService_SetEmbedding(t *testing.T) {
	env := newTestEnv(t)
	svc := newKBService(env)
	kb := env.newKB(t, "kb")
	kb.EmbeddingProviderID = "pinned"
	require.NoError(t, env.kbs.SaveKnowledgeBase(context.Background(), kb))

	updated, err := svc.SetEmbedding(context.Background(), kb.ID, domain.ProviderOpenAI, "", false)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderOpenAI, updated.EmbeddingProvider)
	assert.Equal(t, "text-embedding-3-small", updated.EmbeddingModel)
	assert.Empty(t, updated.EmbeddingProviderID)

	_, err = svc.SetEmbedding(context.Background(), kb.ID, domain.ProviderAnthropic, "", false)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestKnowledgeBaseService_SetEmbedding_RefusesMixedVectors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := newKBService(env)
	kb := env.newKB(t, "kb")

	require.NoError(t, env.docs.SaveChunks(ctx, []domain.Chunk{
		{ID: "c1", DocumentID: "d1", KnowledgeBaseID: kb.ID, Content: "a",
			Status: domain.EmbeddingCompleted, EmbeddingModel: kb.EmbeddingModel},
		{ID: "c2", DocumentID: "d1", KnowledgeBaseID: kb.ID, Index: 1, Content: "b",
			Status: domain.EmbeddingPending},
	}))

	_, err := svc.SetEmbedding(ctx, kb.ID, domain.ProviderOpenAI, "", false)
	require.ErrorIs(t, err, domain.ErrEmbeddingModelMismatch)
	stored, err := env.kbs.GetKnowledgeBase(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, kb.EmbeddingModel, stored.EmbeddingModel, "binding unchanged")

	updated, err := svc.SetEmbedding(ctx, kb.ID, domain.ProviderOpenAI, "", true)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", updated.EmbeddingModel)
}

func TestKnowledgeBaseService_SaveBot(t *testing.T) {
	env := newTestEnv(t)
	svc := newKBService(env)
	kb := env.newKB(t, "kb")

	bot := &domain.Bot{Name: "helper", CreatedBy: testUser, KnowledgeBaseIDs: []string{kb.ID}}
	require.NoError(t, svc.SaveBot(context.Background(), bot))
	assert.NotEmpty(t, bot.ID)
	assert.False(t, bot.CreatedAt.IsZero())

	err := svc.SaveBot(context.Background(), &domain.Bot{
		Name: "broken", CreatedBy: testUser, KnowledgeBaseIDs: []string{"missing"},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.SaveBot(context.Background(), &domain.Bot{CreatedBy: testUser}), domain.ErrValidation)

	bots, err := svc.ListBots(context.Background())
	require.NoError(t, err)
	assert.Len(t, bots, 1)
}

func TestKnowledgeBaseService_AddProvider(t *testing.T) {
	env := newTestEnv(t)
	svc := newKBService(env)

	cfg := &domain.ProviderConfig{Kind: domain.ProviderOpenAI, ScopeID: testUser, Credential: "sk", IsActive: true}
	require.NoError(t, svc.AddProvider(context.Background(), cfg))
	assert.NotEmpty(t, cfg.ID)
	assert.Equal(t, domain.ScopeUser, cfg.Scope)
	assert.Equal(t, "OpenAI (cloud)", cfg.DisplayName)

	stored, err := env.providers.Lookup(context.Background(), domain.ScopeUser, testUser, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, "sk", stored.Credential)

	tests := []struct {
		name string
		cfg  domain.ProviderConfig
	}{
		{"unknown kind", domain.ProviderConfig{Kind: "cohere", ScopeID: testUser}},
		{"hosted without key", domain.ProviderConfig{Kind: domain.ProviderGoogle, ScopeID: testUser}},
		{"custom without url", domain.ProviderConfig{Kind: domain.ProviderCustom, ScopeID: testUser}},
		{"missing scope id", domain.ProviderConfig{Kind: domain.ProviderOllama}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			assert.ErrorIs(t, svc.AddProvider(context.Background(), &cfg), domain.ErrValidation)
		})
	}

	all, err := svc.ListProviders(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NoError(t, svc.RemoveProvider(context.Background(), cfg.ID))
	all, _ = svc.ListProviders(context.Background())
	assert.Empty(t, all)
}
