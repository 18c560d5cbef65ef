package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

func TestEmbeddingPipeline_AllCompleted(t *testing.T) {
	env := newTestEnv(t)
	kb := env.newKB(t, "kb")
	chunks := env.seedChunks(t, kb, "doc", 5)

	var (
		mu       sync.Mutex
		progress []int
	)
	res, err := env.pipeline.ProcessBatch(context.Background(), kb, chunks, ProcessOptions{}, func(p, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 5, total)
		progress = append(progress, p)
	})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Completed: 5}, res)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, progress)

	for _, c := range chunks {
		stored, err := env.docs.GetChunk(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.EmbeddingCompleted, stored.Status)
		assert.Equal(t, c.ID, stored.VectorID)
		assert.Equal(t, "embed-model", stored.EmbeddingModel)
	}
	assert.Equal(t, 5, env.index.Len(domain.DefaultTenant))
}

func TestEmbeddingPipeline_IndexDownSkipsAll(t *testing.T) {
	env := newTestEnv(t)
	kb := env.newKB(t, "kb")
	chunks := env.seedChunks(t, kb, "doc", 5)
	env.index.down.Store(true)

	res, err := env.pipeline.ProcessBatch(context.Background(), kb, chunks, ProcessOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Skipped)
	assert.Zero(t, env.embed.calls.Load(), "no embeddings when the index is down")

	stored, _ := env.docs.ListChunks(context.Background(), "doc")
	for _, c := range stored {
		assert.Equal(t, domain.EmbeddingSkipped, c.Status)
		assert.Empty(t, c.VectorID)
	}
}

func TestEmbeddingPipeline_OneFailureDoesNotStopOthers(t *testing.T) {
	env := newTestEnv(t)
	kb := env.newKB(t, "kb")
	chunks := env.seedChunks(t, kb, "doc", 4)
	env.embed.fail[chunks[1].Content] = errBoom

	res, err := env.pipeline.ProcessBatch(context.Background(), kb, chunks, ProcessOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Completed)
	assert.Equal(t, 1, res.Failed)

	failed, _ := env.docs.GetChunk(context.Background(), chunks[1].ID)
	assert.Equal(t, domain.EmbeddingFailed, failed.Status)
	assert.Contains(t, failed.Error, "boom")
}

func TestEmbeddingPipeline_IndexGoesAwayMidRun(t *testing.T) {
	env := newTestEnv(t)
	kb := env.newKB(t, "kb")
	chunks := env.seedChunks(t, kb, "doc", 6)

	env.index.upsertErr = func(id string) error {
		if id == chunks[2].ID {
			env.index.down.Store(true)
			return domain.ErrIndexUnavailable
		}
		return nil
	}

	res, err := env.pipeline.ProcessBatch(context.Background(), kb, chunks, ProcessOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Completed+res.Skipped)
	assert.GreaterOrEqual(t, res.Skipped, 3, "the failing chunk and every later batch are skipped")
	assert.Zero(t, res.Failed)
}

func TestEmbeddingPipeline_SkipsAlreadyEmbedded(t *testing.T) {
	env := newTestEnv(t)
	kb := env.newKB(t, "kb")
	chunks := env.seedChunks(t, kb, "doc", 3)
	chunks[0].Status = domain.EmbeddingCompleted
	chunks[0].VectorID = chunks[0].ID

	res, err := env.pipeline.ProcessBatch(context.Background(), kb, chunks, ProcessOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AlreadyEmbedded)
	assert.Equal(t, 2, res.Completed)
	assert.EqualValues(t, 2, env.embed.calls.Load())

	res, err = env.pipeline.ProcessBatch(context.Background(), kb, chunks, ProcessOptions{Resync: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Completed)
}

func TestEmbeddingPipeline_CancelledContext(t *testing.T) {
	env := newTestEnv(t)
	kb := env.newKB(t, "kb")
	chunks := env.seedChunks(t, kb, "doc", 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.pipeline.ProcessBatch(ctx, kb, chunks, ProcessOptions{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, env.embed.calls.Load())
}

func TestEmbeddingPipeline_TenantFromKnowledgeBase(t *testing.T) {
	env := newTestEnv(t)
	kb := env.newKB(t, "kb")
	kb.WorkspaceID = testWorkspace
	chunks := env.seedChunks(t, kb, "doc", 2)

	_, err := env.pipeline.ProcessBatch(context.Background(), kb, chunks, ProcessOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, env.index.Len(testWorkspace))
	assert.Zero(t, env.index.Len(domain.DefaultTenant))
}
