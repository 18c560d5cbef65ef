package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/logger"
)

// VectorSync repairs a knowledge base's vectors from its stored chunks.
type VectorSync struct {
	kbs      driven.KnowledgeBaseStore
	chunks   driven.ChunkStore
	index    driven.VectorIndex
	pipeline *EmbeddingPipeline
}

// Ensure VectorSync implements the interface.
var _ driving.VectorSyncService = (*VectorSync)(nil)

// NewVectorSync creates a VectorSync.
func NewVectorSync(
	kbs driven.KnowledgeBaseStore,
	chunks driven.ChunkStore,
	index driven.VectorIndex,
	pipeline *EmbeddingPipeline,
) *VectorSync {
	return &VectorSync{kbs: kbs, chunks: chunks, index: index, pipeline: pipeline}
}

// Rebuild drops every vector of the knowledge base and re-embeds all chunks
// with its current embedding binding.
func (s *VectorSync) Rebuild(ctx context.Context, knowledgeBaseID string) (*driving.SyncResult, error) {
	kb, chunks, err := s.load(ctx, knowledgeBaseID)
	if err != nil {
		return nil, err
	}

	if err := s.index.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("preparing vector collection: %w", err)
	}
	filter := domain.VectorFilter{domain.FieldKnowledgeBaseID: kb.ID}
	if err := s.index.DeleteByFilter(ctx, kb.Owner().TenantID(), filter); err != nil {
		return nil, fmt.Errorf("clearing vectors: %w", err)
	}

	logger.Info("rebuilding %d chunks in %s with %s/%s", len(chunks), kb.Name, kb.EmbeddingProvider, kb.EmbeddingModel)
	return s.run(ctx, kb, chunks, ProcessOptions{Resync: true})
}

// Verify reports how many chunks lack a usable vector.
func (s *VectorSync) Verify(ctx context.Context, knowledgeBaseID string) (*driving.VectorReport, error) {
	_, chunks, err := s.load(ctx, knowledgeBaseID)
	if err != nil {
		return nil, err
	}

	report := &driving.VectorReport{TotalChunks: len(chunks)}
	for i := range chunks {
		if chunks[i].NeedsEmbedding() {
			report.MissingVectors++
		}
		if chunks[i].Status == domain.EmbeddingFailed {
			report.FailedEmbeddings++
		}
	}
	return report, nil
}

// SyncMissing embeds only the chunks that have no vector or failed before.
func (s *VectorSync) SyncMissing(ctx context.Context, knowledgeBaseID string) (*driving.SyncResult, error) {
	kb, chunks, err := s.load(ctx, knowledgeBaseID)
	if err != nil {
		return nil, err
	}

	missing := chunks[:0]
	for _, c := range chunks {
		if c.NeedsEmbedding() {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return &driving.SyncResult{}, nil
	}

	logger.Info("syncing %d missing vectors in %s", len(missing), kb.Name)
	return s.run(ctx, kb, missing, ProcessOptions{})
}

func (s *VectorSync) load(
	ctx context.Context, knowledgeBaseID string,
) (*domain.KnowledgeBase, []domain.Chunk, error) {
	kb, err := s.kbs.GetKnowledgeBase(ctx, knowledgeBaseID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading knowledge base: %w", err)
	}
	chunks, err := s.chunks.ListChunksByKnowledgeBase(ctx, knowledgeBaseID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing chunks: %w", err)
	}
	return kb, chunks, nil
}

func (s *VectorSync) run(
	ctx context.Context, kb *domain.KnowledgeBase, chunks []domain.Chunk, opts ProcessOptions,
) (*driving.SyncResult, error) {
	ptrs := make([]*domain.Chunk, len(chunks))
	for i := range chunks {
		ptrs[i] = &chunks[i]
	}

	res, err := s.pipeline.ProcessBatch(ctx, kb, ptrs, opts, func(processed, total int) {
		logger.Debug("sync %s: %d/%d", kb.Name, processed, total)
	})
	result := &driving.SyncResult{
		Processed: res.Completed,
		Errors:    res.Failed + res.Skipped,
	}
	return result, err
}
