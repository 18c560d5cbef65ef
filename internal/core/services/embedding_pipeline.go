package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/logger"
)

// ProgressFunc is called after every chunk resolves with (processed, total).
// Calls are serialised; processed never decreases.
type ProgressFunc func(processed, total int)

// BatchResult counts chunk outcomes of one ProcessBatch call.
type BatchResult struct {
	Completed int
	Failed    int
	Skipped   int

	// AlreadyEmbedded counts completed chunks left untouched.
	AlreadyEmbedded int
}

// ProcessOptions alters ProcessBatch behaviour.
type ProcessOptions struct {
	// Resync re-embeds chunks that are already completed.
	Resync bool
}

// indexUnavailableMessage is recorded on chunks skipped because of an index outage.
const indexUnavailableMessage = "vector service unavailable"

// EmbeddingPipeline embeds chunks in bounded concurrent batches and writes
// the vectors to the index.
type EmbeddingPipeline struct {
	embedder   *Embedder
	index      driven.VectorIndex
	chunks     driven.ChunkStore
	pool       *ants.Pool
	batchSize  int
	batchDelay time.Duration
}

// PipelineOption configures an EmbeddingPipeline.
type PipelineOption func(*EmbeddingPipeline)

// WithBatchSize sets how many chunks are in flight per batch.
func WithBatchSize(n int) PipelineOption {
	return func(p *EmbeddingPipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithBatchDelay sets the pause between batches.
func WithBatchDelay(d time.Duration) PipelineOption {
	return func(p *EmbeddingPipeline) {
		if d >= 0 {
			p.batchDelay = d
		}
	}
}

// NewEmbeddingPipeline creates a pipeline. The worker pool is sized so that
// every concurrently running job can keep a full batch in flight.
func NewEmbeddingPipeline(
	embedder *Embedder,
	index driven.VectorIndex,
	chunks driven.ChunkStore,
	opts ...PipelineOption,
) (*EmbeddingPipeline, error) {
	p := &EmbeddingPipeline{
		embedder:   embedder,
		index:      index,
		chunks:     chunks,
		batchSize:  domain.DefaultBatchSize,
		batchDelay: domain.DefaultBatchDelay,
	}
	for _, opt := range opts {
		opt(p)
	}

	pool, err := ants.NewPool(p.batchSize * domain.DefaultMaxConcurrent)
	if err != nil {
		return nil, fmt.Errorf("creating embedding pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

// Close releases the worker pool.
func (p *EmbeddingPipeline) Close() {
	p.pool.Release()
}

// ProcessBatch embeds and indexes chunks, persisting each chunk's status as
// it changes. One failing chunk never stops the others. If the vector index
// is confirmed unreachable, the remaining chunks are marked skipped instead.
// Cancelling ctx leaves unstarted chunks pending and returns ctx.Err().
//
//nolint:gocyclo // Sequential batch orchestration reads better inline
func (p *EmbeddingPipeline) ProcessBatch(
	ctx context.Context,
	kb *domain.KnowledgeBase,
	chunks []*domain.Chunk,
	opts ProcessOptions,
	onProgress ProgressFunc,
) (BatchResult, error) {
	var result BatchResult
	total := len(chunks)

	// 1. Leave already-embedded chunks alone unless resyncing
	todo := make([]*domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !opts.Resync && !c.NeedsEmbedding() {
			result.AlreadyEmbedded++
			continue
		}
		todo = append(todo, c)
	}

	progress := newProgressCounter(result.AlreadyEmbedded, total, onProgress)
	if result.AlreadyEmbedded > 0 {
		progress.report()
	}
	if len(todo) == 0 {
		return result, nil
	}

	// 2. Skip everything when the index is down
	if err := p.index.TestConnection(ctx); err != nil {
		logger.Warn("vector index unreachable, skipping %d chunks: %v", len(todo), err)
		for _, c := range todo {
			p.finish(ctx, c, domain.EmbeddingSkipped, indexUnavailableMessage)
			result.Skipped++
			progress.add()
		}
		return result, nil
	}

	// 3. Fixed-size concurrent batches with a pause between them
	var (
		indexDown atomic.Bool
		mu        sync.Mutex
	)
	record := func(status domain.EmbeddingStatus) {
		mu.Lock()
		defer mu.Unlock()
		switch status {
		case domain.EmbeddingCompleted:
			result.Completed++
		case domain.EmbeddingFailed:
			result.Failed++
		case domain.EmbeddingSkipped:
			result.Skipped++
		}
	}

	for start := 0; start < len(todo); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := min(start+p.batchSize, len(todo))
		var wg sync.WaitGroup
		for _, c := range todo[start:end] {
			wg.Add(1)
			err := p.pool.Submit(func() {
				defer wg.Done()
				status := p.processChunk(ctx, kb, c, &indexDown)
				if status == "" {
					return
				}
				record(status)
				progress.add()
			})
			if err != nil {
				wg.Done()
				p.finish(ctx, c, domain.EmbeddingFailed, err.Error())
				record(domain.EmbeddingFailed)
				progress.add()
			}
		}
		wg.Wait()

		logger.Debug("embedding batch %d-%d of %d done", start+1, end, len(todo))

		if end < len(todo) && p.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(p.batchDelay):
			}
		}
	}

	return result, ctx.Err()
}

// processChunk embeds and indexes one chunk and returns its terminal status,
// or "" if ctx ended before work started.
func (p *EmbeddingPipeline) processChunk(
	ctx context.Context,
	kb *domain.KnowledgeBase,
	c *domain.Chunk,
	indexDown *atomic.Bool,
) domain.EmbeddingStatus {
	if ctx.Err() != nil {
		return ""
	}
	if indexDown.Load() {
		p.finish(ctx, c, domain.EmbeddingSkipped, indexUnavailableMessage)
		return domain.EmbeddingSkipped
	}

	c.Status = domain.EmbeddingProcessing
	c.Error = ""
	p.save(ctx, c)

	emb, err := p.embedder.Embed(ctx, kb, c.Content)
	if err != nil {
		logger.Debug("chunk %s embedding failed: %v", c.ID, err)
		p.finish(ctx, c, domain.EmbeddingFailed, err.Error())
		return domain.EmbeddingFailed
	}

	payload := domain.VectorPayload{
		Content:         c.Content,
		DocumentID:      c.DocumentID,
		KnowledgeBaseID: c.KnowledgeBaseID,
		ChunkIndex:      c.Index,
		EmbeddingModel:  emb.Model,
		Dimensions:      len(emb.Vector),
		Metadata:        c.Metadata,
	}
	vectorID, err := p.index.Upsert(ctx, c.ID, emb.Vector, payload, kb.Owner().TenantID())
	if err != nil {
		if errors.Is(err, domain.ErrIndexUnavailable) && p.index.TestConnection(ctx) != nil {
			if indexDown.CompareAndSwap(false, true) {
				logger.Warn("vector index went away mid-run, skipping remaining chunks")
			}
			p.finish(ctx, c, domain.EmbeddingSkipped, indexUnavailableMessage)
			return domain.EmbeddingSkipped
		}
		p.finish(ctx, c, domain.EmbeddingFailed, err.Error())
		return domain.EmbeddingFailed
	}

	c.VectorID = vectorID
	c.EmbeddingModel = emb.Model
	p.finish(ctx, c, domain.EmbeddingCompleted, "")
	return domain.EmbeddingCompleted
}

func (p *EmbeddingPipeline) finish(ctx context.Context, c *domain.Chunk, status domain.EmbeddingStatus, msg string) {
	c.Status = status
	c.Error = msg
	if status != domain.EmbeddingCompleted {
		c.VectorID = ""
	}
	p.save(ctx, c)
}

// save persists chunk status. The write uses a context detached from
// cancellation so a cancelled run still records where each chunk ended up.
func (p *EmbeddingPipeline) save(ctx context.Context, c *domain.Chunk) {
	c.UpdatedAt = time.Now()
	if err := p.chunks.UpdateChunk(context.WithoutCancel(ctx), c); err != nil {
		logger.Warn("saving chunk %s status: %v", c.ID, err)
	}
}

// progressCounter serialises progress callbacks from concurrent workers.
type progressCounter struct {
	mu        sync.Mutex
	processed int
	total     int
	fn        ProgressFunc
}

func newProgressCounter(start, total int, fn ProgressFunc) *progressCounter {
	return &progressCounter{processed: start, total: total, fn: fn}
}

func (pc *progressCounter) add() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.processed++
	if pc.fn != nil {
		pc.fn(pc.processed, pc.total)
	}
}

func (pc *progressCounter) report() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.fn != nil {
		pc.fn(pc.processed, pc.total)
	}
}
