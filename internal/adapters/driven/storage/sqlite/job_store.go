package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// jobStore implements driven.JobStore.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

const jobColumns = `id, document_id, document_name, knowledge_base_id, status, progress, processed_chunks,
	total_chunks, error, created_at, started_at, completed_at`

// SaveJob stores or replaces a job by ID.
func (s *jobStore) SaveJob(ctx context.Context, job *domain.ProcessingJob) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			processed_chunks = excluded.processed_chunks,
			total_chunks = excluded.total_chunks,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`, job.ID, job.DocumentID, job.DocumentName, job.KnowledgeBaseID, string(job.Status), job.Progress,
		job.ProcessedChunks, job.TotalChunks, job.Error, job.CreatedAt,
		nullTime(job.StartedAt), nullTime(job.CompletedAt))
	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// ListJobs returns jobs for a knowledge base (all when empty), newest first.
// A non-positive limit returns everything.
func (s *jobStore) ListJobs(ctx context.Context, knowledgeBaseID string, limit int) ([]domain.ProcessingJob, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE ? = '' OR knowledge_base_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, knowledgeBaseID, knowledgeBaseID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.ProcessingJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		var job domain.ProcessingJob
		var status string
		var startedAt, completedAt sql.NullTime
		if err := rows.Scan(&job.ID, &job.DocumentID, &job.DocumentName, &job.KnowledgeBaseID, &status,
			&job.Progress, &job.ProcessedChunks, &job.TotalChunks, &job.Error, &job.CreatedAt,
			&startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		job.Status = domain.JobStatus(status)
		job.StartedAt = timePtr(startedAt)
		job.CompletedAt = timePtr(completedAt)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}
