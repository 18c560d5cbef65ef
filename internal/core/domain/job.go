package domain

import (
	"fmt"
	"time"
)

// JobStatus is the state of a ProcessingJob.
type JobStatus string

// Job states. Completed and failed are terminal.
const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal returns true for completed and failed.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ProcessingJob tracks the ingestion of one document.
type ProcessingJob struct {
	ID              string
	DocumentID      string
	DocumentName    string
	KnowledgeBaseID string
	Status          JobStatus

	// Progress is a percentage in [0,100].
	Progress        int
	ProcessedChunks int
	TotalChunks     int
	Error           string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewJobID returns the identifier format used for jobs: job-<documentID>-<unix ms>.
func NewJobID(documentID string, now time.Time) string {
	return fmt.Sprintf("job-%s-%d", documentID, now.UnixMilli())
}

// ProgressPercent rounds processed/total to a percentage.
func ProgressPercent(processed, total int) int {
	if total <= 0 {
		return 0
	}
	return (processed*100 + total/2) / total
}

// ProgressTopic is the topic progress events are published under.
const ProgressTopic = "kb.processing.update"

// ProgressEvent is emitted on every job state transition and progress update.
type ProgressEvent struct {
	JobID           string    `json:"jobId"`
	DocumentID      string    `json:"documentId"`
	DocumentName    string    `json:"documentName,omitempty"`
	KnowledgeBaseID string    `json:"knowledgeBaseId"`
	Status          JobStatus `json:"status"`
	Progress        int       `json:"progress"`
	ProcessedChunks int       `json:"processedChunks"`
	TotalChunks     int       `json:"totalChunks"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Event builds the progress event for the job's current state.
func (j *ProcessingJob) Event(now time.Time) ProgressEvent {
	return ProgressEvent{
		JobID:           j.ID,
		DocumentID:      j.DocumentID,
		DocumentName:    j.DocumentName,
		KnowledgeBaseID: j.KnowledgeBaseID,
		Status:          j.Status,
		Progress:        j.Progress,
		ProcessedChunks: j.ProcessedChunks,
		TotalChunks:     j.TotalChunks,
		Error:           j.Error,
		Timestamp:       now,
	}
}
