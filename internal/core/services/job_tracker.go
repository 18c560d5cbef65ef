package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/logger"
)

// JobFunc is the work run for an admitted job. Reporting progress through
// report updates the job; returning an error fails it.
type JobFunc func(ctx context.Context, report ProgressFunc) error

// JobTracker is a bounded registry of ingestion jobs. Jobs wait in a FIFO
// queue and at most maxConcurrent run at once. Every transition is published
// to the ProgressSink. All state lives behind mu.
type JobTracker struct {
	sink driven.ProgressSink

	mu            sync.Mutex
	jobs          map[string]*domain.ProcessingJob
	tasks         map[string]JobFunc
	done          map[string]chan struct{}
	queue         []string
	running       int
	maxConcurrent int
	retain        int
	closed        bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// Ensure JobTracker implements the interface.
var _ driving.JobService = (*JobTracker)(nil)

// TrackerOption configures a JobTracker.
type TrackerOption func(*JobTracker)

// WithMaxConcurrent sets how many jobs may run at once.
func WithMaxConcurrent(n int) TrackerOption {
	return func(t *JobTracker) {
		if n > 0 {
			t.maxConcurrent = n
		}
	}
}

// WithRetention sets how many terminal jobs cleanup keeps.
func WithRetention(n int) TrackerOption {
	return func(t *JobTracker) {
		if n >= 0 {
			t.retain = n
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *JobTracker) {
		t.now = now
	}
}

// NewJobTracker creates a tracker publishing to sink. sink may be nil.
func NewJobTracker(sink driven.ProgressSink, opts ...TrackerOption) *JobTracker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &JobTracker{
		sink:          sink,
		jobs:          make(map[string]*domain.ProcessingJob),
		tasks:         make(map[string]JobFunc),
		done:          make(map[string]chan struct{}),
		maxConcurrent: domain.DefaultMaxConcurrent,
		retain:        domain.DefaultJobRetention,
		ctx:           ctx,
		cancel:        cancel,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Submit queues a job for the document and admits it as soon as a slot is free.
// It never blocks on running jobs.
func (t *JobTracker) Submit(documentID, documentName, knowledgeBaseID string, fn JobFunc) (*domain.ProcessingJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("%w: job tracker is shut down", domain.ErrInvalidInput)
	}
	for _, j := range t.jobs {
		if j.DocumentID == documentID && !j.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: document %s already has active job %s",
				domain.ErrInvalidInput, documentID, j.ID)
		}
	}

	now := t.now()
	id := domain.NewJobID(documentID, now)
	for t.jobs[id] != nil {
		now = now.Add(time.Millisecond)
		id = domain.NewJobID(documentID, now)
	}

	job := &domain.ProcessingJob{
		ID:              id,
		DocumentID:      documentID,
		DocumentName:    documentName,
		KnowledgeBaseID: knowledgeBaseID,
		Status:          domain.JobQueued,
		CreatedAt:       now,
	}
	t.jobs[id] = job
	t.tasks[id] = fn
	t.done[id] = make(chan struct{})
	t.queue = append(t.queue, id)
	t.publishLocked(job)

	t.admitLocked()
	snapshot := *job
	return &snapshot, nil
}

// admitLocked starts queued jobs in FIFO order while slots are free.
func (t *JobTracker) admitLocked() {
	for t.running < t.maxConcurrent && len(t.queue) > 0 && !t.closed {
		id := t.queue[0]
		t.queue = t.queue[1:]

		job := t.jobs[id]
		fn := t.tasks[id]
		delete(t.tasks, id)
		if job == nil || fn == nil || job.Status != domain.JobQueued {
			continue
		}

		started := t.now()
		job.Status = domain.JobProcessing
		job.StartedAt = &started
		t.publishLocked(job)

		t.running++
		t.wg.Add(1)
		go t.supervise(id, fn)
	}
}

// supervise runs fn and converts its outcome, including a panic, into a
// terminal state. The slot is released and the next job admitted afterwards.
func (t *JobTracker) supervise(id string, fn JobFunc) {
	defer t.wg.Done()

	err := t.runGuarded(id, fn)
	if err != nil {
		logger.Error("job %s failed: %v", id, err)
		_ = t.FailJob(id, err.Error())
	} else {
		_ = t.CompleteJob(id)
	}

	t.mu.Lock()
	t.running--
	t.admitLocked()
	t.mu.Unlock()
}

func (t *JobTracker) runGuarded(id string, fn JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(t.ctx, func(processed, total int) {
		_ = t.UpdateProgress(id, processed, total)
	})
}

// UpdateProgress records chunk progress for a running job.
func (t *JobTracker) UpdateProgress(jobID string, processed, total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.activeLocked(jobID)
	if err != nil {
		return err
	}
	job.ProcessedChunks = processed
	job.TotalChunks = total
	job.Progress = domain.ProgressPercent(processed, total)
	t.publishLocked(job)
	return nil
}

// SetDocumentName updates the display name carried on events.
func (t *JobTracker) SetDocumentName(jobID, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	job.DocumentName = name
	return nil
}

// CompleteJob moves a job to completed with 100% progress.
func (t *JobTracker) CompleteJob(jobID string) error {
	return t.finish(jobID, domain.JobCompleted, "")
}

// FailJob moves a job to failed with msg attached.
func (t *JobTracker) FailJob(jobID, msg string) error {
	return t.finish(jobID, domain.JobFailed, msg)
}

func (t *JobTracker) finish(jobID string, status domain.JobStatus, msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.activeLocked(jobID)
	if err != nil {
		return err
	}

	// A job that never left the queue gives up its queue position.
	if job.Status == domain.JobQueued {
		t.queue = slices.DeleteFunc(t.queue, func(id string) bool { return id == jobID })
		delete(t.tasks, jobID)
	}

	completed := t.now()
	job.Status = status
	job.Error = msg
	job.CompletedAt = &completed
	if status == domain.JobCompleted {
		job.Progress = 100
	}
	t.publishLocked(job)

	if ch, ok := t.done[jobID]; ok {
		close(ch)
		delete(t.done, jobID)
	}

	if t.terminalCountLocked() > t.retain {
		t.cleanupLocked()
	}
	return nil
}

// activeLocked returns the job if it exists and is not terminal.
func (t *JobTracker) activeLocked(jobID string) (*domain.ProcessingJob, error) {
	job, ok := t.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: job %s is %s", domain.ErrJobTerminal, jobID, job.Status)
	}
	return job, nil
}

// GetJob returns a snapshot of a job.
func (t *JobTracker) GetJob(jobID string) (*domain.ProcessingJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	snapshot := *job
	return &snapshot, nil
}

// ListJobs returns snapshots of jobs for a knowledge base (all when empty),
// newest first.
func (t *JobTracker) ListJobs(knowledgeBaseID string) []domain.ProcessingJob {
	return t.collect(func(j *domain.ProcessingJob) bool {
		return knowledgeBaseID == "" || j.KnowledgeBaseID == knowledgeBaseID
	})
}

// ActiveJobs returns queued and processing jobs, newest first.
func (t *JobTracker) ActiveJobs() []domain.ProcessingJob {
	return t.collect(func(j *domain.ProcessingJob) bool {
		return !j.Status.IsTerminal()
	})
}

// NextJob returns the job at the head of the queue, or nil.
func (t *JobTracker) NextJob() *domain.ProcessingJob {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.queue) == 0 {
		return nil
	}
	snapshot := *t.jobs[t.queue[0]]
	return &snapshot
}

func (t *JobTracker) collect(keep func(*domain.ProcessingJob) bool) []domain.ProcessingJob {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []domain.ProcessingJob
	for _, j := range t.jobs {
		if keep(j) {
			out = append(out, *j)
		}
	}
	slices.SortFunc(out, func(a, b domain.ProcessingJob) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// Wait blocks until the job is terminal or ctx ends.
func (t *JobTracker) Wait(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	t.mu.Lock()
	_, ok := t.jobs[jobID]
	ch := t.done[jobID]
	t.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return t.GetJob(jobID)
}

// Cleanup drops all but the most recent retained terminal jobs and returns
// how many were removed. Active jobs are never removed.
func (t *JobTracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cleanupLocked()
}

func (t *JobTracker) cleanupLocked() int {
	var terminal []*domain.ProcessingJob
	for _, j := range t.jobs {
		if j.Status.IsTerminal() {
			terminal = append(terminal, j)
		}
	}
	if len(terminal) <= t.retain {
		return 0
	}

	slices.SortFunc(terminal, func(a, b *domain.ProcessingJob) int {
		return b.CompletedAt.Compare(*a.CompletedAt)
	})
	removed := 0
	for _, j := range terminal[t.retain:] {
		delete(t.jobs, j.ID)
		removed++
	}
	logger.Debug("job cleanup removed %d jobs", removed)
	return removed
}

func (t *JobTracker) terminalCountLocked() int {
	n := 0
	for _, j := range t.jobs {
		if j.Status.IsTerminal() {
			n++
		}
	}
	return n
}

func (t *JobTracker) publishLocked(job *domain.ProcessingJob) {
	if t.sink == nil {
		return
	}
	t.sink.Publish(job.Event(t.now()))
}

// Shutdown stops admitting jobs and waits for running ones. If ctx ends
// first, running jobs are cancelled and ctx.Err() is returned once they exit.
func (t *JobTracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	queued := slices.Clone(t.queue)
	t.mu.Unlock()

	for _, id := range queued {
		_ = t.FailJob(id, "shutting down")
	}

	finished := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		t.cancel()
		return nil
	case <-ctx.Done():
		t.cancel()
		<-finished
		return ctx.Err()
	}
}
