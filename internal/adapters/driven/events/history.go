package events

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/logger"
)

// saveTimeout bounds each history write.
const saveTimeout = 5 * time.Second

// HistorySink persists jobs to a JobStore once they reach a terminal state.
// Events are queued in order and written by one goroutine so Publish never
// waits on the database. Once the queue holds limit events, non-terminal
// events are dropped; terminal events are always queued.
type HistorySink struct {
	store driven.JobStore
	limit int
	wake  chan struct{}
	done  chan struct{}

	mu     sync.Mutex
	queue  []domain.ProgressEvent
	closed bool

	// seen holds created/started times of in-flight jobs. Owned by run.
	seen map[string]*domain.ProcessingJob
}

// NewHistorySink starts the writer goroutine. Call Close to flush and stop it.
func NewHistorySink(store driven.JobStore, buffer int) *HistorySink {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	h := &HistorySink{
		store: store,
		limit: buffer,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		seen:  make(map[string]*domain.ProcessingJob),
	}
	go h.run()
	return h
}

// Publish queues event for the writer.
func (h *HistorySink) Publish(event domain.ProgressEvent) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if len(h.queue) >= h.limit && !event.Status.IsTerminal() {
		h.mu.Unlock()
		logger.Debug("history: dropped event for job %s", event.JobID)
		return
	}
	h.queue = append(h.queue, event)
	h.mu.Unlock()
	h.signal()
}

// Close writes every queued event and stops the writer.
func (h *HistorySink) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.signal()
	<-h.done
}

func (h *HistorySink) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// take empties the queue and reports whether the sink is closed.
func (h *HistorySink) take() ([]domain.ProgressEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	batch := h.queue
	h.queue = nil
	return batch, h.closed
}

func (h *HistorySink) run() {
	defer close(h.done)
	for {
		batch, closed := h.take()
		for _, e := range batch {
			h.apply(e)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-h.wake
	}
}

func (h *HistorySink) apply(e domain.ProgressEvent) {
	job, ok := h.seen[e.JobID]
	if !ok {
		job = &domain.ProcessingJob{ID: e.JobID, CreatedAt: e.Timestamp}
		h.seen[e.JobID] = job
	}
	job.DocumentID = e.DocumentID
	job.DocumentName = e.DocumentName
	job.KnowledgeBaseID = e.KnowledgeBaseID
	job.Status = e.Status
	job.Progress = e.Progress
	job.ProcessedChunks = e.ProcessedChunks
	job.TotalChunks = e.TotalChunks
	job.Error = e.Error
	if e.Status == domain.JobProcessing && job.StartedAt == nil {
		ts := e.Timestamp
		job.StartedAt = &ts
	}
	if !e.Status.IsTerminal() {
		return
	}

	ts := e.Timestamp
	job.CompletedAt = &ts
	delete(h.seen, e.JobID)

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := h.store.SaveJob(ctx, job); err != nil {
		logger.Warn("history: saving job %s: %v", job.ID, err)
	}
}
