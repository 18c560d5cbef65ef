package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// --- Mock implementations ---

type recordingStore struct {
	mu   sync.Mutex
	jobs []domain.ProcessingJob
}

func (r *recordingStore) SaveJob(_ context.Context, job *domain.ProcessingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, *job)
	return nil
}

func (r *recordingStore) ListJobs(context.Context, string, int) ([]domain.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ProcessingJob(nil), r.jobs...), nil
}

// gatedStore blocks every SaveJob until gate is closed.
type gatedStore struct {
	recordingStore
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (g *gatedStore) SaveJob(ctx context.Context, job *domain.ProcessingJob) error {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return g.recordingStore.SaveJob(ctx, job)
}

type countingSink struct{ n int }

func (c *countingSink) Publish(domain.ProgressEvent) { c.n++ }

func event(job string, status domain.JobStatus, at time.Time) domain.ProgressEvent {
	return domain.ProgressEvent{JobID: job, DocumentID: "doc", KnowledgeBaseID: "kb", Status: status, Timestamp: at}
}

func TestBroadcaster_FansOut(t *testing.T) {
	b := NewBroadcaster()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(event("j1", domain.JobQueued, time.Now()))
	assert.Equal(t, "j1", (<-a).JobID)
	assert.Equal(t, "j1", (<-c).JobID)

	unsubA()
	unsubA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, b.Subscribers())
}

func TestBroadcaster_DropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for range 10 {
			b.Publish(event("j", domain.JobProcessing, time.Now()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	assert.Len(t, ch, 1)
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.Subscribe(0)
	b.Close()
	_, open := <-ch
	assert.False(t, open)
	unsub()

	late, _ := b.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
	b.Publish(event("j", domain.JobQueued, time.Now()))
}

func TestMulti_SkipsNil(t *testing.T) {
	first, second := &countingSink{}, &countingSink{}
	Multi{first, nil, second}.Publish(event("j", domain.JobQueued, time.Now()))
	assert.Equal(t, 1, first.n)
	assert.Equal(t, 1, second.n)
}

func TestHistorySink_PersistsTerminalJobs(t *testing.T) {
	store := &recordingStore{}
	h := NewHistorySink(store, 16)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.Publish(event("j1", domain.JobQueued, t0))
	h.Publish(event("j1", domain.JobProcessing, t0.Add(time.Second)))
	done := event("j1", domain.JobCompleted, t0.Add(3*time.Second))
	done.Progress = 100
	h.Publish(done)
	h.Publish(event("j2", domain.JobQueued, t0))
	h.Close()
	h.Close()

	jobs, err := store.ListJobs(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, t0, job.CreatedAt)
	require.NotNil(t, job.StartedAt)
	assert.Equal(t, t0.Add(time.Second), *job.StartedAt)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, t0.Add(3*time.Second), *job.CompletedAt)

	h.Publish(event("j3", domain.JobFailed, t0))
}

func TestHistorySink_KeepsTerminalEventsWhenFull(t *testing.T) {
	store := &gatedStore{gate: make(chan struct{}), entered: make(chan struct{})}
	h := NewHistorySink(store, 8)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.Publish(event("a", domain.JobCompleted, t0))
	select {
	case <-store.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("writer never reached SaveJob")
	}

	for i := range 300 {
		progress := event("b", domain.JobProcessing, t0.Add(time.Duration(i)*time.Millisecond))
		progress.ProcessedChunks = i
		h.Publish(progress)
	}
	done := event("b", domain.JobCompleted, t0.Add(time.Minute))
	done.ProcessedChunks = 300
	h.Publish(done)
	failed := event("c", domain.JobFailed, t0.Add(time.Minute))
	h.Publish(failed)

	close(store.gate)
	h.Close()

	jobs, err := store.ListJobs(context.Background(), "", 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, 300, jobs[1].ProcessedChunks)
	assert.Empty(t, h.seen, "finished jobs leave no in-flight state behind")
}

func TestLogSink_DoesNotPanic(t *testing.T) {
	failed := event("j", domain.JobFailed, time.Now())
	failed.Error = "boom"
	LogSink{}.Publish(failed)
	LogSink{}.Publish(event("j", domain.JobProcessing, time.Now()))
}
