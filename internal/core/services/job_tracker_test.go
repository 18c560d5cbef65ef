package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

func waitTracked(t *testing.T, tr *JobTracker, id string) *domain.ProcessingJob {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := tr.Wait(ctx, id)
	require.NoError(t, err)
	return job
}

func TestJobTracker_RunsAtMostMaxConcurrent(t *testing.T) {
	tr := NewJobTracker(nil, WithMaxConcurrent(3))
	defer tr.Shutdown(context.Background()) //nolint:errcheck

	var (
		running atomic.Int32
		peak    atomic.Int32
	)
	release := make(chan struct{})
	fn := func(ctx context.Context, _ ProgressFunc) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return nil
	}

	var ids []string
	for i := range 5 {
		job, err := tr.Submit(fmt.Sprintf("doc-%d", i), "", "kb", fn)
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	require.Eventually(t, func() bool { return running.Load() == 3 }, time.Second, time.Millisecond)
	assert.Len(t, tr.ActiveJobs(), 5)
	next := tr.NextJob()
	require.NotNil(t, next)
	assert.Equal(t, "doc-3", next.DocumentID)

	close(release)
	for _, id := range ids {
		assert.Equal(t, domain.JobCompleted, waitTracked(t, tr, id).Status)
	}
	assert.EqualValues(t, 3, peak.Load())
}

func TestJobTracker_AdmitsInSubmissionOrder(t *testing.T) {
	tr := NewJobTracker(nil, WithMaxConcurrent(1))
	defer tr.Shutdown(context.Background()) //nolint:errcheck

	var (
		mu    sync.Mutex
		order []string
	)
	var ids []string
	for i := range 4 {
		doc := fmt.Sprintf("doc-%d", i)
		job, err := tr.Submit(doc, "", "kb", func(context.Context, ProgressFunc) error {
			mu.Lock()
			order = append(order, doc)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}
	for _, id := range ids {
		waitTracked(t, tr, id)
	}
	assert.Equal(t, []string{"doc-0", "doc-1", "doc-2", "doc-3"}, order)
}

func TestJobTracker_PanicFailsJob(t *testing.T) {
	sink := &recordingSink{}
	tr := NewJobTracker(sink)
	defer tr.Shutdown(context.Background()) //nolint:errcheck

	job, err := tr.Submit("doc", "doc.txt", "kb", func(context.Context, ProgressFunc) error {
		panic("extractor exploded")
	})
	require.NoError(t, err)

	final := waitTracked(t, tr, job.ID)
	assert.Equal(t, domain.JobFailed, final.Status)
	assert.Contains(t, final.Error, "extractor exploded")
	assert.Equal(t, []domain.JobStatus{domain.JobQueued, domain.JobProcessing, domain.JobFailed}, sink.statuses(job.ID))

	// The slot is released after a panic.
	next, err := tr.Submit("doc-2", "", "kb", func(context.Context, ProgressFunc) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, waitTracked(t, tr, next.ID).Status)
}

func TestJobTracker_ProgressAndTerminalTransitions(t *testing.T) {
	sink := &recordingSink{}
	tr := NewJobTracker(sink)
	defer tr.Shutdown(context.Background()) //nolint:errcheck

	job, err := tr.Submit("doc", "", "kb", func(_ context.Context, report ProgressFunc) error {
		report(1, 3)
		report(2, 3)
		return nil
	})
	require.NoError(t, err)
	final := waitTracked(t, tr, job.ID)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, 2, final.ProcessedChunks)
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.CompletedAt)

	assert.ErrorIs(t, tr.UpdateProgress(job.ID, 3, 3), domain.ErrJobTerminal)
	assert.ErrorIs(t, tr.FailJob(job.ID, "late"), domain.ErrJobTerminal)
	assert.ErrorIs(t, tr.CompleteJob("missing"), domain.ErrNotFound)

	statuses := sink.statuses(job.ID)
	assert.Equal(t, domain.JobCompleted, statuses[len(statuses)-1])
}

func TestJobTracker_RejectsSecondActiveJobForDocument(t *testing.T) {
	tr := NewJobTracker(nil)
	defer tr.Shutdown(context.Background()) //nolint:errcheck

	release := make(chan struct{})
	first, err := tr.Submit("doc", "", "kb", func(context.Context, ProgressFunc) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	_, err = tr.Submit("doc", "", "kb", func(context.Context, ProgressFunc) error { return nil })
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	close(release)
	waitTracked(t, tr, first.ID)

	again, err := tr.Submit("doc", "", "kb", func(context.Context, ProgressFunc) error { return nil })
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, again.ID)
}

func TestJobTracker_CleanupKeepsMostRecent(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	tr := NewJobTracker(nil, WithRetention(2), WithMaxConcurrent(1), WithClock(now))
	defer tr.Shutdown(context.Background()) //nolint:errcheck

	var ids []string
	for i := range 4 {
		job, err := tr.Submit(fmt.Sprintf("doc-%d", i), "", "kb", func(context.Context, ProgressFunc) error { return nil })
		require.NoError(t, err)
		waitTracked(t, tr, job.ID)
		ids = append(ids, job.ID)
	}

	jobs := tr.ListJobs("kb")
	require.Len(t, jobs, 2)
	assert.Equal(t, ids[3], jobs[0].ID)
	assert.Equal(t, ids[2], jobs[1].ID)

	_, err := tr.GetJob(ids[0])
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, tr.Cleanup())
}

func TestJobTracker_ShutdownFailsQueuedJobs(t *testing.T) {
	tr := NewJobTracker(nil, WithMaxConcurrent(1))

	release := make(chan struct{})
	running, err := tr.Submit("doc-1", "", "kb", func(context.Context, ProgressFunc) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	queued, err := tr.Submit("doc-2", "", "kb", func(context.Context, ProgressFunc) error { return nil })
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- tr.Shutdown(context.Background()) }()

	require.Eventually(t, func() bool {
		j, _ := tr.GetJob(queued.ID)
		return j.Status == domain.JobFailed
	}, time.Second, time.Millisecond)

	close(release)
	require.NoError(t, <-done)

	j, _ := tr.GetJob(running.ID)
	assert.Equal(t, domain.JobCompleted, j.Status)

	_, err = tr.Submit("doc-3", "", "kb", func(context.Context, ProgressFunc) error { return nil })
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestJobTracker_ShutdownCancelsOnDeadline(t *testing.T) {
	tr := NewJobTracker(nil)

	job, err := tr.Submit("doc", "", "kb", func(ctx context.Context, _ ProgressFunc) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		j, _ := tr.GetJob(job.ID)
		return j.Status == domain.JobProcessing
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.Shutdown(ctx), context.DeadlineExceeded)

	j, _ := tr.GetJob(job.ID)
	assert.Equal(t, domain.JobFailed, j.Status)
}

func TestJobTracker_WaitUnknownJob(t *testing.T) {
	tr := NewJobTracker(nil)
	defer tr.Shutdown(context.Background()) //nolint:errcheck

	_, err := tr.Wait(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
