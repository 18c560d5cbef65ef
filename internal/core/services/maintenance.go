package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/logger"
)

// Maintenance periodically prunes finished jobs and re-embeds chunks whose
// vectors are missing, for example after the index was down during ingestion.
type Maintenance struct {
	schedule string
	kbs      driven.KnowledgeBaseStore
	tracker  *JobTracker
	sync     driving.VectorSyncService

	mu      sync.Mutex
	cron    *cron.Cron
	running atomic.Bool
}

// NewMaintenance creates a maintenance runner. schedule is a cron spec such
// as "@every 10m"; empty uses domain.DefaultSchedule.
func NewMaintenance(
	schedule string,
	kbs driven.KnowledgeBaseStore,
	tracker *JobTracker,
	syncer driving.VectorSyncService,
) *Maintenance {
	if schedule == "" {
		schedule = domain.DefaultSchedule
	}
	return &Maintenance{schedule: schedule, kbs: kbs, tracker: tracker, sync: syncer}
}

// Start schedules the maintenance run. It returns immediately.
func (m *Maintenance) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(m.schedule, func() { m.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("%w: maintenance schedule %q: %w", domain.ErrConfiguration, m.schedule, err)
	}
	c.Start()
	m.cron = c
	logger.Debug("maintenance scheduled %s", m.schedule)
	return nil
}

// Stop cancels future runs and waits for a running one to return.
func (m *Maintenance) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce performs one maintenance pass. Overlapping calls are dropped.
func (m *Maintenance) RunOnce(ctx context.Context) {
	if !m.running.CompareAndSwap(false, true) {
		logger.Debug("maintenance already running, skipping")
		return
	}
	defer m.running.Store(false)

	if removed := m.tracker.Cleanup(); removed > 0 {
		logger.Debug("maintenance: pruned %d finished jobs", removed)
	}

	kbs, err := m.kbs.ListKnowledgeBases(ctx)
	if err != nil {
		logger.Warn("maintenance: listing knowledge bases: %v", err)
		return
	}

	busy := make(map[string]bool)
	for _, j := range m.tracker.ActiveJobs() {
		busy[j.KnowledgeBaseID] = true
	}

	for _, kb := range kbs {
		if ctx.Err() != nil {
			return
		}
		if busy[kb.ID] {
			continue
		}
		res, err := m.sync.SyncMissing(ctx, kb.ID)
		if err != nil {
			logger.Warn("maintenance: syncing %s: %v", kb.Name, err)
			continue
		}
		if res.Processed > 0 || res.Errors > 0 {
			logger.Info("maintenance: %s synced %d vectors, %d errors", kb.Name, res.Processed, res.Errors)
		}
	}
}
