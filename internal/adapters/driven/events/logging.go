package events

import (
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/logger"
)

// LogSink writes progress events to the application logger.
type LogSink struct{}

// Publish logs failures as warnings and everything else at debug level.
func (LogSink) Publish(e domain.ProgressEvent) {
	if e.Status == domain.JobFailed {
		logger.Warn("job %s (%s) failed: %s", e.JobID, e.DocumentName, e.Error)
		return
	}
	logger.Debug("%s: job %s %s %d%% (%d/%d)", domain.ProgressTopic, e.JobID, e.Status,
		e.Progress, e.ProcessedChunks, e.TotalChunks)
}
