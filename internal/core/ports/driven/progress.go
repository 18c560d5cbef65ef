package driven

import "github.com/custodia-labs/ragline/internal/core/domain"

// ProgressSink receives job progress events. Delivery is fire-and-forget and
// at-most-once; Publish must not block the caller.
type ProgressSink interface {
	Publish(event domain.ProgressEvent)
}
