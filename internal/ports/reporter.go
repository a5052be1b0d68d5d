package ports

import (
	"github.com/eleven-am/meandra/internal/domain"
)

// ReporterPort receives lifecycle events as a run progresses. Callbacks
// fire synchronously from engine goroutines and must return quickly;
// implementations that do real work should hand off internally.
type ReporterPort interface {
	RunStarted(e domain.RunStartedEvent)
	NodeStarted(e domain.NodeStartedEvent)
	NodeFinished(e domain.NodeFinishedEvent)
	NodeFailed(e domain.NodeFailedEvent)
	NodeSkipped(e domain.NodeSkippedEvent)
	RunFinished(e domain.RunFinishedEvent)
}
