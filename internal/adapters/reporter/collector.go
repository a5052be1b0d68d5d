package reporter

import (
	"sync"

	"github.com/eleven-am/meandra/internal/domain"
)

// Collector records every event it receives, in arrival order, for
// inspection after a run. Safe for concurrent delivery.
type Collector struct {
	mu       sync.Mutex
	started  []domain.NodeStartedEvent
	finished []domain.NodeFinishedEvent
	failed   []domain.NodeFailedEvent
	skipped  []domain.NodeSkippedEvent
	runs     []domain.RunStartedEvent
	results  []domain.RunFinishedEvent
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) RunStarted(e domain.RunStartedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, e)
}

func (c *Collector) NodeStarted(e domain.NodeStartedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, e)
}

func (c *Collector) NodeFinished(e domain.NodeFinishedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = append(c.finished, e)
}

func (c *Collector) NodeFailed(e domain.NodeFailedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = append(c.failed, e)
}

func (c *Collector) NodeSkipped(e domain.NodeSkippedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped = append(c.skipped, e)
}

func (c *Collector) RunFinished(e domain.RunFinishedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, e)
}

func (c *Collector) RunsStarted() []domain.RunStartedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.RunStartedEvent(nil), c.runs...)
}

func (c *Collector) Started() []domain.NodeStartedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.NodeStartedEvent(nil), c.started...)
}

func (c *Collector) Finished() []domain.NodeFinishedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.NodeFinishedEvent(nil), c.finished...)
}

func (c *Collector) Failed() []domain.NodeFailedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.NodeFailedEvent(nil), c.failed...)
}

func (c *Collector) Skipped() []domain.NodeSkippedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.NodeSkippedEvent(nil), c.skipped...)
}

func (c *Collector) RunsFinished() []domain.RunFinishedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.RunFinishedEvent(nil), c.results...)
}

// StartedIDs returns the node identifiers that started, in start order.
func (c *Collector) StartedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.started))
	for i, e := range c.started {
		out[i] = e.NodeID
	}
	return out
}

// SkippedReason returns the recorded skip reason for a node.
func (c *Collector) SkippedReason(nodeID string) (domain.SkipReason, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.skipped {
		if e.NodeID == nodeID {
			return e.Reason, true
		}
	}
	return "", false
}
