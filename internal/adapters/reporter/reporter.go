package reporter

import (
	"log/slog"

	"github.com/eleven-am/meandra/internal/domain"
	"github.com/eleven-am/meandra/internal/ports"
)

// Noop discards all events. It is the default when no reporter is wired.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (Noop) RunStarted(domain.RunStartedEvent)     {}
func (Noop) NodeStarted(domain.NodeStartedEvent)   {}
func (Noop) NodeFinished(domain.NodeFinishedEvent) {}
func (Noop) NodeFailed(domain.NodeFailedEvent)     {}
func (Noop) NodeSkipped(domain.NodeSkippedEvent)   {}
func (Noop) RunFinished(domain.RunFinishedEvent)   {}

// Slog writes one structured log line per lifecycle event.
type Slog struct {
	logger *slog.Logger
}

func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger.With("component", "run-reporter")}
}

func (s *Slog) RunStarted(e domain.RunStartedEvent) {
	s.logger.Info("run started",
		"run_id", e.RunID,
		"spec_id", e.SpecID,
		"nodes", e.Nodes,
		"levels", e.Levels,
		"resumed", e.Resumed)
}

func (s *Slog) NodeStarted(e domain.NodeStartedEvent) {
	s.logger.Info("node started",
		"run_id", e.RunID,
		"node_id", e.NodeID,
		"kind", e.Kind,
		"level", e.Level)
}

func (s *Slog) NodeFinished(e domain.NodeFinishedEvent) {
	s.logger.Info("node finished",
		"run_id", e.RunID,
		"node_id", e.NodeID,
		"duration", e.Duration,
		"restored", e.Restored)
}

func (s *Slog) NodeFailed(e domain.NodeFailedEvent) {
	s.logger.Error("node failed",
		"run_id", e.RunID,
		"node_id", e.NodeID,
		"duration", e.Duration,
		"error", e.Error.Error())
}

func (s *Slog) NodeSkipped(e domain.NodeSkippedEvent) {
	s.logger.Info("node skipped",
		"run_id", e.RunID,
		"node_id", e.NodeID,
		"reason", string(e.Reason))
}

func (s *Slog) RunFinished(e domain.RunFinishedEvent) {
	if e.Status == domain.RunStatusSucceeded {
		s.logger.Info("run finished",
			"run_id", e.RunID,
			"status", string(e.Status),
			"duration", e.Duration)
		return
	}
	s.logger.Error("run finished",
		"run_id", e.RunID,
		"status", string(e.Status),
		"canceled", e.Canceled,
		"failed_nodes", e.FailedNodes,
		"duration", e.Duration)
}

// Multi fans every event out to several reporters in order.
type Multi struct {
	reporters []ports.ReporterPort
}

func NewMulti(reporters ...ports.ReporterPort) *Multi {
	return &Multi{reporters: reporters}
}

func (m *Multi) RunStarted(e domain.RunStartedEvent) {
	for _, r := range m.reporters {
		r.RunStarted(e)
	}
}

func (m *Multi) NodeStarted(e domain.NodeStartedEvent) {
	for _, r := range m.reporters {
		r.NodeStarted(e)
	}
}

func (m *Multi) NodeFinished(e domain.NodeFinishedEvent) {
	for _, r := range m.reporters {
		r.NodeFinished(e)
	}
}

func (m *Multi) NodeFailed(e domain.NodeFailedEvent) {
	for _, r := range m.reporters {
		r.NodeFailed(e)
	}
}

func (m *Multi) NodeSkipped(e domain.NodeSkippedEvent) {
	for _, r := range m.reporters {
		r.NodeSkipped(e)
	}
}

func (m *Multi) RunFinished(e domain.RunFinishedEvent) {
	for _, r := range m.reporters {
		r.RunFinished(e)
	}
}
