package domain

import (
	"time"
)

type RunStartedEvent struct {
	RunID     string    `json:"run_id"`
	SpecID    string    `json:"spec_id"`
	Nodes     int       `json:"nodes"`
	Levels    int       `json:"levels"`
	Resumed   bool      `json:"resumed,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

type NodeStartedEvent struct {
	RunID     string    `json:"run_id"`
	NodeID    string    `json:"node_id"`
	Kind      string    `json:"kind"`
	Level     int       `json:"level"`
	StartedAt time.Time `json:"started_at"`
}

type NodeFinishedEvent struct {
	RunID      string        `json:"run_id"`
	NodeID     string        `json:"node_id"`
	Level      int           `json:"level"`
	OutputKeys []string      `json:"output_keys,omitempty"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
	// Restored is true when success was replayed from a checkpoint record
	// rather than executed.
	Restored bool `json:"restored,omitempty"`
}

type NodeFailedEvent struct {
	RunID    string        `json:"run_id"`
	NodeID   string        `json:"node_id"`
	Level    int           `json:"level"`
	Error    error         `json:"error"`
	Duration time.Duration `json:"duration"`
	FailedAt time.Time     `json:"failed_at"`
}

type NodeSkippedEvent struct {
	RunID     string     `json:"run_id"`
	NodeID    string     `json:"node_id"`
	Reason    SkipReason `json:"reason"`
	SkippedAt time.Time  `json:"skipped_at"`
}

type RunFinishedEvent struct {
	RunID       string        `json:"run_id"`
	SpecID      string        `json:"spec_id"`
	Status      RunStatus     `json:"status"`
	Canceled    bool          `json:"canceled,omitempty"`
	FailedNodes []string      `json:"failed_nodes,omitempty"`
	Duration    time.Duration `json:"duration"`
	FinishedAt  time.Time     `json:"finished_at"`
}
