package domain

import (
	"time"
)

// NodeRunState is the lifecycle state of a node within a single run.
//
// Pending -> Ready -> Running -> Succeeded | Failed. A node moves to
// Skipped from Pending when an upstream dependency failed or was skipped,
// or when its condition flags evaluate false. Terminal states never change
// within a run.
type NodeRunState string

const (
	NodeStatePending   NodeRunState = "pending"
	NodeStateReady     NodeRunState = "ready"
	NodeStateRunning   NodeRunState = "running"
	NodeStateSucceeded NodeRunState = "succeeded"
	NodeStateFailed    NodeRunState = "failed"
	NodeStateSkipped   NodeRunState = "skipped"
)

func (s NodeRunState) Terminal() bool {
	switch s {
	case NodeStateSucceeded, NodeStateFailed, NodeStateSkipped:
		return true
	}
	return false
}

var nodeTransitions = map[NodeRunState][]NodeRunState{
	NodeStatePending: {NodeStateReady, NodeStateSkipped},
	NodeStateReady:   {NodeStateRunning},
	NodeStateRunning: {NodeStateSucceeded, NodeStateFailed},
}

// CanTransition reports whether the lifecycle permits moving a node from
// one state to another.
func CanTransition(from, to NodeRunState) bool {
	for _, next := range nodeTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SkipReason distinguishes why a node was skipped.
type SkipReason string

const (
	// SkipUpstream marks nodes not run because a dependency failed or was
	// itself skipped after an upstream failure.
	SkipUpstream SkipReason = "upstream"
	// SkipCondition marks nodes excluded because their condition flags
	// evaluated false for this run.
	SkipCondition SkipReason = "condition"
)

// RunStatus is the terminal status of a whole run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// NodeStatus is the per-node outcome included in a RunResult.
type NodeStatus struct {
	NodeID     string        `json:"node_id"`
	State      NodeRunState  `json:"state"`
	SkipReason SkipReason    `json:"skip_reason,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	// Restored marks nodes whose success was replayed from a checkpoint
	// instead of executed in this run.
	Restored bool `json:"restored,omitempty"`
}

// RunResult summarizes a finished run: the terminal status, the nodes that
// caused a failure, and the outcome of every node in plan order.
type RunResult struct {
	RunID       string        `json:"run_id"`
	SpecID      string        `json:"spec_id"`
	Status      RunStatus     `json:"status"`
	Canceled    bool          `json:"canceled,omitempty"`
	FailedNodes []string      `json:"failed_nodes,omitempty"`
	Nodes       []NodeStatus  `json:"nodes"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

func (r *RunResult) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}

// NodeStatusOf returns the recorded outcome for a node, if present.
func (r *RunResult) NodeStatusOf(nodeID string) (NodeStatus, bool) {
	for _, ns := range r.Nodes {
		if ns.NodeID == nodeID {
			return ns, true
		}
	}
	return NodeStatus{}, false
}
