package engine

import (
	"sync"
	"time"

	"github.com/eleven-am/meandra/internal/domain"
)

// nodeRun is the mutable execution record for one node within a run.
type nodeRun struct {
	state      domain.NodeRunState
	skipReason domain.SkipReason
	err        error
	duration   time.Duration
	restored   bool
}

// runState tracks the lifecycle of every scheduled node. All methods are
// safe for concurrent use; nodes within a level execute in parallel.
type runState struct {
	mu    sync.Mutex
	nodes map[string]*nodeRun
}

func newRunState(plan *domain.ExecutionPlan) *runState {
	nodes := make(map[string]*nodeRun, plan.NodeCount())
	for _, level := range plan.Levels {
		for _, id := range level {
			nodes[id] = &nodeRun{state: domain.NodeStatePending}
		}
	}
	return &runState{nodes: nodes}
}

func (s *runState) current(id string) domain.NodeRunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nr, ok := s.nodes[id]; ok {
		return nr.state
	}
	return ""
}

// begin moves a pending node through ready into running. It reports false
// when the node is not in a startable state.
func (s *runState) begin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	nr, ok := s.nodes[id]
	if !ok {
		return false
	}
	for _, next := range []domain.NodeRunState{domain.NodeStateReady, domain.NodeStateRunning} {
		if !domain.CanTransition(nr.state, next) {
			return false
		}
		nr.state = next
	}
	return true
}

func (s *runState) succeed(id string, duration time.Duration, restored bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nr, ok := s.nodes[id]; ok {
		nr.state = domain.NodeStateSucceeded
		nr.duration = duration
		nr.restored = restored
	}
}

func (s *runState) fail(id string, err error, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nr, ok := s.nodes[id]; ok {
		nr.state = domain.NodeStateFailed
		nr.err = err
		nr.duration = duration
	}
}

// skip marks a pending node skipped; nodes already terminal are left alone.
func (s *runState) skip(id string, reason domain.SkipReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nr, ok := s.nodes[id]
	if !ok || !domain.CanTransition(nr.state, domain.NodeStateSkipped) {
		return
	}
	nr.state = domain.NodeStateSkipped
	nr.skipReason = reason
}

// restore replays a success recorded by an earlier attempt of this run. The
// node never transitions through running here.
func (s *runState) restore(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nr, ok := s.nodes[id]; ok {
		nr.state = domain.NodeStateSucceeded
		nr.restored = true
	}
}

func (s *runState) allSucceeded(ids []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		nr, ok := s.nodes[id]
		if !ok || nr.state != domain.NodeStateSucceeded {
			return false
		}
	}
	return true
}

// anyUnfinished reports whether any scheduled node is still non-terminal,
// which happens when dispatching stopped early.
func (s *runState) anyUnfinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, nr := range s.nodes {
		if !nr.state.Terminal() {
			return true
		}
	}
	return false
}

func (s *runState) status(id string) domain.NodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := domain.NodeStatus{NodeID: id, State: domain.NodeStatePending}
	nr, ok := s.nodes[id]
	if !ok {
		return ns
	}
	ns.State = nr.state
	ns.SkipReason = nr.skipReason
	ns.Duration = nr.duration
	ns.Restored = nr.restored
	if nr.err != nil {
		ns.Error = nr.err.Error()
	}
	return ns
}
