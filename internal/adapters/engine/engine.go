package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/meandra/internal/adapters/reporter"
	"github.com/eleven-am/meandra/internal/domain"
	"github.com/eleven-am/meandra/internal/ports"
)

// Engine executes one plan at a time: levels run in order, nodes within a
// level run concurrently under the worker bound, and every node completion
// is checkpointed before the engine moves on.
type Engine struct {
	config   domain.EngineConfig
	registry ports.RegistryPort
	catalog  ports.CatalogPort
	store    ports.CheckpointPort
	reporter ports.ReporterPort
	logger   *slog.Logger
}

func New(config domain.EngineConfig, registry ports.RegistryPort, catalog ports.CatalogPort, store ports.CheckpointPort, rep ports.ReporterPort, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if rep == nil {
		rep = reporter.NewNoop()
	}
	if config.Workers < 1 {
		config.Workers = 1
	}

	return &Engine{
		config:   config,
		registry: registry,
		catalog:  catalog,
		store:    store,
		reporter: rep,
		logger:   logger.With("component", "engine"),
	}
}

// Run executes the plan from scratch.
func (e *Engine) Run(ctx context.Context, plan *domain.ExecutionPlan, rc *domain.RunContext) (*domain.RunResult, error) {
	return e.run(ctx, plan, rc, false)
}

// Resume replays the run's checkpoint log, restores completed nodes and
// their bindings, and executes only what is left. Resuming a finished run
// executes nothing.
func (e *Engine) Resume(ctx context.Context, plan *domain.ExecutionPlan, rc *domain.RunContext) (*domain.RunResult, error) {
	return e.run(ctx, plan, rc, true)
}

func (e *Engine) run(ctx context.Context, plan *domain.ExecutionPlan, rc *domain.RunContext, resume bool) (*domain.RunResult, error) {
	start := time.Now()
	states := newRunState(plan)
	bindings := newBindingTable(rc.Inputs)

	var restored []string
	if resume {
		var err error
		restored, err = e.preload(ctx, plan, rc, states, bindings)
		if err != nil {
			return nil, err
		}
	}

	e.logger.Info("run starting",
		"run_id", rc.RunID,
		"spec_id", plan.SpecID,
		"nodes", plan.NodeCount(),
		"levels", len(plan.Levels),
		"resumed", resume,
		"restored", len(restored))
	e.reporter.RunStarted(domain.RunStartedEvent{
		RunID:     rc.RunID,
		SpecID:    plan.SpecID,
		Nodes:     plan.NodeCount(),
		Levels:    len(plan.Levels),
		Resumed:   resume,
		StartedAt: start,
	})

	for _, id := range restored {
		e.reporter.NodeFinished(domain.NodeFinishedEvent{
			RunID:      rc.RunID,
			NodeID:     id,
			Level:      plan.LevelOf(id),
			OutputKeys: plan.Nodes[id].OutputKeys,
			Restored:   true,
			FinishedAt: start,
		})
	}
	for _, id := range plan.Excluded {
		e.reporter.NodeSkipped(domain.NodeSkippedEvent{
			RunID:     rc.RunID,
			NodeID:    id,
			Reason:    domain.SkipCondition,
			SkippedAt: start,
		})
	}

	canceled := false
	for li, level := range plan.Levels {
		e.propagateSkips(rc.RunID, level, plan, states)

		if ctx.Err() != nil {
			canceled = true
		}
		if canceled {
			continue
		}

		runnable := make([]string, 0, len(level))
		for _, id := range level {
			if states.current(id) != domain.NodeStatePending {
				continue
			}
			if states.allSucceeded(plan.Dependencies[id]) {
				runnable = append(runnable, id)
			}
		}
		if len(runnable) == 0 {
			continue
		}

		canceled = e.runLevel(ctx, li, runnable, plan, rc, states, bindings)
	}

	result := e.assemble(plan, rc, states, start, canceled)
	e.reporter.RunFinished(domain.RunFinishedEvent{
		RunID:       rc.RunID,
		SpecID:      plan.SpecID,
		Status:      result.Status,
		Canceled:    result.Canceled,
		FailedNodes: result.FailedNodes,
		Duration:    result.Duration,
		FinishedAt:  start.Add(result.Duration),
	})
	e.logger.Info("run finished",
		"run_id", rc.RunID,
		"status", string(result.Status),
		"failed_nodes", len(result.FailedNodes),
		"duration", result.Duration)
	return result, nil
}

// propagateSkips marks pending nodes whose dependencies already failed or
// were skipped. Cascades settle within one pass because levels are
// processed in order and dependencies always sit in earlier levels.
func (e *Engine) propagateSkips(runID string, level []string, plan *domain.ExecutionPlan, states *runState) {
	for _, id := range level {
		if states.current(id) != domain.NodeStatePending {
			continue
		}
		for _, dep := range plan.Dependencies[id] {
			depState := states.current(dep)
			if depState != domain.NodeStateFailed && depState != domain.NodeStateSkipped {
				continue
			}
			states.skip(id, domain.SkipUpstream)
			e.reporter.NodeSkipped(domain.NodeSkippedEvent{
				RunID:     runID,
				NodeID:    id,
				Reason:    domain.SkipUpstream,
				SkippedAt: time.Now(),
			})
			e.logger.Debug("node skipped", "run_id", runID, "node_id", id, "failed_dependency", dep)
			break
		}
	}
}

// runLevel dispatches the runnable nodes of one level onto the bounded
// worker pool. It returns true if dispatching stopped because the run
// context was canceled; nodes already dispatched always finish and
// checkpoint.
func (e *Engine) runLevel(ctx context.Context, level int, ids []string, plan *domain.ExecutionPlan, rc *domain.RunContext, states *runState, bindings *bindingTable) bool {
	// Detached from the cancel signal: in-flight nodes finish and
	// checkpoint even when the run is being canceled.
	execCtx := context.WithoutCancel(ctx)

	sem := make(chan struct{}, e.config.Workers)
	var wg sync.WaitGroup
	var failed atomic.Bool
	canceled := false

	for _, id := range ids {
		if e.config.FailFast && failed.Load() {
			break
		}
		if ctx.Err() != nil {
			canceled = true
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			canceled = true
		}
		if canceled {
			break
		}
		if e.config.FailFast && failed.Load() {
			<-sem
			break
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			if !e.executeNode(execCtx, level, plan.Nodes[id], rc, states, bindings) {
				failed.Store(true)
			}
		}(id)
	}

	wg.Wait()
	return canceled || ctx.Err() != nil
}

// assemble builds the run result in plan order, with condition-excluded
// nodes appended as skipped.
func (e *Engine) assemble(plan *domain.ExecutionPlan, rc *domain.RunContext, states *runState, start time.Time, canceled bool) *domain.RunResult {
	result := &domain.RunResult{
		RunID:     rc.RunID,
		SpecID:    plan.SpecID,
		Canceled:  canceled,
		StartedAt: start,
	}

	for _, id := range plan.Order() {
		ns := states.status(id)
		result.Nodes = append(result.Nodes, ns)
		if ns.State == domain.NodeStateFailed {
			result.FailedNodes = append(result.FailedNodes, id)
		}
	}
	for _, id := range plan.Excluded {
		result.Nodes = append(result.Nodes, domain.NodeStatus{
			NodeID:     id,
			State:      domain.NodeStateSkipped,
			SkipReason: domain.SkipCondition,
		})
	}

	result.Status = domain.RunStatusSucceeded
	if canceled || len(result.FailedNodes) > 0 || states.anyUnfinished() {
		result.Status = domain.RunStatusFailed
	}
	result.Duration = time.Since(start)
	return result
}
