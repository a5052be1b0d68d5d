package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/eleven-am/meandra/internal/domain"
	"github.com/eleven-am/meandra/internal/ports"
	"github.com/eleven-am/meandra/internal/xjson"
)

// executeNode runs one node end to end: resolve inputs, invoke the handler
// with panic recovery, publish outputs, and checkpoint the terminal state.
// Returns false when the node failed.
func (e *Engine) executeNode(ctx context.Context, level int, node domain.NodeDescriptor, rc *domain.RunContext, states *runState, bindings *bindingTable) bool {
	started := time.Now()
	if !states.begin(node.ID) {
		return true
	}

	e.reporter.NodeStarted(domain.NodeStartedEvent{
		RunID:     rc.RunID,
		NodeID:    node.ID,
		Kind:      node.Kind,
		Level:     level,
		StartedAt: started,
	})
	e.logger.Debug("node starting", "run_id", rc.RunID, "node_id", node.ID, "kind", node.Kind)

	outputs, err := e.invoke(ctx, level, node, rc, bindings)
	if err == nil {
		err = e.publish(ctx, node, rc, outputs, bindings)
	}
	if err != nil {
		return e.failNode(ctx, level, node, rc, states, started, err)
	}

	states.succeed(node.ID, time.Since(started), false)
	e.reporter.NodeFinished(domain.NodeFinishedEvent{
		RunID:      rc.RunID,
		NodeID:     node.ID,
		Level:      level,
		OutputKeys: node.OutputKeys,
		Duration:   time.Since(started),
		FinishedAt: time.Now(),
	})
	e.logger.Debug("node finished",
		"run_id", rc.RunID,
		"node_id", node.ID,
		"duration", time.Since(started))
	return true
}

// invoke resolves the node's inputs and parameters and calls the handler.
func (e *Engine) invoke(ctx context.Context, level int, node domain.NodeDescriptor, rc *domain.RunContext, bindings *bindingTable) (map[string]interface{}, error) {
	handler, err := e.registry.Get(node.Kind)
	if err != nil {
		return nil, err
	}

	inputs := make(map[string]interface{}, len(node.InputKeys))
	for _, key := range node.InputKeys {
		if value, ok := bindings.get(key); ok {
			inputs[key] = value
			continue
		}
		value, err := e.catalog.Load(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("resolving input %q: %w", key, err)
		}
		bindings.put(key, value)
		inputs[key] = value
	}

	params, err := rc.MergedParams(node)
	if err != nil {
		return nil, err
	}

	nodeCtx := domain.WithNodeContext(ctx, domain.NodeContext{
		RunID:  rc.RunID,
		NodeID: node.ID,
		Kind:   node.Kind,
		Level:  level,
	})
	if e.config.NodeTimeout > 0 {
		var cancel context.CancelFunc
		nodeCtx, cancel = context.WithTimeout(nodeCtx, e.config.NodeTimeout)
		defer cancel()
	}

	call := ports.NodeCall{
		RunID:  rc.RunID,
		NodeID: node.ID,
		Params: params,
		Inputs: inputs,
	}
	return e.safeExecute(nodeCtx, handler, call)
}

// safeExecute converts a handler panic into an error instead of taking the
// whole run down.
func (e *Engine) safeExecute(ctx context.Context, handler ports.NodePort, call ports.NodeCall) (outputs map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := domain.NewNodePanicError(call.RunID, call.NodeID, r)
			e.logger.Error("node handler panicked",
				"run_id", call.RunID,
				"node_id", call.NodeID,
				"panic", fmt.Sprintf("%v", r))
			outputs = nil
			err = panicErr
		}
	}()
	return handler.Execute(ctx, call)
}

// publish binds the produced values, persists catalog-backed keys, and
// appends the success checkpoint. Every declared output key must have been
// produced; undeclared extras are dropped with a warning.
func (e *Engine) publish(ctx context.Context, node domain.NodeDescriptor, rc *domain.RunContext, outputs map[string]interface{}, bindings *bindingTable) error {
	for key := range outputs {
		declared := false
		for _, want := range node.OutputKeys {
			if key == want {
				declared = true
				break
			}
		}
		if !declared {
			e.logger.Warn("dropping undeclared output",
				"run_id", rc.RunID,
				"node_id", node.ID,
				"key", key)
		}
	}

	recorded := make(map[string]domain.OutputBinding, len(node.OutputKeys))
	for _, key := range node.OutputKeys {
		value, ok := outputs[key]
		if !ok {
			return fmt.Errorf("handler did not produce declared output %q", key)
		}
		bindings.put(key, value)

		if e.catalog.IsPersistent(key) {
			if err := e.catalog.Save(ctx, key, value); err != nil {
				return fmt.Errorf("persisting output %q: %w", key, err)
			}
			location, _ := e.catalog.Location(key)
			recorded[key] = domain.OutputBinding{Kind: domain.BindingReference, Location: location}
			continue
		}

		raw, err := xjson.Marshal(value)
		if err != nil {
			e.logger.Warn("output not serializable, checkpoint omits it",
				"run_id", rc.RunID,
				"node_id", node.ID,
				"key", key,
				"error", err.Error())
			continue
		}
		recorded[key] = domain.OutputBinding{Kind: domain.BindingInline, Value: raw}
	}

	rec := domain.CheckpointRecord{
		RunID:          rc.RunID,
		NodeID:         node.ID,
		State:          domain.NodeStateSucceeded,
		OutputBindings: recorded,
		Timestamp:      time.Now().UTC(),
	}
	if err := e.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("checkpointing completion: %w", err)
	}
	return nil
}

// failNode settles a node in the failed state: record, checkpoint (best
// effort), report.
func (e *Engine) failNode(ctx context.Context, level int, node domain.NodeDescriptor, rc *domain.RunContext, states *runState, started time.Time, cause error) bool {
	execErr := cause
	if !domain.IsExecutionError(execErr) {
		execErr = domain.NewExecutionError(rc.RunID, node.ID, cause)
	}
	duration := time.Since(started)
	states.fail(node.ID, execErr, duration)

	rec := domain.CheckpointRecord{
		RunID:     rc.RunID,
		NodeID:    node.ID,
		State:     domain.NodeStateFailed,
		Error:     execErr.Error(),
		Timestamp: time.Now().UTC(),
	}
	if err := e.store.Append(ctx, rec); err != nil {
		e.logger.Warn("failed to checkpoint node failure",
			"run_id", rc.RunID,
			"node_id", node.ID,
			"error", err.Error())
	}

	e.reporter.NodeFailed(domain.NodeFailedEvent{
		RunID:    rc.RunID,
		NodeID:   node.ID,
		Level:    level,
		Error:    execErr,
		Duration: duration,
		FailedAt: time.Now(),
	})
	e.logger.Error("node failed",
		"run_id", rc.RunID,
		"node_id", node.ID,
		"error", execErr.Error())
	return false
}
