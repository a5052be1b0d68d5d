package engine

import (
	"context"
	"sort"

	"github.com/eleven-am/meandra/internal/domain"
	"github.com/eleven-am/meandra/internal/xjson"
)

// preload replays the run's checkpoint log into the state and binding
// tables. Nodes whose last record is a success are restored together with
// their output bindings; failed nodes stay pending so they run again.
// Returns the restored node identifiers in plan order.
func (e *Engine) preload(ctx context.Context, plan *domain.ExecutionPlan, rc *domain.RunContext, states *runState, bindings *bindingTable) ([]string, error) {
	log, err := e.store.Load(ctx, rc.RunID)
	if err != nil {
		return nil, err
	}
	for _, dropped := range log.Dropped {
		e.logger.Warn("discarded corrupt checkpoint record",
			"run_id", rc.RunID,
			"seq", dropped.Seq,
			"reason", dropped.Reason)
	}

	last := log.LastStates()
	var restored []string
	for _, id := range plan.Order() {
		rec, ok := last[id]
		if !ok {
			continue
		}
		delete(last, id)
		if rec.State != domain.NodeStateSucceeded {
			continue
		}
		e.restoreBindings(rec, bindings)
		states.restore(id)
		restored = append(restored, id)
	}

	leftover := make([]string, 0, len(last))
	for id := range last {
		leftover = append(leftover, id)
	}
	sort.Strings(leftover)
	for _, id := range leftover {
		if contains(plan.Excluded, id) {
			e.logger.Debug("checkpoint record for condition-excluded node",
				"run_id", rc.RunID,
				"node_id", id)
			continue
		}
		e.logger.Warn("checkpoint record references unknown node, ignoring",
			"run_id", rc.RunID,
			"node_id", id)
	}
	return restored, nil
}

// restoreBindings rehydrates one restored node's outputs. Inline values go
// back into the binding table; reference bindings point the catalog at the
// recorded location so dependents load them lazily. An unreadable binding is
// dropped, not fatal: a dependent that needs it will fail resolution.
func (e *Engine) restoreBindings(rec domain.CheckpointRecord, bindings *bindingTable) {
	for key, ob := range rec.OutputBindings {
		switch ob.Kind {
		case domain.BindingInline:
			var value interface{}
			if err := xjson.Unmarshal(ob.Value, &value); err != nil {
				e.logger.Warn("dropping unreadable inline binding",
					"run_id", rec.RunID,
					"node_id", rec.NodeID,
					"key", key,
					"error", err.Error())
				continue
			}
			bindings.put(key, value)
		case domain.BindingReference:
			e.catalog.Bind(key, ob.Location)
		default:
			e.logger.Warn("dropping binding with unknown kind",
				"run_id", rec.RunID,
				"node_id", rec.NodeID,
				"key", key,
				"kind", string(ob.Kind))
		}
	}
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
