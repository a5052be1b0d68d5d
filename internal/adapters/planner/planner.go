package planner

import (
	"log/slog"

	"github.com/eleven-am/meandra/internal/domain"
)

// KeyResolver answers whether an input key with no producing node can be
// served from outside the run, typically by the data catalog.
type KeyResolver interface {
	Has(key string) bool
}

// Planner turns a workflow spec and a run context into an execution plan.
// Planning is pure: the same spec, flags, and resolvable keys always yield
// a byte-identical plan.
type Planner struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{logger: logger.With("component", "planner")}
}

// Build flattens the spec, drops nodes whose condition flags are not met,
// resolves data and ordering edges, rejects cycles and unresolvable inputs,
// and levels the surviving graph.
func (p *Planner) Build(spec *domain.WorkflowSpec, rc *domain.RunContext, keys KeyResolver) (*domain.ExecutionPlan, error) {
	if rc == nil {
		rc = domain.NewRunContext("")
	}
	flat, err := spec.Flatten()
	if err != nil {
		return nil, err
	}

	kept := make([]domain.NodeDescriptor, 0, len(flat.Nodes))
	var excluded []string
	for _, n := range flat.Nodes {
		if rc.ConditionMet(n.When) {
			kept = append(kept, n)
			continue
		}
		excluded = append(excluded, n.ID)
	}

	order := make([]string, len(kept))
	nodes := make(map[string]domain.NodeDescriptor, len(kept))
	producers := make(map[string]string, len(kept))
	for i, n := range kept {
		order[i] = n.ID
		nodes[n.ID] = n
		for _, key := range n.OutputKeys {
			producers[key] = n.ID
		}
	}
	excludedSet := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		excludedSet[id] = struct{}{}
	}

	g := newGraph(order)
	for _, n := range kept {
		for _, key := range n.InputKeys {
			if producer, ok := producers[key]; ok {
				g.addEdge(producer, n.ID)
				continue
			}
			if p.external(key, rc, keys) {
				continue
			}
			return nil, domain.NewDependencyError(
				"input key \""+key+"\" has no producer and cannot be served by the catalog", n.ID)
		}
		for _, ref := range n.After {
			if _, ok := nodes[ref]; ok {
				g.addEdge(ref, n.ID)
				continue
			}
			if _, wasExcluded := excludedSet[ref]; wasExcluded {
				// Ordering against a node the flags dropped is vacuous.
				continue
			}
			return nil, domain.NewDependencyError(
				"after references unknown node \""+ref+"\"", n.ID)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, domain.NewDependencyError("dependency cycle", cycle...)
	}

	plan := &domain.ExecutionPlan{
		SpecID:       spec.ID,
		Levels:       g.levels(),
		Excluded:     excluded,
		Nodes:        nodes,
		Dependencies: make(map[string][]string, len(kept)),
		Dependents:   make(map[string][]string, len(kept)),
	}
	for _, id := range order {
		if preds := g.sortedByIndex(g.pred[id]); preds != nil {
			plan.Dependencies[id] = preds
		}
		if succs := g.sortedByIndex(g.succ[id]); succs != nil {
			plan.Dependents[id] = succs
		}
	}

	p.logger.Debug("plan built",
		"spec_id", spec.ID,
		"run_id", rc.RunID,
		"nodes", len(kept),
		"levels", len(plan.Levels),
		"excluded", len(excluded))
	return plan, nil
}

// external reports whether a key without a producer can still be resolved
// at execution time, from the run's seed inputs or the catalog.
func (p *Planner) external(key string, rc *domain.RunContext, keys KeyResolver) bool {
	if rc != nil && rc.Inputs != nil {
		if _, ok := rc.Inputs[key]; ok {
			return true
		}
	}
	return keys != nil && keys.Has(key)
}
