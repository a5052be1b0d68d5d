package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/eleven-am/meandra/internal/adapters/catalog"
	"github.com/eleven-am/meandra/internal/adapters/checkpoint"
	"github.com/eleven-am/meandra/internal/adapters/engine"
	"github.com/eleven-am/meandra/internal/adapters/node_registry"
	"github.com/eleven-am/meandra/internal/adapters/planner"
	"github.com/eleven-am/meandra/internal/adapters/reporter"
	"github.com/eleven-am/meandra/internal/domain"
	"github.com/eleven-am/meandra/internal/ports"
)

// Runner owns the long-lived pieces of the orchestrator: the node registry,
// the configured catalog, the checkpoint store, and the planner. Every run
// gets a fresh engine wired around a run-scoped catalog view.
type Runner struct {
	config   *domain.Config
	logger   *slog.Logger
	registry ports.RegistryPort
	catalogs ports.CatalogProvider
	store    ports.CheckpointPort
	reporter ports.ReporterPort
	planner  *planner.Planner
}

func NewRunner(config *domain.Config, rep ports.ReporterPort) (*Runner, error) {
	if config == nil {
		config = &domain.Config{}
	}
	if err := config.Normalize(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := config.Logger

	catalogs, err := catalog.NewFS(config.Catalog, logger)
	if err != nil {
		return nil, err
	}
	store, err := checkpoint.Open(config.Checkpoint, logger)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		rep = reporter.NewNoop()
	}

	return &Runner{
		config:   config,
		logger:   logger.With("component", "runner"),
		registry: node_registry.NewAdapter(logger),
		catalogs: catalogs,
		store:    store,
		reporter: rep,
		planner:  planner.New(logger),
	}, nil
}

// RegisterNode makes a node kind available to workflows.
func (r *Runner) RegisterNode(node ports.NodePort) error {
	return r.registry.Register(node)
}

// Kinds lists the registered node kinds, sorted.
func (r *Runner) Kinds() []string {
	return r.registry.Kinds()
}

// Plan validates the workflow against the registered kinds and builds the
// execution plan for the given run context without executing anything.
func (r *Runner) Plan(spec *domain.WorkflowSpec, rc *domain.RunContext) (*domain.ExecutionPlan, error) {
	if spec == nil {
		return nil, domain.NewConfigurationError("", "workflow spec must not be nil")
	}
	if rc == nil {
		rc = domain.NewRunContext(uuid.NewString())
	}

	flat, err := spec.Flatten()
	if err != nil {
		return nil, err
	}
	if err := r.registry.ValidateSpec(flat, rc); err != nil {
		return nil, err
	}
	return r.planner.Build(flat, rc, r.catalogs.ForRun(rc))
}

// Run executes the workflow from scratch. A nil context or an empty run id
// gets a generated identifier.
func (r *Runner) Run(ctx context.Context, spec *domain.WorkflowSpec, rc *domain.RunContext) (*domain.RunResult, error) {
	rc = r.ensureRunID(rc)
	plan, err := r.Plan(spec, rc)
	if err != nil {
		return nil, err
	}
	return r.engineFor(rc).Run(ctx, plan, rc)
}

// Resume replays the checkpoint log for rc.RunID and executes only what is
// left. The run context must name the run to pick up.
func (r *Runner) Resume(ctx context.Context, spec *domain.WorkflowSpec, rc *domain.RunContext) (*domain.RunResult, error) {
	if rc == nil || rc.RunID == "" {
		return nil, fmt.Errorf("resume requires the run id of a previous run")
	}
	plan, err := r.Plan(spec, rc)
	if err != nil {
		return nil, err
	}
	return r.engineFor(rc).Resume(ctx, plan, rc)
}

// RunSweep executes the workflow once per point of the sweep grid. Each
// point runs under a clone of the base context with the grid parameters
// applied, the run id suffixed with the sweep index, and the sweep_index
// placeholder bound. A failed point does not stop the sweep; a planning
// error or a canceled context does.
func (r *Runner) RunSweep(ctx context.Context, spec *domain.WorkflowSpec, rc *domain.RunContext, sweeps map[string][]interface{}) ([]*domain.RunResult, error) {
	rc = r.ensureRunID(rc)
	grid := domain.SweepGrid(rc.Params, sweeps)
	if len(grid) == 0 {
		return nil, domain.NewConfigurationError("", "sweep grid is empty: an axis declares no values")
	}

	r.logger.Info("sweep starting", "run_id", rc.RunID, "points", len(grid))
	results := make([]*domain.RunResult, 0, len(grid))
	for i, point := range grid {
		prc := rc.Clone()
		prc.RunID = fmt.Sprintf("%s-s%d", rc.RunID, i)
		prc.SweepIndex = i
		prc.Params = point

		plan, err := r.Plan(spec, prc)
		if err != nil {
			return results, err
		}
		result, err := r.engineFor(prc).Run(ctx, plan, prc)
		if err != nil {
			return results, err
		}
		results = append(results, result)

		if err := ctx.Err(); err != nil {
			return results, err
		}
	}
	return results, nil
}

// Runs lists run identifiers that have checkpoint history.
func (r *Runner) Runs(ctx context.Context) ([]string, error) {
	return r.store.Runs(ctx)
}

// History returns the surviving checkpoint records for a run.
func (r *Runner) History(ctx context.Context, runID string) (domain.CheckpointLog, error) {
	return r.store.Load(ctx, runID)
}

// Close releases the checkpoint store. The runner is unusable afterwards.
func (r *Runner) Close() error {
	return r.store.Close()
}

func (r *Runner) engineFor(rc *domain.RunContext) *engine.Engine {
	return engine.New(r.config.Engine, r.registry, r.catalogs.ForRun(rc), r.store, r.reporter, r.config.Logger)
}

func (r *Runner) ensureRunID(rc *domain.RunContext) *domain.RunContext {
	if rc == nil {
		return domain.NewRunContext(uuid.NewString())
	}
	if rc.RunID == "" {
		rc.RunID = uuid.NewString()
	}
	return rc
}
