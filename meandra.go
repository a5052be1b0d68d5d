// Package meandra provides a declarative workflow orchestration engine for Go
// applications.
//
// Meandra runs directed acyclic workflows of registered node kinds. A
// workflow is declared once as a spec, planned into deterministic parallel
// levels, and executed by a bounded worker pool. It provides:
//   - Declarative specs with nested sub-workflows flattened at plan time
//   - Dependency resolution from data keys plus explicit ordering edges
//   - Level-parallel execution with a configurable worker bound
//   - A data catalog mapping logical keys to files via path templates
//   - Durable checkpointing with resume after a crash or failure
//   - Parameter sweeps fanning one spec out over a value grid
//
// Basic usage:
//
//	runner, err := meandra.New(meandra.NewConfig().WithDataDir("./data"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer runner.Close()
//
//	runner.RegisterNode(&ExtractNode{})
//	runner.RegisterNode(&TransformNode{})
//
//	spec, err := meandra.NewSpec("etl", []meandra.NodeDescriptor{
//	    {ID: "extract", Kind: "extract", OutputKeys: []string{"raw"}},
//	    {ID: "transform", Kind: "transform", InputKeys: []string{"raw"}, OutputKeys: []string{"clean"}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := runner.Run(context.Background(), spec, nil)
package meandra

import (
	"context"
	"log/slog"

	"github.com/eleven-am/meandra/internal/adapters/reporter"
	"github.com/eleven-am/meandra/internal/core"
	"github.com/eleven-am/meandra/internal/domain"
	"github.com/eleven-am/meandra/internal/factory"
	"github.com/eleven-am/meandra/internal/ports"
)

// Runner plans and executes workflows. It owns the node registry, the data
// catalog, and the checkpoint store, and is safe for concurrent use.
type Runner = core.Runner

// WorkflowSpec is an immutable workflow declaration: an identifier and an
// ordered list of node descriptors.
type WorkflowSpec = domain.WorkflowSpec

// NodeDescriptor declares a single unit of work inside a spec: its kind,
// the data keys it consumes and produces, and optional scheduling
// qualifiers.
type NodeDescriptor = domain.NodeDescriptor

// ExecutionPlan is the resolved schedule for one run: nodes grouped into
// dependency levels, with condition-excluded nodes listed separately.
type ExecutionPlan = domain.ExecutionPlan

// RunContext carries per-run inputs: the run identifier, condition flags,
// parameter overrides, initial data bindings, and placeholder values.
type RunContext = domain.RunContext

// RunResult is the outcome of a run: per-node statuses in plan order and
// the overall run status.
type RunResult = domain.RunResult

// NodeStatus is the per-node outcome included in a RunResult.
type NodeStatus = domain.NodeStatus

// NodeRunState is a node's lifecycle state during execution.
type NodeRunState = domain.NodeRunState

// RunStatus is the terminal status of a whole run.
type RunStatus = domain.RunStatus

// SkipReason distinguishes why a node was skipped.
type SkipReason = domain.SkipReason

// CheckpointRecord is one durable entry in a run's checkpoint log.
type CheckpointRecord = domain.CheckpointRecord

// CheckpointLog is everything recorded for one run, including records that
// failed integrity checks on load.
type CheckpointLog = domain.CheckpointLog

// OutputBinding captures one produced output inside a checkpoint record,
// either inline or as a catalog reference.
type OutputBinding = domain.OutputBinding

// CatalogEntry maps a logical data key to a storage location template.
type CatalogEntry = domain.CatalogEntry

// Config assembles engine, catalog, and checkpoint settings for a Runner.
type Config = domain.Config

// EngineConfig bounds execution: worker count, fail-fast, node timeout.
type EngineConfig = domain.EngineConfig

// CatalogConfig declares the data catalog: base directory, default format,
// and the key-to-location entries.
type CatalogConfig = domain.CatalogConfig

// CheckpointConfig controls the durable checkpoint store.
type CheckpointConfig = domain.CheckpointConfig

// NodeContext identifies the node invocation behind a context handed to a
// handler.
type NodeContext = domain.NodeContext

// Param declares one named parameter a node kind accepts.
type Param = domain.Param

// ParamSet declares the parameters of a node kind by name.
type ParamSet = domain.ParamSet

// ParamType restricts the values a parameter accepts.
type ParamType = domain.ParamType

// NodePort is the interface every registered node kind implements.
type NodePort = ports.NodePort

// NodeCall carries everything a node handler needs for one invocation:
// resolved inputs, merged parameters, and run identity.
type NodeCall = ports.NodeCall

// ReporterPort receives lifecycle events as a run progresses.
type ReporterPort = ports.ReporterPort

// Workflow is a parsed workflow file: the spec, its catalog entries, and
// the base run context it declares.
type Workflow = factory.Workflow

// Node lifecycle states.
const (
	NodeStatePending   = domain.NodeStatePending
	NodeStateReady     = domain.NodeStateReady
	NodeStateRunning   = domain.NodeStateRunning
	NodeStateSucceeded = domain.NodeStateSucceeded
	NodeStateFailed    = domain.NodeStateFailed
	NodeStateSkipped   = domain.NodeStateSkipped
)

// Skip reasons.
const (
	// SkipUpstream marks nodes not run because a dependency failed.
	SkipUpstream = domain.SkipUpstream
	// SkipCondition marks nodes excluded by their condition flags.
	SkipCondition = domain.SkipCondition
)

// Run statuses.
const (
	RunStatusSucceeded = domain.RunStatusSucceeded
	RunStatusFailed    = domain.RunStatusFailed
)

// Parameter types.
const (
	ParamAny    = domain.ParamAny
	ParamString = domain.ParamString
	ParamInt    = domain.ParamInt
	ParamFloat  = domain.ParamFloat
	ParamBool   = domain.ParamBool
)

// New creates a Runner from the given configuration. A nil config runs with
// defaults: in the current directory, one worker per CPU, and checkpoints on
// disk under the data directory.
func New(config *Config) (*Runner, error) {
	return core.NewRunner(config, nil)
}

// NewWithReporter creates a Runner that forwards lifecycle events to the
// given reporter.
func NewWithReporter(config *Config, rep ReporterPort) (*Runner, error) {
	return core.NewRunner(config, rep)
}

// NewConfig returns an empty configuration to build on with the With
// helpers.
func NewConfig() *Config {
	return &domain.Config{}
}

// NewSpec validates a workflow declaration and returns the spec.
func NewSpec(id string, nodes []NodeDescriptor) (*WorkflowSpec, error) {
	return domain.NewWorkflowSpec(id, nodes)
}

// NewRunContext returns a run context for the given run identifier. An
// empty identifier is replaced with a generated one when the run starts.
func NewRunContext(runID string) *RunContext {
	return domain.NewRunContext(runID)
}

// LoadWorkflowFile reads a YAML workflow file into a spec, catalog entries,
// and a base run context.
func LoadWorkflowFile(path string) (*Workflow, error) {
	return factory.LoadFile(path)
}

// LoadWorkflowBytes parses an in-memory YAML workflow document.
func LoadWorkflowBytes(data []byte) (*Workflow, error) {
	return factory.LoadBytes(data)
}

// NewSlogReporter returns a reporter that logs lifecycle events through the
// given slog logger.
func NewSlogReporter(logger *slog.Logger) ReporterPort {
	return reporter.NewSlog(logger)
}

// NewMultiReporter fans lifecycle events out to several reporters.
func NewMultiReporter(reporters ...ReporterPort) ReporterPort {
	return reporter.NewMulti(reporters...)
}

// GetNodeContext extracts node identity from the context passed to a
// handler's Execute method.
func GetNodeContext(ctx context.Context) (NodeContext, bool) {
	return domain.GetNodeContext(ctx)
}

// IsConfigurationError reports whether err stems from an invalid workflow
// declaration or configuration.
func IsConfigurationError(err error) bool {
	return domain.IsConfigurationError(err)
}

// IsDependencyError reports whether err stems from an unschedulable
// dependency graph: a cycle, an unresolvable input, or an unknown node
// reference.
func IsDependencyError(err error) bool {
	return domain.IsDependencyError(err)
}

// IsExecutionError reports whether err was raised while running a node.
func IsExecutionError(err error) bool {
	return domain.IsExecutionError(err)
}

// IsNotFound reports whether err marks a catalog key with no entry, no
// binding, and no stored value.
func IsNotFound(err error) bool {
	return domain.IsNotFound(err)
}

// IsSpecError reports whether err belongs to the class of failures that
// prevent a workflow from starting at all, as opposed to failing mid-run.
func IsSpecError(err error) bool {
	return domain.IsSpecError(err)
}
