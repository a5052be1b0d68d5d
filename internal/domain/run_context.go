package domain

import (
	"context"
	"fmt"
)

// PlaceholderRunID and friends are the placeholder names every run context
// resolves without explicit configuration.
const (
	PlaceholderRunID      = "run_id"
	PlaceholderKey        = "key"
	PlaceholderSweepIndex = "sweep_index"
)

// RunContext carries the per-run inputs that shape planning and execution:
// the run identifier, condition flags, parameter overrides, initial data
// bindings, and placeholder values for catalog path templates.
type RunContext struct {
	RunID string

	// Flags drive node conditions. A node with When flags runs only if
	// every named flag is true here.
	Flags map[string]bool

	// Params override node parameters by name. Only parameter names a node
	// already declares are overridden; unrelated overrides are ignored for
	// that node.
	Params map[string]interface{}

	// Inputs seed the in-memory binding table before the first level runs,
	// satisfying input keys that no node produces.
	Inputs map[string]interface{}

	// Placeholders resolve catalog path templates in addition to the
	// built-in run_id and sweep_index values.
	Placeholders map[string]string

	// SweepIndex is >= 0 when this context is one point of a sweep grid.
	SweepIndex int
}

// NewRunContext returns a context for the given run identifier with no
// flags, overrides, or seeds.
func NewRunContext(runID string) *RunContext {
	return &RunContext{RunID: runID, SweepIndex: -1}
}

func (rc *RunContext) WithFlags(flags map[string]bool) *RunContext {
	rc.Flags = flags
	return rc
}

func (rc *RunContext) WithParams(params map[string]interface{}) *RunContext {
	rc.Params = params
	return rc
}

func (rc *RunContext) WithInputs(inputs map[string]interface{}) *RunContext {
	rc.Inputs = inputs
	return rc
}

func (rc *RunContext) WithPlaceholders(placeholders map[string]string) *RunContext {
	rc.Placeholders = placeholders
	return rc
}

// Flag reports whether the named condition flag is set true.
func (rc *RunContext) Flag(name string) bool {
	if rc == nil || rc.Flags == nil {
		return false
	}
	return rc.Flags[name]
}

// ConditionMet reports whether every flag in the conjunction is true. An
// empty conjunction is always met.
func (rc *RunContext) ConditionMet(when []string) bool {
	for _, flag := range when {
		if !rc.Flag(flag) {
			return false
		}
	}
	return true
}

// Placeholder resolves a template placeholder name. The run identifier and
// sweep index are always available; everything else comes from the
// configured placeholder map.
func (rc *RunContext) Placeholder(name string) (string, bool) {
	switch name {
	case PlaceholderRunID:
		return rc.RunID, true
	case PlaceholderSweepIndex:
		if rc.SweepIndex >= 0 {
			return fmt.Sprintf("%d", rc.SweepIndex), true
		}
		return "", false
	}
	value, ok := rc.Placeholders[name]
	return value, ok
}

// MergedParams resolves the effective parameters for one node: the node's
// declared params with run-level overrides applied to the names the node
// declares.
func (rc *RunContext) MergedParams(node NodeDescriptor) (map[string]interface{}, error) {
	if rc == nil || len(rc.Params) == 0 {
		return cloneParams(node.Params), nil
	}
	overrides := make(map[string]interface{})
	for name := range node.Params {
		if value, ok := rc.Params[name]; ok {
			overrides[name] = value
		}
	}
	return MergeParams(node.Params, overrides)
}

// Clone returns an independent copy, used when a sweep fans one context out
// into many.
func (rc *RunContext) Clone() *RunContext {
	out := &RunContext{RunID: rc.RunID, SweepIndex: rc.SweepIndex}
	if rc.Flags != nil {
		out.Flags = make(map[string]bool, len(rc.Flags))
		for k, v := range rc.Flags {
			out.Flags[k] = v
		}
	}
	out.Params = cloneParams(rc.Params)
	out.Inputs = cloneParams(rc.Inputs)
	if rc.Placeholders != nil {
		out.Placeholders = make(map[string]string, len(rc.Placeholders))
		for k, v := range rc.Placeholders {
			out.Placeholders[k] = v
		}
	}
	return out
}

type contextKey string

const nodeContextKey contextKey = "meandra:node_context"

// NodeContext identifies the node invocation behind a context handed to a
// handler.
type NodeContext struct {
	RunID  string `json:"run_id"`
	NodeID string `json:"node_id"`
	Kind   string `json:"kind"`
	Level  int    `json:"level"`
}

// WithNodeContext embeds node identity into a context before a handler is
// invoked.
func WithNodeContext(ctx context.Context, nc NodeContext) context.Context {
	return context.WithValue(ctx, nodeContextKey, nc)
}

// GetNodeContext extracts node identity from a handler's context.
func GetNodeContext(ctx context.Context) (NodeContext, bool) {
	nc, ok := ctx.Value(nodeContextKey).(NodeContext)
	return nc, ok
}
