package domain

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var (
	ErrUnknownKind    = errors.New("unknown node kind")
	ErrStoreClosed    = errors.New("checkpoint store closed")
	ErrNoSuchRun      = errors.New("run not found")
	ErrMissingBinding = errors.New("no binding for key")
)

// ConfigurationError reports a workflow spec that cannot be executed as
// declared: duplicate identifiers, conflicting output keys, unknown node
// kinds, or invalid parameter values.
type ConfigurationError struct {
	NodeID string
	Reason string
}

func NewConfigurationError(nodeID, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{NodeID: nodeID, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("invalid workflow spec: %s", e.Reason)
	}
	return fmt.Sprintf("invalid workflow spec: node %q: %s", e.NodeID, e.Reason)
}

// DependencyError reports a workflow whose dependency graph cannot be
// scheduled: a cycle, an unresolvable input key, or a reference to an
// unknown node.
type DependencyError struct {
	NodeIDs []string
	Reason  string
}

func NewDependencyError(reason string, nodeIDs ...string) *DependencyError {
	return &DependencyError{NodeIDs: nodeIDs, Reason: reason}
}

func (e *DependencyError) Error() string {
	if len(e.NodeIDs) == 0 {
		return fmt.Sprintf("unsatisfiable dependencies: %s", e.Reason)
	}
	return fmt.Sprintf("unsatisfiable dependencies: %s (nodes: %s)", e.Reason, strings.Join(e.NodeIDs, " -> "))
}

// ExecutionError wraps a failure raised while running a single node. The
// node's identity travels with the error so reporters and checkpoint
// records can attribute the failure.
type ExecutionError struct {
	RunID  string
	NodeID string
	Err    error
}

func NewExecutionError(runID, nodeID string, err error) *ExecutionError {
	return &ExecutionError{RunID: runID, NodeID: nodeID, Err: err}
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.NodeID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NodePanicError is an ExecutionError cause produced when a node handler
// panics. The recovered value and the goroutine stack are preserved.
type NodePanicError struct {
	RunID  string
	NodeID string
	Value  interface{}
	Stack  string
}

func NewNodePanicError(runID, nodeID string, value interface{}) *NodePanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &NodePanicError{
		RunID:  runID,
		NodeID: nodeID,
		Value:  value,
		Stack:  string(buf[:n]),
	}
}

func (e *NodePanicError) Error() string {
	return fmt.Sprintf("node %q panicked: %v", e.NodeID, e.Value)
}

// NotFoundError reports a catalog key with no configured entry, no runtime
// binding, and no file at its resolved location.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("catalog key %q not found", e.Key)
}

// CorruptRecordError reports a checkpoint record whose checksum or framing
// did not survive the round trip through storage. Loading discards such
// records instead of failing the run.
type CorruptRecordError struct {
	RunID  string
	Seq    uint64
	Reason string
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt checkpoint record (run %s seq %d): %s", e.RunID, e.Seq, e.Reason)
}

// ConfigError reports an engine configuration field that failed validation.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config field %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func IsDependencyError(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}

func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsCorruptRecord(err error) bool {
	var cr *CorruptRecordError
	return errors.As(err, &cr)
}

// IsSpecError reports whether err belongs to the class of failures that
// make a workflow unable to start at all, as opposed to failing mid-run.
func IsSpecError(err error) bool {
	return IsConfigurationError(err) || IsDependencyError(err)
}
