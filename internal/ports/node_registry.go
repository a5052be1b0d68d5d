package ports

import (
	"context"
	"fmt"

	"github.com/eleven-am/meandra/internal/domain"
)

// NodeCall is everything a node handler receives for one invocation: the
// run and node identity, the effective parameters after overrides, and the
// resolved input values keyed by input key.
type NodeCall struct {
	RunID  string                 `json:"run_id"`
	NodeID string                 `json:"node_id"`
	Params map[string]interface{} `json:"params,omitempty"`
	Inputs map[string]interface{} `json:"inputs,omitempty"`
}

// NodePort is the capability behind a node kind. Implementations must be
// safe for concurrent Execute calls; the engine may run many nodes of the
// same kind at once.
type NodePort interface {
	// Kind returns the name workflow specs use to reference this handler.
	Kind() string
	// Validate checks parameter values before a run starts.
	Validate(params map[string]interface{}) error
	// Execute performs the work and returns produced values keyed by
	// output key. The context carries node identity and honors the
	// configured node timeout.
	Execute(ctx context.Context, call NodeCall) (map[string]interface{}, error)
}

// RegistryPort maps node kinds to their handlers.
type RegistryPort interface {
	Register(node NodePort) error
	Get(kind string) (NodePort, error)
	Has(kind string) bool
	Kinds() []string
	// ValidateSpec checks that every node of a flattened spec references a
	// registered kind and carries parameters its handler accepts.
	ValidateSpec(spec *domain.WorkflowSpec, rc *domain.RunContext) error
}

type NodeRegistrationError struct {
	Kind   string
	Reason string
}

func (e *NodeRegistrationError) Error() string {
	return fmt.Sprintf("cannot register node kind %q: %s", e.Kind, e.Reason)
}
