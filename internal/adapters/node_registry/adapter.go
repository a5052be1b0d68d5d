package node_registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/eleven-am/meandra/internal/domain"
	"github.com/eleven-am/meandra/internal/ports"
)

type Adapter struct {
	nodes  map[string]ports.NodePort
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewAdapter(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		nodes:  make(map[string]ports.NodePort),
		logger: logger.With("component", "node-registry"),
	}
}

func (r *Adapter) Register(node ports.NodePort) error {
	if node == nil {
		r.logger.Error("attempted to register nil node")
		return &ports.NodeRegistrationError{
			Kind:   "<nil>",
			Reason: "node cannot be nil",
		}
	}

	kind := node.Kind()
	if kind == "" {
		r.logger.Error("attempted to register node with empty kind")
		return &ports.NodeRegistrationError{
			Kind:   kind,
			Reason: "node kind cannot be empty",
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[kind]; exists {
		r.logger.Debug("node registration failed - already exists", "kind", kind)
		return &ports.NodeRegistrationError{
			Kind:   kind,
			Reason: "kind already registered",
		}
	}

	r.nodes[kind] = node
	r.logger.Debug("node registered", "kind", kind, "total_kinds", len(r.nodes))
	return nil
}

func (r *Adapter) Get(kind string) (ports.NodePort, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, exists := r.nodes[kind]
	if !exists {
		return nil, fmt.Errorf("get %q: %w", kind, domain.ErrUnknownKind)
	}
	return node, nil
}

func (r *Adapter) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.nodes[kind]
	return exists
}

func (r *Adapter) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.nodes))
	for kind := range r.nodes {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// ValidateSpec checks a flattened spec against the registered handlers:
// every node kind must be registered and every node's effective parameters
// must pass its handler's validation.
func (r *Adapter) ValidateSpec(spec *domain.WorkflowSpec, rc *domain.RunContext) error {
	for _, n := range spec.Nodes {
		if n.SubWorkflow != nil {
			return domain.NewConfigurationError(n.ID, "spec must be flattened before validation")
		}

		r.mu.RLock()
		node, exists := r.nodes[n.Kind]
		r.mu.RUnlock()
		if !exists {
			return domain.NewConfigurationError(n.ID, "kind %q is not registered", n.Kind)
		}

		params, err := rc.MergedParams(n)
		if err != nil {
			return domain.NewConfigurationError(n.ID, "merging params: %v", err)
		}
		if err := node.Validate(params); err != nil {
			return domain.NewConfigurationError(n.ID, "invalid params: %v", err)
		}
	}
	return nil
}
