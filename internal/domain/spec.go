package domain

import (
	"strings"
)

// ScopeSeparator joins a sub-workflow wrapper's identifier with the
// identifiers and internal keys of its children when a nested workflow is
// flattened into its parent's namespace.
const ScopeSeparator = "/"

// NodeDescriptor declares a single unit of work: the registered kind that
// executes it, the logical data keys it consumes and produces, and optional
// scheduling qualifiers. A descriptor with a non-nil SubWorkflow carries no
// kind of its own; it wraps a nested workflow whose InputKeys and OutputKeys
// form the wrapper's boundary.
type NodeDescriptor struct {
	ID          string                 `json:"id" yaml:"id"`
	Kind        string                 `json:"kind,omitempty" yaml:"kind,omitempty"`
	Params      map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
	InputKeys   []string               `json:"input_keys,omitempty" yaml:"input_keys,omitempty"`
	OutputKeys  []string               `json:"output_keys,omitempty" yaml:"output_keys,omitempty"`
	When        []string               `json:"when,omitempty" yaml:"when,omitempty"`
	After       []string               `json:"after,omitempty" yaml:"after,omitempty"`
	SubWorkflow *WorkflowSpec          `json:"sub_workflow,omitempty" yaml:"sub_workflow,omitempty"`
}

func (n NodeDescriptor) IsSubWorkflow() bool {
	return n.SubWorkflow != nil
}

// Clone returns a deep copy of the descriptor. Slices and the params map are
// copied so callers can mutate the clone without aliasing the original.
func (n NodeDescriptor) Clone() NodeDescriptor {
	c := n
	c.Params = cloneParams(n.Params)
	c.InputKeys = append([]string(nil), n.InputKeys...)
	c.OutputKeys = append([]string(nil), n.OutputKeys...)
	c.When = append([]string(nil), n.When...)
	c.After = append([]string(nil), n.After...)
	if n.SubWorkflow != nil {
		c.SubWorkflow = n.SubWorkflow.Clone()
	}
	return c
}

func cloneParams(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = cloneParams(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// WorkflowSpec is an immutable declaration of a workflow: an identifier and
// an ordered list of node descriptors. Declaration order is meaningful; it
// breaks scheduling ties deterministically.
type WorkflowSpec struct {
	ID    string           `json:"id" yaml:"id"`
	Nodes []NodeDescriptor `json:"nodes" yaml:"nodes"`
}

// NewWorkflowSpec validates the declaration and returns the spec. The
// returned spec may still contain sub-workflow wrappers; call Flatten to
// expand them.
func NewWorkflowSpec(id string, nodes []NodeDescriptor) (*WorkflowSpec, error) {
	s := &WorkflowSpec{ID: id, Nodes: nodes}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *WorkflowSpec) Clone() *WorkflowSpec {
	if s == nil {
		return nil
	}
	out := &WorkflowSpec{ID: s.ID, Nodes: make([]NodeDescriptor, len(s.Nodes))}
	for i, n := range s.Nodes {
		out.Nodes[i] = n.Clone()
	}
	return out
}

// Node returns the descriptor with the given ID at this nesting level.
func (s *WorkflowSpec) Node(id string) (NodeDescriptor, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeDescriptor{}, false
}

// Validate checks the declaration invariants at every nesting level:
// non-empty unique identifiers, exactly one of kind or sub-workflow per
// node, single writer per output key among siblings, and sub-workflow
// boundaries that match the nested graph. After references are resolved
// later, during planning.
func (s *WorkflowSpec) Validate() error {
	if s.ID == "" {
		return NewConfigurationError("", "workflow id must not be empty")
	}
	if len(s.Nodes) == 0 {
		return NewConfigurationError("", "workflow %q declares no nodes", s.ID)
	}

	ids := make(map[string]struct{}, len(s.Nodes))
	outputs := make(map[string]string)

	for _, n := range s.Nodes {
		if n.ID == "" {
			return NewConfigurationError("", "workflow %q contains a node with an empty id", s.ID)
		}
		if strings.Contains(n.ID, ScopeSeparator) {
			return NewConfigurationError(n.ID, "node id must not contain %q", ScopeSeparator)
		}
		if _, dup := ids[n.ID]; dup {
			return NewConfigurationError(n.ID, "duplicate node id")
		}
		ids[n.ID] = struct{}{}

		switch {
		case n.Kind == "" && n.SubWorkflow == nil:
			return NewConfigurationError(n.ID, "node declares neither a kind nor a sub-workflow")
		case n.Kind != "" && n.SubWorkflow != nil:
			return NewConfigurationError(n.ID, "node declares both a kind and a sub-workflow")
		}

		if key, dup := firstDuplicate(n.InputKeys); dup {
			return NewConfigurationError(n.ID, "input key %q declared twice", key)
		}
		if key, dup := firstDuplicate(n.OutputKeys); dup {
			return NewConfigurationError(n.ID, "output key %q declared twice", key)
		}
		for _, key := range n.OutputKeys {
			if prev, taken := outputs[key]; taken {
				return NewConfigurationError(n.ID, "output key %q already produced by node %q", key, prev)
			}
			outputs[key] = n.ID
		}
	}

	for _, n := range s.Nodes {
		if n.SubWorkflow == nil {
			continue
		}
		if err := n.SubWorkflow.Validate(); err != nil {
			return err
		}
		if err := validateBoundary(n); err != nil {
			return err
		}
	}
	return nil
}

// validateBoundary checks that a wrapper's declared keys agree with the
// nested graph: every key the nested graph consumes without producing must
// be listed as a wrapper input, and every declared wrapper output must be
// produced somewhere inside.
func validateBoundary(wrapper NodeDescriptor) error {
	produced := make(map[string]struct{})
	consumed := make(map[string]struct{})
	for _, child := range wrapper.SubWorkflow.Nodes {
		for _, key := range child.OutputKeys {
			produced[key] = struct{}{}
		}
		for _, key := range child.InputKeys {
			consumed[key] = struct{}{}
		}
	}

	declared := make(map[string]struct{}, len(wrapper.InputKeys))
	for _, key := range wrapper.InputKeys {
		declared[key] = struct{}{}
	}
	for key := range consumed {
		if _, internal := produced[key]; internal {
			continue
		}
		if _, ok := declared[key]; !ok {
			return NewConfigurationError(wrapper.ID,
				"sub-workflow consumes key %q that is not produced inside and not declared as an input", key)
		}
	}
	for _, key := range wrapper.OutputKeys {
		if _, ok := produced[key]; !ok {
			return NewConfigurationError(wrapper.ID,
				"sub-workflow declares output key %q that no nested node produces", key)
		}
	}
	return nil
}

// Flatten expands every sub-workflow wrapper into the parent namespace and
// returns a spec containing only compute nodes. Nested node identifiers are
// qualified with the wrapper path, internal keys are renamed into the
// wrapper scope, boundary keys keep their names, and the wrapper's when and
// after qualifiers are inherited by every expanded node. Flattening an
// already flat spec returns an equivalent spec.
func (s *WorkflowSpec) Flatten() (*WorkflowSpec, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	flat := make([]NodeDescriptor, 0, len(s.Nodes))
	expand(s.Nodes, "", func(key string) string { return key }, nil, nil, &flat)

	ids := make(map[string]struct{}, len(flat))
	outputs := make(map[string]string)
	for _, n := range flat {
		if _, dup := ids[n.ID]; dup {
			return nil, NewConfigurationError(n.ID, "duplicate node id after flattening")
		}
		ids[n.ID] = struct{}{}
		for _, key := range n.OutputKeys {
			if prev, taken := outputs[key]; taken {
				return nil, NewConfigurationError(n.ID, "output key %q already produced by node %q", key, prev)
			}
			outputs[key] = n.ID
		}
	}

	for i := range flat {
		flat[i].After = resolveAfter(flat[i].After, ids, flat)
	}
	return &WorkflowSpec{ID: s.ID, Nodes: flat}, nil
}

// expand walks one nesting level. scope prefixes node identifiers, rename
// maps key names written at this level to their flat-namespace names, and
// when/after carry qualifiers inherited from enclosing wrappers.
func expand(nodes []NodeDescriptor, scope string, rename func(string) string, when, after []string, out *[]NodeDescriptor) {
	for _, n := range nodes {
		qualifiedID := scope + n.ID

		if n.SubWorkflow != nil {
			boundary := make(map[string]struct{}, len(n.InputKeys)+len(n.OutputKeys))
			for _, key := range n.InputKeys {
				boundary[key] = struct{}{}
			}
			for _, key := range n.OutputKeys {
				boundary[key] = struct{}{}
			}
			childScope := qualifiedID + ScopeSeparator
			childRename := func(key string) string {
				if _, ok := boundary[key]; ok {
					return rename(key)
				}
				return childScope + key
			}
			childWhen := concat(when, n.When)
			childAfter := concat(after, qualifyAll(n.After, scope))
			expand(n.SubWorkflow.Nodes, childScope, childRename, childWhen, childAfter, out)
			continue
		}

		c := n.Clone()
		c.ID = qualifiedID
		c.InputKeys = renameAll(n.InputKeys, rename)
		c.OutputKeys = renameAll(n.OutputKeys, rename)
		c.When = concat(when, n.When)
		c.After = concat(after, qualifyAll(n.After, scope))
		*out = append(*out, c)
	}
}

// resolveAfter rewrites after references that name an expanded wrapper into
// references to every node flattened out of that wrapper. References to
// compute nodes pass through unchanged, and references matching nothing are
// kept as written so planning can report them.
func resolveAfter(refs []string, ids map[string]struct{}, flat []NodeDescriptor) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	appendRef := func(ref string) {
		if _, dup := seen[ref]; dup {
			return
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	for _, ref := range refs {
		if _, ok := ids[ref]; ok {
			appendRef(ref)
			continue
		}
		prefix := ref + ScopeSeparator
		matched := false
		for _, n := range flat {
			if strings.HasPrefix(n.ID, prefix) {
				appendRef(n.ID)
				matched = true
			}
		}
		if !matched {
			appendRef(ref)
		}
	}
	return out
}

func renameAll(keys []string, rename func(string) string) []string {
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = rename(key)
	}
	return out
}

func qualifyAll(refs []string, scope string) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = scope + ref
	}
	return out
}

func concat(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func firstDuplicate(keys []string) (string, bool) {
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			return key, true
		}
		seen[key] = struct{}{}
	}
	return "", false
}
