package domain

// ExecutionPlan is the scheduling artifact produced from a flattened spec
// for one run context. Levels holds node identifiers grouped so that every
// dependency of a node sits in a strictly earlier level; order within a
// level follows declaration order. Excluded lists nodes dropped by
// condition flags, in declaration order.
//
// Plans are value objects: building the same spec against the same context
// yields a byte-identical plan.
type ExecutionPlan struct {
	SpecID   string     `json:"spec_id"`
	Levels   [][]string `json:"levels"`
	Excluded []string   `json:"excluded,omitempty"`

	// Nodes maps every scheduled node to its flattened descriptor.
	Nodes map[string]NodeDescriptor `json:"nodes"`
	// Dependencies and Dependents record the resolved edges, each slice in
	// declaration order.
	Dependencies map[string][]string `json:"dependencies,omitempty"`
	Dependents   map[string][]string `json:"dependents,omitempty"`
}

// Node returns the flattened descriptor of a scheduled node.
func (p *ExecutionPlan) Node(id string) (NodeDescriptor, bool) {
	n, ok := p.Nodes[id]
	return n, ok
}

// NodeCount is the number of scheduled (non-excluded) nodes.
func (p *ExecutionPlan) NodeCount() int {
	count := 0
	for _, level := range p.Levels {
		count += len(level)
	}
	return count
}

// LevelOf returns the index of the level containing the node, or -1.
func (p *ExecutionPlan) LevelOf(id string) int {
	for i, level := range p.Levels {
		for _, nodeID := range level {
			if nodeID == id {
				return i
			}
		}
	}
	return -1
}

// Order returns all scheduled node identifiers in level order, which is a
// valid topological order of the plan.
func (p *ExecutionPlan) Order() []string {
	out := make([]string, 0, p.NodeCount())
	for _, level := range p.Levels {
		out = append(out, level...)
	}
	return out
}
