package planner

import (
	"sort"
)

// graph is the dependency graph over scheduled nodes. Node and edge
// insertion order is preserved so every traversal is deterministic.
type graph struct {
	order []string
	index map[string]int
	succ  map[string][]string
	pred  map[string][]string
	edges map[[2]string]struct{}
}

func newGraph(order []string) *graph {
	g := &graph{
		order: order,
		index: make(map[string]int, len(order)),
		succ:  make(map[string][]string, len(order)),
		pred:  make(map[string][]string, len(order)),
		edges: make(map[[2]string]struct{}),
	}
	for i, id := range order {
		g.index[id] = i
	}
	return g
}

// addEdge records that to depends on from. Duplicate edges collapse.
func (g *graph) addEdge(from, to string) {
	key := [2]string{from, to}
	if _, dup := g.edges[key]; dup {
		return
	}
	g.edges[key] = struct{}{}
	g.succ[from] = append(g.succ[from], to)
	g.pred[to] = append(g.pred[to], from)
}

// findCycle returns the first cycle reachable in declaration order, as the
// list of node identifiers in discovery order, or nil if the graph is
// acyclic.
func (g *graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.order))
	var stack []string
	var cycle []string

	var visit func(u string) bool
	visit = func(u string) bool {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range g.succ[u] {
			switch color[v] {
			case gray:
				start := 0
				for i, id := range stack {
					if id == v {
						start = i
						break
					}
				}
				cycle = append([]string(nil), stack[start:]...)
				return true
			case white:
				if visit(v) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}

// levels groups nodes so that every predecessor of a node sits in an
// earlier group. Within a group, declaration order is kept. The graph must
// be acyclic.
func (g *graph) levels() [][]string {
	indeg := make(map[string]int, len(g.order))
	for _, id := range g.order {
		indeg[id] = len(g.pred[id])
	}

	wave := make([]string, 0)
	for _, id := range g.order {
		if indeg[id] == 0 {
			wave = append(wave, id)
		}
	}

	var out [][]string
	for len(wave) > 0 {
		sort.Slice(wave, func(i, j int) bool {
			return g.index[wave[i]] < g.index[wave[j]]
		})
		out = append(out, wave)

		var next []string
		for _, u := range wave {
			for _, v := range g.succ[u] {
				indeg[v]--
				if indeg[v] == 0 {
					next = append(next, v)
				}
			}
		}
		wave = next
	}
	return out
}

// sortedByIndex orders node identifiers by declaration index, for the
// dependency lists exposed on the plan.
func (g *graph) sortedByIndex(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := append([]string(nil), ids...)
	sort.Slice(out, func(i, j int) bool {
		return g.index[out[i]] < g.index[out[j]]
	})
	return out
}
