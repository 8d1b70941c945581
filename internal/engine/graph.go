package engine

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/kiln/internal/site"
)

// Graph is the validated dependency graph of a build.
//
// Rules are identified by their registration index; all adjacency is kept
// as integer slices so traversal never touches rule values. An edge
// dependents[a] -> b means b depends on a: a must publish before b starts.
type Graph struct {
	rules      []*site.Rule
	index      map[string]int
	deps       [][]int // deps[i]: rules i depends on, declaration order
	dependents [][]int // dependents[i]: rules depending on i, index order
}

// BuildGraph constructs and validates the graph over rules.
//
// Validation happens entirely before any rule runs:
//  1. every rule has a non-empty, unique name
//  2. every dependency names a registered rule (all violations are joined)
//  3. the dependency relation is acyclic
func BuildGraph(rules []*site.Rule) (*Graph, error) {
	g := &Graph{
		rules:      rules,
		index:      make(map[string]int, len(rules)),
		deps:       make([][]int, len(rules)),
		dependents: make([][]int, len(rules)),
	}

	for i, r := range rules {
		if r.Name() == "" {
			return nil, &GraphError{Code: ErrCodeEmpty, Message: fmt.Sprintf("rule #%d has no name", i)}
		}
		if _, dup := g.index[r.Name()]; dup {
			return nil, NewDuplicateError(r.Name())
		}
		g.index[r.Name()] = i
	}

	var unresolved []error
	for i, r := range rules {
		for _, name := range r.Dependencies() {
			j, ok := g.index[name]
			if !ok {
				unresolved = append(unresolved, NewUnresolvedError(r.Name(), name))
				continue
			}
			g.deps[i] = append(g.deps[i], j)
			g.dependents[j] = append(g.dependents[j], i)
		}
	}
	if len(unresolved) > 0 {
		return nil, errors.Join(unresolved...)
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, NewCycleError(cycle)
	}
	return g, nil
}

// Len returns the number of rules.
func (g *Graph) Len() int { return len(g.rules) }

// Rule returns the rule at index i.
func (g *Graph) Rule(i int) *site.Rule { return g.rules[i] }

// Name returns the name of rule i.
func (g *Graph) Name(i int) string { return g.rules[i].Name() }

// Index looks up a rule by name.
func (g *Graph) Index(name string) (int, bool) {
	i, ok := g.index[name]
	return i, ok
}

// Dependencies returns the indices rule i depends on.
func (g *Graph) Dependencies(i int) []int { return g.deps[i] }

// Dependents returns the indices of rules that depend on rule i.
func (g *Graph) Dependents(i int) []int { return g.dependents[i] }

// findCycle runs a white/gray/black DFS along dependency edges and returns
// one cycle path in dependency order (a depends on b depends on a gives
// [a b a]), or nil. A self-dependency gives [a a].
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(g.rules))
	parent := make([]int, len(g.rules))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.deps[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// Back edge u -> v closes v -> ... -> u -> v.
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.rules {
		if color[i] == white && dfs(i) {
			break
		}
	}
	if cycle == nil {
		return nil
	}

	out := make([]string, len(cycle))
	for i := range cycle {
		out[i] = g.Name(cycle[len(cycle)-1-i])
	}
	return out
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopoOrder returns a deterministic topological order of rule indices:
// Kahn's algorithm with the ready set ordered by registration index.
func (g *Graph) TopoOrder() []int {
	indeg := make([]int, len(g.rules))
	for i := range g.rules {
		indeg[i] = len(g.deps[i])
	}

	ready := &intMinHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(g.rules))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// Levels groups rule names by depth: level 0 has no dependencies, level n
// depends only on levels below n. Rules within a level can run together.
func (g *Graph) Levels() [][]string {
	depth := make([]int, len(g.rules))
	maxDepth := -1
	for _, i := range g.TopoOrder() {
		for _, d := range g.deps[i] {
			if depth[d]+1 > depth[i] {
				depth[i] = depth[d] + 1
			}
		}
		if depth[i] > maxDepth {
			maxDepth = depth[i]
		}
	}

	levels := make([][]string, maxDepth+1)
	for i := range g.rules {
		levels[depth[i]] = append(levels[depth[i]], g.Name(i))
	}
	return levels
}

// WriteDot renders the graph in Graphviz dot syntax. Edges point from a
// dependency to its dependent, the direction in which bindings flow.
func (g *Graph) WriteDot(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph rules {\n")
	for i := range g.rules {
		r := g.rules[i]
		fmt.Fprintf(&b, "    %q [label=\"%s\\n(%s)\"];\n", r.Name(), r.Name(), r.Mode())
	}
	for i := range g.rules {
		for _, j := range g.dependents[i] {
			fmt.Fprintf(&b, "    %q -> %q;\n", g.Name(i), g.Name(j))
		}
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}
