package compiler

import (
	"sort"
	"strings"

	"github.com/roach88/kiln/internal/ir"
)

// Cycle is one strongly connected group of rules that depend on each other.
type Cycle struct {
	Path    []string `json:"path"`    // ["a", "b", "a"]
	Message string   `json:"message"` // "cycle: a -> b -> a"
}

// AnalyzeCycles reports every dependency cycle in a definition.
//
// The engine refuses a cyclic graph at the first cycle it finds; this
// analysis reports all of them so a definition can be fixed in one pass.
//
// The algorithm:
//  1. Build rule → dependency edges from depends_on and paginate.from
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1, or a self-loop, as a cycle
//
// Unknown dependencies are ignored here; Validate reports them separately.
// Output is deterministic: paths start at the earliest declared member and
// cycles are ordered by that member.
func AnalyzeCycles(def *ir.SiteDefinition) []Cycle {
	if def == nil || len(def.Rules) == 0 {
		return []Cycle{}
	}

	g := buildDependencyGraph(def)
	sccs := tarjanSCC(g)

	var cycles []Cycle
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], g)) {
			path := reconstructCyclePath(scc, g)
			cycles = append(cycles, Cycle{
				Path:    path,
				Message: "cycle: " + strings.Join(path, " -> "),
			})
		}
	}
	sort.Slice(cycles, func(i, j int) bool {
		return g.order[cycles[i].Path[0]] < g.order[cycles[j].Path[0]]
	})
	if cycles == nil {
		return []Cycle{}
	}
	return cycles
}

// dependencyGraph maps rule name → names of rules it depends on.
type dependencyGraph struct {
	nodes []string
	order map[string]int
	edges map[string][]string
}

func buildDependencyGraph(def *ir.SiteDefinition) *dependencyGraph {
	g := &dependencyGraph{
		order: make(map[string]int, len(def.Rules)),
		edges: make(map[string][]string, len(def.Rules)),
	}
	for i, r := range def.Rules {
		if _, dup := g.order[r.Name]; dup {
			continue
		}
		g.nodes = append(g.nodes, r.Name)
		g.order[r.Name] = i
	}

	for _, r := range def.Rules {
		deps := append([]string{}, r.DependsOn...)
		if r.Paginate != nil && r.Paginate.From != "" {
			deps = append(deps, r.Paginate.From)
		}
		seen := make(map[string]bool)
		for _, d := range deps {
			if _, known := g.order[d]; !known || seen[d] {
				continue
			}
			seen[d] = true
			g.edges[r.Name] = append(g.edges[r.Name], d)
		}
		sort.Slice(g.edges[r.Name], func(i, j int) bool {
			return g.order[g.edges[r.Name][i]] < g.order[g.edges[r.Name][j]]
		})
	}
	return g
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, g *dependencyGraph) bool {
	for _, neighbor := range g.edges[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(g *dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// Root of an SCC: pop it off the stack.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath returns the shortest cycle through the SCC's
// earliest declared member, following dependency edges.
func reconstructCyclePath(scc []string, g *dependencyGraph) []string {
	start := scc[0]
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
		if g.order[n] < g.order[start] {
			start = n
		}
	}
	if len(scc) == 1 {
		return []string{start, start}
	}

	// BFS from start; the first node with an edge back to start closes the
	// shortest cycle.
	parent := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, w := range g.edges[cur] {
			if w == start {
				var rev []string
				for n := cur; n != ""; n = parent[n] {
					rev = append(rev, n)
				}
				path := make([]string, 0, len(rev)+1)
				for i := len(rev) - 1; i >= 0; i-- {
					path = append(path, rev[i])
				}
				return append(path, start)
			}
			if _, seen := parent[w]; !seen && members[w] {
				parent[w] = cur
				queue = append(queue, w)
			}
		}
	}
	// Unreachable for a real SCC.
	return []string{start, start}
}
