package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/rewind/internal/ir"
)

// CycleError reports a node reference cycle.
//
// Unlike rule cycles, node cycles are always errors: evaluation pulls
// children recursively within one frame and would never terminate.
type CycleError struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// Error implements the error interface.
func (e CycleError) Error() string {
	return fmt.Sprintf("[%s] %s", ErrNodeCycle, e.Message)
}

// AnalyzeCycles performs static cycle analysis on the node graph.
//
// The algorithm:
//  1. Build node → input dependency graph from node references
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle
//
// Nodes are visited in declaration order so the report is deterministic.
// A DAG (no cycles) returns an empty list.
func AnalyzeCycles(spec *ir.GraphSpec) []CycleError {
	if len(spec.Nodes) == 0 {
		return []CycleError{}
	}

	graph, order := buildDependencyGraph(spec)
	sccs := tarjanSCC(graph, order)

	cycles := []CycleError{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	return cycles
}

// dependencyGraph maps node name → names of the nodes it reads.
type dependencyGraph map[string][]string

// buildDependencyGraph returns the graph and its nodes in declaration order.
// References to undeclared nodes are dropped; Validate reports them.
func buildDependencyGraph(spec *ir.GraphSpec) (dependencyGraph, []string) {
	graph := make(dependencyGraph, len(spec.Nodes))
	order := make([]string, 0, len(spec.Nodes))
	for _, n := range spec.Nodes {
		if _, dup := graph[n.Name]; dup {
			continue
		}
		graph[n.Name] = []string{}
		order = append(order, n.Name)
	}
	for _, n := range spec.Nodes {
		for _, ref := range n.Refs() {
			if _, ok := graph[ref]; ok {
				graph[n.Name] = append(graph[n.Name], ref)
			}
		}
	}
	return graph, order
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of node names.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
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

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// Root node: pop the stack and emit an SCC
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

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// sccToCycle converts an SCC to a CycleError with a reconstructed path.
func sccToCycle(scc []string, graph dependencyGraph) CycleError {
	if len(scc) == 1 {
		name := scc[0]
		return CycleError{
			Path:    []string{name, name},
			Message: fmt.Sprintf("node reads itself: %s → %s", name, name),
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleError{
		Path:    path,
		Message: fmt.Sprintf("node cycle: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at first node in SCC, follow edges to other SCC members,
// continue until we return to start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
