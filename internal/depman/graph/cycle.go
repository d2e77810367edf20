package graph

import (
	"fmt"
	"sort"
	"strings"

	"martianoff/elmdeps/internal/depman/mod"
)

// CycleError represents a dependency cycle in the graph.
type CycleError struct {
	Cycle []mod.Pkg // Packages forming the cycle, the first repeated at the end
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, pkg := range e.Cycle {
		parts[i] = pkg.String()
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(parts, " -> "))
}

// children returns the dependencies of node ordered by package.
func children(node *Node) []*Node {
	out := make([]*Node, len(node.Children))
	for i, e := range node.Children {
		out[i] = e.To
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Pkg.Less(out[j].Pkg)
	})
	return out
}

func cycleFrom(path []mod.Pkg, pkg mod.Pkg) []mod.Pkg {
	for i, p := range path {
		if p == pkg {
			cycle := make([]mod.Pkg, len(path)-i+1)
			copy(cycle, path[i:])
			cycle[len(cycle)-1] = pkg
			return cycle
		}
	}
	return []mod.Pkg{pkg}
}

// DetectCycles checks for cycles reachable from the root.
// Returns nil if no cycles are found, or a CycleError describing the first cycle found.
func (g *Graph) DetectCycles() error {
	// 0 = unvisited, 1 = in progress, 2 = done
	state := make(map[mod.Pkg]int)
	var path []mod.Pkg

	var visit func(node *Node) error
	visit = func(node *Node) error {
		switch state[node.Pkg] {
		case 2:
			return nil
		case 1:
			return &CycleError{Cycle: cycleFrom(path, node.Pkg)}
		}

		state[node.Pkg] = 1
		path = append(path, node.Pkg)
		for _, child := range children(node) {
			if err := visit(child); err != nil {
				return err
			}
		}
		state[node.Pkg] = 2
		path = path[:len(path)-1]
		return nil
	}

	return visit(g.Root)
}

// FindAllCycles finds the cycles of every component of the graph.
// This is more expensive than DetectCycles but provides complete information.
func (g *Graph) FindAllCycles() [][]mod.Pkg {
	var cycles [][]mod.Pkg
	visited := make(map[mod.Pkg]bool)
	onStack := make(map[mod.Pkg]bool)
	var path []mod.Pkg

	var dfs func(node *Node)
	dfs = func(node *Node) {
		visited[node.Pkg] = true
		onStack[node.Pkg] = true
		path = append(path, node.Pkg)

		for _, child := range children(node) {
			if !visited[child.Pkg] {
				dfs(child)
			} else if onStack[child.Pkg] {
				cycles = append(cycles, cycleFrom(path, child.Pkg))
			}
		}

		path = path[:len(path)-1]
		onStack[node.Pkg] = false
	}

	dfs(g.Root)
	for _, node := range g.AllDependencies() {
		if !visited[node.Pkg] {
			dfs(node)
		}
	}
	return cycles
}

// TopologicalSort returns nodes in topological order (dependencies before dependents),
// ending with the root. Returns an error if a cycle is detected.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	var result []*Node
	visited := make(map[mod.Pkg]bool)

	var visit func(node *Node)
	visit = func(node *Node) {
		if visited[node.Pkg] {
			return
		}
		visited[node.Pkg] = true
		for _, child := range children(node) {
			visit(child)
		}
		result = append(result, node)
	}

	visit(g.Root)
	return result, nil
}
