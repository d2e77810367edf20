// Package graph provides dependency graph construction and analysis.
package graph

import (
	"fmt"
	"io"
	"sort"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
)

// Node represents a package in the dependency graph.
type Node struct {
	Pkg      mod.Pkg
	Version  version.Version // Selected version
	Direct   bool            // True if the root depends on it directly
	Children []*Edge         // Outgoing edges to dependencies
	Parents  []*Edge         // Incoming edges from dependents
}

func (n *Node) String() string {
	return n.Pkg.String() + "@" + n.Version.String()
}

// Edge represents a dependency relationship between two packages.
type Edge struct {
	From  *Node         // The dependent package
	To    *Node         // The dependency
	Range version.Range // Versions of To accepted by From
}

// Graph represents the dependencies of a resolved project.
type Graph struct {
	Root  *Node             // The project itself
	Nodes map[mod.Pkg]*Node // All nodes indexed by package
}

// NewGraph creates an empty dependency graph with the given root package.
func NewGraph(root mod.Pkg, rootVersion version.Version) *Graph {
	node := &Node{Pkg: root, Version: rootVersion}
	return &Graph{
		Root:  node,
		Nodes: map[mod.Pkg]*Node{root: node},
	}
}

// AddNode adds a node to the graph if it doesn't exist.
// Returns the existing or newly created node.
func (g *Graph) AddNode(pkg mod.Pkg, ver version.Version, direct bool) *Node {
	if existing, ok := g.Nodes[pkg]; ok {
		if direct {
			existing.Direct = true
		}
		return existing
	}
	node := &Node{Pkg: pkg, Version: ver, Direct: direct}
	g.Nodes[pkg] = node
	return node
}

// AddEdge adds a dependency edge between two nodes.
func (g *Graph) AddEdge(from, to *Node, r version.Range) *Edge {
	edge := &Edge{From: from, To: to, Range: r}
	from.Children = append(from.Children, edge)
	to.Parents = append(to.Parents, edge)
	return edge
}

// GetNode returns the node of a package, or nil if not found.
func (g *Graph) GetNode(pkg mod.Pkg) *Node {
	return g.Nodes[pkg]
}

// sortedNodes returns the nodes matching keep, ordered by package.
func (g *Graph) sortedNodes(keep func(*Node) bool) []*Node {
	var nodes []*Node
	for _, node := range g.Nodes {
		if node != g.Root && keep(node) {
			nodes = append(nodes, node)
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Pkg.Less(nodes[j].Pkg)
	})
	return nodes
}

// DirectDependencies returns all direct dependencies of the root.
func (g *Graph) DirectDependencies() []*Node {
	return g.sortedNodes(func(n *Node) bool { return n.Direct })
}

// IndirectDependencies returns all indirect dependencies.
func (g *Graph) IndirectDependencies() []*Node {
	return g.sortedNodes(func(n *Node) bool { return !n.Direct })
}

// AllDependencies returns all dependencies (direct and indirect).
func (g *Graph) AllDependencies() []*Node {
	return g.sortedNodes(func(*Node) bool { return true })
}

// Edges returns every edge ordered by dependent, then dependency.
func (g *Graph) Edges() []*Edge {
	var edges []*Edge
	for _, node := range g.Nodes {
		edges = append(edges, node.Children...)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From.Pkg != edges[j].From.Pkg {
			return edges[i].From.Pkg.Less(edges[j].From.Pkg)
		}
		return edges[i].To.Pkg.Less(edges[j].To.Pkg)
	})
	return edges
}

// WriteTo prints one "from@version to@version" line per edge.
func (g *Graph) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, e := range g.Edges() {
		n, err := fmt.Fprintf(w, "%s %s\n", e.From, e.To)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
