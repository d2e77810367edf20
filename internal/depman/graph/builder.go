package graph

import (
	"context"
	"fmt"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/provider"
	"martianoff/elmdeps/internal/depman/version"
)

// MissingError reports a dependency that the solution does not select.
type MissingError struct {
	From mod.Pkg
	To   mod.Pkg
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s depends on %s, which is not part of the solution", e.From, e.To)
}

// Builder constructs the dependency graph of a solution, reading each package's
// dependencies from a provider.
type Builder struct {
	provider provider.Provider
}

// NewBuilder creates a new graph builder reading from p.
func NewBuilder(p provider.Provider) *Builder {
	return &Builder{provider: p}
}

// Build constructs the graph of solution for root at rootVersion, whose
// direct dependencies are deps. The solution must not contain the root.
func (b *Builder) Build(ctx context.Context, root mod.Pkg, rootVersion version.Version, deps mod.Dependencies, solution map[mod.Pkg]version.Version) (*Graph, error) {
	g := NewGraph(root, rootVersion)
	pkgs := make([]mod.Pkg, 0, len(solution))
	for pkg, v := range solution {
		_, direct := deps[pkg]
		g.AddNode(pkg, v, direct)
		pkgs = append(pkgs, pkg)
	}
	mod.SortPkgs(pkgs)

	if err := b.link(g, g.Root, deps); err != nil {
		return nil, err
	}
	for _, pkg := range pkgs {
		node := g.Nodes[pkg]
		pkgDeps, err := b.provider.GetDependencies(ctx, pkg, node.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to get dependencies of %s: %w", node, err)
		}
		if err := b.link(g, node, pkgDeps); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (b *Builder) link(g *Graph, from *Node, deps mod.Dependencies) error {
	for _, dep := range deps.Sorted() {
		to := g.GetNode(dep)
		if to == nil {
			return &MissingError{From: from.Pkg, To: dep}
		}
		if to == from {
			continue
		}
		g.AddEdge(from, to, deps[dep])
	}
	return nil
}
