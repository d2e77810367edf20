package graph

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/provider"
	"martianoff/elmdeps/internal/depman/version"
)

var (
	pkgA = mod.MustParsePkg("test/a")
	pkgB = mod.MustParsePkg("test/b")
	pkgC = mod.MustParsePkg("test/c")
	v1   = version.MustParse("1.0.0")
)

func TestNewGraph(t *testing.T) {
	g := NewGraph(mod.RootPkg, version.Zero)

	assert.NotNil(t, g.Root)
	assert.Equal(t, mod.RootPkg, g.Root.Pkg)
	assert.Len(t, g.Nodes, 1)
}

func TestGraph_AddNode(t *testing.T) {
	g := NewGraph(mod.RootPkg, version.Zero)

	node1 := g.AddNode(pkgA, v1, false)
	assert.Equal(t, pkgA, node1.Pkg)
	assert.Equal(t, v1, node1.Version)
	assert.False(t, node1.Direct)
	assert.Len(t, g.Nodes, 2)

	node2 := g.AddNode(pkgA, v1, true)
	assert.Same(t, node1, node2) // Same node returned
	assert.True(t, node2.Direct) // Direct flag set
	assert.Len(t, g.Nodes, 2)    // No new node added
}

func TestGraph_AddEdge(t *testing.T) {
	g := NewGraph(mod.RootPkg, version.Zero)
	dep := g.AddNode(pkgA, v1, true)
	edge := g.AddEdge(g.Root, dep, version.MustParseConstraint("^1.0.0"))

	assert.Equal(t, g.Root, edge.From)
	assert.Equal(t, dep, edge.To)
	assert.Equal(t, "1.0.0 <= v < 2.0.0", edge.Range.String())
	assert.Len(t, g.Root.Children, 1)
	assert.Len(t, dep.Parents, 1)
}

func TestGraph_Dependencies(t *testing.T) {
	g := NewGraph(mod.RootPkg, version.Zero)
	b := g.AddNode(pkgB, v1, true)
	a := g.AddNode(pkgA, v1, true)
	c := g.AddNode(pkgC, v1, false)
	g.AddEdge(g.Root, a, version.Full())
	g.AddEdge(g.Root, b, version.Full())
	g.AddEdge(a, c, version.Full())

	assert.Equal(t, []*Node{a, b}, g.DirectDependencies())
	assert.Equal(t, []*Node{c}, g.IndirectDependencies())
	assert.Equal(t, []*Node{a, b, c}, g.AllDependencies())
}

func TestGraph_DetectCycles_NoCycle(t *testing.T) {
	g := NewGraph(mod.RootPkg, version.Zero)

	// Linear dependency: root -> a -> b -> c
	a := g.AddNode(pkgA, v1, true)
	b := g.AddNode(pkgB, v1, false)
	c := g.AddNode(pkgC, v1, false)
	g.AddEdge(g.Root, a, version.Full())
	g.AddEdge(a, b, version.Full())
	g.AddEdge(b, c, version.Full())

	assert.NoError(t, g.DetectCycles())
	assert.Empty(t, g.FindAllCycles())
}

func TestGraph_DetectCycles_WithCycle(t *testing.T) {
	g := NewGraph(mod.RootPkg, version.Zero)

	// Cycle: root -> a -> b -> a
	a := g.AddNode(pkgA, v1, true)
	b := g.AddNode(pkgB, v1, false)
	g.AddEdge(g.Root, a, version.Full())
	g.AddEdge(a, b, version.Full())
	g.AddEdge(b, a, version.Full())

	err := g.DetectCycles()
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []mod.Pkg{pkgA, pkgB, pkgA}, cycleErr.Cycle)
	assert.Equal(t, "dependency cycle detected: test/a -> test/b -> test/a", err.Error())

	assert.Equal(t, [][]mod.Pkg{{pkgA, pkgB, pkgA}}, g.FindAllCycles())

	_, err = g.TopologicalSort()
	assert.Error(t, err)
}

func TestGraph_TopologicalSort(t *testing.T) {
	g := NewGraph(mod.RootPkg, version.Zero)

	// Diamond dependency: root -> a, b; a -> c; b -> c
	a := g.AddNode(pkgA, v1, true)
	b := g.AddNode(pkgB, v1, true)
	c := g.AddNode(pkgC, v1, false)
	g.AddEdge(g.Root, a, version.Full())
	g.AddEdge(g.Root, b, version.Full())
	g.AddEdge(a, c, version.Full())
	g.AddEdge(b, c, version.Full())

	sorted, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []*Node{c, a, b, g.Root}, sorted)
}

func TestBuilder_Build(t *testing.T) {
	p := provider.NewMemory(provider.Newest).
		Add(pkgA, v1, mod.Dependencies{pkgC: version.Full()}).
		Add(pkgB, v1, mod.Dependencies{pkgC: version.MustParseConstraint("^1.0.0")}).
		Add(pkgC, v1, nil)
	deps := mod.Dependencies{pkgA: version.Full(), pkgB: version.Full()}
	solution := map[mod.Pkg]version.Version{pkgA: v1, pkgB: v1, pkgC: v1}

	g, err := NewBuilder(p).Build(context.Background(), mod.RootPkg, version.Zero, deps, solution)
	require.NoError(t, err)

	assert.Len(t, g.DirectDependencies(), 2)
	assert.Equal(t, []*Node{g.GetNode(pkgC)}, g.IndirectDependencies())
	assert.Len(t, g.GetNode(pkgC).Parents, 2)

	var buf bytes.Buffer
	_, err = g.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "root@0.0.0 test/a@1.0.0\n"+
		"root@0.0.0 test/b@1.0.0\n"+
		"test/a@1.0.0 test/c@1.0.0\n"+
		"test/b@1.0.0 test/c@1.0.0\n", buf.String())
}

func TestBuilder_MissingDependency(t *testing.T) {
	p := provider.NewMemory(provider.Newest).
		Add(pkgA, v1, mod.Dependencies{pkgC: version.Full()})

	_, err := NewBuilder(p).Build(context.Background(), mod.RootPkg, version.Zero,
		mod.Dependencies{pkgA: version.Full()}, map[mod.Pkg]version.Version{pkgA: v1})
	var missing *MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, pkgC, missing.To)
}
