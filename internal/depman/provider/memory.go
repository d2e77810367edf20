package provider

import (
	"context"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
)

// Memory is a provider over an in-memory package index.
type Memory struct {
	strategy VersionStrategy
	packages map[mod.Pkg]map[version.Version]mod.Dependencies
}

// NewMemory creates an empty Memory provider.
func NewMemory(strategy VersionStrategy) *Memory {
	return &Memory{
		strategy: strategy,
		packages: make(map[mod.Pkg]map[version.Version]mod.Dependencies),
	}
}

// Add registers a package version and its dependencies. deps may be nil.
func (m *Memory) Add(pkg mod.Pkg, v version.Version, deps mod.Dependencies) *Memory {
	versions, ok := m.packages[pkg]
	if !ok {
		versions = make(map[version.Version]mod.Dependencies)
		m.packages[pkg] = versions
	}
	if deps == nil {
		deps = mod.Dependencies{}
	}
	versions[v] = deps
	return m
}

// AddPackage registers a package with no versions at all.
func (m *Memory) AddPackage(pkg mod.Pkg) *Memory {
	if _, ok := m.packages[pkg]; !ok {
		m.packages[pkg] = make(map[version.Version]mod.Dependencies)
	}
	return m
}

// Strategy implements Ordered.
func (m *Memory) Strategy() VersionStrategy {
	return m.strategy
}

// ListVersions implements Provider.
func (m *Memory) ListVersions(ctx context.Context, pkg mod.Pkg) ([]version.Version, error) {
	versions, ok := m.packages[pkg]
	if !ok {
		return nil, &PackageNotFoundError{Pkg: pkg, Source: "memory"}
	}
	out := make([]version.Version, 0, len(versions))
	for v := range versions {
		out = append(out, v)
	}
	version.Sort(out)
	return out, nil
}

// GetDependencies implements Provider.
func (m *Memory) GetDependencies(ctx context.Context, pkg mod.Pkg, v version.Version) (mod.Dependencies, error) {
	deps, ok := m.packages[pkg][v]
	if !ok {
		return nil, &VersionNotFoundError{Pkg: pkg, Version: v, Source: "memory"}
	}
	return deps.Clone(), nil
}
