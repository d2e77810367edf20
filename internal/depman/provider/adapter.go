package provider

import (
	"context"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
)

// ProjectAdapter presents a project as the root package of a resolution.
// Queries about the root are answered locally; everything else goes to the inner provider.
type ProjectAdapter struct {
	root        mod.Pkg
	rootVersion version.Version
	deps        mod.Dependencies
	inner       Provider
}

// NewProjectAdapter wraps inner so that root at rootVersion depends on deps.
func NewProjectAdapter(root mod.Pkg, rootVersion version.Version, deps mod.Dependencies, inner Provider) *ProjectAdapter {
	return &ProjectAdapter{
		root:        root,
		rootVersion: rootVersion,
		deps:        deps.Clone(),
		inner:       inner,
	}
}

// Strategy implements Ordered with the inner provider's order.
func (a *ProjectAdapter) Strategy() VersionStrategy {
	return StrategyOf(a.inner)
}

// ListVersions implements Provider.
func (a *ProjectAdapter) ListVersions(ctx context.Context, pkg mod.Pkg) ([]version.Version, error) {
	if pkg == a.root {
		return []version.Version{a.rootVersion}, nil
	}
	return a.inner.ListVersions(ctx, pkg)
}

// GetDependencies implements Provider.
func (a *ProjectAdapter) GetDependencies(ctx context.Context, pkg mod.Pkg, v version.Version) (mod.Dependencies, error) {
	if pkg == a.root {
		if v != a.rootVersion {
			return nil, &VersionNotFoundError{Pkg: pkg, Version: v, Source: "project"}
		}
		return a.deps.Clone(), nil
	}
	return a.inner.GetDependencies(ctx, pkg, v)
}
