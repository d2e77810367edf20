// Package provider supplies package versions and dependencies to the solver.
package provider

import (
	"context"
	"fmt"
	"strings"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
)

// Provider answers the two questions the solver asks about packages.
// Implementations must be deterministic for a given (package, version)
// within a process.
type Provider interface {
	// ListVersions returns the known versions of pkg in ascending order.
	// An unknown package yields a *PackageNotFoundError; an empty list is a valid answer.
	ListVersions(ctx context.Context, pkg mod.Pkg) ([]version.Version, error)
	// GetDependencies returns the dependencies of a package version.
	// An unknown version yields a *VersionNotFoundError.
	GetDependencies(ctx context.Context, pkg mod.Pkg, v version.Version) (mod.Dependencies, error)
}

// VersionStrategy orders the candidate versions the solver tries.
type VersionStrategy int

const (
	Newest VersionStrategy = iota
	Oldest
)

func (s VersionStrategy) String() string {
	if s == Oldest {
		return "oldest"
	}
	return "newest"
}

// ParseStrategy parses "newest" or "oldest".
func ParseStrategy(s string) (VersionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "newest":
		return Newest, nil
	case "oldest":
		return Oldest, nil
	default:
		return Newest, fmt.Errorf("invalid version strategy %q, expected newest or oldest", s)
	}
}

// Order sorts versions in place so the preferred candidate comes first.
func (s VersionStrategy) Order(versions []version.Version) {
	if s == Oldest {
		version.Sort(versions)
		return
	}
	version.SortDesc(versions)
}

// Ordered is implemented by providers that prefer a candidate order.
type Ordered interface {
	Strategy() VersionStrategy
}

// StrategyOf returns the preferred order of p, Newest when it has none.
func StrategyOf(p Provider) VersionStrategy {
	if o, ok := p.(Ordered); ok {
		return o.Strategy()
	}
	return Newest
}
