package provider

import (
	"context"

	"github.com/pkg/errors"

	"martianoff/elmdeps/internal/depman/fetch"
	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
	"martianoff/elmdeps/internal/metrics"
)

// Offline answers from the package cache in ELM_HOME and never touches the network.
type Offline struct {
	cache *fetch.Cache
}

// NewOffline creates an Offline provider over cache.
func NewOffline(cache *fetch.Cache) *Offline {
	return &Offline{cache: cache}
}

// ListVersions implements Provider.
func (o *Offline) ListVersions(ctx context.Context, pkg mod.Pkg) ([]version.Version, error) {
	metrics.ProviderRequestsTotal.WithLabelValues("offline", "versions", "cache").Inc()
	versions, err := o.cache.ListVersions(pkg)
	if err != nil {
		if errors.Cause(err) == fetch.ErrNotCached {
			return nil, &PackageNotFoundError{Pkg: pkg, Source: o.cache.Config().PackagesDir()}
		}
		return nil, err
	}
	return versions, nil
}

// GetDependencies implements Provider.
func (o *Offline) GetDependencies(ctx context.Context, pkg mod.Pkg, v version.Version) (mod.Dependencies, error) {
	metrics.ProviderRequestsTotal.WithLabelValues("offline", "dependencies", "cache").Inc()
	deps, err := o.cache.Dependencies(pkg, v)
	if err != nil {
		if errors.Cause(err) == fetch.ErrNotCached {
			return nil, &VersionNotFoundError{Pkg: pkg, Version: v, Source: o.cache.Config().PackagesDir()}
		}
		return nil, err
	}
	return deps, nil
}

// Strategy implements Ordered. Cached packages are tried newest first.
func (o *Offline) Strategy() VersionStrategy {
	return Newest
}
