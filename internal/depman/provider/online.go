package provider

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/registry"
	"martianoff/elmdeps/internal/depman/version"
	"martianoff/elmdeps/internal/metrics"
)

type pkgVersion struct {
	pkg mod.Pkg
	v   version.Version
}

// Online answers from the package registry. Answers are kept in memory for
// the life of the provider and, when a store is given, persisted between runs.
// It is safe for concurrent use.
type Online struct {
	client   *registry.Client
	store    *registry.Store
	strategy VersionStrategy
	logger   *logrus.Logger

	mu       sync.Mutex
	versions map[mod.Pkg][]version.Version
	deps     map[pkgVersion]mod.Dependencies
}

// NewOnline creates an Online provider. store may be nil.
func NewOnline(client *registry.Client, store *registry.Store, strategy VersionStrategy, logger *logrus.Logger) *Online {
	if logger == nil {
		logger = logrus.New()
	}
	return &Online{
		client:   client,
		store:    store,
		strategy: strategy,
		logger:   logger,
		versions: make(map[mod.Pkg][]version.Version),
		deps:     make(map[pkgVersion]mod.Dependencies),
	}
}

// Strategy implements Ordered.
func (o *Online) Strategy() VersionStrategy {
	return o.strategy
}

// ListVersions implements Provider.
func (o *Online) ListVersions(ctx context.Context, pkg mod.Pkg) ([]version.Version, error) {
	o.mu.Lock()
	cached, ok := o.versions[pkg]
	o.mu.Unlock()
	if ok {
		metrics.ProviderRequestsTotal.WithLabelValues("online", "versions", "memory").Inc()
		return cached, nil
	}

	if o.store != nil {
		if versions, ok := o.store.Versions(pkg); ok {
			metrics.ProviderRequestsTotal.WithLabelValues("online", "versions", "store").Inc()
			o.rememberVersions(pkg, versions)
			return versions, nil
		}
	}

	metrics.ProviderRequestsTotal.WithLabelValues("online", "versions", "registry").Inc()
	o.logger.WithField("url", o.client.ReleasesURL(pkg)).Debug("fetching versions")
	versions, err := o.client.Releases(ctx, pkg)
	if err != nil {
		if registry.IsNotFound(err) {
			return nil, &PackageNotFoundError{Pkg: pkg, Source: o.client.BaseURL}
		}
		return nil, errors.Wrapf(err, "list versions of %s", pkg)
	}

	if o.store != nil {
		o.store.SetVersions(pkg, versions)
	}
	return o.rememberVersions(pkg, versions), nil
}

// rememberVersions records versions unless another caller won the race, and
// returns the recorded list so every caller sees the same answer.
func (o *Online) rememberVersions(pkg mod.Pkg, versions []version.Version) []version.Version {
	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.versions[pkg]; ok {
		return existing
	}
	o.versions[pkg] = versions
	return versions
}

// GetDependencies implements Provider.
func (o *Online) GetDependencies(ctx context.Context, pkg mod.Pkg, v version.Version) (mod.Dependencies, error) {
	key := pkgVersion{pkg: pkg, v: v}
	o.mu.Lock()
	cached, ok := o.deps[key]
	o.mu.Unlock()
	if ok {
		metrics.ProviderRequestsTotal.WithLabelValues("online", "dependencies", "memory").Inc()
		return cached, nil
	}

	var content []byte
	fromStore := false
	if o.store != nil {
		content, fromStore = o.store.ElmJSON(pkg, v)
	}
	if fromStore {
		metrics.ProviderRequestsTotal.WithLabelValues("online", "dependencies", "store").Inc()
	} else {
		metrics.ProviderRequestsTotal.WithLabelValues("online", "dependencies", "registry").Inc()
		o.logger.WithField("url", o.client.ElmJSONURL(pkg, v)).Debug("fetching elm.json")
		var err error
		content, err = o.client.ElmJSON(ctx, pkg, v)
		if err != nil {
			if registry.IsNotFound(err) {
				return nil, &VersionNotFoundError{Pkg: pkg, Version: v, Source: o.client.BaseURL}
			}
			return nil, errors.Wrapf(err, "get elm.json of %s %s", pkg, v)
		}
	}

	deps, err := mod.PackageDependencies(content)
	if err != nil {
		return nil, errors.Wrapf(err, "parse elm.json of %s %s", pkg, v)
	}
	if o.store != nil && !fromStore {
		o.store.SetElmJSON(pkg, v, content)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.deps[key]; ok {
		return existing, nil
	}
	o.deps[key] = deps
	return deps, nil
}
