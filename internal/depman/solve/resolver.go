package solve

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"martianoff/elmdeps/deperr"
	"martianoff/elmdeps/internal/depman/fetch"
	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/provider"
	"martianoff/elmdeps/internal/depman/pubgrub"
	"martianoff/elmdeps/internal/depman/registry"
	"martianoff/elmdeps/internal/depman/version"
	"martianoff/elmdeps/internal/metrics"
)

// DefaultCacheMaxAge is how long registry version lists are reused between runs.
const DefaultCacheMaxAge = 24 * time.Hour

// Config holds configuration for resolutions.
type Config struct {
	// Cache locates the Elm home and the registry cache.
	Cache *fetch.Config

	// RegistryURL is the package registry, https://package.elm-lang.org by default.
	RegistryURL string

	// ConnectTimeout and Timeout bound registry requests. Zero selects the client defaults.
	ConnectTimeout time.Duration
	Timeout        time.Duration

	// CacheMaxAge bounds the age of persisted version lists. Zero keeps them forever,
	// a negative value disables the persistent cache.
	CacheMaxAge time.Duration

	// MaxSteps bounds the decisions of a single resolution. Zero means no limit.
	MaxSteps int

	Logger *logrus.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Cache:       fetch.DefaultConfig(),
		RegistryURL: registry.DefaultURL,
		CacheMaxAge: DefaultCacheMaxAge,
	}
}

// Resolver runs resolutions with a fresh provider for each of them.
type Resolver struct {
	config *Config
	logger *logrus.Logger
}

// NewResolver creates a Resolver. A nil config selects DefaultConfig.
func NewResolver(config *Config) *Resolver {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Cache == nil {
		config.Cache = fetch.DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{config: config, logger: logger}
}

// Config returns the resolver configuration.
func (r *Resolver) Config() *Config {
	return r.config
}

// Provider builds a provider for a single source. Progressive has no single
// provider and is rejected. The returned function releases its resources.
func (r *Resolver) Provider(conn Connectivity) (provider.Provider, func(), error) {
	switch conn.Mode {
	case ModeOffline:
		return provider.NewOffline(fetch.NewCache(r.config.Cache)), func() {}, nil
	case ModeOnline:
		client := registry.NewClient(r.config.RegistryURL, r.config.ConnectTimeout, r.config.Timeout)
		store := r.openStore()
		release := func() {
			if store == nil {
				return
			}
			if err := store.Close(); err != nil {
				r.logger.WithError(err).Warn("closing registry cache")
			}
		}
		return provider.NewOnline(client, store, conn.Strategy, r.logger), release, nil
	default:
		return nil, nil, errors.New("progressive connectivity composes two providers")
	}
}

// openStore opens the persistent registry cache. Failures are logged and the
// resolution runs without it.
func (r *Resolver) openStore() *registry.Store {
	if r.config.CacheMaxAge < 0 {
		return nil
	}
	path := r.config.Cache.RegistryCachePath()
	store, err := registry.OpenStore(path, r.config.CacheMaxAge, r.logger)
	if err != nil {
		r.logger.WithError(err).WithField("path", path).Warn("registry cache unavailable")
		return nil
	}
	return store
}

// Solve resolves deps as the dependencies of root at v using conn.
//
// Progressive first resolves offline. Any failure other than cancellation
// discards that attempt and resolves again from scratch online with the
// Newest strategy; if that fails too, both errors are returned in a
// *deperr.MultiError.
func (r *Resolver) Solve(ctx context.Context, conn Connectivity, root mod.Pkg, v version.Version, deps mod.Dependencies) (map[mod.Pkg]version.Version, error) {
	start := time.Now()
	sol, err := r.solve(ctx, conn, root, v, deps)
	metrics.ResolutionDuration.WithLabelValues(conn.String()).Observe(time.Since(start).Seconds())
	metrics.ResolutionsTotal.WithLabelValues(conn.String(), outcome(err)).Inc()
	return sol, err
}

func (r *Resolver) solve(ctx context.Context, conn Connectivity, root mod.Pkg, v version.Version, deps mod.Dependencies) (map[mod.Pkg]version.Version, error) {
	if conn.Mode != ModeProgressive {
		return r.solveWith(ctx, conn, root, v, deps)
	}

	sol, offlineErr := r.solveWith(ctx, Offline, root, v, deps)
	if offlineErr == nil {
		return sol, nil
	}
	if deperr.TypeOf(offlineErr) == deperr.TypeCancelled {
		return nil, offlineErr
	}

	entry := r.logger.WithField("root", root.String())
	if deperr.TypeOf(offlineErr) == deperr.TypeNoSolution || provider.IsNotFound(offlineErr) {
		entry.Info("no offline solution, retrying online")
	} else {
		entry.WithError(offlineErr).Warn("offline resolution failed, retrying online")
	}
	metrics.FallbacksTotal.Inc()

	sol, onlineErr := r.solveWith(ctx, Online(provider.Newest), root, v, deps)
	if onlineErr != nil {
		if deperr.TypeOf(onlineErr) == deperr.TypeCancelled {
			return nil, onlineErr
		}
		return nil, &deperr.MultiError{Errors: []error{offlineErr, onlineErr}}
	}
	return sol, nil
}

func (r *Resolver) solveWith(ctx context.Context, conn Connectivity, root mod.Pkg, v version.Version, deps mod.Dependencies) (map[mod.Pkg]version.Version, error) {
	p, release, err := r.Provider(conn)
	if err != nil {
		return nil, err
	}
	defer release()

	r.logger.WithFields(logrus.Fields{
		"root":         root.String(),
		"connectivity": conn.String(),
		"dependencies": len(deps),
	}).Debug("resolving")

	opts := []pubgrub.Option{pubgrub.WithLogger(r.logger)}
	if r.config.MaxSteps > 0 {
		opts = append(opts, pubgrub.WithMaxSteps(r.config.MaxSteps))
	}
	return Solve(ctx, root, v, deps, p, opts...)
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if t := deperr.TypeOf(err); t != "" {
		return string(t)
	}
	return "error"
}
