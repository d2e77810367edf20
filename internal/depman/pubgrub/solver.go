package pubgrub

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"martianoff/elmdeps/deperr"
	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/provider"
	"martianoff/elmdeps/internal/depman/version"
	"martianoff/elmdeps/internal/metrics"
)

// Solution maps every selected package, the root included, to its version.
type Solution map[mod.Pkg]version.Version

// Sorted returns the packages of the solution in name order.
func (s Solution) Sorted() []mod.Pkg {
	pkgs := make([]mod.Pkg, 0, len(s))
	for p := range s {
		pkgs = append(pkgs, p)
	}
	mod.SortPkgs(pkgs)
	return pkgs
}

type options struct {
	logger   *logrus.Logger
	strategy *provider.VersionStrategy
	maxSteps int
}

// Option configures Resolve.
type Option func(*options)

// WithLogger logs the solver steps at debug level.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStrategy overrides the candidate order of the provider.
func WithStrategy(s provider.VersionStrategy) Option {
	return func(o *options) {
		o.strategy = &s
	}
}

// WithMaxSteps aborts the resolution after n decisions. Zero means no limit.
func WithMaxSteps(n int) Option {
	return func(o *options) {
		o.maxSteps = n
	}
}

type pkgVersion struct {
	pkg mod.Pkg
	v   version.Version
}

type solver struct {
	ctx         context.Context
	provider    provider.Provider
	root        mod.Pkg
	rootVersion version.Version
	strategy    provider.VersionStrategy
	logger      *logrus.Logger
	maxSteps    int

	store  *store
	byPkg  map[mod.Pkg][]incompID
	ps     *partialSolution
	known  map[pkgVersion]bool
	listed map[mod.Pkg][]version.Version
	steps  int
}

// Resolve finds versions for root at v and all of its transitive dependencies
// such that every dependency constraint holds.
//
// When no such set exists the error is a *deperr.NoSolutionError explaining why.
// Provider failures are reported as *deperr.ProviderError and cancellation of ctx
// as *deperr.CancelledError.
func Resolve(ctx context.Context, p provider.Provider, root mod.Pkg, v version.Version, opts ...Option) (Solution, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	s := &solver{
		ctx:         ctx,
		provider:    p,
		root:        root,
		rootVersion: v,
		strategy:    provider.StrategyOf(p),
		logger:      o.logger,
		maxSteps:    o.maxSteps,
		store:       &store{},
		byPkg:       make(map[mod.Pkg][]incompID),
		ps:          newPartialSolution(),
		known:       make(map[pkgVersion]bool),
		listed:      make(map[mod.Pkg][]version.Version),
	}
	if o.strategy != nil {
		s.strategy = *o.strategy
	}
	if s.logger == nil {
		s.logger = logrus.New()
		s.logger.SetLevel(logrus.WarnLevel)
	}
	return s.run()
}

func (s *solver) run() (Solution, error) {
	s.addIncompatibility(notRoot(s.root, s.rootVersion))

	next := s.root
	for {
		if err := s.ctx.Err(); err != nil {
			return nil, deperr.NewCancelledError(err)
		}
		if s.maxSteps > 0 && s.steps >= s.maxSteps {
			return nil, deperr.NewCancelledError(fmt.Errorf("resolution exceeded %d steps", s.maxSteps))
		}
		s.steps++

		if err := s.propagate(next); err != nil {
			return nil, err
		}

		pkg, candidates, ok, err := s.choosePackage()
		if err != nil {
			return nil, err
		}
		if !ok {
			solution := Solution(s.ps.extract())
			s.logger.WithField("packages", len(solution)).Debug("resolution complete")
			return solution, nil
		}
		next = pkg

		if len(candidates) == 0 {
			r := s.ps.termFor(pkg).r
			s.logger.WithFields(logrus.Fields{"package": pkg.String(), "range": r.String()}).Debug("no versions left")
			s.addIncompatibility(noVersions(pkg, r))
			continue
		}

		v := candidates[0]
		key := pkgVersion{pkg, v}
		if s.known[key] {
			s.decide(pkg, v)
			continue
		}
		s.known[key] = true

		deps, err := s.provider.GetDependencies(s.ctx, pkg, v)
		if err != nil {
			return nil, s.providerError(pkg, v.String(), err)
		}
		ids := s.addDependencies(pkg, v, deps)
		if s.compatible(pkg, v, ids) {
			s.decide(pkg, v)
		}
	}
}

func (s *solver) decide(pkg mod.Pkg, v version.Version) {
	s.ps.addDecision(pkg, v)
	metrics.SolverDecisionsTotal.Inc()
	s.logger.WithFields(logrus.Fields{
		"package": pkg.String(),
		"version": v.String(),
		"level":   s.ps.level,
	}).Debug("decision")
}

func (s *solver) addIncompatibility(inc *incompatibility) incompID {
	id := s.store.add(inc)
	for _, pt := range inc.terms {
		s.byPkg[pt.pkg] = append(s.byPkg[pt.pkg], id)
	}
	return id
}

// addDependencies records the dependencies of pkg at v as incompatibilities,
// in package name order.
func (s *solver) addDependencies(pkg mod.Pkg, v version.Version, deps mod.Dependencies) []incompID {
	var ids []incompID
	for _, dep := range deps.Sorted() {
		r := deps[dep]
		var inc *incompatibility
		switch {
		case dep == pkg:
			if r.Contains(v) {
				continue
			}
			inc = selfDependency(pkg, v, r)
		case r.IsEmpty():
			inc = emptyDependency(pkg, v, dep)
		default:
			inc = fromDependency(pkg, v, dep, r)
		}
		ids = append(ids, s.addIncompatibility(inc))
	}
	return ids
}

// compatible reports whether deciding pkg at v keeps every new dependency
// incompatibility unsatisfied.
func (s *solver) compatible(pkg mod.Pkg, v version.Version, ids []incompID) bool {
	override := map[mod.Pkg]term{pkg: positive(version.Exact(v))}
	for _, id := range ids {
		if rel, _ := s.ps.relationWith(s.store.get(id), override); rel == relSatisfied {
			return false
		}
	}
	return true
}

// choosePackage picks the undecided package with the fewest candidate versions,
// breaking ties by name, and returns its candidates in preference order.
func (s *solver) choosePackage() (mod.Pkg, []version.Version, bool, error) {
	var (
		best       mod.Pkg
		candidates []version.Version
		found      bool
	)
	for _, pkg := range s.ps.potentialPackages() {
		versions, err := s.listVersions(pkg)
		if err != nil {
			return mod.Pkg{}, nil, false, err
		}
		inRange := s.ps.termFor(pkg).r.Filter(versions)
		if !found || len(inRange) < len(candidates) {
			best, candidates, found = pkg, inRange, true
		}
	}
	if !found {
		return mod.Pkg{}, nil, false, nil
	}
	s.strategy.Order(candidates)
	return best, candidates, true, nil
}

func (s *solver) listVersions(pkg mod.Pkg) ([]version.Version, error) {
	if versions, ok := s.listed[pkg]; ok {
		return versions, nil
	}
	versions, err := s.provider.ListVersions(s.ctx, pkg)
	if err != nil {
		return nil, s.providerError(pkg, "", err)
	}
	s.listed[pkg] = versions
	return versions, nil
}

func (s *solver) providerError(pkg mod.Pkg, v string, err error) error {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return deperr.NewCancelledError(ctxErr)
	}
	return deperr.NewProviderError(pkg.String(), v, err)
}

// propagate derives every assignment the incompatibilities force, starting
// from the package that changed last.
func (s *solver) propagate(pkg mod.Pkg) error {
	queue := []mod.Pkg{pkg}
	for len(queue) > 0 {
		current := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		conflict := noCause
		ids := s.byPkg[current]
		for i := len(ids) - 1; i >= 0; i-- {
			id := ids[i]
			rel, almost := s.ps.relation(s.store.get(id))
			if rel == relSatisfied {
				conflict = id
				break
			}
			if rel == relAlmostSatisfied {
				if !containsPkg(queue, almost) {
					queue = append(queue, almost)
				}
				s.ps.addDerivation(almost, id, s.store)
			}
		}

		if conflict != noCause {
			changed, learned, err := s.resolveConflict(conflict)
			if err != nil {
				return err
			}
			queue = append(queue[:0], changed)
			s.ps.addDerivation(changed, learned, s.store)
		}
	}
	return nil
}

func containsPkg(pkgs []mod.Pkg, pkg mod.Pkg) bool {
	for _, p := range pkgs {
		if p == pkg {
			return true
		}
	}
	return false
}

// resolveConflict learns incompatibilities from a satisfied one until it can
// backtrack, and returns the package the learned incompatibility now constrains.
func (s *solver) resolveConflict(id incompID) (mod.Pkg, incompID, error) {
	metrics.SolverConflictsTotal.Inc()
	learned := false
	for {
		inc := s.store.get(id)
		if inc.isTerminal(s.root, s.rootVersion) {
			return mod.Pkg{}, noCause, deperr.NewNoSolutionError(report(s.store, id, s.root))
		}

		sat := s.ps.findSatisfier(inc)
		if sat.previousLevel < sat.level {
			s.logger.WithFields(logrus.Fields{
				"package": sat.pkg.String(),
				"from":    s.ps.level,
				"to":      sat.previousLevel,
			}).Debug("backtrack")
			s.ps.backtrack(sat.previousLevel)
			if learned {
				for _, pt := range inc.terms {
					s.byPkg[pt.pkg] = append(s.byPkg[pt.pkg], id)
				}
			}
			return sat.pkg, id, nil
		}

		if sat.cause == noCause {
			return mod.Pkg{}, noCause, fmt.Errorf("pubgrub: decision on %s conflicts at its own level", sat.pkg)
		}
		id = s.store.add(priorCause(s.store, id, sat.cause, sat.pkg))
		learned = true
		s.logger.WithField("incompatibility", termsString(s.store.get(id).terms, s.root)).Debug("learned")
	}
}
