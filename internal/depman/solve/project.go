package solve

import (
	"context"

	"github.com/pkg/errors"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
)

var (
	// TestRunner is the package providing the generated test runner's main module.
	TestRunner = mod.Pkg{Author: "mpizenberg", Name: "elm-test-runner"}
	// ElmJSON is needed by the runner to report results.
	ElmJSON = mod.Pkg{Author: "elm", Name: "json"}
	// ElmTest is the test framework Init adds to a project.
	ElmTest = mod.Pkg{Author: "elm-explorations", Name: "test"}
)

// TestRunnerVersion is the runner version tests are compiled against.
var TestRunnerVersion = version.New(4, 0, 4)

// ElmVersion is written into generated elm.json files.
var ElmVersion = version.New(0, 19, 1)

// DefaultTestExtras returns the dependencies the test runner adds to a project.
func DefaultTestExtras() mod.Dependencies {
	return mod.Dependencies{
		TestRunner: version.Exact(TestRunnerVersion),
		ElmJSON:    version.Between(version.New(1, 0, 0), version.New(2, 0, 0)),
	}
}

func elmTestRange() version.Range {
	return version.Compatible(version.New(1, 0, 0))
}

// ForTests computes the application elm.json used to compile the tests of a
// project. Its dependencies are the project's direct and direct test
// dependencies plus extras (DefaultTestExtras when nil) that the project does
// not already list.
func ForTests(ctx context.Context, r *Resolver, conn Connectivity, project *mod.Project, srcDirs []string, extras mod.Dependencies) (*mod.Application, error) {
	deps := project.DirectDependencies(true)
	if extras == nil {
		extras = DefaultTestExtras()
	}
	for pkg, rng := range extras {
		if _, ok := deps[pkg]; !ok {
			deps[pkg] = rng
		}
	}

	root, rootVersion := project.Root()
	sol, err := r.Solve(ctx, conn, root, rootVersion, deps)
	if err != nil {
		return nil, errors.Wrap(err, "combining the project dependencies with the test runner ones")
	}

	app := mod.NewApplication(ElmVersion, append([]string{}, srcDirs...))
	for pkg, v := range sol {
		if _, direct := deps[pkg]; direct {
			app.Dependencies.Direct[pkg] = v
		} else {
			app.Dependencies.Indirect[pkg] = v
		}
	}
	return app, nil
}

// allDependencies returns every dependency a project lists, tests included.
// Applications pin exact versions.
func allDependencies(project *mod.Project) mod.Dependencies {
	deps := make(mod.Dependencies)
	if app := project.Application; app != nil {
		for _, group := range []map[mod.Pkg]version.Version{
			app.TestDependencies.Indirect,
			app.Dependencies.Indirect,
			app.TestDependencies.Direct,
			app.Dependencies.Direct,
		} {
			for pkg, v := range group {
				deps[pkg] = version.Exact(v)
			}
		}
		return deps
	}
	for pkg, c := range project.Package.TestDependencies {
		deps[pkg] = c.Range
	}
	for pkg, c := range project.Package.Dependencies {
		deps[pkg] = c.Range
	}
	return deps
}

// Check verifies that the dependencies a project lists can be resolved
// together. An application must also list every package of the solution.
func Check(ctx context.Context, r *Resolver, conn Connectivity, project *mod.Project) error {
	return check(ctx, r, conn, project, allDependencies(project))
}

func check(ctx context.Context, r *Resolver, conn Connectivity, project *mod.Project, deps mod.Dependencies) error {
	sol, err := r.Solve(ctx, conn, mod.RootPkg, version.Zero, deps)
	if err != nil {
		return err
	}
	if project.Application == nil {
		return nil
	}
	for _, pkg := range sortedPkgs(sol) {
		if _, ok := deps[pkg]; !ok {
			return errors.Errorf("%s is missing in the indirect dependencies", pkg)
		}
	}
	return nil
}

func sortedPkgs(sol map[mod.Pkg]version.Version) []mod.Pkg {
	pkgs := make([]mod.Pkg, 0, len(sol))
	for pkg := range sol {
		pkgs = append(pkgs, pkg)
	}
	mod.SortPkgs(pkgs)
	return pkgs
}

// Init adds elm-explorations/test to the test dependencies of project, after
// checking that its current dependencies are consistent. The project is
// updated in place.
func Init(ctx context.Context, r *Resolver, conn Connectivity, project *mod.Project) error {
	deps := allDependencies(project)
	if err := check(ctx, r, conn, project, deps); err != nil {
		if project.Application != nil {
			return errors.Wrap(err, "the app dependencies are incorrect")
		}
		return errors.Wrap(err, "the package dependencies are incorrect")
	}
	if project.Application != nil {
		return errors.Wrap(initApplication(ctx, r, conn, project.Application, deps), "setting up the app test dependencies")
	}
	return errors.Wrap(initPackage(ctx, r, conn, project.Package, deps), "setting up the package test dependencies")
}

func initApplication(ctx context.Context, r *Resolver, conn Connectivity, app *mod.Application, deps mod.Dependencies) error {
	if _, ok := deps[ElmTest]; ok {
		if v, ok := app.TestDependencies.Indirect[ElmTest]; ok {
			r.logger.Warn("elm-explorations/test is already an indirect test dependency, promoting it to a direct one")
			delete(app.TestDependencies.Indirect, ElmTest)
			app.TestDependencies.Direct[ElmTest] = v
		} else if v, ok := app.Dependencies.Indirect[ElmTest]; ok {
			r.logger.Warn("elm-explorations/test is already an indirect dependency, copying its version to the direct test dependencies")
			app.TestDependencies.Direct[ElmTest] = v
		} else {
			r.logger.Warn("elm-explorations/test is already a dependency")
		}
		return nil
	}

	deps[ElmTest] = elmTestRange()
	sol, err := r.Solve(ctx, conn, mod.RootPkg, version.Zero, deps)
	if err != nil {
		return errors.Wrap(err, "adding elm-explorations/test to the dependencies")
	}
	app.TestDependencies.Direct[ElmTest] = sol[ElmTest]
	for pkg, v := range sol {
		if _, ok := deps[pkg]; !ok {
			app.TestDependencies.Indirect[pkg] = v
		}
	}
	return nil
}

func initPackage(ctx context.Context, r *Resolver, conn Connectivity, pkg *mod.Package, deps mod.Dependencies) error {
	if _, ok := deps[ElmTest]; ok {
		r.logger.Warn("elm-explorations/test is already a dependency")
		return nil
	}
	deps[ElmTest] = elmTestRange()
	if _, err := r.Solve(ctx, conn, pkg.Name, version.Zero, deps); err != nil {
		return errors.Wrap(err, "adding elm-explorations/test to the dependencies")
	}
	pkg.TestDependencies[ElmTest] = mod.NewConstraint(elmTestRange())
	return nil
}
