package solve

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"martianoff/elmdeps/deperr"
	"martianoff/elmdeps/internal/depman/fetch"
	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/provider"
	"martianoff/elmdeps/internal/depman/version"
)

var (
	elmCore   = mod.MustParsePkg("elm/core")
	elmRandom = mod.MustParsePkg("elm/random")
)

func v(s string) version.Version {
	return version.MustParse(s)
}

const majorOne = "1.0.0 <= v < 2.0.0"

// universe is the registry content used by the tests: package, version, elm.json.
var universe = map[mod.Pkg]map[string]string{
	elmCore: {
		"1.0.0": `{"dependencies": {}}`,
		"1.0.5": `{"dependencies": {}}`,
	},
	ElmJSON: {
		"1.1.3": `{"dependencies": {"elm/core": "` + majorOne + `"}}`,
	},
	elmRandom: {
		"1.0.0": `{"dependencies": {"elm/core": "` + majorOne + `"}}`,
	},
	TestRunner: {
		"4.0.4": `{"dependencies": {"elm/core": "` + majorOne + `", "elm/json": "` + majorOne + `", "elm/random": "` + majorOne + `"}}`,
	},
	ElmTest: {
		"1.2.2": `{"dependencies": {"elm/core": "` + majorOne + `", "elm/random": "` + majorOne + `"}}`,
	},
}

type registryServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newRegistryServer(t *testing.T) *registryServer {
	t.Helper()
	rs := &registryServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/packages/"), "/")
		if len(parts) < 3 {
			http.NotFound(w, r)
			return
		}
		versions, ok := universe[mod.Pkg{Author: parts[0], Name: parts[1]}]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if parts[2] == "releases.json" {
			var entries []string
			for ver := range versions {
				entries = append(entries, `"`+ver+`": 1`)
			}
			w.Write([]byte("{" + strings.Join(entries, ",") + "}"))
			return
		}
		content, ok := versions[parts[2]]
		if !ok || len(parts) != 4 || parts[3] != "elm.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(content))
	}))
	t.Cleanup(rs.Close)
	return rs
}

// cachePackages copies packages of the universe into the local cache.
func cachePackages(t *testing.T, config *fetch.Config, pkgs ...mod.Pkg) {
	t.Helper()
	for _, pkg := range pkgs {
		for ver, content := range universe[pkg] {
			path := config.ElmJSONPath(pkg, v(ver))
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		}
	}
}

func newTestResolver(t *testing.T, server *registryServer) *Resolver {
	t.Helper()
	config := &Config{
		Cache:       fetch.NewConfig(t.TempDir()),
		CacheMaxAge: DefaultCacheMaxAge,
	}
	if server != nil {
		config.RegistryURL = server.URL
	}
	return NewResolver(config)
}

func TestParseConnectivity(t *testing.T) {
	tests := []struct {
		input    string
		expected Connectivity
	}{
		{"offline", Offline},
		{"online", Online(provider.Newest)},
		{"online-newest", Online(provider.Newest)},
		{"Online-Oldest", Online(provider.Oldest)},
		{"progressive", Progressive},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConnectivity(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ParseConnectivity("sometimes")
	assert.Error(t, err)

	assert.Equal(t, "online-oldest", Online(provider.Oldest).String())
	assert.Equal(t, "progressive", Progressive.String())
}

func TestSolve_ExcludesRoot(t *testing.T) {
	p := provider.NewMemory(provider.Newest).Add(elmCore, v("1.0.5"), nil)

	sol, err := Solve(context.Background(), mod.RootPkg, version.Zero, mod.Dependencies{elmCore: version.Full()}, p)
	require.NoError(t, err)
	assert.Equal(t, map[mod.Pkg]version.Version{elmCore: v("1.0.5")}, sol)
}

func TestSolve_NoDependencies(t *testing.T) {
	sol, err := Solve(context.Background(), mod.RootPkg, version.Zero, nil, provider.NewMemory(provider.Newest))
	require.NoError(t, err)
	assert.Empty(t, sol)
}

func TestResolver_Offline(t *testing.T) {
	r := newTestResolver(t, nil)
	cachePackages(t, r.Config().Cache, elmCore, ElmJSON)
	deps := mod.Dependencies{ElmJSON: version.MustParseConstraint(majorOne)}

	sol, err := r.Solve(context.Background(), Offline, mod.RootPkg, version.Zero, deps)
	require.NoError(t, err)
	assert.Equal(t, map[mod.Pkg]version.Version{ElmJSON: v("1.1.3"), elmCore: v("1.0.5")}, sol)

	again, err := r.Solve(context.Background(), Offline, mod.RootPkg, version.Zero, deps)
	require.NoError(t, err)
	assert.Equal(t, sol, again)
}

func TestResolver_OfflineMissingPackage(t *testing.T) {
	r := newTestResolver(t, nil)
	cachePackages(t, r.Config().Cache, elmCore)

	_, err := r.Solve(context.Background(), Offline, mod.RootPkg, version.Zero,
		mod.Dependencies{ElmTest: version.MustParseConstraint(majorOne)})
	var providerErr *deperr.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.True(t, provider.IsNotFound(err))
}

func TestResolver_ProgressiveFallsBackOnline(t *testing.T) {
	server := newRegistryServer(t)
	r := newTestResolver(t, server)
	cachePackages(t, r.Config().Cache, elmCore)
	deps := mod.Dependencies{ElmTest: version.MustParseConstraint(majorOne)}
	ctx := context.Background()

	online, err := r.Solve(ctx, Online(provider.Newest), mod.RootPkg, version.Zero, deps)
	require.NoError(t, err)

	progressive, err := r.Solve(ctx, Progressive, mod.RootPkg, version.Zero, deps)
	require.NoError(t, err)
	assert.Equal(t, online, progressive)
	assert.Equal(t, v("1.2.2"), progressive[ElmTest])
	assert.Equal(t, v("1.0.0"), progressive[elmRandom])
}

func TestResolver_ProgressiveOfflineFirst(t *testing.T) {
	server := newRegistryServer(t)
	r := newTestResolver(t, server)
	cachePackages(t, r.Config().Cache, elmCore, ElmJSON)

	sol, err := r.Solve(context.Background(), Progressive, mod.RootPkg, version.Zero,
		mod.Dependencies{ElmJSON: version.Full()})
	require.NoError(t, err)
	assert.Equal(t, v("1.1.3"), sol[ElmJSON])
	assert.Equal(t, int32(0), server.hits.Load())
}

func TestResolver_ProgressiveBothFail(t *testing.T) {
	server := newRegistryServer(t)
	r := newTestResolver(t, server)
	cachePackages(t, r.Config().Cache, elmCore)

	_, err := r.Solve(context.Background(), Progressive, mod.RootPkg, version.Zero,
		mod.Dependencies{elmCore: version.MustParseConstraint("2.0.0 <= v < 3.0.0")})
	var multi *deperr.MultiError
	require.True(t, errors.As(err, &multi))
	require.Len(t, multi.Errors, 2)
	assert.Equal(t, deperr.TypeNoSolution, deperr.TypeOf(multi.Errors[0]))
	assert.Equal(t, deperr.TypeNoSolution, deperr.TypeOf(multi.Errors[1]))
}

func TestResolver_ProgressiveCancelled(t *testing.T) {
	server := newRegistryServer(t)
	r := newTestResolver(t, server)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Solve(ctx, Progressive, mod.RootPkg, version.Zero, mod.Dependencies{elmCore: version.Full()})
	assert.Equal(t, deperr.TypeCancelled, deperr.TypeOf(err))
	assert.Equal(t, int32(0), server.hits.Load())
}

func TestResolver_ProviderRejectsProgressive(t *testing.T) {
	_, _, err := newTestResolver(t, nil).Provider(Progressive)
	assert.Error(t, err)
}

func TestResolver_SolveMany(t *testing.T) {
	r := newTestResolver(t, nil)
	cachePackages(t, r.Config().Cache, elmCore, ElmJSON)

	jobs := []Job{
		{Name: "core", Connectivity: Offline, Root: mod.RootPkg, Deps: mod.Dependencies{elmCore: version.Exact(v("1.0.0"))}},
		{Name: "json", Connectivity: Offline, Root: mod.RootPkg, Deps: mod.Dependencies{ElmJSON: version.Full()}},
		{Name: "missing", Connectivity: Offline, Root: mod.RootPkg, Deps: mod.Dependencies{ElmTest: version.Full()}},
	}
	results := r.SolveMany(context.Background(), jobs, 4)
	require.Len(t, results, 3)

	assert.Equal(t, "core", results[0].Job.Name)
	require.NoError(t, results[0].Err)
	assert.Equal(t, v("1.0.0"), results[0].Solution[elmCore])

	require.NoError(t, results[1].Err)
	assert.Equal(t, v("1.0.5"), results[1].Solution[elmCore])

	assert.Equal(t, deperr.TypeProvider, deperr.TypeOf(results[2].Err))
}

func testApplication() *mod.Project {
	app := mod.NewApplication(ElmVersion, []string{"src"})
	app.Dependencies.Direct[elmCore] = v("1.0.5")
	return &mod.Project{Application: app}
}

func TestForTests_Application(t *testing.T) {
	server := newRegistryServer(t)
	r := newTestResolver(t, server)

	app, err := ForTests(context.Background(), r, Online(provider.Newest), testApplication(), []string{"src", "tests"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"src", "tests"}, app.SourceDirectories)
	assert.Equal(t, ElmVersion, app.ElmVersion)
	assert.Equal(t, map[mod.Pkg]version.Version{
		elmCore:    v("1.0.5"),
		ElmJSON:    v("1.1.3"),
		TestRunner: TestRunnerVersion,
	}, app.Dependencies.Direct)
	assert.Equal(t, map[mod.Pkg]version.Version{elmRandom: v("1.0.0")}, app.Dependencies.Indirect)
	assert.Empty(t, app.TestDependencies.Direct)
	assert.Empty(t, app.TestDependencies.Indirect)
}

func TestForTests_Package(t *testing.T) {
	server := newRegistryServer(t)
	r := newTestResolver(t, server)
	project := &mod.Project{Package: &mod.Package{
		Name:    mod.MustParsePkg("author/pkg"),
		Version: v("2.1.0"),
		Dependencies: map[mod.Pkg]mod.Constraint{
			elmCore: mod.NewConstraint(version.MustParseConstraint(majorOne)),
		},
		TestDependencies: map[mod.Pkg]mod.Constraint{
			ElmTest: mod.NewConstraint(version.MustParseConstraint(majorOne)),
		},
	}}

	app, err := ForTests(context.Background(), r, Online(provider.Newest), project, []string{"src"}, nil)
	require.NoError(t, err)
	assert.Contains(t, app.Dependencies.Direct, ElmTest)
	assert.NotContains(t, app.Dependencies.Direct, project.Package.Name)
	assert.NotContains(t, app.Dependencies.Indirect, project.Package.Name)
}

func TestCheck(t *testing.T) {
	server := newRegistryServer(t)
	r := newTestResolver(t, server)
	ctx := context.Background()
	conn := Online(provider.Newest)

	project := testApplication()
	require.NoError(t, Check(ctx, r, conn, project))

	// elm-explorations/test needs elm/random, which the project does not list.
	project.Application.Dependencies.Direct[ElmTest] = v("1.2.2")
	err := Check(ctx, r, conn, project)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "elm/random is missing")

	project.Application.Dependencies.Indirect[elmRandom] = v("1.0.0")
	assert.NoError(t, Check(ctx, r, conn, project))
}

func TestInit_Application(t *testing.T) {
	server := newRegistryServer(t)
	r := newTestResolver(t, server)
	project := testApplication()

	require.NoError(t, Init(context.Background(), r, Online(provider.Newest), project))
	app := project.Application
	assert.Equal(t, v("1.2.2"), app.TestDependencies.Direct[ElmTest])
	assert.Equal(t, map[mod.Pkg]version.Version{elmRandom: v("1.0.0")}, app.TestDependencies.Indirect)
	assert.Equal(t, map[mod.Pkg]version.Version{elmCore: v("1.0.5")}, app.Dependencies.Direct)
}

func TestInit_ApplicationPromotesIndirect(t *testing.T) {
	server := newRegistryServer(t)
	r := newTestResolver(t, server)
	project := testApplication()
	project.Application.TestDependencies.Indirect[ElmTest] = v("1.2.2")
	project.Application.TestDependencies.Indirect[elmRandom] = v("1.0.0")

	require.NoError(t, Init(context.Background(), r, Online(provider.Newest), project))
	assert.Equal(t, v("1.2.2"), project.Application.TestDependencies.Direct[ElmTest])
	assert.NotContains(t, project.Application.TestDependencies.Indirect, ElmTest)
}

func TestInit_Package(t *testing.T) {
	server := newRegistryServer(t)
	r := newTestResolver(t, server)
	project := &mod.Project{Package: &mod.Package{
		Name:    mod.MustParsePkg("author/pkg"),
		Version: v("1.0.0"),
		Dependencies: map[mod.Pkg]mod.Constraint{
			elmCore: mod.NewConstraint(version.MustParseConstraint(majorOne)),
		},
		TestDependencies: map[mod.Pkg]mod.Constraint{},
	}}

	require.NoError(t, Init(context.Background(), r, Online(provider.Newest), project))
	c, ok := project.Package.TestDependencies[ElmTest]
	require.True(t, ok)
	assert.Equal(t, majorOne, c.String())
}

func TestInit_InconsistentProject(t *testing.T) {
	server := newRegistryServer(t)
	r := newTestResolver(t, server)
	project := testApplication()
	project.Application.Dependencies.Direct[elmCore] = v("3.0.0")

	err := Init(context.Background(), r, Online(provider.Newest), project)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the app dependencies are incorrect")
	assert.NotContains(t, project.Application.TestDependencies.Direct, ElmTest)
}
