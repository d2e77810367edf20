package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"martianoff/elmdeps/internal/depman/fetch"
	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/registry"
	"martianoff/elmdeps/internal/depman/version"
)

var (
	elmCore = mod.MustParsePkg("elm/core")
	elmJSON = mod.MustParsePkg("elm/json")
)

func v(s string) version.Version {
	return version.MustParse(s)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("newest")
	require.NoError(t, err)
	assert.Equal(t, Newest, s)

	s, err = ParseStrategy(" Oldest ")
	require.NoError(t, err)
	assert.Equal(t, Oldest, s)
	assert.Equal(t, "oldest", s.String())

	_, err = ParseStrategy("latest")
	assert.Error(t, err)
}

func TestStrategy_Order(t *testing.T) {
	versions := []version.Version{v("1.0.0"), v("2.0.0"), v("1.5.0")}
	Newest.Order(versions)
	assert.Equal(t, []version.Version{v("2.0.0"), v("1.5.0"), v("1.0.0")}, versions)
	Oldest.Order(versions)
	assert.Equal(t, []version.Version{v("1.0.0"), v("1.5.0"), v("2.0.0")}, versions)
}

func TestStrategyOf(t *testing.T) {
	assert.Equal(t, Oldest, StrategyOf(NewMemory(Oldest)))
	assert.Equal(t, Newest, StrategyOf(NewOffline(fetch.NewCache(fetch.NewConfig(t.TempDir())))))
	assert.Equal(t, Oldest, StrategyOf(NewProjectAdapter(mod.RootPkg, version.Zero, nil, NewMemory(Oldest))))
}

func writeCached(t *testing.T, config *fetch.Config, pkg mod.Pkg, ver, content string) {
	t.Helper()
	path := config.ElmJSONPath(pkg, v(ver))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestOffline(t *testing.T) {
	config := fetch.NewConfig(t.TempDir())
	writeCached(t, config, elmJSON, "1.1.3", `{"dependencies": {"elm/core": "1.0.0 <= v < 2.0.0"}}`)
	writeCached(t, config, elmJSON, "1.1.2", `{"dependencies": {}}`)
	require.NoError(t, os.MkdirAll(config.PackageDir(elmCore), 0755))
	p := NewOffline(fetch.NewCache(config))
	ctx := context.Background()

	versions, err := p.ListVersions(ctx, elmJSON)
	require.NoError(t, err)
	assert.Equal(t, []version.Version{v("1.1.2"), v("1.1.3")}, versions)

	// Known package without any cached version
	versions, err = p.ListVersions(ctx, elmCore)
	require.NoError(t, err)
	assert.Empty(t, versions)

	deps, err := p.GetDependencies(ctx, elmJSON, v("1.1.3"))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0 <= v < 2.0.0", deps[elmCore].String())

	_, err = p.ListVersions(ctx, mod.MustParsePkg("elm/http"))
	var pe *PackageNotFoundError
	require.ErrorAs(t, err, &pe)
	assert.True(t, IsNotFound(err))

	_, err = p.GetDependencies(ctx, elmJSON, v("1.0.0"))
	var ve *VersionNotFoundError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, v("1.0.0"), ve.Version)
}

func TestOffline_CorruptElmJSON(t *testing.T) {
	config := fetch.NewConfig(t.TempDir())
	writeCached(t, config, elmJSON, "1.1.3", `{"dependencies": [`)
	p := NewOffline(fetch.NewCache(config))

	_, err := p.GetDependencies(context.Background(), elmJSON, v("1.1.3"))
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

type registryServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newRegistryServer(t *testing.T) *registryServer {
	t.Helper()
	rs := &registryServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/packages/elm/json/releases.json", func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		w.Write([]byte(`{"1.1.2": 1, "1.1.3": 2}`))
	})
	mux.HandleFunc("/packages/elm/json/1.1.3/elm.json", func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		w.Write([]byte(`{"dependencies": {"elm/core": "1.0.0 <= v < 2.0.0"}}`))
	})
	mux.HandleFunc("/packages/elm/core/releases.json", func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

func TestOnline(t *testing.T) {
	server := newRegistryServer(t)
	p := NewOnline(registry.NewClient(server.URL, 0, 0), nil, Oldest, nil)
	ctx := context.Background()

	assert.Equal(t, Oldest, p.Strategy())

	versions, err := p.ListVersions(ctx, elmJSON)
	require.NoError(t, err)
	assert.Equal(t, []version.Version{v("1.1.2"), v("1.1.3")}, versions)

	deps, err := p.GetDependencies(ctx, elmJSON, v("1.1.3"))
	require.NoError(t, err)
	assert.Contains(t, deps, elmCore)

	// Served from memory
	_, err = p.ListVersions(ctx, elmJSON)
	require.NoError(t, err)
	_, err = p.GetDependencies(ctx, elmJSON, v("1.1.3"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), server.hits.Load())
}

func TestOnline_Errors(t *testing.T) {
	server := newRegistryServer(t)
	p := NewOnline(registry.NewClient(server.URL, 0, 0), nil, Newest, nil)
	ctx := context.Background()

	_, err := p.ListVersions(ctx, mod.MustParsePkg("nobody/nothing"))
	var pe *PackageNotFoundError
	assert.ErrorAs(t, err, &pe)

	_, err = p.GetDependencies(ctx, elmJSON, v("9.0.0"))
	var ve *VersionNotFoundError
	assert.ErrorAs(t, err, &ve)

	// A failing registry is not the same as an unknown package.
	_, err = p.ListVersions(ctx, elmCore)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	var fe *registry.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
}

func TestOnline_PersistentStore(t *testing.T) {
	server := newRegistryServer(t)
	path := filepath.Join(t.TempDir(), "registry.db")
	ctx := context.Background()

	store, err := registry.OpenStore(path, time.Hour, nil)
	require.NoError(t, err)
	p := NewOnline(registry.NewClient(server.URL, 0, 0), store, Newest, nil)
	_, err = p.ListVersions(ctx, elmJSON)
	require.NoError(t, err)
	_, err = p.GetDependencies(ctx, elmJSON, v("1.1.3"))
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.Equal(t, int32(2), server.hits.Load())

	// A fresh provider in a later run reads the store instead of the registry.
	store, err = registry.OpenStore(path, time.Hour, nil)
	require.NoError(t, err)
	defer store.Close()
	p = NewOnline(registry.NewClient(server.URL, 0, 0), store, Newest, nil)
	versions, err := p.ListVersions(ctx, elmJSON)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
	deps, err := p.GetDependencies(ctx, elmJSON, v("1.1.3"))
	require.NoError(t, err)
	assert.Contains(t, deps, elmCore)
	assert.Equal(t, int32(2), server.hits.Load())
}

func TestOnline_Concurrent(t *testing.T) {
	server := newRegistryServer(t)
	p := NewOnline(registry.NewClient(server.URL, 0, 0), nil, Newest, nil)

	var wg sync.WaitGroup
	results := make([][]version.Version, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			versions, err := p.ListVersions(context.Background(), elmJSON)
			assert.NoError(t, err)
			results[i] = versions
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory(Newest).
		Add(elmJSON, v("1.1.3"), mod.Dependencies{elmCore: version.Full()}).
		Add(elmJSON, v("1.0.0"), nil).
		AddPackage(elmCore)
	ctx := context.Background()

	versions, err := m.ListVersions(ctx, elmJSON)
	require.NoError(t, err)
	assert.Equal(t, []version.Version{v("1.0.0"), v("1.1.3")}, versions)

	versions, err = m.ListVersions(ctx, elmCore)
	require.NoError(t, err)
	assert.Empty(t, versions)

	deps, err := m.GetDependencies(ctx, elmJSON, v("1.0.0"))
	require.NoError(t, err)
	assert.Empty(t, deps)

	_, err = m.ListVersions(ctx, mod.MustParsePkg("a/b"))
	assert.True(t, IsNotFound(err))
	_, err = m.GetDependencies(ctx, elmCore, v("1.0.0"))
	assert.True(t, IsNotFound(err))
}

func TestProjectAdapter(t *testing.T) {
	inner := NewMemory(Newest).Add(elmCore, v("1.0.5"), nil)
	deps := mod.Dependencies{elmCore: version.Exact(v("1.0.5"))}
	a := NewProjectAdapter(mod.RootPkg, version.Zero, deps, inner)
	ctx := context.Background()

	versions, err := a.ListVersions(ctx, mod.RootPkg)
	require.NoError(t, err)
	assert.Equal(t, []version.Version{version.Zero}, versions)

	got, err := a.GetDependencies(ctx, mod.RootPkg, version.Zero)
	require.NoError(t, err)
	assert.Equal(t, deps, got)

	// The adapter keeps its own copy.
	got[elmJSON] = version.Full()
	again, err := a.GetDependencies(ctx, mod.RootPkg, version.Zero)
	require.NoError(t, err)
	assert.NotContains(t, again, elmJSON)

	_, err = a.GetDependencies(ctx, mod.RootPkg, v("1.0.0"))
	assert.True(t, IsNotFound(err))

	versions, err = a.ListVersions(ctx, elmCore)
	require.NoError(t, err)
	assert.Equal(t, []version.Version{v("1.0.5")}, versions)
}
