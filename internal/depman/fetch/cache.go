package fetch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
)

// ErrNotCached is returned when a package or package version is absent from the cache.
var ErrNotCached = errors.New("not in the package cache")

// Cache reads and writes the local package cache.
type Cache struct {
	config *Config
}

// NewCache creates a new Cache with the given configuration.
func NewCache(config *Config) *Cache {
	if config == nil {
		config = DefaultConfig()
	}
	return &Cache{config: config}
}

// Config returns the cache configuration.
func (c *Cache) Config() *Config {
	return c.config
}

// ListPackages returns every package with at least one cached version directory.
func (c *Cache) ListPackages() ([]mod.Pkg, error) {
	matches, err := filepath.Glob(filepath.Join(c.config.PackagesDir(), "*", "*"))
	if err != nil {
		return nil, errors.Wrap(err, "list cached packages")
	}

	var pkgs []mod.Pkg
	for _, match := range matches {
		name := filepath.Base(match)
		author := filepath.Base(filepath.Dir(match))
		pkg, err := mod.ParsePkg(author + "/" + name)
		if err != nil {
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	mod.SortPkgs(pkgs)
	return pkgs, nil
}

// ListVersions returns all cached versions of a package, sorted ascending.
// Directory names that are not versions are ignored.
func (c *Cache) ListVersions(pkg mod.Pkg) ([]version.Version, error) {
	dir := c.config.PackageDir(pkg)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotCached, "package %s", pkg)
		}
		return nil, errors.Wrapf(err, "read %s", dir)
	}

	versions := make([]version.Version, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		v, err := version.Parse(entry.Name())
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}

	version.Sort(versions)
	return versions, nil
}

// ReadElmJSON returns the raw elm.json of a cached package version.
func (c *Cache) ReadElmJSON(pkg mod.Pkg, v version.Version) ([]byte, error) {
	path := c.config.ElmJSONPath(pkg, v)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotCached, "package %s %s", pkg, v)
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return content, nil
}

// Dependencies returns the dependencies declared by a cached package version.
func (c *Cache) Dependencies(pkg mod.Pkg, v version.Version) (mod.Dependencies, error) {
	content, err := c.ReadElmJSON(pkg, v)
	if err != nil {
		return nil, err
	}
	deps, err := mod.PackageDependencies(content)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", c.config.ElmJSONPath(pkg, v))
	}
	return deps, nil
}

// Store stores a package in the cache from a source directory.
// It copies elm.json, the LICENSE and README.md files and the .elm sources under src/.
func (c *Cache) Store(pkg mod.Pkg, v version.Version, sourceDir string) error {
	if _, err := os.Stat(filepath.Join(sourceDir, "elm.json")); err != nil {
		return errors.Wrapf(err, "%s %s has no elm.json", pkg, v)
	}

	destDir := c.config.PackagePath(pkg, v)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return errors.Wrap(err, "create cache directory")
	}

	return filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if relPath == "." {
				return nil
			}
			if strings.HasPrefix(info.Name(), ".") || !isSourcePath(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isPackageFile(relPath) {
			return nil
		}

		destPath := filepath.Join(destDir, relPath)
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(destPath, content, 0644)
	})
}

func isSourcePath(relPath string) bool {
	first := strings.Split(filepath.ToSlash(relPath), "/")[0]
	return first == "src"
}

func isPackageFile(relPath string) bool {
	switch filepath.ToSlash(relPath) {
	case "elm.json", "LICENSE", "README.md":
		return true
	}
	return isSourcePath(relPath) && filepath.Ext(relPath) == ".elm"
}

// Remove removes a package version from the cache.
func (c *Cache) Remove(pkg mod.Pkg, v version.Version) error {
	return os.RemoveAll(c.config.PackagePath(pkg, v))
}

// CacheInfo holds information about a cached package version.
type CacheInfo struct {
	Pkg         mod.Pkg
	Version     version.Version
	Path        string
	ModuleCount int
}

// Info returns information about a cached package version.
func (c *Cache) Info(pkg mod.Pkg, v version.Version) (*CacheInfo, error) {
	if !c.config.IsCached(pkg, v) {
		return nil, errors.Wrapf(ErrNotCached, "package %s %s", pkg, v)
	}

	info := &CacheInfo{
		Pkg:     pkg,
		Version: v,
		Path:    c.config.PackagePath(pkg, v),
	}

	filepath.Walk(filepath.Join(info.Path, "src"), func(path string, fi os.FileInfo, err error) error {
		if err == nil && !fi.IsDir() && filepath.Ext(path) == ".elm" {
			info.ModuleCount++
		}
		return nil
	})

	return info, nil
}
