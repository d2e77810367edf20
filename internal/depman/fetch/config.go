// Package fetch manages the Elm package cache in ELM_HOME and installs packages into it.
package fetch

import (
	"os"
	"path/filepath"
	"runtime"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
)

// DefaultElmVersion is the compiler version whose package cache is used.
const DefaultElmVersion = "0.19.1"

// Config holds configuration for the package cache.
type Config struct {
	// ElmHome is the root of the elm cache.
	// Defaults to $ELM_HOME, or ~/.elm
	ElmHome string

	// ElmVersion selects the cache generation, "0.19.1".
	ElmVersion string

	// StateDir holds files owned by this tool: the registry cache and lock file.
	// Defaults to ElmHome/pubgrub
	StateDir string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return NewConfig(defaultElmHome())
}

// NewConfig returns the configuration for the given elm home.
func NewConfig(elmHome string) *Config {
	return &Config{
		ElmHome:    elmHome,
		ElmVersion: DefaultElmVersion,
		StateDir:   filepath.Join(elmHome, "pubgrub"),
	}
}

// defaultElmHome returns the default elm home.
// Uses ELM_HOME environment variable if set, otherwise the elm compiler default.
func defaultElmHome() string {
	if dir := os.Getenv("ELM_HOME"); dir != "" {
		return dir
	}

	if runtime.GOOS == "windows" {
		if dir := os.Getenv("APPDATA"); dir != "" {
			return filepath.Join(dir, "elm")
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fall back to current directory
		return filepath.Join(".", ".elm")
	}

	return filepath.Join(homeDir, ".elm")
}

// EnsureDirs creates the cache directories if they don't exist.
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.PackagesDir(), 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.StateDir, 0755)
}

// PackagesDir returns ElmHome/<elm version>/packages.
func (c *Config) PackagesDir() string {
	return filepath.Join(c.ElmHome, c.ElmVersion, "packages")
}

// PackageDir returns the directory holding every cached version of a package.
func (c *Config) PackageDir(pkg mod.Pkg) string {
	return filepath.Join(c.PackagesDir(), pkg.Author, pkg.Name)
}

// PackagePath returns the path where a package version is cached.
// Format: ElmHome/0.19.1/packages/author/name/version/
func (c *Config) PackagePath(pkg mod.Pkg, v version.Version) string {
	return filepath.Join(c.PackageDir(pkg), v.String())
}

// ElmJSONPath returns the elm.json of a cached package version.
func (c *Config) ElmJSONPath(pkg mod.Pkg, v version.Version) string {
	return filepath.Join(c.PackagePath(pkg, v), "elm.json")
}

// RegistryCachePath returns the database of the online provider cache.
func (c *Config) RegistryCachePath() string {
	return filepath.Join(c.StateDir, "registry.db")
}

// LockPath returns the lock file guarding cache writes.
func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir, "fetch.lock")
}

// IsCached returns true if a package version has its elm.json in the cache.
func (c *Config) IsCached(pkg mod.Pkg, v version.Version) bool {
	info, err := os.Stat(c.ElmJSONPath(pkg, v))
	return err == nil && !info.IsDir()
}
