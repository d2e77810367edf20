package fetch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
)

// DefaultGitURL is the pattern of package repositories, filled with author and name.
const DefaultGitURL = "https://github.com/%s/%s.git"

// GitFetcher installs Elm packages into the cache from their Git repositories.
// Published Elm packages are tagged with their bare version, "1.0.0".
type GitFetcher struct {
	cache  *Cache
	logger *logrus.Logger

	// URLPattern builds the repository URL from author and name.
	URLPattern string
	// LockTimeout bounds the wait for the cache lock.
	LockTimeout time.Duration
}

// NewGitFetcher creates a new GitFetcher.
func NewGitFetcher(cache *Cache, logger *logrus.Logger) *GitFetcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &GitFetcher{
		cache:       cache,
		logger:      logger,
		URLPattern:  DefaultGitURL,
		LockTimeout: time.Minute,
	}
}

// Fetch downloads a package version and stores it in the cache.
// Returns the cached package path. Versions already cached are not downloaded again.
func (f *GitFetcher) Fetch(ctx context.Context, pkg mod.Pkg, v version.Version) (string, error) {
	if f.cache.config.IsCached(pkg, v) {
		return f.cache.config.PackagePath(pkg, v), nil
	}

	if err := f.cache.config.EnsureDirs(); err != nil {
		return "", errors.Wrap(err, "create cache directories")
	}

	lock := flock.New(f.cache.config.LockPath())
	lockCtx, cancel := context.WithTimeout(ctx, f.LockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return "", errors.Wrapf(err, "lock %s", lock.Path())
	}
	if !locked {
		return "", errors.Errorf("could not lock %s", lock.Path())
	}
	defer lock.Unlock()

	// Another process may have installed it while we waited.
	if f.cache.config.IsCached(pkg, v) {
		return f.cache.config.PackagePath(pkg, v), nil
	}

	gitURL := f.gitURL(pkg)

	tempDir, err := os.MkdirTemp("", "elmdeps-fetch-*")
	if err != nil {
		return "", errors.Wrap(err, "create temp directory")
	}
	defer os.RemoveAll(tempDir)

	f.logger.WithFields(logrus.Fields{"package": pkg.String(), "version": v.String(), "url": gitURL}).Info("cloning")
	_, err = git.PlainCloneContext(ctx, tempDir, false, &git.CloneOptions{
		URL:           gitURL,
		ReferenceName: plumbing.NewTagReferenceName(v.String()),
		SingleBranch:  true,
		Depth:         1,
		Tags:          git.NoTags,
	})
	if err != nil {
		return "", errors.Wrapf(err, "clone %s at %s", gitURL, v)
	}

	if err := f.cache.Store(pkg, v, tempDir); err != nil {
		f.cache.Remove(pkg, v)
		return "", errors.Wrap(err, "store in cache")
	}

	return f.cache.config.PackagePath(pkg, v), nil
}

// ListVersions lists the version tags of a package repository.
func (f *GitFetcher) ListVersions(ctx context.Context, pkg mod.Pkg) ([]version.Version, error) {
	gitURL := f.gitURL(pkg)

	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{gitURL},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "list remote refs of %s", gitURL)
	}

	var versions []version.Version
	for _, ref := range refs {
		name := ref.Name()
		if !name.IsTag() {
			continue
		}
		v, err := version.Parse(name.Short())
		if err != nil {
			continue // Skip non-version tags
		}
		versions = append(versions, v)
	}

	version.Sort(versions)
	return versions, nil
}

func (f *GitFetcher) gitURL(pkg mod.Pkg) string {
	return fmt.Sprintf(f.URLPattern, pkg.Author, pkg.Name)
}
