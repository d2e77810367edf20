package registry

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
)

// Store persists registry answers in a BoltDB file.
// Version lists are timestamped and the epoch limits the age of returned lists.
// The elm.json of a published version never changes, so those entries don't expire.
// Database access methods are safe for concurrent use with each other (excluding Close).
//
// Layout:
//
//	Bucket: "pkg:<author>/<name>"
//	Sub-Bucket: "versions:<timestamp>"
//	Keys: "<sequence_number>"
//	Values: "<version>"
//
//	Sub-Bucket: "elm.json"
//	Keys: "<version>"
//	Values: raw elm.json
type Store struct {
	db     *bolt.DB
	epoch  int64 // version lists older than this unix timestamp are ignored
	logger *logrus.Logger
}

// OpenStore opens or creates the store at path. Version lists older than maxAge are
// ignored; a maxAge of zero keeps them forever.
func OpenStore(path string, maxAge time.Duration, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create registry cache directory: %s", dir)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open registry cache: %s", path)
	}
	var epoch int64
	if maxAge > 0 {
		epoch = time.Now().Add(-maxAge).Unix()
	}
	return &Store{db: db, epoch: epoch, logger: logger}, nil
}

// Close releases all database resources.
// Must not be called concurrently with any other methods.
func (s *Store) Close() error {
	return errors.Wrapf(s.db.Close(), "error closing Bolt database %q", s.db.String())
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.db.Path()
}

// Versions returns the cached version list of pkg, if a fresh one exists.
func (s *Store) Versions(pkg mod.Pkg) ([]version.Version, bool) {
	var versions []version.Version
	ok := false
	err := s.viewBucket(pkgBucket(pkg), func(b *bolt.Bucket) error {
		vb := findLatestValid(b, "versions:", s.epoch)
		if vb == nil {
			return nil
		}
		versions = make([]version.Version, 0, vb.Stats().KeyN)
		err := vb.ForEach(func(_, value []byte) error {
			v, err := version.Parse(string(value))
			if err != nil {
				return err
			}
			versions = append(versions, v)
			return nil
		})
		if err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("package", pkg.String()).Warn("failed to read cached versions")
		return nil, false
	}
	return versions, ok
}

// SetVersions replaces the cached version list of pkg.
func (s *Store) SetVersions(pkg mod.Pkg, versions []version.Version) {
	err := s.updateBucket(pkgBucket(pkg), func(b *bolt.Bucket) error {
		if err := prefixDelete(b, "versions:"); err != nil {
			return err
		}
		vb, err := b.CreateBucket(timestampedKey("versions:", time.Now()))
		if err != nil {
			return err
		}
		for _, v := range versions {
			seq, err := vb.NextSequence()
			if err != nil {
				return err
			}
			if err := vb.Put(sequenceKey(seq), []byte(v.String())); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("package", pkg.String()).Warn("failed to cache versions")
	}
}

// ElmJSON returns the cached elm.json of a package version.
func (s *Store) ElmJSON(pkg mod.Pkg, v version.Version) ([]byte, bool) {
	var content []byte
	err := s.viewBucket(pkgBucket(pkg), func(b *bolt.Bucket) error {
		eb := b.Bucket([]byte("elm.json"))
		if eb == nil {
			return nil
		}
		if value := eb.Get([]byte(v.String())); value != nil {
			// Values are only valid for the life of the transaction.
			content = append([]byte(nil), value...)
		}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("package", pkg.String()).Warn("failed to read cached elm.json")
		return nil, false
	}
	return content, content != nil
}

// SetElmJSON caches the elm.json of a package version.
func (s *Store) SetElmJSON(pkg mod.Pkg, v version.Version, content []byte) {
	err := s.updateBucket(pkgBucket(pkg), func(b *bolt.Bucket) error {
		eb, err := b.CreateBucketIfNotExists([]byte("elm.json"))
		if err != nil {
			return err
		}
		return eb.Put([]byte(v.String()), content)
	})
	if err != nil {
		s.logger.WithError(err).WithField("package", pkg.String()).Warn("failed to cache elm.json")
	}
}

// Packages returns every package with cached data.
func (s *Store) Packages() ([]mod.Pkg, error) {
	var pkgs []mod.Pkg
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			raw := strings.TrimPrefix(string(name), "pkg:")
			if p, err := mod.ParsePkg(raw); err == nil {
				pkgs = append(pkgs, p)
			}
			return nil
		})
	})
	return pkgs, err
}

func pkgBucket(pkg mod.Pkg) string {
	return "pkg:" + pkg.String()
}

// viewBucket executes view with the named bucket, if it exists.
func (s *Store) viewBucket(name string, view func(b *bolt.Bucket) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return nil
		}
		return view(b)
	})
}

// updateBucket executes update with the named bucket, creating it first if necessary.
func (s *Store) updateBucket(name string, update func(b *bolt.Bucket) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return errors.Wrapf(err, "failed to create bucket: %s", name)
		}
		return update(b)
	})
}

func sequenceKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func timestampedKey(pre string, t time.Time) []byte {
	b := make([]byte, len(pre)+8)
	copy(b, pre)
	binary.BigEndian.PutUint64(b[len(pre):], uint64(t.Unix()))
	return b
}

// prefixDelete prefix scans and deletes each sub-bucket.
func prefixDelete(b *bolt.Bucket, pre string) error {
	c := b.Cursor()
	p := []byte(pre)
	var keys [][]byte
	for k, _ := c.Seek(p); bytes.HasPrefix(k, p); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.DeleteBucket(k); err != nil {
			return errors.Wrapf(err, "failed to delete bucket: %s", k)
		}
	}
	return nil
}

// findLatestValid prefix scans for the latest sub-bucket which is timestamped >= epoch,
// or returns nil if none exists.
func findLatestValid(b *bolt.Bucket, pre string, epoch int64) *bolt.Bucket {
	c := b.Cursor()
	p := []byte(pre)
	var latest []byte
	for k, _ := c.Seek(p); bytes.HasPrefix(k, p); k, _ = c.Next() {
		latest = k
	}
	if latest == nil {
		return nil
	}
	ts := bytes.TrimPrefix(latest, p)
	if len(ts) != 8 {
		return nil
	}
	if int64(binary.BigEndian.Uint64(ts)) < epoch {
		return nil
	}
	return b.Bucket(latest)
}
