package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

var fulltextBucket = []byte("fulltexts")

// FulltextCache is a persistent, on-disk cache of reconstructed
// fulltexts keyed by a versioned-file record's wire key, so that
// repeatedly asking a VersionedFile for the same delta chain's content
// (a hot path for the graph engine and the log pipeline) does not
// re-walk and re-apply every delta back to the nearest fulltext on
// every call, across process restarts as well as within one.
//
// Grounded on the teacher's source_cache_bolt.go (bolt.Open with a
// timeout, one bucket per concern, db.View/db.Update transactions),
// narrowed from its many buckets (manifest/lock/package-tree/version
// lists) down to the single fulltext-by-key bucket this store needs.
type FulltextCache struct {
	db *bolt.DB
}

// OpenFulltextCache opens (creating if necessary) a bolt-backed cache
// file at path.
func OpenFulltextCache(path string) (*FulltextCache, error) {
	dir := filepath.Dir(path)
	if fi, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "store: creating cache directory %q", dir)
		}
	} else if err != nil {
		return nil, errors.Wrapf(err, "store: checking cache directory %q", dir)
	} else if !fi.IsDir() {
		return nil, errors.Errorf("store: cache path %q is not a directory", dir)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "store: opening bolt cache file %q", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(fulltextBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "store: initializing cache bucket")
	}
	return &FulltextCache{db: db}, nil
}

// Close releases the cache's underlying file.
func (c *FulltextCache) Close() error {
	return errors.Wrap(c.db.Close(), "store: closing bolt cache")
}

// Get returns the cached fulltext for wireKey, if present.
func (c *FulltextCache) Get(wireKey string) ([]byte, bool, error) {
	var content []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(fulltextBucket)
		if v := b.Get([]byte(wireKey)); v != nil {
			content = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "store: reading cache entry")
	}
	return content, content != nil, nil
}

// Put stores content under wireKey, overwriting any existing entry.
func (c *FulltextCache) Put(wireKey string, content []byte) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fulltextBucket).Put([]byte(wireKey), content)
	})
	return errors.Wrap(err, "store: writing cache entry")
}
