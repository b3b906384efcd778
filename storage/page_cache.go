package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	bolt "go.etcd.io/bbolt"
)

const pageBucket = "package_pages"

// PageCache keeps fetched index pages on disk, keyed by package name.
// The same package is looked up once per distribution, the LRU avoids re-reading bbolt for it.
type PageCache struct {
	db     *bolt.DB
	recent *lru.Cache[string, string]
}

func OpenPageCache(path string, size int) (*PageCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open page cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(pageBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	recent, err := lru.New[string, string](max(size, 1))
	if err != nil {
		db.Close()
		return nil, err
	}

	return &PageCache{db: db, recent: recent}, nil
}

// Get returns the cached page and whether it was found
func (c *PageCache) Get(pkg string) (string, bool) {
	if page, ok := c.recent.Get(pkg); ok {
		return page, true
	}

	var page []byte
	_ = c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(pageBucket))
		if bucket == nil {
			return bolt.ErrBucketNotFound
		}
		if data := bucket.Get([]byte(pkg)); data != nil {
			page = append([]byte(nil), data...)
		}
		return nil
	})

	if page == nil {
		return "", false
	}

	c.recent.Add(pkg, string(page))
	return string(page), true
}

func (c *PageCache) Put(pkg, page string) error {
	c.recent.Add(pkg, page)

	return c.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(pageBucket))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(pkg), []byte(page))
	})
}

// Len counts the pages stored on disk
func (c *PageCache) Len() int {
	n := 0
	_ = c.db.View(func(tx *bolt.Tx) error {
		if bucket := tx.Bucket([]byte(pageBucket)); bucket != nil {
			n = bucket.Stats().KeyN
		}
		return nil
	})

	return n
}

func (c *PageCache) Close() error {
	return c.db.Close()
}
