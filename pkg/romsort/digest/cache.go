package digest

import (
	"bytes"
	"encoding/gob"
	"errors"
	"os"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/jamesainslie/romsort/pkg/romsort/logging"
)

// CacheVersion is incremented when the cached entry format changes.
const CacheVersion = 1

// ErrNotFound is returned when a path has no cached digest.
var ErrNotFound = errors.New("digest not cached")

// CachedEntry is a digest together with the file facts it was computed from.
type CachedEntry struct {
	Version int
	Size    int64 // stat size when the digest was taken
	Mtime   int64 // modification time as UnixNano
	Result  Result
}

// Encode serializes the entry using gob.
func (e *CachedEntry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes data into the entry.
func (e *CachedEntry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// matches reports whether the entry is still valid for a file with info.
func (e *CachedEntry) matches(info os.FileInfo) bool {
	return e.Version == CacheVersion &&
		e.Size == info.Size() &&
		e.Mtime == info.ModTime().UnixNano()
}

// Cache persists digests across runs, keyed by absolute file path.
type Cache struct {
	db *badger.DB
}

// OpenCache opens or creates a digest cache in the directory at path.
func OpenCache(path string) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached entry for path.
func (c *Cache) Get(path string) (*CachedEntry, error) {
	var entry CachedEntry

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(entry.Decode)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put stores entry for path.
func (c *Cache) Put(path string, entry *CachedEntry) error {
	value, err := entry.Encode()
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), value)
	})
}

// Move re-keys the entry at from to to. A missing entry is not an error.
func (c *Cache) Move(from, to string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(from))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(to), value); err != nil {
			return err
		}
		return txn.Delete([]byte(from))
	})
}

// Len returns the number of cached entries.
func (c *Cache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Clear removes every cached entry.
func (c *Cache) Clear() error {
	return c.db.DropAll()
}

// CachedDigester serves digests from a Cache when the file's size and
// modification time are unchanged, and falls back to Next otherwise.
type CachedDigester struct {
	cache *Cache
	next  Digester

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedDigester wraps next with cache. A nil next uses FileDigester.
func NewCachedDigester(cache *Cache, next Digester) *CachedDigester {
	if next == nil {
		next = FileDigester{}
	}
	return &CachedDigester{cache: cache, next: next}
}

// Digest implements Digester.
func (d *CachedDigester) Digest(path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, &IOError{Path: path, Err: err}
	}

	if entry, err := d.cache.Get(path); err == nil && entry.matches(info) {
		d.hits.Add(1)
		return entry.Result, nil
	}
	d.misses.Add(1)

	res, err := d.next.Digest(path)
	if err != nil {
		return Result{}, err
	}

	entry := &CachedEntry{
		Version: CacheVersion,
		Size:    info.Size(),
		Mtime:   info.ModTime().UnixNano(),
		Result:  res,
	}
	if err := d.cache.Put(path, entry); err != nil {
		logging.Get("digest").Warn("failed to cache digest", "path", path, "error", err)
	}
	return res, nil
}

// Moved keeps the cached digest attached to a file after it is renamed.
func (d *CachedDigester) Moved(from, to string) {
	if err := d.cache.Move(from, to); err != nil {
		logging.Get("digest").Warn("failed to move cached digest", "from", from, "to", to, "error", err)
	}
}

// Stats returns the number of cache hits and misses so far.
func (d *CachedDigester) Stats() (hits, misses int64) {
	return d.hits.Load(), d.misses.Load()
}

var _ Digester = (*CachedDigester)(nil)
