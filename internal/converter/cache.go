package converter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/otruyen/otruyen-api/internal/epub"
)

type cachedArchive struct {
	archive *epub.Archive
	size    int64
	modTime time.Time
}

// ArchiveCache keeps recently opened archives in memory. Entries are keyed
// by absolute path and dropped once the file's size or mtime changes.
// Cached archives are materialized, so no file handle stays open.
type ArchiveCache struct {
	entries *lru.Cache[string, cachedArchive]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewArchiveCache creates a cache holding at most size archives.
func NewArchiveCache(size int) (*ArchiveCache, error) {
	entries, err := lru.New[string, cachedArchive](size)
	if err != nil {
		return nil, fmt.Errorf("create archive cache: %w", err)
	}
	return &ArchiveCache{entries: entries}, nil
}

// Get returns the archive at name, opening it on a miss.
func (c *ArchiveCache) Get(name string) (*epub.Archive, error) {
	key, err := filepath.Abs(name)
	if err != nil {
		key = filepath.Clean(name)
	}

	info, err := os.Stat(key)
	if err != nil {
		c.entries.Remove(key)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", epub.ErrArchiveNotFound, name)
		}
		return nil, fmt.Errorf("%w: %w", epub.ErrArchiveCorrupt, err)
	}

	if e, ok := c.entries.Get(key); ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		c.hits.Add(1)
		return e.archive, nil
	}
	c.misses.Add(1)

	a, err := epub.OpenArchive(key)
	if err != nil {
		c.entries.Remove(key)
		return nil, err
	}
	if err := a.Materialize(); err != nil {
		a.Close()
		return nil, err
	}
	c.entries.Add(key, cachedArchive{archive: a, size: info.Size(), modTime: info.ModTime()})
	return a, nil
}

// Len returns the number of cached archives.
func (c *ArchiveCache) Len() int { return c.entries.Len() }

// Hits returns the number of lookups served from memory.
func (c *ArchiveCache) Hits() uint64 { return c.hits.Load() }

// Misses returns the number of lookups that opened the file.
func (c *ArchiveCache) Misses() uint64 { return c.misses.Load() }

// Purge drops every cached archive.
func (c *ArchiveCache) Purge() { c.entries.Purge() }
