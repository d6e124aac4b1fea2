// Package imports resolves @path import directives between files and keeps a
// run-wide cache of each file's parsed import list.
package imports

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dotcommander/agentlint/internal/frontend"
	"github.com/dotcommander/agentlint/internal/logger"
	"github.com/dotcommander/agentlint/internal/safeio"
)

// Entry is the import list of one file. Err is set when the file could not be
// read; such entries have no imports and end the traversal at that node.
type Entry struct {
	Path    string
	Imports []frontend.Import
	Err     error
}

// Cache maps canonical paths to parsed import lists. Entries are written once
// and never replaced for the lifetime of a run.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	claimMu sync.Mutex
	claims  map[string]struct{}

	group   singleflight.Group
	maxSize int64

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates an empty cache. Files are read with the given size ceiling.
func NewCache(maxFileSize int64) *Cache {
	if maxFileSize <= 0 {
		maxFileSize = safeio.DefaultMaxFileSize
	}
	return &Cache{
		entries: make(map[string]*Entry),
		claims:  make(map[string]struct{}),
		maxSize: maxFileSize,
	}
}

// Get returns the cached entry for path.
func (c *Cache) Get(path string) (*Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	return e, ok
}

// Store inserts e unless an entry for the same path already exists, in which
// case the existing entry is kept and returned.
func (c *Cache) Store(e *Entry) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[e.Path]; ok {
		return existing
	}
	c.entries[e.Path] = e
	return e
}

// Seed records the imports of a file whose content the caller already parsed.
func (c *Cache) Seed(path string, imps []frontend.Import) *Entry {
	return c.Store(&Entry{Path: path, Imports: imps})
}

// Load returns the entry for path, reading and scanning the file on first
// use. Concurrent first loads of one path share a single read.
func (c *Cache) Load(path string) *Entry {
	if e, ok := c.Get(path); ok {
		c.hits.Add(1)
		return e
	}
	v, _, _ := c.group.Do(path, func() (any, error) {
		if e, ok := c.Get(path); ok {
			return e, nil
		}
		c.misses.Add(1)
		e := &Entry{Path: path}
		content, err := safeio.ReadString(path, c.maxSize)
		if err != nil {
			e.Err = err
			logger.L().Debug("import target unreadable", zap.String("path", path), zap.Error(err))
		} else {
			e.Imports = frontend.ParseMarkdownDocument(content).Markdown.Imports
		}
		return c.Store(e), nil
	})
	return v.(*Entry)
}

// Claim returns true the first time key is claimed in this run and false on
// every later call. Callers use it to report a shared finding once.
func (c *Cache) Claim(key string) bool {
	c.claimMu.Lock()
	defer c.claimMu.Unlock()
	if _, ok := c.claims[key]; ok {
		return false
	}
	c.claims[key] = struct{}{}
	return true
}

// Len is the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cache hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
