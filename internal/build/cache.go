// Package build turns entry modules into bundled assets: a modification-time
// keyed compilation cache, the bundler port with its esbuild adapter, and the
// pipeline that ties them together.
package build

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/pagewith/internal/errors"
)

// CacheEntry is the most recent successful build of one entry module.
type CacheEntry struct {
	EntryPath    string
	LastModified time.Time
	Assets       []string
}

// CompilationCache maps absolute entry paths to their last build output.
// An entry is only served while the file's modification time equals the
// stored one exactly.
type CompilationCache struct {
	entries map[string]*CacheEntry
	mutex   sync.RWMutex
	// Statistics tracking (atomic for thread safety)
	hits   int64
	misses int64
	sets   int64
}

// CacheStats is a point-in-time view of cache activity.
type CacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	HitRate float64 `json:"hit_rate"`
}

// NewCompilationCache creates an empty cache.
func NewCompilationCache() *CompilationCache {
	return &CompilationCache{
		entries: make(map[string]*CacheEntry),
	}
}

// ResolveEntry returns the absolute, cleaned form of path together with its
// current file info. A missing file yields an EntryNotFound error.
func ResolveEntry(path string) (string, os.FileInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, errors.EntryNotFound(path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, errors.EntryNotFound(abs, err)
	}
	if info.IsDir() {
		return "", nil, errors.EntryNotFound(abs, nil).WithContext("reason", "is a directory")
	}

	return abs, info, nil
}

// Lookup resolves entryPath and reports the cached assets when the stored
// modification time still matches the file. The current modification time is
// returned either way so that a caller can Store the result of a fresh build.
func (c *CompilationCache) Lookup(entryPath string) (assets []string, modTime time.Time, ok bool, err error) {
	abs, info, err := ResolveEntry(entryPath)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	modTime = info.ModTime()

	c.mutex.RLock()
	entry, exists := c.entries[abs]
	c.mutex.RUnlock()

	if !exists || !entry.LastModified.Equal(modTime) {
		atomic.AddInt64(&c.misses, 1)
		return nil, modTime, false, nil
	}

	atomic.AddInt64(&c.hits, 1)
	return slices.Clone(entry.Assets), modTime, true, nil
}

// Store records assets for entryPath, replacing any earlier entry.
func (c *CompilationCache) Store(entryPath string, modTime time.Time, assets []string) {
	abs, err := filepath.Abs(entryPath)
	if err != nil {
		abs = filepath.Clean(entryPath)
	}

	entry := &CacheEntry{
		EntryPath:    abs,
		LastModified: modTime,
		Assets:       slices.Clone(assets),
	}

	c.mutex.Lock()
	c.entries[abs] = entry
	c.mutex.Unlock()

	atomic.AddInt64(&c.sets, 1)
}

// Entry returns a copy of the cached entry for entryPath without touching the
// hit and miss counters.
func (c *CompilationCache) Entry(entryPath string) (CacheEntry, bool) {
	abs, err := filepath.Abs(entryPath)
	if err != nil {
		return CacheEntry{}, false
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, ok := c.entries[abs]
	if !ok {
		return CacheEntry{}, false
	}

	return CacheEntry{
		EntryPath:    entry.EntryPath,
		LastModified: entry.LastModified,
		Assets:       slices.Clone(entry.Assets),
	}, true
}

// Clear drops every entry and resets statistics.
func (c *CompilationCache) Clear() {
	c.mutex.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mutex.Unlock()

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.sets, 0)
}

// Len returns the number of cached entries.
func (c *CompilationCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.entries)
}

// GetStats returns cache statistics
func (c *CompilationCache) GetStats() CacheStats {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)

	stats := CacheStats{
		Entries: c.Len(),
		Hits:    hits,
		Misses:  misses,
		Sets:    atomic.LoadInt64(&c.sets),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total) * 100.0
	}

	return stats
}
