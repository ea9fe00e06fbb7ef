package build

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagewith/internal/errors"
)

func writeEntry(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCompilationCacheLookupMissingEntry(t *testing.T) {
	cache := NewCompilationCache()

	_, _, ok, err := cache.Lookup(filepath.Join(t.TempDir(), "missing.js"))

	assert.False(t, ok)
	assert.ErrorIs(t, err, errors.ErrEntryNotFound)
}

func TestCompilationCacheLookupDirectory(t *testing.T) {
	cache := NewCompilationCache()

	_, _, _, err := cache.Lookup(t.TempDir())

	assert.ErrorIs(t, err, errors.ErrEntryNotFound)
}

func TestCompilationCacheHitAndInvalidation(t *testing.T) {
	dir := t.TempDir()
	entry := writeEntry(t, dir, "hello.js", "console.log('hello')")
	cache := NewCompilationCache()

	_, modTime, ok, err := cache.Lookup(entry)
	require.NoError(t, err)
	assert.False(t, ok, "first lookup is a miss")

	cache.Store(entry, modTime, []string{"hello.abc.js"})

	assets, _, ok, err := cache.Lookup(entry)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"hello.abc.js"}, assets)

	// touching without editing still invalidates
	later := modTime.Add(2 * time.Second)
	require.NoError(t, os.Chtimes(entry, later, later))

	_, newModTime, ok, err := cache.Lookup(entry)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, newModTime.Equal(later))

	// an older timestamp is also a mismatch
	earlier := modTime.Add(-time.Hour)
	cache.Store(entry, earlier, []string{"stale.js"})
	_, _, ok, err = cache.Lookup(entry)
	require.NoError(t, err)
	assert.False(t, ok)

	stats := cache.GetStats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(3), stats.Misses)
	assert.Equal(t, int64(2), stats.Sets)
	assert.InDelta(t, 25.0, stats.HitRate, 0.001)
}

func TestCompilationCacheNormalizesPaths(t *testing.T) {
	dir := t.TempDir()
	entry := writeEntry(t, dir, "hello.js", "")
	cache := NewCompilationCache()

	_, modTime, _, err := cache.Lookup(entry)
	require.NoError(t, err)
	cache.Store(entry, modTime, []string{"a.js"})

	dotted := filepath.Join(dir, ".", "sub", "..", "hello.js")
	assets, _, ok, err := cache.Lookup(dotted)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a.js"}, assets)
}

func TestCompilationCacheStoreOverwrites(t *testing.T) {
	dir := t.TempDir()
	entry := writeEntry(t, dir, "hello.js", "")
	cache := NewCompilationCache()
	_, modTime, _, err := cache.Lookup(entry)
	require.NoError(t, err)

	cache.Store(entry, modTime, []string{"one.js", "two.js"})
	cache.Store(entry, modTime, []string{"three.js"})

	got, ok := cache.Entry(entry)
	require.True(t, ok)
	assert.Equal(t, []string{"three.js"}, got.Assets)
	assert.Equal(t, 1, cache.Len())
}

func TestCompilationCacheReturnsCopies(t *testing.T) {
	dir := t.TempDir()
	entry := writeEntry(t, dir, "hello.js", "")
	cache := NewCompilationCache()
	_, modTime, _, err := cache.Lookup(entry)
	require.NoError(t, err)

	stored := []string{"a.js"}
	cache.Store(entry, modTime, stored)
	stored[0] = "mutated.js"

	assets, _, ok, err := cache.Lookup(entry)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.js", assets[0])
}

func TestCompilationCacheClear(t *testing.T) {
	dir := t.TempDir()
	entry := writeEntry(t, dir, "hello.js", "")
	cache := NewCompilationCache()
	_, modTime, _, err := cache.Lookup(entry)
	require.NoError(t, err)
	cache.Store(entry, modTime, []string{"a.js"})

	cache.Clear()

	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, CacheStats{}, cache.GetStats())
	_, _, ok, err := cache.Lookup(entry)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompilationCacheConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	entry := writeEntry(t, dir, "hello.js", "")
	cache := NewCompilationCache()
	_, modTime, _, err := cache.Lookup(entry)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			cache.Store(entry, modTime, []string{"a.js"})
		}()
		go func() {
			defer wg.Done()
			_, _, _, _ = cache.Lookup(entry)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, cache.Len())
}
