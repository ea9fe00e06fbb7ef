package build

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/pagewith/internal/logging"
)

// BuildResult represents the result of one Build call.
type BuildResult struct {
	EntryPath string
	Assets    []string
	Error     error
	Duration  time.Duration
	CacheHit  bool
}

// BuildCallback is called when a build completes
type BuildCallback func(result BuildResult)

// Pipeline serves builds from the compilation cache and compiles on a miss.
// Concurrent misses for the same entry share one compilation.
type Pipeline struct {
	compiler  *Compiler
	cache     *CompilationCache
	metrics   *BuildMetrics
	logger    logging.Logger
	inflight  singleflight.Group
	callbacks []BuildCallback
	mutex     sync.RWMutex
}

// NewPipeline creates a pipeline over compiler and cache.
func NewPipeline(compiler *Compiler, cache *CompilationCache, logger logging.Logger) *Pipeline {
	if cache == nil {
		cache = NewCompilationCache()
	}

	return &Pipeline{
		compiler: compiler,
		cache:    cache,
		metrics:  NewBuildMetrics(),
		logger:   logger.WithComponent("build_pipeline"),
	}
}

// AddCallback adds a callback to be called when builds complete
func (p *Pipeline) AddCallback(callback BuildCallback) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.callbacks = append(p.callbacks, callback)
}

// Build returns the assets for entryPath, compiling only when the cache has
// no entry matching the file's current modification time.
//
// A caller whose ctx is cancelled returns early with ctx.Err(). The shared
// compilation keeps running for any other caller waiting on the same entry.
func (p *Pipeline) Build(ctx context.Context, entryPath string) ([]string, error) {
	start := time.Now()

	assets, modTime, ok, err := p.cache.Lookup(entryPath)
	if err != nil {
		p.finish(BuildResult{EntryPath: entryPath, Error: err, Duration: time.Since(start)})
		return nil, err
	}
	if ok {
		p.logger.Debug(ctx, "Serving cached build", "entry", entryPath, "assets", len(assets))
		p.finish(BuildResult{EntryPath: entryPath, Assets: assets, CacheHit: true, Duration: time.Since(start)})
		return assets, nil
	}

	abs, _, err := ResolveEntry(entryPath)
	if err != nil {
		p.finish(BuildResult{EntryPath: entryPath, Error: err, Duration: time.Since(start)})
		return nil, err
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := p.inflight.DoChan(abs, func() (interface{}, error) {
		op := logging.StartOperation(p.logger, "compile")

		compiled, err := p.compiler.Compile(buildCtx, abs)
		if err != nil {
			op.EndWithError(buildCtx, err, "entry", abs)
			return nil, err
		}

		p.cache.Store(abs, modTime, compiled)
		op.End(buildCtx, "entry", abs, "assets", len(compiled))

		return compiled, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		result := BuildResult{EntryPath: abs, Error: res.Err, Duration: time.Since(start)}
		if res.Err == nil {
			result.Assets = slices.Clone(res.Val.([]string))
		}
		p.finish(result)

		return result.Assets, res.Err
	}
}

func (p *Pipeline) finish(result BuildResult) {
	p.metrics.RecordBuild(result)

	p.mutex.RLock()
	callbacks := slices.Clone(p.callbacks)
	p.mutex.RUnlock()

	for _, callback := range callbacks {
		callback(result)
	}
}

// GetMetrics returns the current build metrics
func (p *Pipeline) GetMetrics() MetricsSnapshot {
	return p.metrics.Snapshot()
}

// CacheStats returns the compilation cache statistics.
func (p *Pipeline) CacheStats() CacheStats {
	return p.cache.GetStats()
}

// CachedBuild returns the cached build of entryPath, if any, without
// counting a lookup.
func (p *Pipeline) CachedBuild(entryPath string) (CacheEntry, bool) {
	return p.cache.Entry(entryPath)
}

// ClearCache drops every cached build so the next request recompiles.
func (p *Pipeline) ClearCache() {
	p.cache.Clear()
	p.logger.Info(context.Background(), "Compilation cache cleared")
}
