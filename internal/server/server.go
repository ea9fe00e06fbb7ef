// Package server implements the preview server session: it turns on-disk
// entry modules into cached, isolated HTML previews and lets callers add and
// retract their own HTTP routes while it runs.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/pagewith/internal/assets"
	"github.com/conneroisu/pagewith/internal/build"
	"github.com/conneroisu/pagewith/internal/config"
	"github.com/conneroisu/pagewith/internal/errors"
	"github.com/conneroisu/pagewith/internal/logging"
	"github.com/conneroisu/pagewith/internal/registry"
	"github.com/conneroisu/pagewith/internal/routes"
	"github.com/conneroisu/pagewith/internal/urlutil"
	"github.com/conneroisu/pagewith/internal/watcher"
	"github.com/conneroisu/pagewith/internal/websocket"
)

// Paths served by every session.
const (
	PreviewPath = "/preview/"
	AssetsPath  = "/assets/"
	ReloadPath  = "/ws"
)

// PreviewServer owns one cache, registry, asset store, router and listener.
// Callers only hold page ids, URLs and route patches.
type PreviewServer struct {
	config   *config.Config
	logger   logging.Logger
	errors   *errors.ErrorHandler
	store    *assets.Store
	pipeline *build.Pipeline
	registry *registry.PageRegistry
	router   *routes.Router
	life     *Lifecycle
	handler  http.Handler

	liveReload bool
	hub        *websocket.Manager
	watcher    *watcher.FileWatcher
	watchOnce  sync.Once

	releaseOnce sync.Once
	ctx         context.Context
	cancel      context.CancelFunc
}

type options struct {
	router     func(routes.Mux)
	bundle     build.BundleConfig
	bundler    build.Bundler
	store      *assets.Store
	liveReload *bool
}

// Option customizes a PreviewServer.
type Option func(*options)

// WithRouter registers routes once, at construction, into their own
// permanent group.
func WithRouter(register func(routes.Mux)) Option {
	return func(o *options) {
		o.router = register
	}
}

// WithBundleConfig merges cfg over the bundle options derived from the
// configuration.
func WithBundleConfig(cfg build.BundleConfig) Option {
	return func(o *options) {
		o.bundle = cfg
	}
}

// WithBundler replaces the esbuild engine.
func WithBundler(bundler build.Bundler) Option {
	return func(o *options) {
		o.bundler = bundler
	}
}

// WithStore replaces the asset store selected by build.output.
func WithStore(store *assets.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithLiveReload overrides development.live_reload.
func WithLiveReload(enabled bool) Option {
	return func(o *options) {
		o.liveReload = &enabled
	}
}

// New creates a preview server session. A nil cfg uses the defaults.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) (*PreviewServer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = newStore(cfg.Build, logger)
		if err != nil {
			return nil, err
		}
	}

	bundler := o.bundler
	if bundler == nil {
		esb, err := build.NewEsbuildBundler(build.FromBuildConfig(cfg.Build).Merge(o.bundle), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create bundler: %w", err)
		}
		bundler = esb
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &PreviewServer{
		config:     cfg,
		logger:     logger.WithComponent("preview_server"),
		store:      store,
		pipeline:   build.NewPipeline(build.NewCompiler(bundler, store), build.NewCompilationCache(), logger),
		registry:   registry.NewPageRegistry(),
		router:     routes.NewRouter(logger),
		liveReload: cfg.Development.LiveReload,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.errors = errors.NewErrorHandler(s.logger)
	if o.liveReload != nil {
		s.liveReload = *o.liveReload
	}

	if s.liveReload {
		if err := s.setupLiveReload(logger); err != nil {
			cancel()
			return nil, err
		}
	}

	s.router.Base(s.registerRoutes)
	if o.router != nil {
		s.router.Base(o.router)
	}
	if dir := cfg.Preview.ContentBase; dir != "" {
		content, err := ContentHandler(dir)
		if err != nil {
			cancel()
			return nil, err
		}
		s.router.SetFallback(content)
	}

	s.handler = chain(s.router, s.withLogging, s.withRecovery)
	s.life = NewLifecycle(s.handler, logger)

	go s.trackPages(s.registry.Watch())

	return s, nil
}

// trackPages logs page registration and eviction until the session ends.
func (s *PreviewServer) trackPages(events <-chan registry.PageEvent) {
	defer s.registry.UnWatch(events)

	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			fields := []interface{}{"page_id", event.Page.ID, "entry", event.Page.EntryPath}
			if event.Type == registry.EventTypeRemoved {
				fields = append(fields, "open_ms", event.Timestamp.Sub(event.Page.CreatedAt).Milliseconds())
			}
			s.logger.Debug(s.ctx, "Page "+event.Type.String(), fields...)
		}
	}
}

func newStore(cfg config.BuildConfig, logger logging.Logger) (*assets.Store, error) {
	if cfg.Output == config.OutputDisk {
		store, err := assets.NewDiskStore(cfg.OutputDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create asset directory: %w", err)
		}
		return store, nil
	}

	return assets.NewMemoryStore(logger), nil
}

func (s *PreviewServer) setupLiveReload(logger logging.Logger) error {
	fw, err := watcher.NewFileWatcher(s.config.Development.Debounce, logger)
	if err != nil {
		return err
	}

	fw.AddFilter(watcher.SourceFilter)
	fw.AddFilter(watcher.NoNodeModulesFilter)
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddHandler(s.handleFileChange)

	s.watcher = fw
	s.hub = websocket.NewManager(nil, logger)

	s.pipeline.AddCallback(s.watchBuiltEntry)

	return nil
}

// watchBuiltEntry starts watching the directory of every entry that reached
// the compiler, including ones that failed to compile, so fixing them reloads.
func (s *PreviewServer) watchBuiltEntry(result build.BuildResult) {
	if result.CacheHit || stderrors.Is(result.Error, errors.ErrEntryNotFound) {
		return
	}
	if stderrors.Is(result.Error, context.Canceled) {
		return
	}

	if err := s.watcher.WatchFile(result.EntryPath); err != nil {
		s.logger.Warn(s.ctx, err, "Failed to watch entry", "entry", result.EntryPath)
	}
}

func (s *PreviewServer) handleFileChange(ctx context.Context, events []watcher.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.logger.Info(ctx, "Sources changed, reloading pages", "files", len(events), "first", events[0].Path)
	s.hub.Reload(events[0].Path)

	return nil
}

// Listen binds the server. Port 0 picks a free port.
func (s *PreviewServer) Listen(ctx context.Context, host string, port int) (ConnectionInfo, error) {
	info, err := s.life.Listen(ctx, host, port)
	if err != nil {
		return ConnectionInfo{}, err
	}

	if s.watcher != nil {
		s.watchOnce.Do(func() {
			if err := s.watcher.Start(s.ctx); err != nil {
				s.logger.Warn(ctx, err, "Failed to start file watcher")
			}
		})
	}

	return info, nil
}

// Close shuts the session down. A closed session cannot listen again.
func (s *PreviewServer) Close(ctx context.Context) error {
	if _, ok := s.life.Info(); !ok {
		return errors.NotRunning()
	}

	s.release(ctx)

	return s.life.Close(ctx)
}

// release stops live reload. Open sockets are hijacked connections that
// http.Server.Shutdown does not wait for, so they are closed first.
func (s *PreviewServer) release(ctx context.Context) {
	s.releaseOnce.Do(func() {
		if s.hub != nil {
			if err := s.hub.Shutdown(ctx); err != nil {
				s.logger.Warn(ctx, err, "Live reload connections did not close in time")
			}
		}

		s.cancel()
		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				s.logger.Warn(ctx, err, "Failed to stop file watcher")
			}
		}
	})
}

// Info returns the connection details while listening.
func (s *PreviewServer) Info() (ConnectionInfo, bool) {
	return s.life.Info()
}

// URL resolves p against the listening address.
func (s *PreviewServer) URL(p string) (string, error) {
	info, ok := s.life.Info()
	if !ok {
		return "", errors.NotRunning()
	}

	return urlutil.Join(info.URL, p), nil
}

// CreatePage registers entryPath for preview and returns the page and its
// URL. Before Listen the URL is relative to the server root. Empty options
// fall back to the preview section of the configuration.
func (s *PreviewServer) CreatePage(entryPath string, opts registry.PageOptions) (registry.PageContext, string) {
	if opts.Title == "" {
		opts.Title = s.config.Preview.Title
	}
	if opts.Markup == "" {
		opts.Markup = s.config.Preview.Markup
	}

	page := s.registry.Create(entryPath, opts)

	base := ""
	if info, ok := s.life.Info(); ok {
		base = info.URL
	}

	return page, urlutil.Join(base, PreviewPath, page.ID)
}

// RemovePage forgets a page. Unknown ids are ignored.
func (s *PreviewServer) RemovePage(id string) {
	s.registry.Remove(id)
}

// Compile builds entryPath through the cache and returns its asset files.
func (s *PreviewServer) Compile(ctx context.Context, entryPath string) ([]string, error) {
	return s.pipeline.Build(ctx, entryPath)
}

// Use adds a group of routes. Remove the returned patch to retract them.
func (s *PreviewServer) Use(register func(routes.Mux)) routes.Patch {
	return s.router.Apply(register)
}

// Pages returns the number of registered pages.
func (s *PreviewServer) Pages() int {
	return s.registry.Count()
}

// Routes returns the number of registered route patterns.
func (s *PreviewServer) Routes() int {
	return s.router.Len()
}

// Pipeline exposes the build pipeline for metrics and cache control.
func (s *PreviewServer) Pipeline() *build.Pipeline {
	return s.pipeline
}

// Store exposes the compiled asset store.
func (s *PreviewServer) Store() *assets.Store {
	return s.store
}

// ServeHTTP implements http.Handler.
func (s *PreviewServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ContentHandler serves static files from dir. The handler is a
// routes.Matcher that declines paths missing from dir.
func ContentHandler(dir string) (http.Handler, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.ConfigInvalid("invalid content base "+dir, err)
	}

	return newContentHandler(abs), nil
}

// shutdownTimeout bounds Close when callers pass a context without deadline.
const shutdownTimeout = 10 * time.Second

// Shutdown closes the session with a bounded timeout and ignores NotRunning.
func (s *PreviewServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.Close(ctx)
	s.release(ctx)
	if err != nil && !stderrors.Is(err, errors.ErrNotRunning) {
		return err
	}

	return nil
}
