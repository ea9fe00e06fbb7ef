// Package internal contains the implementation packages for pagewith.
//
// # Package Organization
//
//   - assets: In-memory or on-disk store for compiled files
//   - browser: Browser harness opening previews in a real engine
//   - build: Bundler port, esbuild adapter, compilation cache and pipeline
//   - config: Viper backed configuration with validation
//   - errors: Structured errors, compiler diagnostics and JSON responses
//   - logging: Structured logging on top of log/slog
//   - registry: Page contexts keyed by generated ids
//   - renderer: HTML shell for one preview
//   - routes: Reversible route groups over http.ServeMux
//   - server: Preview server session and its lifecycle
//   - urlutil: URL path joining
//   - version: Build identity
//   - watcher: Debounced file watching for live reload
//   - websocket: Live reload hub
//
// # Request Flow
//
// A request for /preview/{id} resolves the page in the registry, asks the
// build pipeline for the entry's assets (compiling only on a cache miss),
// and renders the HTML shell that references them under /assets/. Routes
// added by a scenario live in their own group and are removed with it.
package internal
