package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/conneroisu/pagewith/internal/assets"
	"github.com/conneroisu/pagewith/internal/errors"
	"github.com/conneroisu/pagewith/internal/renderer"
	"github.com/conneroisu/pagewith/internal/routes"
	"github.com/conneroisu/pagewith/internal/urlutil"
	"github.com/conneroisu/pagewith/internal/version"
)

func (s *PreviewServer) registerRoutes(mux routes.Mux) {
	mux.HandleFunc("GET "+PreviewPath+"{id}", s.handlePreview)
	mux.Handle(AssetsPath, s.store.Handler(AssetsPath))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/build/metrics", s.handleBuildMetrics)
	mux.HandleFunc("/api/build/cache", s.handleBuildCache)
	mux.HandleFunc("GET /api/pages", s.handlePages)
	mux.HandleFunc("GET /api/assets", s.handleAssets)

	if s.hub != nil {
		mux.Handle(ReloadPath, s.hub)
	}
}

// handlePreview renders the page registered under the id path segment.
func (s *PreviewServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	page, err := s.registry.Resolve(r.PathValue("id"))
	if err != nil {
		errors.WriteJSON(w, err)
		return
	}

	assetFiles, err := s.pipeline.Build(r.Context(), page.EntryPath)
	if err != nil {
		if stderrors.Is(err, context.Canceled) {
			return
		}
		s.errors.Handle(r.Context(), err)
		errors.WriteJSON(w, err)
		return
	}

	html, err := renderer.Render(assetFiles, renderer.Options{
		Title:       page.Options.Title,
		Markup:      page.Options.Markup,
		AssetPrefix: AssetsPath,
		LiveReload:  s.hub != nil,
		ReloadPath:  ReloadPath,
	})
	if err != nil {
		err = errors.Internal("failed to render preview", err).WithContext("page_id", page.ID)
		s.errors.Handle(r.Context(), err)
		errors.WriteJSON(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, html)
}

// handleHealth returns the server health status for health checks
func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]interface{}{
		"registry": map[string]interface{}{"status": "healthy", "pages": s.registry.Count()},
		"routes":   map[string]interface{}{"status": "healthy", "patterns": s.router.Len(), "groups": s.router.Groups()},
		"build":    map[string]interface{}{"status": "healthy", "cache_entries": s.pipeline.CacheStats().Entries},
	}
	if s.hub != nil {
		checks["live_reload"] = map[string]interface{}{"status": "healthy", "clients": s.hub.GetConnectedClients()}
	}

	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"checks":    checks,
	})
}

// handleBuildMetrics returns detailed build metrics
func (s *PreviewServer) handleBuildMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"build_metrics": s.pipeline.GetMetrics(),
		"cache_metrics": s.pipeline.CacheStats(),
		"timestamp":     time.Now().Unix(),
	})
}

// handleBuildCache manages the build cache
func (s *PreviewServer) handleBuildCache(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"cache_metrics": s.pipeline.CacheStats(),
			"timestamp":     time.Now().Unix(),
		})

	case http.MethodDelete:
		s.pipeline.ClearCache()
		s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"message":   "Cache cleared successfully",
			"timestamp": time.Now().Unix(),
		})

	default:
		w.Header().Set("Allow", "GET, DELETE")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// pageStatus is one entry of the /api/pages listing.
type pageStatus struct {
	ID        string    `json:"id"`
	Entry     string    `json:"entry"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	Built     bool      `json:"built"`
	BuiltFrom time.Time `json:"built_from,omitempty"`
	Assets    []string  `json:"assets,omitempty"`
}

// handlePages lists registered pages, oldest first, with their cached build.
func (s *PreviewServer) handlePages(w http.ResponseWriter, r *http.Request) {
	pages := s.registry.GetAll()
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].CreatedAt.Equal(pages[j].CreatedAt) {
			return pages[i].ID < pages[j].ID
		}
		return pages[i].CreatedAt.Before(pages[j].CreatedAt)
	})

	list := make([]pageStatus, 0, len(pages))
	for _, page := range pages {
		status := pageStatus{
			ID:        page.ID,
			Entry:     page.EntryPath,
			Title:     page.Options.Title,
			URL:       urlutil.Join(PreviewPath, page.ID),
			CreatedAt: page.CreatedAt,
		}
		if entry, ok := s.pipeline.CachedBuild(page.EntryPath); ok {
			status.Built = true
			status.BuiltFrom = entry.LastModified
			status.Assets = entry.Assets
		}
		list = append(list, status)
	}

	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"pages": list,
		"count": len(list),
	})
}

// handleAssets lists every file in the asset store.
func (s *PreviewServer) handleAssets(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List()
	if err != nil {
		err = errors.Internal("failed to list assets", err)
		s.errors.Handle(r.Context(), err)
		errors.WriteJSON(w, err)
		return
	}

	type assetInfo struct {
		Name        string `json:"name"`
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
	}
	list := make([]assetInfo, 0, len(names))
	for _, name := range names {
		list = append(list, assetInfo{
			Name:        name,
			URL:         urlutil.Join(AssetsPath, name),
			ContentType: assets.ContentType(name),
		})
	}

	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"assets": list,
		"count":  len(list),
	})
}

func (s *PreviewServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode response", "path", r.URL.Path)
	}
}
