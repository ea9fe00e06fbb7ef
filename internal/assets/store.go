// Package assets holds the files emitted by the bundler and serves them over HTTP.
//
// The store is an afero filesystem: in memory by default, or a directory on
// disk when build output is written out for inspection.
package assets

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/conneroisu/pagewith/internal/errors"
	"github.com/conneroisu/pagewith/internal/logging"
)

// Store is a virtual file system for compiled assets.
type Store struct {
	fs     afero.Fs
	logger logging.Logger
}

// NewStore wraps an existing afero filesystem.
func NewStore(fsys afero.Fs, logger logging.Logger) *Store {
	return &Store{
		fs:     fsys,
		logger: logger.WithComponent("assets"),
	}
}

// NewMemoryStore returns a store that never touches disk.
func NewMemoryStore(logger logging.Logger) *Store {
	return NewStore(afero.NewMemMapFs(), logger)
}

// NewDiskStore returns a store rooted at dir, creating it when needed.
func NewDiskStore(dir string, logger logging.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir), logger), nil
}

// clean maps an asset name onto an absolute slash path inside the store.
func clean(name string) string {
	return path.Clean("/" + strings.TrimLeft(filepath.ToSlash(name), "/"))
}

// Write stores content at name, replacing any previous file.
func (s *Store) Write(name string, content []byte) error {
	p := clean(name)
	if p == "/" {
		return fmt.Errorf("invalid asset name %q", name)
	}

	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create asset directory: %w", err)
	}

	return afero.WriteFile(s.fs, p, content, 0o644)
}

// Read returns the content stored at name.
func (s *Store) Read(name string) ([]byte, error) {
	p := clean(name)

	content, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if isNotExist(err) {
			return nil, errors.AssetNotFound(strings.TrimPrefix(p, "/"))
		}
		return nil, fmt.Errorf("failed to read asset %s: %w", p, err)
	}

	return content, nil
}

// List returns every stored file name, sorted.
func (s *Store) List() ([]string, error) {
	var names []string

	err := afero.Walk(s.fs, "/", func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			names = append(names, strings.TrimPrefix(filepath.ToSlash(p), "/"))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || stderrors.Is(err, fs.ErrNotExist)
}

// ContentType returns the media type served for name.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".js", ".mjs":
		return "text/javascript; charset=utf-8"
	case ".map":
		return "application/json"
	}

	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}

	return "application/octet-stream"
}

// Handler serves stored assets below prefix. Unknown files answer 404. A read
// failure before any byte was sent answers 500; a failure mid-body aborts the
// connection.
func (s *Store) Handler(prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(r.URL.Path, prefix)
		if name == r.URL.Path && prefix != "" && prefix != "/" {
			errors.WriteJSON(w, errors.AssetNotFound(name))
			return
		}
		s.serve(r.Context(), w, r, name)
	})
}

func (s *Store) serve(ctx context.Context, w http.ResponseWriter, r *http.Request, name string) {
	p := clean(name)

	f, err := s.fs.Open(p)
	if err != nil {
		if isNotExist(err) {
			errors.WriteJSON(w, errors.AssetNotFound(strings.TrimPrefix(p, "/")))
			return
		}
		s.logger.Error(ctx, err, "Failed to open asset", "path", p)
		http.Error(w, "Failed to read asset", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		errors.WriteJSON(w, errors.AssetNotFound(strings.TrimPrefix(p, "/")))
		return
	}

	digest := xxhash.New()
	if _, err := io.Copy(digest, f); err != nil {
		s.logger.Error(ctx, err, "Failed to hash asset", "path", p)
		http.Error(w, "Failed to read asset", http.StatusInternalServerError)
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		s.logger.Error(ctx, err, "Failed to rewind asset", "path", p)
		http.Error(w, "Failed to read asset", http.StatusInternalServerError)
		return
	}

	etag := fmt.Sprintf(`"%016x"`, digest.Sum64())
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", ContentType(p))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	cw := &countingWriter{w: w}
	if _, err := io.Copy(cw, f); err != nil {
		s.logger.Error(ctx, err, "Failed to stream asset", "path", p, "bytes_written", cw.n)
		if cw.n == 0 {
			w.Header().Del("Content-Length")
			w.Header().Del("ETag")
			http.Error(w, "Failed to read asset", http.StatusInternalServerError)
			return
		}
		panic(http.ErrAbortHandler)
	}
}

type countingWriter struct {
	w http.ResponseWriter
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
