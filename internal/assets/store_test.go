package assets

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagewith/internal/errors"
	"github.com/conneroisu/pagewith/internal/logging"
)

func TestStoreWriteRead(t *testing.T) {
	store := NewMemoryStore(logging.Discard())

	require.NoError(t, store.Write("main.abc.js", []byte("console.log(1)")))
	require.NoError(t, store.Write("/chunks/vendor.js", []byte("vendor")))

	content, err := store.Read("main.abc.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(content))

	content, err = store.Read("chunks/vendor.js")
	require.NoError(t, err)
	assert.Equal(t, "vendor", string(content))

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"chunks/vendor.js", "main.abc.js"}, names)
}

func TestStoreOverwrite(t *testing.T) {
	store := NewMemoryStore(logging.Discard())

	require.NoError(t, store.Write("main.js", []byte("a much longer first version")))
	require.NoError(t, store.Write("main.js", []byte("short")))

	content, err := store.Read("main.js")
	require.NoError(t, err)
	assert.Equal(t, "short", string(content))
}

func TestStoreReadMissing(t *testing.T) {
	store := NewMemoryStore(logging.Discard())

	_, err := store.Read("missing.js")

	assert.ErrorIs(t, err, errors.ErrAssetNotFound)
	assert.True(t, errors.IsNotFound(err))
}

func TestStoreWriteRejectsRoot(t *testing.T) {
	store := NewMemoryStore(logging.Discard())
	assert.Error(t, store.Write("/", []byte("x")))
}

func TestStoreTraversalStaysInside(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	store, err := NewDiskStore(outDir, logging.Discard())
	require.NoError(t, err)

	require.NoError(t, store.Write("../../escape.js", []byte("x")))

	_, err = os.Stat(filepath.Join(dir, "escape.js"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(outDir, "escape.js"))
	assert.NoError(t, err)
}

func TestDiskStoreWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dist")
	store, err := NewDiskStore(dir, logging.Discard())
	require.NoError(t, err)

	require.NoError(t, store.Write("hello.js", []byte("hello")))

	content, err := os.ReadFile(filepath.Join(dir, "hello.js"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"main.js":      "text/javascript; charset=utf-8",
		"main.js.map":  "application/json",
		"style.css":    "text/css; charset=utf-8",
		"data.json":    "application/json",
		"blob.unknown": "application/octet-stream",
	}

	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, ContentType(name))
		})
	}
}

func TestHandler(t *testing.T) {
	store := NewMemoryStore(logging.Discard())
	require.NoError(t, store.Write("main.js", []byte("console.log('hi')")))
	handler := store.Handler("/assets/")

	t.Run("serves stored asset", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/main.js", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "console.log('hi')", w.Body.String())
		assert.Equal(t, "text/javascript; charset=utf-8", w.Header().Get("Content-Type"))
		assert.NotEmpty(t, w.Header().Get("ETag"))
		assert.Equal(t, "17", w.Header().Get("Content-Length"))
	})

	t.Run("conditional request", func(t *testing.T) {
		first := httptest.NewRecorder()
		handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/assets/main.js", nil))

		req := httptest.NewRequest(http.MethodGet, "/assets/main.js", nil)
		req.Header.Set("If-None-Match", first.Header().Get("ETag"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotModified, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("head request", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodHead, "/assets/main.js", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("missing asset", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/nope.js", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), errors.ErrCodeAssetNotFound)
	})

	t.Run("directory is not an asset", func(t *testing.T) {
		require.NoError(t, store.Write("chunks/a.js", []byte("a")))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/chunks", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/assets/main.js", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

type failingFs struct {
	afero.Fs
}

func (f failingFs) Open(name string) (afero.File, error) {
	file, err := f.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	return failingFile{File: file}, nil
}

type failingFile struct {
	afero.File
}

func (failingFile) Read([]byte) (int, error) {
	return 0, fmt.Errorf("device error")
}

func TestHandlerStreamFailure(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/main.js", []byte("x"), 0o644))
	store := NewStore(failingFs{Fs: mem}, logging.Discard())

	w := httptest.NewRecorder()
	store.Handler("/assets/").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/main.js", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
