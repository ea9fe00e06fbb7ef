package routes

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagewith/internal/logging"
)

func text(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	}
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Code, w.Body.String()
}

func newTestRouter() *Router {
	r := NewRouter(logging.Discard())
	r.Base(func(m Mux) {
		m.HandleFunc("GET /health", text("ok"))
	})
	return r
}

func TestPatchReversibility(t *testing.T) {
	r := newTestRouter()
	before := r.Len()

	patch := r.Apply(func(m Mux) {
		for i := 0; i < 5; i++ {
			m.HandleFunc(fmt.Sprintf("GET /custom/%d", i), text(fmt.Sprint(i)))
		}
	})

	assert.Equal(t, 5, patch.Count())
	assert.Equal(t, before+5, r.Len())

	code, body := get(t, r, "/custom/3")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "3", body)

	patch.Remove()

	assert.Equal(t, before, r.Len())
	code, _ = get(t, r, "/custom/3")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = get(t, r, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)
}

func TestPatchesRemovedOutOfOrder(t *testing.T) {
	r := newTestRouter()

	a := r.Apply(func(m Mux) { m.HandleFunc("GET /a", text("a")) })
	b := r.Apply(func(m Mux) {
		m.HandleFunc("GET /b", text("b"))
		m.HandleFunc("GET /b2", text("b2"))
	})
	c := r.Apply(func(m Mux) { m.HandleFunc("GET /c", text("c")) })

	// removing the first patch must not strip the later ones
	a.Remove()

	code, _ := get(t, r, "/a")
	assert.Equal(t, http.StatusNotFound, code)
	for _, path := range []string{"/b", "/b2", "/c"} {
		code, body := get(t, r, path)
		assert.Equal(t, http.StatusOK, code, path)
		assert.Equal(t, path[1:], body)
	}

	c.Remove()
	b.Remove()

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, r.Groups())
}

func TestPatchRemoveIsIdempotent(t *testing.T) {
	r := newTestRouter()
	a := r.Apply(func(m Mux) { m.HandleFunc("GET /a", text("a")) })
	b := r.Apply(func(m Mux) { m.HandleFunc("GET /b", text("b")) })

	a.Remove()
	a.Remove()
	Patch{}.Remove()

	code, _ := get(t, r, "/b")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, r.Len())
	b.Remove()
}

func TestFirstGroupWins(t *testing.T) {
	r := newTestRouter()

	first := r.Apply(func(m Mux) { m.HandleFunc("GET /shared", text("first")) })
	r.Apply(func(m Mux) { m.HandleFunc("GET /shared", text("second")) })

	_, body := get(t, r, "/shared")
	assert.Equal(t, "first", body)

	first.Remove()

	_, body = get(t, r, "/shared")
	assert.Equal(t, "second", body)
}

func TestPathValues(t *testing.T) {
	r := newTestRouter()
	r.Apply(func(m Mux) {
		m.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, req *http.Request) {
			_, _ = io.WriteString(w, req.PathValue("id"))
		})
	})

	_, body := get(t, r, "/users/42")
	assert.Equal(t, "42", body)
}

func TestMethodMismatchFallsThrough(t *testing.T) {
	r := newTestRouter()
	r.Apply(func(m Mux) { m.HandleFunc("POST /echo", text("posted")) })
	r.Apply(func(m Mux) { m.HandleFunc("GET /echo", text("got")) })

	_, body := get(t, r, "/echo")
	assert.Equal(t, "got", body)
}

type onlyPaths struct {
	http.Handler
	paths map[string]bool
}

func (o onlyPaths) Matches(req *http.Request) bool {
	return o.paths[req.URL.Path]
}

func TestDecliningMatcherFallsThrough(t *testing.T) {
	r := newTestRouter()
	r.Apply(func(m Mux) {
		m.Handle("GET /", onlyPaths{Handler: text("static"), paths: map[string]bool{"/index.html": true}})
	})
	r.Apply(func(m Mux) {
		m.HandleFunc("GET /api/user", text("user"))
	})

	code, body := get(t, r, "/index.html")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "static", body)

	code, body = get(t, r, "/api/user")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "user", body)

	code, _ = get(t, r, "/other")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestFallback(t *testing.T) {
	r := newTestRouter()

	code, _ := get(t, r, "/index.html")
	assert.Equal(t, http.StatusNotFound, code)

	r.SetFallback(text("static"))
	code, body := get(t, r, "/index.html")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "static", body)

	// groups take precedence over the fallback
	_, body = get(t, r, "/health")
	assert.Equal(t, "ok", body)

	r.SetFallback(nil)
	code, _ = get(t, r, "/index.html")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDuplicatePatternInOneGroupPanics(t *testing.T) {
	r := newTestRouter()

	assert.Panics(t, func() {
		r.Apply(func(m Mux) {
			m.HandleFunc("GET /dup", text("1"))
			m.HandleFunc("GET /dup", text("2"))
		})
	})
	assert.Equal(t, 1, r.Len())
}

func TestConcurrentApplyAndServe(t *testing.T) {
	r := newTestRouter()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/p/%d", i)
			patch := r.Apply(func(m Mux) { m.HandleFunc("GET "+path, text(path)) })
			code, body := get(t, r, path)
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, path, body)
			patch.Remove()
		}(i)
		go func() {
			defer wg.Done()
			code, _ := get(t, r, "/health")
			assert.Equal(t, http.StatusOK, code)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, r.Len())
}
