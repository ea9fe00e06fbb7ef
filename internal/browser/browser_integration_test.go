//go:build integration

package browser

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagewith/internal/config"
	"github.com/conneroisu/pagewith/internal/logging"
	"github.com/conneroisu/pagewith/internal/routes"
	"github.com/conneroisu/pagewith/internal/server"
)

type fixture struct {
	harness *Harness
	server  *server.PreviewServer
	dir     string
}

func setup(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Default()
	harness, err := Launch(cfg.Browser, logging.Discard())
	if err != nil {
		t.Skipf("browser unavailable: %v", err)
	}
	t.Cleanup(func() { _ = harness.Close() })

	srv, err := server.New(cfg, logging.Discard())
	require.NoError(t, err)
	_, err = srv.Listen(context.Background(), "127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown() })

	return &fixture{harness: harness, server: srv, dir: t.TempDir()}
}

func (f *fixture) example(t *testing.T, name, source string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func TestPageWithRendersExample(t *testing.T) {
	f := setup(t)
	example := f.example(t, "hello.js", `
const text = document.createElement("div");
text.id = "text";
text.textContent = "hello";
document.body.appendChild(text);
console.log("mounted");
`)

	scenario, err := f.harness.PageWith(context.Background(), f.server, PageWithOptions{Example: example})
	require.NoError(t, err)
	defer scenario.Cleanup()

	text, err := scenario.Page.TextContent("#text")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestPageWithInjectsEnv(t *testing.T) {
	f := setup(t)
	example := f.example(t, "env.js", `document.body.dataset.api = window.API_URL;`)

	scenario, err := f.harness.PageWith(context.Background(), f.server, PageWithOptions{
		Example: example,
		Env:     map[string]interface{}{"API_URL": "http://api.test"},
	})
	require.NoError(t, err)
	defer scenario.Cleanup()

	value, err := scenario.Page.Evaluate(`() => document.body.dataset.api`)
	require.NoError(t, err)
	assert.Equal(t, "http://api.test", value)
}

func TestScenarioRoutesAndRequest(t *testing.T) {
	f := setup(t)
	example := f.example(t, "app.js", `console.warn("booted");`)
	baseline := f.server.Routes()

	scenario, err := f.harness.PageWith(context.Background(), f.server, PageWithOptions{
		Example: example,
		Routes: func(mux routes.Mux) {
			mux.HandleFunc("GET /api/books", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `["dune"]`)
			})
		},
	})
	require.NoError(t, err)

	spy := SpyOnConsole(scenario.Page)
	_, err = scenario.Page.Evaluate(`() => console.error("late")`)
	require.NoError(t, err)

	resp, err := scenario.Request("/api/books", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status())
	body, err := resp.Text()
	require.NoError(t, err)
	assert.Equal(t, `["dune"]`, body)

	assert.Eventually(t, func() bool {
		return len(spy.Get("error")) == 1
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, baseline+1, f.server.Routes())
	assert.Equal(t, 1, f.server.Pages())

	require.NoError(t, scenario.Cleanup())

	assert.Eventually(t, func() bool {
		return f.server.Routes() == baseline && f.server.Pages() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPageWithContentBase(t *testing.T) {
	f := setup(t)
	public := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(public, "data.json"), []byte(`{"ok":true}`), 0o644))
	example := f.example(t, "fetch.js", `
fetch("/data.json").then((r) => r.json()).then((d) => { document.title = d.ok ? "ok" : "no"; });
`)

	scenario, err := f.harness.PageWith(context.Background(), f.server, PageWithOptions{
		Example:     example,
		ContentBase: public,
	})
	require.NoError(t, err)
	defer scenario.Cleanup()

	assert.Eventually(t, func() bool {
		title, err := scenario.Page.Title()
		return err == nil && title == "ok"
	}, 5*time.Second, 50*time.Millisecond)
}
