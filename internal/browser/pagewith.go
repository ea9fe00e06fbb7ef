package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/pagewith/internal/errors"
	"github.com/conneroisu/pagewith/internal/registry"
	"github.com/conneroisu/pagewith/internal/routes"
	"github.com/conneroisu/pagewith/internal/server"
)

// PreviewServer is the part of a preview server session a scenario uses.
type PreviewServer interface {
	CreatePage(entryPath string, opts registry.PageOptions) (registry.PageContext, string)
	RemovePage(id string)
	Compile(ctx context.Context, entryPath string) ([]string, error)
	Use(register func(routes.Mux)) routes.Patch
	URL(p string) (string, error)
}

// PageWithOptions describes one scenario.
type PageWithOptions struct {
	// Example is the usage example entry module. Relative paths resolve
	// against the working directory.
	Example string
	// Markup is literal HTML or a path to an HTML file placed in the body.
	Markup string
	Title  string
	// ContentBase serves static files from this directory while the page
	// is open.
	ContentBase string
	// Routes registers handlers that live as long as the page.
	Routes func(routes.Mux)
	// Env is assigned onto window before any page script runs.
	Env map[string]interface{}
}

// Scenario is an open preview page.
type Scenario struct {
	Page    playwright.Page
	Context playwright.BrowserContext
	// Origin is the preview URL the page navigated to.
	Origin string
	PageID string

	server  PreviewServer
	patch   routes.Patch
	release sync.Once
}

// ResolveExample returns the absolute path of example, or EntryNotFound when
// it is missing or not a regular file.
func ResolveExample(example string) (string, error) {
	abs, err := filepath.Abs(example)
	if err != nil {
		return "", errors.EntryNotFound(example, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.EntryNotFound(abs, err)
	}
	if !info.Mode().IsRegular() {
		return "", errors.EntryNotFound(abs, fmt.Errorf("%s is not a regular file", abs))
	}

	return abs, nil
}

// PageWith opens a new page showing the given usage example.
//
// The example is compiled while a new browser context is created. The page
// then navigates to its preview URL and waits for the configured load state.
func (h *Harness) PageWith(ctx context.Context, srv PreviewServer, opts PageWithOptions) (*Scenario, error) {
	entry, err := ResolveExample(opts.Example)
	if err != nil {
		return nil, err
	}

	if _, err := srv.URL("/"); err != nil {
		return nil, fmt.Errorf("preview server must be listening: %w", err)
	}

	var content http.Handler
	if opts.ContentBase != "" {
		content, err = server.ContentHandler(opts.ContentBase)
		if err != nil {
			return nil, err
		}
	}

	page, url := srv.CreatePage(entry, registry.PageOptions{Title: opts.Title, Markup: opts.Markup})
	scenario := &Scenario{Origin: url, PageID: page.ID, server: srv}

	if opts.Routes != nil || content != nil {
		scenario.patch = srv.Use(func(mux routes.Mux) {
			if opts.Routes != nil {
				opts.Routes(mux)
			}
			if content != nil {
				mux.Handle("GET /", content)
			}
		})
	}

	h.logger.Debug(ctx, "Opening scenario", "example", entry, "page_id", page.ID, "url", url)

	var bctx playwright.BrowserContext
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := srv.Compile(gctx, entry)
		return err
	})
	g.Go(func() error {
		var err error
		bctx, err = h.browser.NewContext()
		if err != nil {
			return fmt.Errorf("failed to create browser context: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if bctx != nil {
			_ = bctx.Close()
		}
		scenario.unregister()
		return nil, err
	}
	scenario.Context = bctx

	if err := h.openPage(ctx, scenario, opts.Env); err != nil {
		_ = bctx.Close()
		scenario.unregister()
		return nil, err
	}

	return scenario, nil
}

func (h *Harness) openPage(ctx context.Context, scenario *Scenario, env map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := scenario.Context.NewPage()
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	scenario.Page = p

	if h.config.Timeout > 0 {
		p.SetDefaultTimeout(float64(h.config.Timeout.Milliseconds()))
	}

	p.OnClose(func(playwright.Page) {
		scenario.unregister()
	})

	if len(env) > 0 {
		script, err := EnvScript(env)
		if err != nil {
			return err
		}
		if err := p.AddInitScript(playwright.Script{Content: playwright.String(script)}); err != nil {
			return fmt.Errorf("failed to inject environment: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	waitUntil := playwright.WaitUntilState(h.waitUntil())
	if _, err := p.Goto(scenario.Origin, playwright.PageGotoOptions{WaitUntil: &waitUntil}); err != nil {
		return fmt.Errorf("failed to open %s: %w", scenario.Origin, err)
	}

	return nil
}

func (h *Harness) waitUntil() string {
	if h.config.WaitUntil == "" {
		return "networkidle"
	}
	return h.config.WaitUntil
}

// unregister removes the scenario's routes and page. It runs once.
func (s *Scenario) unregister() {
	s.release.Do(func() {
		s.patch.Remove()
		s.server.RemovePage(s.PageID)
	})
}

// Cleanup closes the browser context, which closes the page and retracts the
// scenario's routes.
func (s *Scenario) Cleanup() error {
	defer s.unregister()

	if s.Context == nil {
		return nil
	}

	return s.Context.Close()
}

// EnvScript renders env as a script assigning each key onto window, in key
// order.
func EnvScript(env map[string]interface{}) (string, error) {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		name, err := json.Marshal(key)
		if err != nil {
			return "", fmt.Errorf("invalid environment key %q: %w", key, err)
		}
		value, err := json.Marshal(env[key])
		if err != nil {
			return "", fmt.Errorf("failed to encode environment value %q: %w", key, err)
		}
		fmt.Fprintf(&b, "window[%s] = %s;\n", name, value)
	}

	return b.String(), nil
}
