// Package browser drives a real browser engine against a preview server.
//
// A Harness owns one playwright driver and one launched Chromium. PageWith
// registers a usage example with the preview server, opens it in a fresh
// browser context and hands back the live page. Closing the page retracts
// everything the scenario registered.
package browser

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/conneroisu/pagewith/internal/config"
	"github.com/conneroisu/pagewith/internal/logging"
)

// Harness is a launched browser shared by many scenarios.
type Harness struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	config  config.BrowserConfig
	logger  logging.Logger
	mu      sync.Mutex
	closed  bool
}

// LaunchOptions maps the browser configuration onto playwright launch options.
// Chromium always runs with --no-sandbox. Devtools forces a headed browser.
func LaunchOptions(cfg config.BrowserConfig) playwright.BrowserTypeLaunchOptions {
	headless := cfg.Headless && !cfg.Devtools

	args := []string{"--no-sandbox"}
	if cfg.Devtools {
		args = append(args, "--auto-open-devtools-for-tabs")
	}
	for _, arg := range cfg.Args {
		if arg != "--no-sandbox" {
			args = append(args, arg)
		}
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: &headless,
		Args:     args,
	}
	if cfg.Timeout > 0 {
		opts.Timeout = playwright.Float(float64(cfg.Timeout.Milliseconds()))
	}

	return opts
}

// Launch starts the playwright driver and a Chromium instance. The driver
// and browser binaries are installed on first use.
func Launch(cfg config.BrowserConfig, logger logging.Logger) (*Harness, error) {
	logger = logger.WithComponent("browser")

	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(LaunchOptions(cfg))
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Harness{
		pw:      pw,
		browser: browser,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Browser returns the launched browser.
func (h *Harness) Browser() playwright.Browser {
	return h.browser
}

// Close closes the browser and stops the driver. It is safe to call more
// than once.
func (h *Harness) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	var firstErr error
	if err := h.browser.Close(); err != nil {
		firstErr = fmt.Errorf("failed to close browser: %w", err)
	}
	if err := h.pw.Stop(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to stop playwright: %w", err)
	}

	return firstErr
}
