package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/conneroisu/pagewith/internal/logging"
)

const pauseNotice = `() => console.warn('[pagewith] Stopped test execution!\nCall "window.resume()" on this page to continue running the test.')`

const pauseScript = `() => new Promise((resolve) => { window.resume = () => resolve(); })`

// Debug blocks until window.resume() is called in page. Use it with a
// headed browser to inspect a scenario by hand.
func Debug(ctx context.Context, page playwright.Page, logger logging.Logger) error {
	logger.Info(ctx, "Stopped test execution, call window.resume() in the page to continue", "url", page.URL())

	if _, err := page.Evaluate(pauseNotice); err != nil {
		return fmt.Errorf("failed to pause page: %w", err)
	}
	if _, err := page.Evaluate(pauseScript); err != nil {
		return fmt.Errorf("page closed while paused: %w", err)
	}

	logger.Info(ctx, "Resumed test execution")

	return nil
}
