package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/playwright-community/playwright-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/pagewith/internal/browser"
	"github.com/conneroisu/pagewith/internal/server"
)

var openFlagKeys = map[string]string{
	"markup":       "preview.markup",
	"title":        "preview.title",
	"content-base": "preview.content_base",
	"devtools":     "browser.devtools",
}

var openCmd = &cobra.Command{
	Use:     "open <entry>",
	Aliases: []string{"o"},
	Short:   "Open a usage example in a headed browser",
	Long: `Compile a usage example, open it in a visible Chromium window and keep the
page open until the window is closed or the command is interrupted.

Examples:
  pagewith open examples/button.js
  pagewith open examples/form.tsx --devtools --pause`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)

	openCmd.Flags().String("markup", "", "HTML placed in the page body, literal or a file path")
	openCmd.Flags().String("title", "", "Page title")
	openCmd.Flags().String("content-base", "", "Directory served for paths no route handles")
	AddFlagValidation(openCmd.Flags(), "content-base", ValidatePathExists)
	openCmd.Flags().Bool("devtools", false, "Open devtools for the page")
	openCmd.Flags().Bool("pause", false, "Pause until window.resume() is called in the page")
}

func runOpen(cmd *cobra.Command, args []string) error {
	bindFlags(cmd.Flags(), openFlagKeys, viper.Set)

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Browser.Headless = false

	// The content base is attached to the page instead of the whole server.
	contentBase := cfg.Preview.ContentBase
	cfg.Preview.ContentBase = ""

	srv, err := server.New(cfg, logger, server.WithLiveReload(false))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := srv.Listen(ctx, cfg.Server.Host, cfg.Server.Port); err != nil {
		return err
	}

	harness, err := browser.Launch(cfg.Browser, logger)
	if err != nil {
		return err
	}
	defer harness.Close()

	scenario, err := harness.PageWith(ctx, srv, browser.PageWithOptions{
		Example:     args[0],
		Markup:      cfg.Preview.Markup,
		Title:       cfg.Preview.Title,
		ContentBase: contentBase,
	})
	if err != nil {
		return err
	}
	defer scenario.Cleanup()

	fmt.Fprintf(cmd.OutOrStdout(), "Opened %s at %s\n", args[0], scenario.Origin)

	closed := make(chan struct{})
	scenario.Page.OnClose(func(playwright.Page) {
		close(closed)
	})

	if pause, _ := cmd.Flags().GetBool("pause"); pause {
		if err := browser.Debug(ctx, scenario.Page, logger); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
	case <-closed:
	}

	return nil
}
