package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/pagewith/internal/registry"
	"github.com/conneroisu/pagewith/internal/server"
)

var serveFlagKeys = map[string]string{
	"port":         "server.port",
	"host":         "server.host",
	"title":        "preview.title",
	"markup":       "preview.markup",
	"content-base": "preview.content_base",
	"live-reload":  "development.live_reload",
}

var serveCmd = &cobra.Command{
	Use:     "serve <entry>",
	Aliases: []string{"s"},
	Short:   "Serve a usage example with live reload",
	Long: `Start a preview server for one usage example and print its preview URL.
The example is compiled on first request and recompiled whenever it changes.

Examples:
  pagewith serve examples/button.js
  pagewith serve examples/form.tsx --port 8080 --markup fixtures/form.html
  pagewith serve examples/list.js --content-base public --live-reload=false`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "Port to serve on (0 picks a free port)")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().String("title", "", "Page title")
	serveCmd.Flags().String("markup", "", "HTML placed in the page body, literal or a file path")
	serveCmd.Flags().String("content-base", "", "Directory served for paths no route handles")
	serveCmd.Flags().Bool("live-reload", true, "Reload open pages when sources change")

	AddFlagValidation(serveCmd.Flags(), "port", ValidatePort)
	AddFlagValidation(serveCmd.Flags(), "content-base", ValidatePathExists)
}

func runServe(cmd *cobra.Command, args []string) error {
	bindFlags(cmd.Flags(), serveFlagKeys, viper.Set)
	if !cmd.Flags().Changed("live-reload") && !viper.IsSet("development.live_reload") {
		viper.Set("development.live_reload", true)
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.TargetFiles = args

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := srv.Listen(ctx, cfg.Server.Host, cfg.Server.Port); err != nil {
		return err
	}

	page, url := srv.CreatePage(args[0], registry.PageOptions{})

	// Compile eagerly so errors show up before the first page load.
	if _, err := srv.Compile(ctx, page.EntryPath); err != nil {
		logger.Warn(ctx, err, "Initial build failed", "entry", page.EntryPath)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Previewing %s at %s\n", args[0], url)

	<-ctx.Done()
	fmt.Fprintln(cmd.OutOrStdout(), "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Close(shutdownCtx)
}
