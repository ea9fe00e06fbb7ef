package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pagewith/internal/assets"
	"github.com/conneroisu/pagewith/internal/errors"
	"github.com/conneroisu/pagewith/internal/server"
)

var buildFormat string

var buildFlagKeys = map[string]string{
	"output-dir": "build.output_dir",
	"minify":     "build.minify",
	"sourcemap":  "build.sourcemap",
	"target":     "build.target",
}

var buildCmd = &cobra.Command{
	Use:     "build <entry>",
	Aliases: []string{"b"},
	Short:   "Compile a usage example and list its assets",
	Long: `Compile one usage example with the configured bundler options and list the
emitted assets. With --output-dir the assets are also written to disk.

Examples:
  pagewith build examples/button.js
  pagewith build examples/button.js -f json
  pagewith build examples/app.tsx --minify --output-dir dist -f yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildFormat, "format", "f", "table", "Output format (table, json, yaml)")
	buildCmd.Flags().String("output-dir", "", "Write assets to this directory")
	buildCmd.Flags().Bool("minify", false, "Minify the bundle")
	buildCmd.Flags().Bool("sourcemap", false, "Emit a linked source map")
	buildCmd.Flags().String("target", "", "Language target (es2015 ... es2022, esnext)")
}

// AssetReport describes one emitted asset.
type AssetReport struct {
	Name        string `json:"name" yaml:"name"`
	Size        int    `json:"size" yaml:"size"`
	ContentType string `json:"content_type" yaml:"content_type"`
}

// BuildReport is the output of the build command.
type BuildReport struct {
	Entry    string        `json:"entry" yaml:"entry"`
	Duration string        `json:"duration" yaml:"duration"`
	Assets   []AssetReport `json:"assets" yaml:"assets"`
}

func runBuild(cmd *cobra.Command, args []string) error {
	if err := ValidateFormat(buildFormat, []string{"table", "json", "yaml"}); err != nil {
		return err
	}

	bindFlags(cmd.Flags(), buildFlagKeys, viper.Set)
	if cmd.Flags().Changed("output-dir") {
		viper.Set("build.output", "disk")
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.TargetFiles = args

	srv, err := server.New(cfg, logger, server.WithLiveReload(false))
	if err != nil {
		return fmt.Errorf("failed to create bundler: %w", err)
	}
	defer srv.Shutdown()

	start := time.Now()
	files, err := srv.Compile(compileContext(cmd), args[0])
	if err != nil {
		if diags := errors.DiagnosticsOf(err); len(diags) > 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), errors.FormatDiagnostics(diags))
		}
		return err
	}

	report := BuildReport{Entry: args[0], Duration: time.Since(start).Round(time.Millisecond).String()}
	for _, name := range files {
		content, err := srv.Store().Read(name)
		if err != nil {
			return err
		}
		report.Assets = append(report.Assets, AssetReport{
			Name:        name,
			Size:        len(content),
			ContentType: assets.ContentType(name),
		})
	}

	return writeBuildReport(cmd.OutOrStdout(), strings.ToLower(buildFormat), report)
}

func writeBuildReport(out io.Writer, format string, report BuildReport) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(report)
	default:
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ASSET\tSIZE\tCONTENT TYPE")
		fmt.Fprintln(w, "-----\t----\t------------")
		for _, asset := range report.Assets {
			fmt.Fprintf(w, "%s\t%d\t%s\n", asset.Name, asset.Size, asset.ContentType)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "\nBuilt %s in %s\n", report.Entry, report.Duration)
		return err
	}
}

// compileContext lets tests run commands without a cobra context.
func compileContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
