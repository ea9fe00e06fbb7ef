package build

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/pagewith/internal/config"
	"github.com/conneroisu/pagewith/internal/errors"
	"github.com/conneroisu/pagewith/internal/logging"
)

// BundleConfig holds the engine options applied to every compilation.
type BundleConfig struct {
	Target     string
	Format     string
	Minify     bool
	Sourcemap  bool
	EntryNames string
	Define     map[string]string
	NodePaths  []string
	External   []string
	Loaders    map[string]string
}

// DefaultBundleConfig returns the options used when nothing overrides them.
func DefaultBundleConfig() BundleConfig {
	return BundleConfig{
		Target:     "es2020",
		Format:     "iife",
		EntryNames: "[name].[hash]",
		Define:     map[string]string{},
		NodePaths:  []string{"node_modules"},
		Loaders: map[string]string{
			".js":   "jsx",
			".jsx":  "jsx",
			".ts":   "ts",
			".tsx":  "tsx",
			".css":  "css",
			".json": "json",
		},
	}
}

// FromBuildConfig maps the build section of the configuration file onto
// bundle options, on top of the defaults.
func FromBuildConfig(cfg config.BuildConfig) BundleConfig {
	return DefaultBundleConfig().Merge(BundleConfig{
		Target:    cfg.Target,
		Format:    cfg.Format,
		Minify:    cfg.Minify,
		Sourcemap: cfg.Sourcemap,
		Define:    cfg.Define,
		NodePaths: cfg.NodePaths,
	})
}

// Merge returns c with override layered on top. Scalar fields are replaced
// when set, maps are merged key by key and lists are appended.
func (c BundleConfig) Merge(override BundleConfig) BundleConfig {
	merged := c
	merged.Define = maps.Clone(c.Define)
	merged.Loaders = maps.Clone(c.Loaders)
	merged.NodePaths = append([]string(nil), c.NodePaths...)
	merged.External = append([]string(nil), c.External...)

	if override.Target != "" {
		merged.Target = override.Target
	}
	if override.Format != "" {
		merged.Format = override.Format
	}
	if override.EntryNames != "" {
		merged.EntryNames = override.EntryNames
	}
	merged.Minify = c.Minify || override.Minify
	merged.Sourcemap = c.Sourcemap || override.Sourcemap

	if merged.Define == nil && len(override.Define) > 0 {
		merged.Define = make(map[string]string, len(override.Define))
	}
	maps.Copy(merged.Define, override.Define)

	if merged.Loaders == nil && len(override.Loaders) > 0 {
		merged.Loaders = make(map[string]string, len(override.Loaders))
	}
	maps.Copy(merged.Loaders, override.Loaders)

	merged.NodePaths = appendUnique(merged.NodePaths, override.NodePaths...)
	merged.External = appendUnique(merged.External, override.External...)

	return merged
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}

	return list
}

// EsbuildBundler implements Bundler with the in-process esbuild engine.
type EsbuildBundler struct {
	config     BundleConfig
	workingDir string
	logger     logging.Logger
}

// NewEsbuildBundler creates a bundler resolving relative paths against the
// current working directory.
func NewEsbuildBundler(cfg BundleConfig, logger logging.Logger) (*EsbuildBundler, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	return &EsbuildBundler{
		config:     cfg,
		workingDir: wd,
		logger:     logger.WithComponent("esbuild"),
	}, nil
}

// Bundle compiles entryPath and writes every emitted file to out under its
// base name. Source maps are written but not reported as assets.
func (b *EsbuildBundler) Bundle(ctx context.Context, entryPath string, out OutputTarget) Outcome {
	opts, err := b.buildOptions(entryPath)
	if err != nil {
		return OutcomeInvocationFailure{Err: err}
	}

	bctx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return OutcomeInvocationFailure{Err: contextError(ctxErr)}
	}
	defer bctx.Dispose()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			bctx.Cancel()
		case <-done:
		}
	}()

	result := bctx.Rebuild()
	if err := ctx.Err(); err != nil {
		return OutcomeInvocationFailure{Err: err}
	}

	for _, w := range result.Warnings {
		b.logger.Warn(ctx, nil, "Bundler warning", "entry", entryPath, "warning", toDiagnostic(w).String())
	}

	if len(result.Errors) > 0 {
		diagnostics := make([]errors.Diagnostic, 0, len(result.Errors))
		for _, msg := range result.Errors {
			diagnostics = append(diagnostics, toDiagnostic(msg))
		}
		return OutcomeDiagnosticFailure{Diagnostics: diagnostics}
	}

	assets := make([]string, 0, len(result.OutputFiles))
	for _, file := range result.OutputFiles {
		name := filepath.Base(file.Path)
		if err := out.Write(name, file.Contents); err != nil {
			return OutcomeInvocationFailure{Err: fmt.Errorf("failed to write %s: %w", name, err)}
		}
		if strings.HasSuffix(name, ".map") {
			continue
		}
		assets = append(assets, name)
	}

	return OutcomeSuccess{Assets: assets}
}

func (b *EsbuildBundler) buildOptions(entryPath string) (api.BuildOptions, error) {
	target, err := parseTarget(b.config.Target)
	if err != nil {
		return api.BuildOptions{}, err
	}
	format, err := parseFormat(b.config.Format)
	if err != nil {
		return api.BuildOptions{}, err
	}
	loaders, err := parseLoaders(b.config.Loaders)
	if err != nil {
		return api.BuildOptions{}, err
	}

	nodePaths := make([]string, 0, len(b.config.NodePaths))
	for _, p := range b.config.NodePaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(b.workingDir, p)
		}
		nodePaths = append(nodePaths, p)
	}

	sourcemap := api.SourceMapNone
	if b.config.Sourcemap {
		sourcemap = api.SourceMapLinked
	}

	return api.BuildOptions{
		EntryPoints:       []string{entryPath},
		Bundle:            true,
		Write:             false,
		AbsWorkingDir:     b.workingDir,
		Outdir:            filepath.Join(b.workingDir, "dist"),
		EntryNames:        b.config.EntryNames,
		Platform:          api.PlatformBrowser,
		Format:            format,
		Target:            target,
		MinifyWhitespace:  b.config.Minify,
		MinifyIdentifiers: b.config.Minify,
		MinifySyntax:      b.config.Minify,
		Sourcemap:         sourcemap,
		Define:            b.config.Define,
		NodePaths:         nodePaths,
		External:          b.config.External,
		Loader:            loaders,
		LogLevel:          api.LogLevelSilent,
	}, nil
}

func parseTarget(target string) (api.Target, error) {
	switch strings.ToLower(target) {
	case "", "es2020":
		return api.ES2020, nil
	case "esnext":
		return api.ESNext, nil
	case "es2015", "es6":
		return api.ES2015, nil
	case "es2016":
		return api.ES2016, nil
	case "es2017":
		return api.ES2017, nil
	case "es2018":
		return api.ES2018, nil
	case "es2019":
		return api.ES2019, nil
	case "es2021":
		return api.ES2021, nil
	case "es2022":
		return api.ES2022, nil
	default:
		return api.DefaultTarget, fmt.Errorf("unsupported target %q", target)
	}
}

func parseFormat(format string) (api.Format, error) {
	switch strings.ToLower(format) {
	case "", "iife":
		return api.FormatIIFE, nil
	case "esm":
		return api.FormatESModule, nil
	case "cjs":
		return api.FormatCommonJS, nil
	default:
		return api.FormatDefault, fmt.Errorf("unsupported format %q", format)
	}
}

var loaderNames = map[string]api.Loader{
	"js":      api.LoaderJS,
	"jsx":     api.LoaderJSX,
	"ts":      api.LoaderTS,
	"tsx":     api.LoaderTSX,
	"css":     api.LoaderCSS,
	"json":    api.LoaderJSON,
	"text":    api.LoaderText,
	"file":    api.LoaderFile,
	"dataurl": api.LoaderDataURL,
}

func parseLoaders(loaders map[string]string) (map[string]api.Loader, error) {
	parsed := make(map[string]api.Loader, len(loaders))
	for ext, name := range loaders {
		loader, ok := loaderNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unsupported loader %q for %s", name, ext)
		}
		parsed[ext] = loader
	}

	return parsed, nil
}

func contextError(err *api.ContextError) error {
	if len(err.Errors) == 0 {
		return fmt.Errorf("esbuild rejected the build options")
	}

	texts := make([]string, 0, len(err.Errors))
	for _, msg := range err.Errors {
		texts = append(texts, msg.Text)
	}

	return fmt.Errorf("esbuild rejected the build options: %s", strings.Join(texts, "; "))
}

func toDiagnostic(msg api.Message) errors.Diagnostic {
	d := errors.Diagnostic{Text: msg.Text}
	if msg.Location != nil {
		d.File = msg.Location.File
		d.Line = msg.Location.Line
		d.Column = msg.Location.Column
		d.LineText = msg.Location.LineText
	}
	for _, note := range msg.Notes {
		d.Notes = append(d.Notes, note.Text)
	}

	return d
}
