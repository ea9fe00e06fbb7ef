// Package config provides configuration management for pagewith using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable overrides
// with the PAGEWITH_ prefix, defaults, and validation. It covers the preview
// server listener, the bundler options, page presentation defaults, the
// browser harness and development-time live reload.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/pagewith/internal/errors"
)

// Output modes for compiled assets.
const (
	OutputMemory = "memory"
	OutputDisk   = "disk"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Build       BuildConfig       `mapstructure:"build" yaml:"build"`
	Preview     PreviewConfig     `mapstructure:"preview" yaml:"preview"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	TargetFiles []string          `mapstructure:"-" yaml:"-"` // CLI arguments, not from config file
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type BuildConfig struct {
	Output    string            `mapstructure:"output" yaml:"output"`
	OutputDir string            `mapstructure:"output_dir" yaml:"output_dir"`
	Target    string            `mapstructure:"target" yaml:"target"`
	Format    string            `mapstructure:"format" yaml:"format"`
	Minify    bool              `mapstructure:"minify" yaml:"minify"`
	Sourcemap bool              `mapstructure:"sourcemap" yaml:"sourcemap"`
	Define    map[string]string `mapstructure:"define" yaml:"define"`
	NodePaths []string          `mapstructure:"node_paths" yaml:"node_paths"`
}

type PreviewConfig struct {
	Title       string `mapstructure:"title" yaml:"title"`
	Markup      string `mapstructure:"markup" yaml:"markup"`
	ContentBase string `mapstructure:"content_base" yaml:"content_base"`
}

type BrowserConfig struct {
	Headless  bool          `mapstructure:"headless" yaml:"headless"`
	Devtools  bool          `mapstructure:"devtools" yaml:"devtools"`
	WaitUntil string        `mapstructure:"wait_until" yaml:"wait_until"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Args      []string      `mapstructure:"args" yaml:"args"`
}

type DevelopmentConfig struct {
	LiveReload bool          `mapstructure:"live_reload" yaml:"live_reload"`
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

var defaults = map[string]interface{}{
	"server.host":             "localhost",
	"server.port":             0,
	"build.output":            OutputMemory,
	"build.output_dir":        ".pagewith/dist",
	"build.target":            "es2020",
	"build.format":            "iife",
	"build.minify":            false,
	"build.sourcemap":         false,
	"preview.title":           "Preview",
	"browser.headless":        true,
	"browser.devtools":        false,
	"browser.wait_until":      "networkidle",
	"browser.timeout":         30 * time.Second,
	"development.live_reload": false,
	"development.debounce":    100 * time.Millisecond,
	"log.level":               "info",
	"log.format":              "text",
}

// SetDefaults registers every default with v so that environment variables
// bound through AutomaticEnv are visible to Unmarshal.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Default returns the configuration used when nothing is loaded.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadFrom(v)
	if err != nil {
		// defaults are static and always valid
		panic(err)
	}

	return cfg
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	SetDefaults(viper.GetViper())

	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.ConfigInvalid("failed to decode configuration", err)
	}

	// Handle slices set via viper (workaround for viper slice handling)
	if v.IsSet("build.node_paths") && len(config.Build.NodePaths) == 0 {
		config.Build.NodePaths = v.GetStringSlice("build.node_paths")
	}
	if v.IsSet("browser.args") && len(config.Browser.Args) == 0 {
		config.Browser.Args = v.GetStringSlice("browser.args")
	}

	// The log level flag on the root command wins over the file value
	if v.IsSet("log-level") {
		config.Log.Level = v.GetString("log-level")
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, errors.ConfigInvalid("invalid configuration", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Build.Output == "" {
		config.Build.Output = OutputMemory
	}
	if config.Build.Target == "" {
		config.Build.Target = "es2020"
	}
	if config.Build.Format == "" {
		config.Build.Format = "iife"
	}
	if config.Build.Define == nil {
		config.Build.Define = make(map[string]string)
	}
	if config.Preview.Title == "" {
		config.Preview.Title = "Preview"
	}
	if config.Browser.WaitUntil == "" {
		config.Browser.WaitUntil = "networkidle"
	}
	if config.Browser.Timeout <= 0 {
		config.Browser.Timeout = 30 * time.Second
	}
	if config.Development.Debounce <= 0 {
		config.Development.Debounce = 100 * time.Millisecond
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
