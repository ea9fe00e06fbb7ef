// Package cmd provides the command-line interface for pagewith.
//
// Configuration System:
//
//	Configuration is read from several sources, highest priority first:
//	1. Command-line flags (--config, --port, --log-level, etc.)
//	2. Individual environment variables (PAGEWITH_SERVER_PORT, etc.)
//	3. The file named by --config or PAGEWITH_CONFIG_FILE
//	4. .pagewith.yml in the current directory
//
// Environment Variables:
//
//	PAGEWITH_CONFIG_FILE: Path to custom configuration file
//	PAGEWITH_SERVER_PORT: Override server port
//	PAGEWITH_SERVER_HOST: Override server host
//	PAGEWITH_DEVELOPMENT_LIVE_RELOAD: Enable/disable live reload
//	And every other key following the PAGEWITH_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/pagewith/internal/config"
	"github.com/conneroisu/pagewith/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pagewith",
	Short: "Preview and test front-end usage examples in a real browser",
	Long: `pagewith bundles a small usage example, serves it with an HTML shell and
opens it in a real browser engine.

Quick Start:
  pagewith serve examples/button.js    Serve one example with live reload
  pagewith build examples/button.js    Compile an example and list its assets
  pagewith open examples/button.js     Open an example in a headed browser

Configuration is read from .pagewith.yml and PAGEWITH_* environment variables.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .pagewith.yml, can also use PAGEWITH_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", ValidateLogLevel)
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig points viper at the configuration file and environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PAGEWITH_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pagewith")
	}

	viper.SetEnvPrefix("PAGEWITH")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the configuration and builds the logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	return cfg, newLogger(cfg.Log, cmd.ErrOrStderr()), nil
}

func newLogger(cfg config.LogConfig, out io.Writer) logging.Logger {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		level = logging.LevelInfo
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Format,
		Output:    out,
		Component: "cli",
	})
}
