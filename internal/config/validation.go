package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/conneroisu/pagewith/internal/logging"
)

var (
	validFormats    = []string{"iife", "esm", "cjs"}
	validWaitStates = []string{"load", "domcontentloaded", "networkidle", "commit"}
	validLogFormats = []string{"text", "json"}
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title)
		builder.WriteString("\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
	}

	write("❌ Validation Errors:", vr.Errors)
	write("⚠️  Validation Warnings:", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) fail(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{
		Field:       field,
		Value:       value,
		Message:     message,
		Suggestions: suggestions,
	})
}

func (vr *ValidationResult) warn(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{
		Field:       field,
		Value:       value,
		Message:     message,
		Suggestions: suggestions,
	})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateServerConfig(&config.Server, result)
	validateBuildConfig(&config.Build, result)
	validatePreviewConfig(&config.Preview, result)
	validateBrowserConfig(&config.Browser, result)
	validateLogConfig(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

// validateConfig returns the first validation error, if any.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if result.HasErrors() {
		return &result.Errors[0]
	}

	return nil
}

func validateServerConfig(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.fail("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Port 0 allows the system to assign an available port")
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			result.fail("server.host", config.Host,
				fmt.Sprintf("host contains dangerous character: %q", char),
				"Use a hostname such as localhost or an IP address")
			return
		}
	}
}

func validateBuildConfig(config *BuildConfig, result *ValidationResult) {
	switch config.Output {
	case OutputMemory:
	case OutputDisk:
		if config.OutputDir == "" {
			result.fail("build.output_dir", config.OutputDir,
				"output_dir is required when build.output is disk")
		} else if strings.Contains(filepath.ToSlash(filepath.Clean(config.OutputDir)), "../") ||
			filepath.Clean(config.OutputDir) == ".." {
			result.fail("build.output_dir", config.OutputDir,
				"output_dir contains path traversal",
				"Use a directory inside the project, for example .pagewith/dist")
		}
	default:
		result.fail("build.output", config.Output,
			fmt.Sprintf("unknown output mode %q", config.Output),
			"Use memory or disk")
	}

	if !slices.Contains(validFormats, config.Format) {
		result.fail("build.format", config.Format,
			fmt.Sprintf("unknown bundle format %q", config.Format),
			"Use one of: "+strings.Join(validFormats, ", "))
	}

	if config.Format != "iife" && config.Format != "" {
		result.warn("build.format", config.Format,
			"preview pages load assets with classic script tags",
			"iife bundles run without a module loader")
	}
}

func validatePreviewConfig(config *PreviewConfig, result *ValidationResult) {
	if config.ContentBase == "" {
		return
	}

	info, err := os.Stat(config.ContentBase)
	switch {
	case err != nil:
		result.warn("preview.content_base", config.ContentBase,
			"content base directory does not exist",
			"Create the directory or remove the setting")
	case !info.IsDir():
		result.fail("preview.content_base", config.ContentBase,
			"content base must be a directory")
	}
}

func validateBrowserConfig(config *BrowserConfig, result *ValidationResult) {
	if !slices.Contains(validWaitStates, config.WaitUntil) {
		result.fail("browser.wait_until", config.WaitUntil,
			fmt.Sprintf("unknown navigation wait state %q", config.WaitUntil),
			"Use one of: "+strings.Join(validWaitStates, ", "))
	}

	if config.Devtools && config.Headless {
		result.warn("browser.devtools", config.Devtools,
			"devtools only open in a headed browser",
			"Set browser.headless to false")
	}
}

func validateLogConfig(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.fail("log.level", config.Level, err.Error(),
			"Use one of: debug, info, warn, error")
	}

	if !slices.Contains(validLogFormats, config.Format) {
		result.fail("log.format", config.Format,
			fmt.Sprintf("unknown log format %q", config.Format),
			"Use text or json")
	}
}
