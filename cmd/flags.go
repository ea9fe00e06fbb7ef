package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/conneroisu/pagewith/internal/logging"
)

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(flags *pflag.FlagSet, flagName string, validator func(string) error) {
	flag := flags.Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort accepts 0 (any free port) through 65535.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}

	return nil
}

// ValidatePathExists accepts empty values and paths that exist.
func ValidatePathExists(path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}

	return nil
}

// ValidateLogLevel accepts the levels the logger understands.
func ValidateLogLevel(level string) error {
	_, err := logging.ParseLevel(level)
	return err
}

// ValidateFormat checks format against the allowed output formats.
func ValidateFormat(format string, allowed []string) error {
	for _, candidate := range allowed {
		if strings.EqualFold(format, candidate) {
			return nil
		}
	}

	return fmt.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(allowed, ", "))
}

// bindFlags copies explicitly set flags onto viper keys so they override the
// configuration file and environment.
func bindFlags(flags *pflag.FlagSet, keys map[string]string, set func(key string, value interface{})) {
	flags.Visit(func(f *pflag.Flag) {
		key, ok := keys[f.Name]
		if !ok {
			return
		}

		switch f.Value.Type() {
		case "int":
			v, _ := flags.GetInt(f.Name)
			set(key, v)
		case "bool":
			v, _ := flags.GetBool(f.Name)
			set(key, v)
		default:
			set(key, f.Value.String())
		}
	})
}
