package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pagewith/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for pagewith.

Examples:
  pagewith version              # Show version
  pagewith version --short      # Show the version string only
  pagewith version --format json`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
}

func runVersionCommand(cmd *cobra.Command, _ []string) error {
	if err := ValidateFormat(versionFormat, []string{"text", "json"}); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if strings.EqualFold(versionFormat, "json") {
		return outputVersionJSON(out)
	}
	if versionShort {
		_, err := fmt.Fprintln(out, version.GetShortVersion())
		return err
	}

	return outputVersionText(out)
}

func outputVersionText(out io.Writer) error {
	info := version.GetBuildInfo()

	fmt.Fprintf(out, "pagewith %s", version.GetShortVersion())
	if info.Dirty {
		fmt.Fprint(out, " (dirty)")
	}
	fmt.Fprintln(out)

	if !info.BuildTime.IsZero() {
		fmt.Fprintf(out, "Built: %s\n", info.BuildTime.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintf(out, "Go: %s\n", info.GoVersion)
	_, err := fmt.Fprintf(out, "Platform: %s\n", info.Platform)

	return err
}

func outputVersionJSON(out io.Writer) error {
	type versionJSON struct {
		version.BuildInfo
		Release bool `json:"release"`
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	return encoder.Encode(versionJSON{BuildInfo: version.GetBuildInfo(), Release: version.IsRelease()})
}
