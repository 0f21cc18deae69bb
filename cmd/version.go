package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/lazyns/internal/version"
)

var (
	versionFormat   OutputFormat
	versionShort    bool
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for lazyns including:

- Semantic version number
- Git commit hash
- Build timestamp
- Go version used for compilation
- Target platform (OS/architecture)

Examples:
  lazyns version              # Show version
  lazyns version --detailed   # Show detailed version info
  lazyns version --format json`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	AddOutputFlag(versionCmd.Flags(), &versionFormat, "format", "f")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if versionFormat != OutputText {
		return writeOutput(out, versionFormat, version.GetBuildInfo(), nil)
	}
	switch {
	case versionShort:
		_, err := fmt.Fprintln(out, version.GetShortVersion())
		return err
	case versionDetailed:
		_, err := fmt.Fprintln(out, version.GetDetailedVersion())
		return err
	default:
		return outputVersionDefault(out)
	}
}

func outputVersionDefault(w io.Writer) error {
	info := version.GetBuildInfo()

	line := "lazyns " + info.Version
	if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
		line += fmt.Sprintf(" (%s)", info.GitCommit[:7])
	}
	if version.IsDirty() {
		line += " (dirty)"
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
