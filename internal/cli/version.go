package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/ui"
	"github.com/spf13/cobra"
)

// Stamped by the release build through -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the tunnelup version with its commit, build date and platform.

Examples:
  tunnelup version
  tunnelup version --short
  tunnelup version --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return versionCommand(cmd)
	},
}

// VersionOutput is the JSON form of the version command.
type VersionOutput struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version number")
	rootCmd.AddCommand(versionCmd)
}

func currentVersion() VersionOutput {
	return VersionOutput{
		Version: formatVersion(version),
		Commit:  commit,
		Date:    date,
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
}

func versionCommand(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	v := currentVersion()

	switch {
	case versionShort:
		_, err := fmt.Fprintln(out, version)
		return err
	case machineMode:
		return WriteJSONSuccess(out, v)
	}

	fmt.Fprint(out, ui.RenderHeader(ui.HeaderInfo{
		Version: v.Version,
		Commit:  shortCommit(v.Commit),
		Tagline: "VS Code tunnels on remote Linux hosts",
	}))
	_, err := fmt.Fprintf(out, "built: %s\ngo: %s\nos/arch: %s/%s\n", v.Date, v.Go, v.OS, v.Arch)
	return err
}

// formatVersion adds the "v" a bare semver lacks. dev builds stay as is.
func formatVersion(v string) string {
	if v == "" || v == "dev" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func shortCommit(c string) string {
	switch {
	case c == "none":
		return ""
	case len(c) > 7:
		return c[:7]
	}
	return c
}

// SetVersionInfo records the build stamp. main calls it before Execute.
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
	rootCmd.Version = formatVersion(v)
}

// GetVersion is the raw stamped version.
func GetVersion() string {
	return version
}
