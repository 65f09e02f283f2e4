package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// Build metadata, overridden with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build and the providers it queries",
	Long: `Print the certscope build. With --verbose the resolved grading and
certificate transparency endpoints and the analysis deadline are listed too,
so the effective configuration can be checked before running an analysis.`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "certscope version %s\n", Version)
		if verbose {
			writeBuildInfo(out, appConfig)
		}
	},
}

func writeBuildInfo(out io.Writer, cfg Config) {
	fmt.Fprintf(out, "  commit:       %s (built %s)\n", GitCommit, BuildDate)
	fmt.Fprintf(out, "  runtime:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "  grading:      %s\n", cfg.Grading.BaseURL)
	fmt.Fprintf(out, "  transparency: %s\n", cfg.Transparency.BaseURL)
	fmt.Fprintf(out, "  deadline:     %s\n", cfg.Analysis.Deadline)
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "Also list build details and provider endpoints")
}
