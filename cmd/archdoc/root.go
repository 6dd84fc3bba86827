package main

import (
	"github.com/spf13/cobra"

	"archdoc/internal/version"
)

var (
	// verbosity is the count of -v flags
	verbosity int
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "archdoc",
	Short: "archdoc - architecture diagrams from build manifests",
	Long: `archdoc reads a solution or a directory of project manifests, derives a
C4 model of the deployable containers and the external systems they talk to,
and keeps rendered diagrams and an architecture document section up to date.`,
	Version:      version.Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.SetVersionTemplate("archdoc version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")
}
