// Package cmd builds the command tree: update, release-pr, release, and
// set-version (spec.md's CLI section), grounded on the teacher's
// cmd/release.go subcommand-tree shape reshaped to this domain's four
// verbs.
package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/release-plz-go/internal/logging"
)

var (
	flagManifestPath string
	flagVerbose      bool
	log              *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "release-plz-go",
	Short: "Automates the release lifecycle of a Cargo workspace",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logging.New(flagVerbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagManifestPath, "manifest-path", "Cargo.toml",
		"path to the workspace's root Cargo.toml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newReleasePRCmd())
	rootCmd.AddCommand(newReleaseCmd())
	rootCmd.AddCommand(newSetVersionCmd())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
