// Package cli implements the infrapilot command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// SetVersion sets the version reported by the version command. It is called
// from main with the build-time value.
func SetVersion(v string) {
	version = v
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "infrapilot",
	Short: "infrapilot generates, validates, and deploys AWS infrastructure from plain requests",
	Long: `infrapilot turns a plain-text infrastructure request into deployed AWS
resources. A planning stage decomposes the request into Terraform files, a
generation stage writes them, and validation, security scanning, deployment,
and cost estimation gates run in sequence with automatic error recovery.

Session state is checkpointed under ~/.infrapilot/ (SQLite for the event
log, JSON for session snapshots), so failed sessions can be resumed with
human feedback.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ./infrapilot.yaml, then ~/.infrapilot/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
}
