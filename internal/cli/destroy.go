package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy <session-id>",
	Short: "Tear down a session's deployed resources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := a.orch.Destroy(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <session-id> <dir>",
	Short: "Write a session's generated Terraform files to a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		ps, err := a.store.Load(args[0])
		if err != nil {
			return err
		}
		if err := a.store.ExportArtifacts(ps, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d files to %s\n", len(ps.Artifacts), args[1])
		return nil
	},
}
