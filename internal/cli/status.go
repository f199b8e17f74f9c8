package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show detailed session status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		ps, err := a.orch.Status(args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Session:       %s\n", ps.SessionID)
		fmt.Fprintf(w, "Request:       %s\n", ps.Request)
		fmt.Fprintf(w, "Status:        %s\n", ps.Status)
		fmt.Fprintf(w, "Current stage: %s\n", ps.CurrentStage)
		fmt.Fprintf(w, "Retries:       %d\n", ps.RetryCount)
		fmt.Fprintf(w, "Created:       %s\n", ps.CreatedAt)
		fmt.Fprintf(w, "Updated:       %s\n", ps.UpdatedAt)

		if len(ps.Artifacts) > 0 {
			names := make([]string, 0, len(ps.Artifacts))
			for name := range ps.Artifacts {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintf(w, "Artifacts:     %s\n", strings.Join(names, ", "))
		}

		fmt.Fprintf(w, "\nGates: validation=%t security=%t deployment=%t\n",
			ps.ValidationPassed, ps.SecurityPassed, ps.DeploymentPassed)
		if ps.SecurityWarning {
			fmt.Fprintln(w, "Security warning: non-blocking findings present")
		}

		showEvents, _ := cmd.Flags().GetBool("events")
		if showEvents {
			events, err := a.db.SessionEvents(ps.SessionID)
			if err != nil {
				return err
			}
			fmt.Fprintln(w)
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSTAGE\tEVENT\tDETAIL")
			for _, e := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp, e.Stage, e.Event, e.Detail)
			}
			return tw.Flush()
		}
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List checkpointed sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		statusFilter, _ := cmd.Flags().GetString("status")
		sessions, err := a.orch.Sessions(statusFilter)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tSTATUS\tSTAGE\tRETRIES\tREQUEST")
		for _, ps := range sessions {
			request := ps.Request
			if len(request) > 50 {
				request = request[:47] + "..."
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				ps.SessionID, ps.Status, ps.CurrentStage, ps.RetryCount, request)
		}
		return tw.Flush()
	},
}

func init() {
	statusCmd.Flags().Bool("events", false, "include the stage event log")
	sessionsCmd.Flags().String("status", "", "filter by status (pending, in_progress, completed, failed)")
}
