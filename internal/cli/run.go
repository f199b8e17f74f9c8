package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgewise/infrapilot/internal/orchestrator"
	"github.com/forgewise/infrapilot/internal/state"
)

var runCmd = &cobra.Command{
	Use:   "run <request...>",
	Short: "Run a new session for an infrastructure request",
	Long: `Runs the full pipeline for a plain-text infrastructure request, for
example:

  infrapilot run "an S3 bucket and a DynamoDB table for session storage"

The session id is printed on completion; use it with resume, status,
export, and destroy.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		request := strings.Join(args, " ")
		a.orch.SetObserver(progressObserver(cmd))

		ps, err := a.orch.Start(cmd.Context(), request)
		if ps != nil {
			printOutcome(cmd, ps)
		}
		return err
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Re-enter an existing session at the planner",
	Long: `Resumes a checkpointed session. With --feedback, the feedback text is
handed to the planner and grants one extra attempt even when the retry
budget is exhausted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		feedback, _ := cmd.Flags().GetString("feedback")
		a.orch.SetObserver(progressObserver(cmd))

		ps, err := a.orch.Resume(cmd.Context(), args[0], feedback)
		if ps != nil {
			printOutcome(cmd, ps)
		}
		return err
	},
}

func init() {
	resumeCmd.Flags().String("feedback", "", "human feedback for the planner")
}

// progressObserver prints the live stage feed to stderr so stdout stays
// reserved for the final report.
func progressObserver(cmd *cobra.Command) func(orchestrator.Event) {
	return func(ev orchestrator.Event) {
		if ev.Status == "running" {
			return
		}
		line := fmt.Sprintf("  -> %s: %s", ev.Stage, ev.Status)
		if ev.Detail != "" {
			line += " (" + ev.Detail + ")"
		}
		fmt.Fprintln(cmd.ErrOrStderr(), line)
	}
}

func printOutcome(cmd *cobra.Command, ps *state.PipelineState) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\nSession:  %s\n", ps.SessionID)
	fmt.Fprintf(w, "Status:   %s\n", ps.Status)
	fmt.Fprintf(w, "Retries:  %d\n", ps.RetryCount)
	if ps.SecurityWarning {
		fmt.Fprintln(w, "Warning:  deployed with non-blocking security findings")
	}

	switch ps.Status {
	case state.StatusCompleted:
		fmt.Fprintf(w, "\n%s\n", ps.CostReport)
	case state.StatusFailed:
		if ps.ValidationReport != "" {
			fmt.Fprintf(w, "\nLast failure report:\n%s\n", ps.ValidationReport)
		}
	}
}
