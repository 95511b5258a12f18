package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"eqms/internal/bootstrap"
	"eqms/internal/bootstrap/logging"
	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/errs"
	"eqms/internal/usecase/capa"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Inspect and advance CAPA workflows",
}

var workflowShowCmd = &cobra.Command{
	Use:   "show <workflow-id>",
	Short: "Show a workflow with its transition history",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		wf, err := svc.GetWorkflow(cmd.Context(), cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "get workflow")
		}
		return printJSON(cmd, wf)
	}),
}

var workflowPhaseCmd = &cobra.Command{
	Use:   "phase <workflow-id>",
	Short: "Print the current phase of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		phase, err := svc.PhaseOf(cmd.Context(), cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "get workflow phase")
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), phase)
		return err
	}),
}

var workflowTransitionCmd = &cobra.Command{
	Use:   "transition <workflow-id>",
	Short: "Request a signed phase transition",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		target, _ := cmd.Flags().GetString("to")
		evidence, _ := cmd.Flags().GetStringSlice("evidence")
		meaning, _ := cmd.Flags().GetString("meaning")
		comments, err := resolveText(cmd, "comments", false)
		if err != nil {
			return err
		}

		approver := actingPrincipal()
		wf, err := svc.RequestTransition(ctx, capa.TransitionRequest{
			WorkflowID:   cmd.Flags().Arg(0),
			TargetPhase:  target,
			Approver:     approver,
			EvidenceRefs: evidence,
			Signature: domaincapa.Signature{
				UserID:   approver.UserID,
				SignedAt: time.Now().UTC(),
				Meaning:  meaning,
			},
			Comments: comments,
		})
		if err != nil {
			logging.Error(ctx, "request transition failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "request transition")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "workflow %s moved to %s (version %d)\n", wf.WorkflowID, wf.Phase, wf.Version); err != nil {
			return errs.Wrap(err, "write transition output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(workflowCmd)
	workflowCmd.AddCommand(workflowShowCmd, workflowPhaseCmd, workflowTransitionCmd)

	workflowTransitionCmd.Flags().String("to", "", "Target phase")
	workflowTransitionCmd.Flags().StringSlice("evidence", nil, "Evidence ids supporting the transition")
	workflowTransitionCmd.Flags().String("meaning", "", "Meaning of the electronic signature")
	workflowTransitionCmd.Flags().String("comments", "", "Transition comments")
	workflowTransitionCmd.Flags().String("comments-file", "", "Read comments from a file")
}
