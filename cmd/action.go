package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"eqms/internal/bootstrap"
	"eqms/internal/bootstrap/logging"
	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/errs"
	"eqms/internal/usecase/capa"
)

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Manage CAPA actions",
}

var actionCreateCmd = &cobra.Command{
	Use:   "create <capa-id>",
	Short: "Add an action to the current phase of a CAPA",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		title, _ := cmd.Flags().GetString("title")
		owner, _ := cmd.Flags().GetString("owner")
		description, err := resolveText(cmd, "description", false)
		if err != nil {
			return err
		}
		due, err := parseDateFlag(cmd, "due")
		if err != nil {
			return err
		}

		view, err := svc.CreateAction(ctx, actingPrincipal(), cmd.Flags().Arg(0), domaincapa.ActionDraft{
			Title:       title,
			Description: description,
			Owner:       owner,
			DueDate:     due,
		})
		if err != nil {
			logging.Error(ctx, "create action failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create action")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created action: %s phase=%s owner=%s\n", view.ActionID, view.Phase, view.Owner); err != nil {
			return errs.Wrap(err, "write create output")
		}
		return nil
	}),
}

var actionListCmd = &cobra.Command{
	Use:   "list <capa-id>",
	Short: "List actions of a CAPA",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		phase, _ := cmd.Flags().GetString("phase")
		items, err := svc.ListActions(cmd.Context(), cmd.Flags().Arg(0), phase)
		if err != nil {
			return errs.Wrap(err, "list actions")
		}
		return printJSON(cmd, items)
	}),
}

var actionVerifyCmd = &cobra.Command{
	Use:   "verify <action-id>",
	Short: "Sign off an action once its evidence is reviewed",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		outcome, _ := cmd.Flags().GetString("outcome")
		comments, err := resolveText(cmd, "comments", false)
		if err != nil {
			return err
		}

		result, err := svc.VerifyAction(ctx, capa.VerifyActionInput{
			ActionID: cmd.Flags().Arg(0),
			Verifier: actingPrincipal(),
			Outcome:  outcome,
			Comments: comments,
		})
		if err != nil {
			logging.Error(ctx, "verify action failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "verify action")
		}
		return printJSON(cmd, result)
	}),
}

func init() {
	rootCmd.AddCommand(actionCmd)
	actionCmd.AddCommand(actionCreateCmd, actionListCmd, actionVerifyCmd)

	actionCreateCmd.Flags().String("title", "", "Action title")
	actionCreateCmd.Flags().String("owner", "", "Action owner")
	actionCreateCmd.Flags().String("description", "", "Action description")
	actionCreateCmd.Flags().String("description-file", "", "Read the description from a file")
	actionCreateCmd.Flags().String("due", "", "Due date YYYY-MM-DD")

	actionListCmd.Flags().String("phase", "", "Only actions of this phase")

	actionVerifyCmd.Flags().String("outcome", "approved", "Outcome (approved|rejected)")
	actionVerifyCmd.Flags().String("comments", "", "Verification comments, required on rejection")
	actionVerifyCmd.Flags().String("comments-file", "", "Read comments from a file")
}
