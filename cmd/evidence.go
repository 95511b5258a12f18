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

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Attach and review evidence",
}

var evidenceAttachCmd = &cobra.Command{
	Use:   "attach <action-id>",
	Short: "Attach a document or link to an action",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		title, _ := cmd.Flags().GetString("title")
		kind, _ := cmd.Flags().GetString("type")
		url, _ := cmd.Flags().GetString("url")
		fileRef, _ := cmd.Flags().GetString("file-ref")
		description, err := resolveText(cmd, "description", true)
		if err != nil {
			return err
		}

		view, err := svc.AttachEvidence(ctx, actingPrincipal(), cmd.Flags().Arg(0), domaincapa.EvidenceDraft{
			Title:       title,
			Description: description,
			Type:        domaincapa.EvidenceType(kind),
			URL:         url,
			FileRef:     fileRef,
		})
		if err != nil {
			logging.Error(ctx, "attach evidence failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "attach evidence")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "attached evidence: %s action=%s\n", view.EvidenceID, view.ActionID); err != nil {
			return errs.Wrap(err, "write attach output")
		}
		return nil
	}),
}

var evidenceListCmd = &cobra.Command{
	Use:   "list <action-id>",
	Short: "List evidence attached to an action",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		items, err := svc.ListEvidence(cmd.Context(), cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "list evidence")
		}
		return printJSON(cmd, items)
	}),
}

var evidenceVerifyCmd = &cobra.Command{
	Use:   "verify <evidence-id>",
	Short: "Review an evidence item (four-eyes)",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		outcome, _ := cmd.Flags().GetString("outcome")
		comments, err := resolveText(cmd, "comments", false)
		if err != nil {
			return err
		}

		view, err := svc.VerifyEvidence(ctx, capa.VerifyEvidenceInput{
			EvidenceID: cmd.Flags().Arg(0),
			Reviewer:   actingPrincipal(),
			Outcome:    outcome,
			Comments:   comments,
		})
		if err != nil {
			logging.Error(ctx, "verify evidence failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "verify evidence")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "reviewed evidence: %s outcome=%s by=%s\n", view.EvidenceID, view.Outcome, view.ReviewedBy); err != nil {
			return errs.Wrap(err, "write verify output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.AddCommand(evidenceAttachCmd, evidenceListCmd, evidenceVerifyCmd)

	evidenceAttachCmd.Flags().String("title", "", "Evidence title")
	evidenceAttachCmd.Flags().String("description", "", "Evidence description")
	evidenceAttachCmd.Flags().String("description-file", "", "Read the description from a file")
	evidenceAttachCmd.Flags().String("type", "document", "Evidence type (document|link)")
	evidenceAttachCmd.Flags().String("url", "", "Link target for type=link")
	evidenceAttachCmd.Flags().String("file-ref", "", "Document reference for type=document")

	evidenceVerifyCmd.Flags().String("outcome", "approved", "Outcome (approved|rejected)")
	evidenceVerifyCmd.Flags().String("comments", "", "Review comments, required on rejection")
	evidenceVerifyCmd.Flags().String("comments-file", "", "Read comments from a file")
}
