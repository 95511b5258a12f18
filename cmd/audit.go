package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"eqms/internal/bootstrap"
	"eqms/internal/bootstrap/logging"
	"eqms/internal/errs"
	"eqms/internal/usecase/capa"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Read and verify the workflow audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list <workflow-id>",
	Short: "List audit entries in sequence order",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		entries, err := svc.ListAuditEntries(cmd.Context(), cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "list audit entries")
		}
		return printJSON(cmd, entries)
	}),
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <workflow-id>",
	Short: "Recompute the audit hash chain",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		report, err := svc.VerifyAuditChain(cmd.Context(), cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "verify audit chain")
		}
		if err := printJSON(cmd, report); err != nil {
			return err
		}
		if !report.Valid {
			return errs.E(errs.KindPrecondition, "audit chain broken at seq %d", report.BrokenAtSeq)
		}
		return nil
	}),
}

var auditCorrectCmd = &cobra.Command{
	Use:   "correct <workflow-id>",
	Short: "Append a correction entry referencing an earlier one",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		seq, _ := cmd.Flags().GetUint64("seq")
		reason, err := resolveText(cmd, "reason", true)
		if err != nil {
			return err
		}
		set, _ := cmd.Flags().GetStringToString("set")
		corrected := make(map[string]any, len(set))
		for k, v := range set {
			corrected[k] = v
		}

		entry, err := svc.AppendAuditCorrection(ctx, capa.AuditCorrectionInput{
			WorkflowID:  cmd.Flags().Arg(0),
			CorrectsSeq: seq,
			Reason:      reason,
			Corrected:   corrected,
			Actor:       actingPrincipal(),
		})
		if err != nil {
			logging.Error(ctx, "append audit correction failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "append audit correction")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "appended correction: seq=%d corrects=%d\n", entry.Seq, seq); err != nil {
			return errs.Wrap(err, "write correct output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd, auditVerifyCmd, auditCorrectCmd)

	auditCorrectCmd.Flags().Uint64("seq", 0, "Sequence number of the entry being corrected")
	auditCorrectCmd.Flags().String("reason", "", "Reason for the correction")
	auditCorrectCmd.Flags().String("reason-file", "", "Read the reason from a file")
	auditCorrectCmd.Flags().StringToString("set", nil, "Corrected values as key=value pairs")
}
