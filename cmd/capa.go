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

var capaCmd = &cobra.Command{
	Use:   "capa",
	Short: "Manage CAPA records",
}

var capaCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a CAPA and start its workflow in the correction phase",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		title, _ := cmd.Flags().GetString("title")
		description, err := resolveText(cmd, "description", true)
		if err != nil {
			return err
		}
		source, _ := cmd.Flags().GetString("source")
		risk, _ := cmd.Flags().GetString("risk")
		assignee, _ := cmd.Flags().GetString("assignee")
		approver, _ := cmd.Flags().GetString("approver")
		patientSafety, _ := cmd.Flags().GetBool("patient-safety")
		productPerformance, _ := cmd.Flags().GetBool("product-performance")
		compliance, _ := cmd.Flags().GetBool("compliance")
		due, err := parseDateFlag(cmd, "due")
		if err != nil {
			return err
		}

		draft := domaincapa.CapaDraft{
			Title:                    title,
			Description:              description,
			Source:                   domaincapa.Source(source),
			RiskPriority:             domaincapa.RiskPriority(risk),
			PatientSafetyImpact:      patientSafety,
			ProductPerformanceImpact: productPerformance,
			ComplianceImpact:         compliance,
			Assignee:                 assignee,
			AssignedApprover:         approver,
		}
		if due != nil {
			draft.DueDate = *due
		}

		view, err := svc.CreateCapa(ctx, actingPrincipal(), draft)
		if err != nil {
			logging.Error(ctx, "create capa failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create capa")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created capa: %s workflow=%s phase=%s\n", view.CapaID, view.WorkflowID, view.Phase); err != nil {
			return errs.Wrap(err, "write create output")
		}
		return nil
	}),
}

var capaShowCmd = &cobra.Command{
	Use:   "show <capa-id>",
	Short: "Show a CAPA with its workflow phase",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		view, err := svc.GetCapa(cmd.Context(), cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "get capa")
		}
		return printJSON(cmd, view)
	}),
}

var capaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List CAPAs",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		phases, _ := cmd.Flags().GetStringSlice("phase")
		source, _ := cmd.Flags().GetString("source")
		risk, _ := cmd.Flags().GetString("risk")
		assignee, _ := cmd.Flags().GetString("assignee")
		limit, _ := cmd.Flags().GetInt("limit")

		items, err := svc.ListCapas(cmd.Context(), capa.ListCapasInput{
			Phases:       phases,
			Source:       source,
			RiskPriority: risk,
			Assignee:     assignee,
			Limit:        limit,
		})
		if err != nil {
			return errs.Wrap(err, "list capas")
		}

		out := cmd.OutOrStdout()
		if len(items) == 0 {
			_, err := fmt.Fprintln(out, "no capas")
			return err
		}
		for _, item := range items {
			if _, err := fmt.Fprintf(out, "%s\t%s\t%s\tdue=%s\t%s\n", item.CapaID, item.Phase, item.RiskPriority, item.DueDate, item.Title); err != nil {
				return errs.Wrap(err, "write list output")
			}
		}
		return nil
	}),
}

var capaUpdateCmd = &cobra.Command{
	Use:   "update <capa-id>",
	Short: "Update mutable CAPA fields",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		var patch domaincapa.CapaPatch
		if cmd.Flags().Changed("title") {
			v, _ := cmd.Flags().GetString("title")
			patch.Title = &v
		}
		if cmd.Flags().Changed("description") {
			v, _ := cmd.Flags().GetString("description")
			patch.Description = &v
		}
		if cmd.Flags().Changed("risk") {
			v, _ := cmd.Flags().GetString("risk")
			risk := domaincapa.RiskPriority(v)
			patch.RiskPriority = &risk
		}
		if cmd.Flags().Changed("assignee") {
			v, _ := cmd.Flags().GetString("assignee")
			patch.Assignee = &v
		}
		due, err := parseDateFlag(cmd, "due")
		if err != nil {
			return err
		}
		patch.DueDate = due

		view, err := svc.UpdateCapa(ctx, actingPrincipal(), cmd.Flags().Arg(0), patch)
		if err != nil {
			logging.Error(ctx, "update capa failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "update capa")
		}
		return printJSON(cmd, view)
	}),
}

var capaDeleteCmd = &cobra.Command{
	Use:   "delete <capa-id>",
	Short: "Delete a CAPA that has not left the correction phase",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		capaID := cmd.Flags().Arg(0)
		if err := svc.DeleteCapa(ctx, actingPrincipal(), capaID); err != nil {
			logging.Error(ctx, "delete capa failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "delete capa")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted capa: %s\n", capaID); err != nil {
			return errs.Wrap(err, "write delete output")
		}
		return nil
	}),
}

var capaAssignCmd = &cobra.Command{
	Use:   "assign <capa-id>",
	Short: "Assign the approver of a CAPA workflow",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *capa.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		approver, _ := cmd.Flags().GetString("approver")
		record, err := svc.GetCapa(ctx, cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "get capa")
		}
		wf, err := svc.AssignApprover(ctx, actingPrincipal(), record.WorkflowID, approver)
		if err != nil {
			logging.Error(ctx, "assign approver failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "assign approver")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "assigned approver: %s workflow=%s\n", wf.AssignedApprover, wf.WorkflowID); err != nil {
			return errs.Wrap(err, "write assign output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(capaCmd)
	capaCmd.AddCommand(capaCreateCmd, capaShowCmd, capaListCmd, capaUpdateCmd, capaDeleteCmd, capaAssignCmd)

	capaCreateCmd.Flags().String("title", "", "CAPA title")
	capaCreateCmd.Flags().String("description", "", "Problem description")
	capaCreateCmd.Flags().String("description-file", "", "Read the description from a file")
	capaCreateCmd.Flags().String("source", "", "Source (complaint|audit|internal)")
	capaCreateCmd.Flags().String("risk", "", "Risk priority (low|medium|high)")
	capaCreateCmd.Flags().String("due", "", "Due date YYYY-MM-DD")
	capaCreateCmd.Flags().String("assignee", "", "Responsible user")
	capaCreateCmd.Flags().String("approver", "", "Assigned approver")
	capaCreateCmd.Flags().Bool("patient-safety", false, "Patient safety impact")
	capaCreateCmd.Flags().Bool("product-performance", false, "Product performance impact")
	capaCreateCmd.Flags().Bool("compliance", false, "Compliance impact")

	capaListCmd.Flags().StringSlice("phase", nil, "Phase filter, repeatable")
	capaListCmd.Flags().String("source", "", "Source filter")
	capaListCmd.Flags().String("risk", "", "Risk priority filter")
	capaListCmd.Flags().String("assignee", "", "Assignee filter")
	capaListCmd.Flags().Int("limit", 0, "Maximum rows, 0 for all")

	capaUpdateCmd.Flags().String("title", "", "New title")
	capaUpdateCmd.Flags().String("description", "", "New description")
	capaUpdateCmd.Flags().String("risk", "", "New risk priority")
	capaUpdateCmd.Flags().String("assignee", "", "New assignee")
	capaUpdateCmd.Flags().String("due", "", "New due date YYYY-MM-DD")

	capaAssignCmd.Flags().String("approver", "", "Approver user id")
}
