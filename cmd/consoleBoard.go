package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"eqms/internal/bootstrap"
	"eqms/internal/bootstrap/logging"
	"eqms/internal/errs"
	"eqms/internal/usecase/capa"
	"eqms/internal/usecase/capaconsole"
)

var consoleBoardCmd = &cobra.Command{
	Use:   "board",
	Short: "Start the CAPA board (CAPAs by phase with workflow history)",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *capa.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		if err := app.CheckSchema(ctx); err != nil {
			return err
		}

		phases, _ := cmd.Flags().GetStringSlice("phase")
		assignee, _ := cmd.Flags().GetString("assignee")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 5 * time.Second
		}

		model := capaconsole.NewBoardModel(ctx, svc, capaconsole.BoardOptions{
			Phases:          phases,
			Assignee:        assignee,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run capa board")
		}
		return nil
	}),
}

func init() {
	consoleCmd.AddCommand(consoleBoardCmd)
	consoleBoardCmd.Flags().StringSlice("phase", nil, "Only show these phases")
	consoleBoardCmd.Flags().String("assignee", "", "Only show CAPAs assigned to this user")
	consoleBoardCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}
