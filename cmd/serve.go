package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"eqms/internal/bootstrap"
	"eqms/internal/bootstrap/logging"
	"eqms/internal/errs"
	"eqms/internal/transport/httpapi"
	"eqms/internal/usecase/capa"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the CAPA REST API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *capa.Service) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		if err := app.CheckSchema(ctx); err != nil {
			return err
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}

		router := httpapi.NewRouter(svc, httpapi.Options{
			AllowedOrigins: app.Config.HTTP.AllowedOrigins,
		})
		if err := httpapi.Serve(ctx, httpapi.ServerConfig{
			Addr:         addr,
			ReadTimeout:  app.Config.HTTP.ReadTimeout,
			WriteTimeout: app.Config.HTTP.WriteTimeout,
		}, router); err != nil {
			logging.Error(ctx, "http server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve http")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
}
