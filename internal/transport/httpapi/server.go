package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"eqms/internal/bootstrap/logging"
	"eqms/internal/errs"
)

const shutdownTimeout = 10 * time.Second

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests.
func Serve(ctx context.Context, cfg ServerConfig, h http.Handler) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "transport.http"))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.Info(logCtx, "http server listening", slog.String("addr", cfg.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.Wrap(err, "listen and serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(err, "shutdown http server")
	}
	logging.Info(logCtx, "http server stopped")
	return nil
}
