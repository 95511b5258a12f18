package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"eqms/internal/bootstrap/logging"
	domaincapa "eqms/internal/domain/capa"
)

// The identity provider in front of the API authenticates the caller and
// forwards the user and comma-separated roles in these headers.
const (
	headerUser  = "X-Remote-User"
	headerRoles = "X-Remote-Roles"
)

type principalKey struct{}

func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var roles []string
		for _, role := range strings.Split(r.Header.Get(headerRoles), ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
		p := domaincapa.NewPrincipal(r.Header.Get(headerUser), roles...)
		ctx := context.WithValue(r.Context(), principalKey{}, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(r *http.Request) domaincapa.Principal {
	p, _ := r.Context().Value(principalKey{}).(domaincapa.Principal)
	return p
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequest(r.Context(), middleware.GetReqID(r.Context()), principalFrom(r).UserID)
		ctx = logging.WithAttrs(ctx, slog.String("component", "transport.http"))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.Info(ctx, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
