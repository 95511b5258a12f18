package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"eqms/internal/bootstrap/logging"
	"eqms/internal/errs"
)

type errorBody struct {
	Kind    errs.Kind `json:"kind"`
	Message string    `json:"message"`
}

type listBody[T any] struct {
	Items []T `json:"items"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, listBody[T]{Items: items})
}

// writeError renders a typed failure. Internal errors are logged and their
// details withheld from the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)
	message := err.Error()

	if kind == errs.KindInternal {
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
		message = "internal error"
	} else {
		logging.Debug(r.Context(), "request rejected", slog.String("kind", string(kind)), slog.String("message", message))
	}

	writeJSON(w, status, errorBody{Kind: kind, Message: message})
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInvalidState, errs.KindAlreadyReviewed, errs.KindConflict:
		return http.StatusConflict
	case errs.KindIllegalTransition:
		return http.StatusUnprocessableEntity
	case errs.KindAuthorization:
		return http.StatusForbidden
	case errs.KindPrecondition:
		return http.StatusPreconditionFailed
	case errs.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.WithKind(errs.KindValidation, err, "invalid request body")
	}
	return nil
}

func parseDate(field string, raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, errs.E(errs.KindValidation, "%s must be a YYYY-MM-DD date", field)
	}
	return t, nil
}
