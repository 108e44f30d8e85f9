package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/adamwoolhether/releasy/internal/validate"
	"github.com/adamwoolhether/releasy/internal/web"
	"github.com/adamwoolhether/releasy/internal/web/errs"
	"github.com/adamwoolhether/releasy/internal/web/mux"
)

// Errors handles errors coming out of the call chain, rendering them as
// {"error":{...}} documents.
func Errors(log *slog.Logger) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			if fieldErr, ok := errors.AsType[validate.FieldErrors](err); ok {
				return web.RespondError(ctx, w, errs.FromFields(fieldErr))
			}

			appErr, ok := errors.AsType[*errs.Error](err)
			if !ok { // to catch errs that may have escaped, obscure them from public view.
				appErr = errs.NewInternal(err)
			}

			reqLog := log.With("request_id", mux.RequestID(ctx))
			reqLog.Error(err.Error(), "code", appErr.Code, "source_err_file", path.Base(appErr.FileName), "source_err_func", path.Base(appErr.FuncName))

			if appErr.InnerErr { // after logging, obscure the internal error from public view.
				appErr.Message = http.StatusText(appErr.Status)
			}

			return web.RespondError(ctx, w, appErr)
		}

		return h
	}

	return m
}
