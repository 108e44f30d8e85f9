package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/adamwoolhether/releasy/internal/web/errs"
	"github.com/adamwoolhether/releasy/internal/web/mux"
)

// Panics turns a handler panic into an internal error, logging the stack
// under the request id. It belongs inside Errors so the client still gets
// a rendered 500.
func Panics(log *slog.Logger) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				log.ErrorContext(ctx, "handler panic", "request_id", mux.RequestID(ctx), "method", r.Method, "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
				err = errs.NewInternal(fmt.Errorf("panic: %v", rec))
			}()

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
