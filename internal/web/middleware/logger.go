// Package middleware provides the handler chain shared by every route of
// the in-process release service.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/adamwoolhether/releasy/internal/web/mux"
)

// Logger logs the start and completion of every request. The query string
// is not logged since download tokens and presign tokens travel there.
func Logger(log *slog.Logger) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v := mux.Values(ctx)
			reqLog := log.With("request_id", v.RequestID, "method", r.Method, "path", r.URL.Path)
			if v.TraceID != "" {
				reqLog = reqLog.With("trace_id", v.TraceID)
			}

			reqLog.DebugContext(ctx, "request started", "remoteaddr", r.RemoteAddr)

			err := handler(ctx, w, r)

			reqLog.DebugContext(ctx, "request completed", "statusCode", v.StatusCode, "since", time.Since(v.Start).String())

			return err
		}

		return h
	}

	return m
}
