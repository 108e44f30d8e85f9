package mux

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// RequestIDHeader carries a caller-chosen request id. The App echoes it, or
// the id it generated, on every response.
const RequestIDHeader = "X-Request-Id"

type ctxKey int

const valuesKey ctxKey = 1

// RequestValues is the per-request state handlers and middleware share.
type RequestValues struct {
	RequestID  string
	TraceID    string
	Start      time.Time
	Tracer     trace.Tracer
	StatusCode int
}

// Values returns the request's values. Outside a request it returns a
// detached zero set, so callers never nil-check.
func Values(ctx context.Context) *RequestValues {
	if v, ok := ctx.Value(valuesKey).(*RequestValues); ok {
		return v
	}

	return &RequestValues{
		Start:  time.Now(),
		Tracer: noop.NewTracerProvider().Tracer(""),
	}
}

// RequestID is shorthand for Values(ctx).RequestID.
func RequestID(ctx context.Context) string {
	return Values(ctx).RequestID
}

// SetStatus records the status a handler responded with.
func SetStatus(ctx context.Context, status int) {
	if v, ok := ctx.Value(valuesKey).(*RequestValues); ok {
		v.StatusCode = status
	}
}

func withValues(ctx context.Context, v *RequestValues) context.Context {
	return context.WithValue(ctx, valuesKey, v)
}
