// Package mux provides helpers for middleware and route handling.
package mux

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// App is the core web application, managing routing and middleware.
type App struct {
	mux        *http.ServeMux
	mw         []Middleware
	logger     *slog.Logger
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// Handler is a http.Handler that returns an error.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware defines a signature to chain Handler together.
type Middleware func(handler Handler) Handler

// New creates an App with the given options. A no-op tracer and the
// default slog logger are used unless overridden via options.
func New(optFns ...Option) *App {
	var opts options
	for _, opt := range optFns {
		opt(&opts)
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.tracer == nil {
		opts.tracer = noop.NewTracerProvider().Tracer("no-op tracer")
	}

	app := App{
		mux:        http.NewServeMux(),
		mw:         opts.mw,
		logger:     opts.logger,
		tracer:     opts.tracer,
		propagator: propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	}

	return &app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Group returns an App sharing the same routes whose middleware stack can
// be extended without affecting a.
func (a *App) Group() *App {
	return &App{
		mux:        a.mux,
		mw:         slices.Clone(a.mw),
		logger:     a.logger,
		tracer:     a.tracer,
		propagator: a.propagator,
	}
}

// Use appends the given middleware to the underlying mw stack. It only
// affects routes registered afterwards.
func (a *App) Use(mw ...Middleware) {
	a.mw = append(a.mw, mw...)
}

// Get registers a handler for GET requests at the given path.
func (a *App) Get(path string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodGet, path, fn, mw...)
}

// Post registers a handler for POST requests at the given path.
func (a *App) Post(path string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodPost, path, fn, mw...)
}

// Put registers a handler for PUT requests at the given path.
func (a *App) Put(path string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodPut, path, fn, mw...)
}

// Patch registers a handler for PATCH requests at the given path.
func (a *App) Patch(path string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodPatch, path, fn, mw...)
}

// Delete registers a handler for DELETE requests at the given path.
func (a *App) Delete(path string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodDelete, path, fn, mw...)
}

// Handle registers handler for method and path, wrapped in the route
// middleware followed by the App's middleware stack.
func (a *App) Handle(method, path string, handler Handler, mw ...Middleware) {
	handler = wrap(mw, handler)
	handler = wrap(a.mw, handler)

	h := func(w http.ResponseWriter, r *http.Request) {
		ctx, span := a.startSpan(r)
		defer span.End()

		v := RequestValues{
			RequestID: requestID(r),
			Start:     time.Now().UTC(),
			Tracer:    a.tracer,
		}
		if sc := span.SpanContext(); sc.TraceID().IsValid() {
			v.TraceID = sc.TraceID().String()
		}
		span.SetAttributes(attribute.String("releasy.request_id", v.RequestID))
		w.Header().Set(RequestIDHeader, v.RequestID)

		r = r.WithContext(withValues(ctx, &v))

		if err := handler(r.Context(), w, r); err != nil {
			a.logger.Error("mux", "request_id", v.RequestID, "handle", err)
		}
	}

	a.mux.HandleFunc(method+" "+path, h)
}

// requestID keeps a well-formed caller id and generates one otherwise.
func requestID(r *http.Request) string {
	id := r.Header.Get(RequestIDHeader)
	if id == "" || len(id) > 128 {
		return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	return id
}

// startSpan continues any trace context carried by the request.
func (a *App) startSpan(r *http.Request) (context.Context, trace.Span) {
	ctx := a.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := a.tracer.Start(ctx, "mux.handler", trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		attribute.String("http.request.method", r.Method),
		attribute.String("path", r.URL.Path),
	)

	return ctx, span
}

// wrap middleware around the handler and execute in order given.
func wrap(mw []Middleware, handler Handler) Handler {
	for _, mwFn := range slices.Backward(mw) {
		if mwFn != nil {
			handler = mwFn(handler)
		}
	}

	return handler
}
