package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/releasy/internal/validate"
	"github.com/adamwoolhether/releasy/internal/web/errs"
	"github.com/adamwoolhether/releasy/internal/web/middleware"
	"github.com/adamwoolhether/releasy/internal/web/mux"
)

func TestErrors(t *testing.T) {
	tests := map[string]struct {
		err       error
		expStatus int
		expBody   string
	}{
		"none": {
			expStatus: http.StatusOK,
		},
		"app": {
			err:       errs.New(http.StatusNotFound, "not_found", errors.New("customer missing")),
			expStatus: http.StatusNotFound,
			expBody:   `{"error":{"code":"not_found","message":"customer missing"}}`,
		},
		"internal": {
			err:       errs.NewInternal(errors.New("secret db error")),
			expStatus: http.StatusInternalServerError,
			expBody:   `{"error":{"code":"internal","message":"Internal Server Error"}}`,
		},
		"plain": {
			err:       errors.New("unexpected failure"),
			expStatus: http.StatusInternalServerError,
			expBody:   `{"error":{"code":"internal","message":"Internal Server Error"}}`,
		},
		"fields": {
			err:       validate.FieldErrors{{Field: "email", Err: "This field is required"}},
			expStatus: http.StatusBadRequest,
			expBody:   `{"error":{"code":"validation_failed","message":"request validation failed","violations":[{"field":"email","code":"invalid","message":"This field is required"}]}}`,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			mw := middleware.Errors(slog.New(slog.DiscardHandler))
			handler := mw(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				if tc.err == nil {
					w.WriteHeader(http.StatusOK)
				}
				return tc.err
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			if err := handler(r.Context(), w, r); err != nil {
				t.Fatalf("unexpected error from middleware: %v", err)
			}

			if w.Code != tc.expStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.expStatus)
			}
			if diff := cmp.Diff(tc.expBody, w.Body.String()); diff != "" {
				t.Errorf("body mismatch (-exp +got):\n%s", diff)
			}
			if tc.expBody != "" && !json.Valid(w.Body.Bytes()) {
				t.Error("body should be JSON")
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	app := mux.New(mux.WithMiddleware(middleware.Logger(log)))
	app.Post("/v1/downloads/token", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		mux.SetStatus(ctx, http.StatusCreated)
		w.WriteHeader(http.StatusCreated)
		return nil
	})

	r := httptest.NewRequest(http.MethodPost, "/v1/downloads/token?secret=abc", nil)
	r.RemoteAddr = "127.0.0.1:1234"
	app.ServeHTTP(httptest.NewRecorder(), r)

	output := buf.String()
	for _, want := range []string{"request started", "request completed", "POST", "/v1/downloads/token", "127.0.0.1:1234", "statusCode=201", "request_id=req_"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in log output: %s", want, output)
		}
	}
	if strings.Contains(output, "secret=abc") {
		t.Errorf("query string should not be logged: %s", output)
	}
}

func TestPanics(t *testing.T) {
	t.Run("noPanic", func(t *testing.T) {
		handler := middleware.Panics(slog.New(slog.DiscardHandler))(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			return nil
		})

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if err := handler(r.Context(), httptest.NewRecorder(), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("recovery", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, nil))

		handler := middleware.Panics(log)(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			panic("something broke")
		})

		r := httptest.NewRequest(http.MethodGet, "/v1/releases", nil)
		err := handler(r.Context(), httptest.NewRecorder(), r)

		appErr, ok := errors.AsType[*errs.Error](err)
		if !ok {
			t.Fatalf("expected *errs.Error, got %T: %v", err, err)
		}
		if !appErr.IsInternal() || !strings.Contains(appErr.Message, "something broke") {
			t.Errorf("unexpected error: %+v", appErr)
		}

		for _, want := range []string{"handler panic", "path=/v1/releases", "stack="} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("expected %q in log output: %s", want, buf.String())
			}
		}
	})

	t.Run("renderedByErrors", func(t *testing.T) {
		discard := slog.New(slog.DiscardHandler)
		app := mux.New(mux.WithMiddleware(
			middleware.Errors(discard),
			middleware.Panics(discard),
		))
		app.Get("/boom", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			panic("boom")
		})

		w := httptest.NewRecorder()
		app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if strings.Contains(w.Body.String(), "boom") {
			t.Errorf("panic value leaked to the client: %s", w.Body)
		}
	})
}
