package logging

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type contextKey struct{}

// New builds the process logger. Development environments get the console
// writer; everything else logs JSON lines.
func New(level, env string) zerolog.Logger {
	return NewWithWriter(level, env, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(level, env string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if env == "development" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "clinicgrid").Logger()
}

// WithLogger returns a derived context carrying logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored on ctx, or a disabled logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return zerolog.Nop()
	}
	if logger, ok := ctx.Value(contextKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// FromContextOr returns the logger stored on ctx, or fallback.
func FromContextOr(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey{}).(zerolog.Logger); ok {
			return logger
		}
	}
	return fallback
}

// RequestLogger attaches a request-scoped logger to the context and writes one
// line per completed request.
func RequestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := base.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(WithLogger(r.Context(), reqLogger)))

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			evt := reqLogger.Info()
			if status >= http.StatusInternalServerError {
				evt = reqLogger.Error()
			} else if status >= http.StatusBadRequest {
				evt = reqLogger.Warn()
			}
			evt.Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
