// Package logger builds the process slog logger and carries request and
// cycle scoped loggers through context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

const service = "collector"

// New returns a JSON logger on stdout. Debug level is on for local and dev
// environments or when debug is set.
func New(appEnv string, debug bool) *slog.Logger {
	return NewWriter(os.Stdout, appEnv, debug)
}

// NewWriter is New with an explicit destination. Every line carries the
// service name and environment.
func NewWriter(w io.Writer, appEnv string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug || appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Durations read better as "1.5s" than as nanoseconds.
			if a.Value.Kind() == slog.KindDuration {
				return slog.String(a.Key, a.Value.Duration().String())
			}
			return a
		},
	})
	return slog.New(h).With("service", service, "env", appEnv)
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
