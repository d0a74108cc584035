// Package log provides the component-tagged logger and request middleware
// used by the HTTP surface. Everything else in the tree logs through
// log/slog directly.
package log

import (
	"context"
	"log/slog"
	"os"
)

// Logger tags every record it emits with the component that owns it.
type Logger struct {
	*slog.Logger
	component string
}

// Config holds logger configuration.
type Config struct {
	Level     slog.Level
	Component string

	// Handler overrides the output handler, for tests. Nil gets a text
	// handler on stdout at the configured level.
	Handler slog.Handler
}

// New creates a component logger.
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.Level,
		})
	}
	return &Logger{
		Logger:    slog.New(handler),
		component: config.Component,
	}
}

// ErrorContext logs at Error level with the component attached.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.Logger.ErrorContext(ctx, msg, append([]any{FieldComponent, l.component}, args...)...)
}
