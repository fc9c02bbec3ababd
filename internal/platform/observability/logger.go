package observability

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// Logger wraps slog.Logger with trace context integration.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger writing to stdout. format is "json" or "text".
func NewLogger(level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(level),
		AddSource: true,
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithTrace extracts trace and span IDs from ctx and adds them as log fields.
func (l *Logger) WithTrace(ctx context.Context) *slog.Logger {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return l.Logger
	}

	return l.With(
		slog.String("trace_id", span.SpanContext().TraceID().String()),
		slog.String("span_id", span.SpanContext().SpanID().String()),
	)
}

// LogError logs an error with trace context.
func (l *Logger) LogError(ctx context.Context, msg string, err error, fields ...any) {
	l.WithTrace(ctx).Error(msg, append(fields, slog.Any("error", err))...)
}

// LogInfo logs at info level with trace context.
func (l *Logger) LogInfo(ctx context.Context, msg string, fields ...any) {
	l.WithTrace(ctx).Info(msg, fields...)
}

// LogDebug logs at debug level with trace context.
func (l *Logger) LogDebug(ctx context.Context, msg string, fields ...any) {
	l.WithTrace(ctx).Debug(msg, fields...)
}

// LogWarn logs at warn level with trace context.
func (l *Logger) LogWarn(ctx context.Context, msg string, fields ...any) {
	l.WithTrace(ctx).Warn(msg, fields...)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
