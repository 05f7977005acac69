// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID keys the per-request correlation id in a context.
const CorrelationID LogContextKey = "correlation_id"

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// SessionLogger provides structured logging scoped to one user's
// connection-state session.
type SessionLogger struct {
	userID string
	logger *Logger
}

// NewSessionLogger creates a logger scoped to the given user's session.
func NewSessionLogger(userID string) *SessionLogger {
	return &SessionLogger{userID: userID, logger: GlobalLogger}
}

// LogPass logs the outcome of a reconciliation pass.
func (l *SessionLogger) LogPass(ctx context.Context, incoming, outgoing, peers int) {
	l.logger.InfoContext(ctx, "reconciliation pass",
		slog.String("user_id", l.userID),
		slog.Int("incoming", incoming),
		slog.Int("outgoing", outgoing),
		slog.Int("peers", peers),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	)
}

// LogPassError logs a failed reconciliation pass; cached state is kept.
func (l *SessionLogger) LogPassError(ctx context.Context, err error) {
	l.logger.ErrorContext(ctx, "reconciliation pass failed",
		slog.String("user_id", l.userID),
		slog.String("error", err.Error()),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	)
}

// LogCommand logs a command-handler invocation.
func (l *SessionLogger) LogCommand(ctx context.Context, command string, fields map[string]interface{}) {
	attrs := []any{
		slog.String("user_id", l.userID),
		slog.String("command", command),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.InfoContext(ctx, "connection command", attrs...)
}

// LogBestEffortFailure logs a failure in a fire-and-forget side effect.
func (l *SessionLogger) LogBestEffortFailure(ctx context.Context, operation string, err error) {
	l.logger.WarnContext(ctx, "best-effort side effect failed",
		slog.String("user_id", l.userID),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	)
}
