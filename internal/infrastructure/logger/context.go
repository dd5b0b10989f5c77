package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	userIDKey
	roleKey
	taskIDKey
)

// WithContext stores logger in ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRequest tags ctx and logger with the HTTP request id
func WithRequest(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	logger = logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, logger), logger
}

// WithActor tags ctx and logger with the authenticated user and role
func WithActor(ctx context.Context, logger *zap.Logger, userID, role string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, roleKey, role)
	logger = logger.With(zap.String("user_id", userID), zap.String("role", role))
	return WithContext(ctx, logger), logger
}

// WithTask tags ctx and logger with the background task being run
func WithTask(ctx context.Context, logger *zap.Logger, taskID, kind string, attempt int) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, taskIDKey, taskID)
	logger = logger.With(
		zap.String("task_id", taskID),
		zap.String("task_kind", kind),
		zap.Int("attempt", attempt),
	)
	return WithContext(ctx, logger), logger
}

func RequestID(ctx context.Context) string { return stringValue(ctx, requestIDKey) }
func UserID(ctx context.Context) string    { return stringValue(ctx, userIDKey) }
func Role(ctx context.Context) string      { return stringValue(ctx, roleKey) }
func TaskID(ctx context.Context) string    { return stringValue(ctx, taskIDKey) }

func stringValue(ctx context.Context, key ctxKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// Fields returns the correlation fields carried by ctx, including the
// active trace and span when one is recording
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := UserID(ctx); id != "" {
		fields = append(fields, zap.String("user_id", id))
	}
	if id := TaskID(ctx); id != "" {
		fields = append(fields, zap.String("task_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	return fields
}
