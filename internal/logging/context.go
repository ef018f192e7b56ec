package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 7)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if id := stringFromContext(ctx, workerCtxKey{}); id != "" {
		fields = append(fields, zap.String("worker.id", id))
	}
	if id := stringFromContext(ctx, messageCtxKey{}); id != "" {
		fields = append(fields, zap.String("message.id", id))
	}
	if id := stringFromContext(ctx, supplyRequestCtxKey{}); id != "" {
		fields = append(fields, zap.String("supply_request.id", id))
	}
	if id := stringFromContext(ctx, requestCtxKey{}); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}

	return fields
}

type workerCtxKey struct{}
type messageCtxKey struct{}
type supplyRequestCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// Ids longer than this are truncated before they reach a log line.
const maxIDLen = 128

func withString(ctx context.Context, key any, v string) context.Context {
	if v == "" {
		return ctx
	}
	if len(v) > maxIDLen {
		v = v[:maxIDLen]
	}
	return context.WithValue(ctx, key, v)
}

func stringFromContext(ctx context.Context, key any) string {
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// WithWorkerID tags ctx with the field worker identity.
func WithWorkerID(ctx context.Context, id string) context.Context {
	return withString(ctx, workerCtxKey{}, id)
}

// WorkerIDFromContext returns the worker id, or "".
func WorkerIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, workerCtxKey{})
}

// WithMessageID tags ctx with the originating worker message.
func WithMessageID(ctx context.Context, id string) context.Context {
	return withString(ctx, messageCtxKey{}, id)
}

// MessageIDFromContext returns the message id, or "".
func MessageIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, messageCtxKey{})
}

// WithSupplyRequestID tags ctx with a supply request.
func WithSupplyRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, supplyRequestCtxKey{}, id)
}

// SupplyRequestIDFromContext returns the supply request id, or "".
func SupplyRequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, supplyRequestCtxKey{})
}

// WithRequestID tags ctx with the inbound HTTP request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext returns the HTTP request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestCtxKey{})
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
