package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type sessionCtxKey struct{}
type callCtxKey struct{}
type iterationCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 5)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := SessionIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("session.id", id))
	}
	if id := CallIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("call.id", id))
	}
	if n, ok := IterationFromContext(ctx); ok {
		fields = append(fields, zap.Int("iteration", n))
	}
	return fields
}

// WithSessionID tags the context with the agent session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, id)
}

// SessionIDFromContext returns the session identifier, or "".
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionCtxKey{}).(string)
	return id
}

// WithCallID tags the context with the tool call being verified.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callCtxKey{}, id)
}

// CallIDFromContext returns the tool call identifier, or "".
func CallIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(callCtxKey{}).(string)
	return id
}

// WithIteration tags the context with the loop iteration number.
func WithIteration(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, iterationCtxKey{}, n)
}

// IterationFromContext returns the loop iteration number if set.
func IterationFromContext(ctx context.Context) (int, bool) {
	n, ok := ctx.Value(iterationCtxKey{}).(int)
	return n, ok
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Nop()
}
