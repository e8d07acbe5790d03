package observability

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const RequestIDHeader = "x-sheikah-request-id"

type requestIDContextKey struct{}

// ContextWithRequestID stores request ID in context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns request ID from context, or derives one.
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDContextKey{}).(string); ok && requestID != "" {
		return requestID
	}

	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}

	return uuid.NewString()
}
