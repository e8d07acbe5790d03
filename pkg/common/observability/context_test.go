package observability

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestRequestIDFromContext_Stored(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	require.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestRequestIDFromContext_EmptyIsIgnored(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "")
	id := RequestIDFromContext(ctx)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
}

func TestRequestIDFromContext_FallsBackToTraceID(t *testing.T) {
	traceID := trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)
	require.Equal(t, traceID.String(), RequestIDFromContext(ctx))
}
