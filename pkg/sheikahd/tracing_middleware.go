package sheikahd

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Fl0rencess720/sheikah/pkg/common/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// tracingMiddleware 为每个请求创建 server span，并透传或生成 request id
func tracingMiddleware() gin.HandlerFunc {
	tracer := observability.Tracer("http")

	return func(c *gin.Context) {
		reqCtx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		reqCtx, span := tracer.Start(reqCtx, c.Request.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		requestID := strings.TrimSpace(c.GetHeader(observability.RequestIDHeader))
		if requestID == "" {
			requestID = observability.RequestIDFromContext(reqCtx)
		}
		reqCtx = observability.ContextWithRequestID(reqCtx, requestID)

		c.Request = c.Request.WithContext(reqCtx)
		c.Writer.Header().Set(observability.RequestIDHeader, requestID)

		span.SetAttributes(
			attribute.String("request.id", requestID),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", c.Request.URL.Path),
		)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		switch {
		case len(c.Errors) > 0:
			err := errors.New(c.Errors.String())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= http.StatusInternalServerError:
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
