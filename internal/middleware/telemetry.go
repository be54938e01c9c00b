package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware returns otelgin followed by a handler that tags the
// server span with the actor and the ranking query parameters. Register it
// with router.Use(TracingMiddleware(name)...) after the request id and actor
// middleware.
func TracingMiddleware(serviceName string) []gin.HandlerFunc {
	return []gin.HandlerFunc{otelgin.Middleware(serviceName), annotateSpan}
}

func annotateSpan(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		c.Next()
		return
	}

	if actor := Actor(c); actor != "" {
		span.SetAttributes(attribute.String("user.id", actor))
	}
	if requestID := RequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request.id", requestID))
	}
	for _, param := range []string{"limit", "timeframe", "hours"} {
		if v := c.Query(param); v != "" {
			span.SetAttributes(attribute.String("query."+param, v))
		}
	}

	c.Next()

	// the span is still open here; otelgin ends it once this handler returns
	for _, ginErr := range c.Errors {
		if ginErr.Err != nil {
			span.RecordError(ginErr.Err)
			span.SetStatus(codes.Error, ginErr.Error())
		}
	}
}
