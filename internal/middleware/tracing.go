package middleware

import (
	"fmt"

	"stackit/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// fiberCarrier reads propagation headers straight from the fasthttp request.
type fiberCarrier struct{ c *fiber.Ctx }

func (fc fiberCarrier) Get(key string) string { return fc.c.Get(key) }
func (fc fiberCarrier) Set(key, value string) { fc.c.Request().Header.Set(key, value) }
func (fc fiberCarrier) Keys() []string {
	keys := make([]string, 0, len(fc.c.GetReqHeaders()))
	for k := range fc.c.GetReqHeaders() {
		keys = append(keys, k)
	}
	return keys
}

var _ propagation.TextMapCarrier = fiberCarrier{}

// TracingMiddleware opens a server span per request, continuing any trace
// the caller propagated, and echoes the trace id in X-Trace-ID.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), fiberCarrier{c})
		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Route().Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.Path()),
				attribute.String("net.peer.ip", c.IP()),
			),
		)
		defer span.End()

		tid := span.SpanContext().TraceID().String()
		c.Locals("traceID", tid)
		c.Set("X-Trace-ID", tid)
		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if rid := c.Locals("requestid"); rid != nil {
			span.SetAttributes(attribute.String("request.id", fmt.Sprint(rid)))
		}
		if uid := c.Locals("userID"); uid != nil {
			span.SetAttributes(attribute.String("user.id", fmt.Sprint(uid)))
		}
		if err != nil {
			span.RecordError(err)
		}
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		}
		return err
	}
}
