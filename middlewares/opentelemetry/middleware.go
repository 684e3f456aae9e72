// Package opentelemetry starts a server span for every request.
package opentelemetry

import (
	"github.com/dormoron/gimme"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/dormoron/gimme/middlewares/opentelemetry"

// MiddlewareBuilder builds the tracing middleware. Tracer defaults to one
// from the global TracerProvider.
type MiddlewareBuilder struct {
	Tracer trace.Tracer
}

// Build returns a middleware that continues any trace propagated in the
// request headers and names the span after the matched route. The span is
// on the request context, so later stages can record errors on it.
func (m *MiddlewareBuilder) Build() gimme.Middleware {
	if m.Tracer == nil {
		m.Tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}

	return func(next gimme.HandleFunc) gimme.HandleFunc {
		return func(ctx *gimme.Context) {
			reqCtx := ctx.Request.Context()
			reqCtx = otel.GetTextMapPropagator().Extract(reqCtx, propagation.HeaderCarrier(ctx.Request.Header))

			reqCtx, span := m.Tracer.Start(reqCtx, "unknown", trace.WithSpanKind(trace.SpanKindServer))
			defer func() {
				if ctx.MatchedRoute != "" {
					span.SetName(ctx.MatchedRoute)
				}
				status := ctx.RespStatusCode
				if status == 0 {
					status = 200
				}
				span.SetAttributes(attribute.Int("http.status", status))
				if status >= 500 {
					span.SetStatus(codes.Error, "")
				}
				span.End()
			}()

			span.SetAttributes(
				attribute.String("http.method", ctx.Request.Method),
				attribute.String("http.url", ctx.Request.URL.String()),
				attribute.String("http.scheme", ctx.Request.URL.Scheme),
				attribute.String("http.host", ctx.Request.Host),
			)
			if id := ctx.RequestID(); id != "" {
				span.SetAttributes(attribute.String("http.request_id", id))
			}

			ctx.Request = ctx.Request.WithContext(reqCtx)
			next(ctx)
		}
	}
}
