package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingOptions customises the server span middleware. Nil fields fall back to the otel globals.
type TracingOptions struct {
	ServiceName    string
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
}

// Tracing starts a server span per request and extracts the incoming trace context.
// It must run before EnrichContext so the trace id is reused for logs.
func Tracing(opts TracingOptions) gin.HandlerFunc {
	service := opts.ServiceName
	if service == "" {
		service = "xqor3-auth"
	}
	options := make([]otelgin.Option, 0, 2)
	if opts.TracerProvider != nil {
		options = append(options, otelgin.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgin.WithPropagators(opts.Propagators))
	}
	return otelgin.Middleware(service, options...)
}
