package observability

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName identifies this service in traces.
const DefaultServiceName = "arbot-puppet"

var (
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
)

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	// ServiceName defaults to DefaultServiceName.
	ServiceName string

	// Exporter is "stdout" or "none".
	Exporter string
}

// InitTracing configures the global tracer. With exporter "none" (or
// empty) spans are created against a no-op provider.
func InitTracing(cfg TracingConfig) error {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}

	switch cfg.Exporter {
	case "", "none":
		tracer = otel.GetTracerProvider().Tracer(name)
		return nil
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create stdout exporter: %w", err)
		}
		res, err := resource.New(
			context.Background(),
			resource.WithAttributes(semconv.ServiceName(name)),
		)
		if err != nil {
			return fmt.Errorf("create resource: %w", err)
		}
		tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tracerProvider)
		tracer = tracerProvider.Tracer(name)
		log.Println("Tracing initialized with stdout exporter")
		return nil
	default:
		return fmt.Errorf("unknown traces exporter: %s", cfg.Exporter)
	}
}

// ShutdownTracing flushes pending spans.
func ShutdownTracing(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	return tracerProvider.Shutdown(ctx)
}

// StartSpan starts a span on the configured tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(DefaultServiceName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
