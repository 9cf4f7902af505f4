// Package otelhelper provides distributed tracing for turn execution and
// node dispatch.
package otelhelper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys shared by the run and node spans.
const (
	WorkflowIDKey = "convflow.workflow.id"
	SessionIDKey  = "convflow.session.id"
	TenantIDKey   = "convflow.tenant.id"
	NodeIDKey     = "convflow.node.id"
	NodeTypeKey   = "convflow.node.type"
	MessageIDKey  = "convflow.message.id"
)

// NewTracer builds an OTLP-exporting tracer for the service and installs
// its provider as the global one. The exporter endpoint comes from the
// standard OTEL_EXPORTER_OTLP_* environment variables.
//
// nolint:ireturn // Returning the interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, serviceName string) (trace.Tracer, error) {
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceNamespace("convflow"),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Tracer(serviceName), nil
}
