package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/sage/pkg/tracing/exporters"
)

// SetupConfig holds the settings for the trace provider.
type SetupConfig struct {
	ServiceName string
	Exporter    exporters.Config
}

// Setup wires a batching OTLP trace provider into the global otel state and
// installs the package tracer. The returned function flushes and shuts the
// provider down.
func Setup(ctx context.Context, cfg SetupConfig) (func(context.Context) error, error) {
	exporter, err := exporters.NewOTLP(ctx, cfg.Exporter)
	if err != nil {
		return nil, err
	}

	res := sdkresource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	SetTracer(provider.Tracer(cfg.ServiceName))

	return provider.Shutdown, nil
}
