package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"

	"gitlab.com/gfxd/gpu-mode-service/internal/config"
	"gitlab.com/gfxd/gpu-mode-service/utils"
)

const ServiceName = "gfxd"

// InitTracer installs a global tracer provider exporting over OTLP/gRPC. With no endpoint
// configured tracing stays a no-op. The returned function flushes and stops the exporter.
func InitTracer(ctx context.Context, cfg config.Tracing) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	secureOption := otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, ""))
	if cfg.Insecure {
		secureOption = otlptracegrpc.WithInsecure()
	}

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
		secureOption,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	resources, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", ServiceName),
			attribute.String("service.version", utils.Version),
			attribute.String("library.language", "go"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resources),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
