package main

import (
	"context"
	"io"

	"github.com/xoplog/ocbridge/ocotel"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"google.golang.org/grpc"
)

func newExporter(ctx context.Context, config Config, stdout io.Writer) (sdktrace.SpanExporter, error) {
	switch config.Exporter {
	case "otlp":
		exporter, err := otlptrace.New(ctx,
			otlptracegrpc.NewClient(
				otlptracegrpc.WithEndpoint(config.Endpoint),
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithUserAgent(config.ServiceName)),
			),
		)
		return exporter, errors.Wrap(err, "create OTLP exporter")
	case "stdout":
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(stdout),
			stdouttrace.WithPrettyPrint(),
		)
		return exporter, errors.Wrap(err, "create stdout exporter")
	default:
		return nil, errors.Errorf("unknown exporter %q", config.Exporter)
	}
}

// newTracerProvider builds a provider that keeps legacy span ids on the
// mirrored spans.
func newTracerProvider(ctx context.Context, config Config, exporter sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceInstanceIDKey.String(uuid.NewString()),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create resource")
	}
	return sdktrace.NewTracerProvider(
		ocotel.IDGenerator(),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}
