// Package telemetry wires the OpenTelemetry tracer used around long engine
// operations (cross-validation, correlation scans, combination sweeps).
// Spans go to stdout; there is no collector endpoint in this deployment.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "drawlytics"
	ServiceVersion = "1.0.0"
)

// Init installs a tracer provider exporting spans to stdout. The returned
// shutdown function flushes pending spans and must be called on exit.
// Disabled installs a no-op provider so Tracer() stays safe to call.
func Init(enabled bool) (func(context.Context) error, error) {
	if !enabled {
		otel.SetTracerProvider(sdktrace.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// Tracer returns the service tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(ServiceName)
}
