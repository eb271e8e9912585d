// Package telemetry wires tracing and metrics for the rest of the
// module, the way the teacher's internal/compact and internal/storage/dolt
// packages call telemetry.Tracer/telemetry.Meter against a provider
// that defaults to a no-op until Init is called.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Tracer returns a tracer scoped to name, delegating to whatever
// TracerProvider Init installed (the global no-op provider otherwise).
func Tracer(name string) trace.Tracer { return otel.Tracer(name) }

// Meter returns a meter scoped to name, delegating to whatever
// MeterProvider Init installed (the global no-op provider otherwise).
func Meter(name string) metric.Meter { return otel.Meter(name) }

// Shutdown stops the providers Init installed. It is a no-op before Init.
var Shutdown = func(context.Context) error { return nil }

// Init installs stdout-exporting trace and metric providers for
// serviceName as the global OTel providers, so every package's
// package-level Tracer/Meter calls start forwarding real data instead
// of the default no-op. Intended for `codeprysm --verbose` runs and
// local debugging, mirroring the stdout exporter the dolt storage
// backend's spans would otherwise feed into.
func Init(ctx context.Context, serviceName string) error {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return fmt.Errorf("telemetry: build resource: %w", err)
	}

	traceExp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("telemetry: build trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExp, err := stdoutmetric.New()
	if err != nil {
		return fmt.Errorf("telemetry: build metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	Shutdown = func(shutdownCtx context.Context) error {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return mp.Shutdown(shutdownCtx)
	}
	return nil
}
