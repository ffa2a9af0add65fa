// Package telemetry wires the OpenTelemetry SDK for dirpack binaries.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Options configures New.
type Options struct {
	Enabled     bool
	ServiceName string
	// Endpoint is the OTLP gRPC collector address. Empty defers to
	// OTEL_EXPORTER_OTLP_ENDPOINT, then localhost:4317.
	Endpoint string
	// MetricInterval is the export period for metrics. Default 10s.
	MetricInterval time.Duration
}

// Telemetry owns the registered providers. Instrumented code uses the global
// otel.Tracer and otel.Meter; Shutdown flushes them.
type Telemetry struct {
	shutdown []func(context.Context) error
}

// New registers trace and metric providers globally. When disabled the
// global noop providers are left in place.
func New(ctx context.Context, opts Options) (*Telemetry, error) {
	t := &Telemetry{}
	if !opts.Enabled {
		return t, nil
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "dirpack-server"
	}
	if opts.MetricInterval <= 0 {
		opts.MetricInterval = 10 * time.Second
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(opts.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
	if opts.Endpoint != "" {
		traceOpts = append(traceOpts, otlptracegrpc.WithEndpoint(opts.Endpoint))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithEndpoint(opts.Endpoint))
	}

	traceExp, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.shutdown = append(t.shutdown, tp.Shutdown)

	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = tp.Shutdown(ctx) //nolint:errcheck
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp,
			sdkmetric.WithInterval(opts.MetricInterval),
		)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	t.shutdown = append(t.shutdown, mp.Shutdown)

	return t, nil
}

// Shutdown flushes and closes every provider New registered.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}
