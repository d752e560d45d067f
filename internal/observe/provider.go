package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

const serviceName = "ekivoice"

// Setup registers the global OTel providers for the game client.
//
// Metrics only leave the process through the debug listener's /metrics
// endpoint, so the Prometheus reader is attached only when
// exportMetrics is true (the listener is configured). With it false the
// instruments in [Metrics] still record, nothing is ever scraped, and
// the meter provider is a plain in-process one.
//
// Spans are never exported anywhere: the tracer provider exists so that
// [StartSpan] produces valid span contexts for [Logger]'s trace_id and
// span_id correlation in the turn pipeline.
//
// The returned function flushes and shuts the providers down; call it
// in a defer from main().
func Setup(ctx context.Context, version string, exportMetrics bool) (func(context.Context) error, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if exportMetrics {
		promExp, err := promexporter.New()
		if err != nil {
			return nil, err
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(promExp))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)
	otel.SetMeterProvider(mp)

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}, nil
}
