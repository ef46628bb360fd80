package config

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TelemetryProviders holds the OpenTelemetry providers of one process.
//
// With export enabled, spans, metrics and log records are pushed through OTLP over HTTP and
// LoggerProvider feeds the slog bridge. Without export, LoggerProvider is nil and metrics stay
// in process, readable through MetricsReader.
type TelemetryProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	MetricsReader  *sdkmetric.ManualReader
}

// NewTelemetryProviders creates the providers and installs them globally.
func NewTelemetryProviders(ctx context.Context, settings TelemetrySettings) (*TelemetryProviders, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(settings.ServiceName),
			semconv.DeploymentEnvironment(settings.Environment),
		),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var providers *TelemetryProviders
	if settings.Enabled {
		providers, err = newExportingProviders(ctx, settings, res)
		if err != nil {
			return nil, err
		}
	} else {
		reader := sdkmetric.NewManualReader()
		providers = &TelemetryProviders{
			TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithResource(res)),
			MeterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res)),
			MetricsReader:  reader,
		}
	}

	otel.SetTracerProvider(providers.TracerProvider)
	otel.SetMeterProvider(providers.MeterProvider)
	if providers.LoggerProvider != nil {
		global.SetLoggerProvider(providers.LoggerProvider)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

func newExportingProviders(ctx context.Context, settings TelemetrySettings, res *resource.Resource) (*TelemetryProviders, error) {
	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(settings.TracesEndpointURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(settings.MetricsEndpointURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	logExporter, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(settings.LogsEndpointURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	return &TelemetryProviders{
		TracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		),
		MeterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
				sdkmetric.WithInterval(settings.MetricsInterval))),
			sdkmetric.WithResource(res),
		),
		LoggerProvider: sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		),
	}, nil
}

// CollectMetricNames returns the names of every metric recorded so far.
// With export enabled, metrics leave through the exporter and nothing is collected here.
func (p *TelemetryProviders) CollectMetricNames(ctx context.Context) ([]string, error) {
	if p.MetricsReader == nil {
		return nil, nil
	}

	var collected metricdata.ResourceMetrics
	if err := p.MetricsReader.Collect(ctx, &collected); err != nil {
		return nil, err
	}

	names := make([]string, 0)
	for _, scope := range collected.ScopeMetrics {
		for _, m := range scope.Metrics {
			names = append(names, m.Name)
		}
	}

	return names, nil
}

// Shutdown flushes pending spans, metrics and log records and stops every provider.
func (p *TelemetryProviders) Shutdown(ctx context.Context) error {
	errs := []error{
		p.TracerProvider.Shutdown(ctx),
		p.MeterProvider.Shutdown(ctx),
	}

	if p.LoggerProvider != nil {
		errs = append(errs, p.LoggerProvider.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
