// Package telemetry provides OpenTelemetry instrumentation for nodefacts.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/yairfalse/nodefacts/internal/config"
)

// ScopeName is the instrumentation scope of the provider's tracer and meter.
const ScopeName = "github.com/yairfalse/nodefacts"

// Provider wraps OTEL tracer and meter providers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	// Prometheus scrape registry; the OTEL exporter registers itself here
	registry *promclient.Registry
}

// NewProvider creates a new telemetry provider and installs it as the
// global tracer and meter provider.
func NewProvider(ctx context.Context, cfg config.OTELConfig) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{registry: promclient.NewRegistry()}

	if err := p.setupTracing(ctx, cfg, res); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, res); err != nil {
		if p.tracerProvider != nil {
			_ = p.tracerProvider.Shutdown(ctx)
		}
		return nil, err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Traces.Enabled && cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Traces.SampleRate))
		opts = append(opts, sdktrace.WithBatcher(exp), sdktrace.WithSampler(sampler))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer(ScopeName)

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) error {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if cfg.Metrics.Prometheus {
		p.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		exp, err := prometheus.New(prometheus.WithRegisterer(p.registry))
		if err != nil {
			return fmt.Errorf("create prometheus exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(exp))
	}

	if cfg.Metrics.Enabled && cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter(ScopeName)

	return nil
}

func createTraceExporter(ctx context.Context, cfg config.OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg config.OTELConfig) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts,
			otlpmetricgrpc.WithInsecure(),
			otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// MeterProvider returns the SDK meter provider.
func (p *Provider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

// Handler serves the Prometheus scrape endpoint. It is empty when the
// Prometheus reader is disabled.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and shuts down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer: %w", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter: %w", err)
		}
	}
	return nil
}
