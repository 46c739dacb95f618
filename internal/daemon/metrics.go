package daemon

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds daemon operational metrics using OTEL semantic conventions
type Metrics struct {
	cycles        metric.Int64Counter
	cycleDuration metric.Float64Histogram
	watchEvents   metric.Int64Counter
}

// NewMetrics creates daemon metrics. A nil provider uses the global one.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter("nodefacts.daemon")

	cycles, err := meter.Int64Counter(
		"nodefacts.daemon.cycles",
		metric.WithDescription("Number of report cycles run by the daemon"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, err
	}

	cycleDuration, err := meter.Float64Histogram(
		"nodefacts.daemon.cycle.duration",
		metric.WithDescription("Duration of daemon report cycles"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	watchEvents, err := meter.Int64Counter(
		"nodefacts.daemon.watch_events",
		metric.WithDescription("Number of snapshot file events seen"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		cycles:        cycles,
		cycleDuration: cycleDuration,
		watchEvents:   watchEvents,
	}, nil
}

// RecordCycle records a finished cycle with its trigger and status
func (m *Metrics) RecordCycle(ctx context.Context, trigger, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("status", status),
	)
	m.cycles.Add(ctx, 1, attrs)
	m.cycleDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordWatchEvent records a relevant snapshot file event
func (m *Metrics) RecordWatchEvent(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.watchEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
