package emitter

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/nodefacts/internal/report"
)

// MeterName is the instrumentation scope of the report metrics.
const MeterName = "nodefacts"

// MetricsEmitter records report cycles as OTEL metrics. With the
// Prometheus reader installed they are served on /metrics.
type MetricsEmitter struct {
	meter metric.Meter

	// Metrics
	nodeKeys      metric.Int64ObservableGauge
	cycleDuration metric.Float64Histogram
	cyclesTotal   metric.Int64Counter
	linesTotal    metric.Int64Counter
	runFailures   metric.Int64Counter
	nodeChanges   metric.Int64Counter

	// State for observable gauge
	mu   sync.RWMutex
	keys map[string]int

	// Diff tracking
	diffTracker *DiffTracker
}

// NewMetricsEmitter creates a metrics emitter. A nil provider uses the
// global meter provider.
func NewMetricsEmitter(provider metric.MeterProvider) (*MetricsEmitter, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	e := &MetricsEmitter{
		meter:       provider.Meter(MeterName),
		keys:        make(map[string]int),
		diffTracker: NewDiffTracker(),
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return e, nil
}

func (e *MetricsEmitter) initMetrics() error {
	var err error

	// Flattened key count per node
	e.nodeKeys, err = e.meter.Int64ObservableGauge(
		"nodefacts_node_keys",
		metric.WithDescription("Flattened attribute keys in the last report"),
		metric.WithInt64Callback(e.observeKeys),
	)
	if err != nil {
		return fmt.Errorf("create node_keys gauge: %w", err)
	}

	e.cycleDuration, err = e.meter.Float64Histogram(
		"nodefacts_report_duration_seconds",
		metric.WithDescription("Time taken to write a report"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create report_duration histogram: %w", err)
	}

	e.cyclesTotal, err = e.meter.Int64Counter(
		"nodefacts_report_cycles_total",
		metric.WithDescription("Total report cycles"),
	)
	if err != nil {
		return fmt.Errorf("create report_cycles counter: %w", err)
	}

	e.linesTotal, err = e.meter.Int64Counter(
		"nodefacts_report_lines_total",
		metric.WithDescription("Total fact lines written"),
	)
	if err != nil {
		return fmt.Errorf("create report_lines counter: %w", err)
	}

	e.runFailures, err = e.meter.Int64Counter(
		"nodefacts_run_failures_total",
		metric.WithDescription("Total failed host runs reported"),
	)
	if err != nil {
		return fmt.Errorf("create run_failures counter: %w", err)
	}

	e.nodeChanges, err = e.meter.Int64Counter(
		"nodefacts_node_changes_total",
		metric.WithDescription("Total node changes detected between cycles"),
	)
	if err != nil {
		return fmt.Errorf("create node_changes counter: %w", err)
	}

	return nil
}

// Emit records the cycle as metrics.
func (e *MetricsEmitter) Emit(ctx context.Context, result report.Result) error {
	node := attribute.String("node", result.Node)

	e.cycleDuration.Record(ctx, result.Duration.Seconds(), metric.WithAttributes(node))
	e.cyclesTotal.Add(ctx, 1, metric.WithAttributes(node, attribute.String("status", cycleStatus(result))))

	e.emitDiffs(ctx, result)
	e.diffTracker.Update(result)

	// Don't fail on cycle errors
	if result.Failed() {
		return nil
	}

	for _, l := range []struct {
		name  string
		lines int
	}{
		{"node", result.NodeLines},
		{"run", result.RunLines},
		{"resource", result.ResourceLines},
	} {
		e.linesTotal.Add(ctx, int64(l.lines), metric.WithAttributes(node, attribute.String("report", l.name)))
	}

	if !result.RunSuccessful {
		e.runFailures.Add(ctx, 1, metric.WithAttributes(node))
	}

	// Update keys for observable gauge
	e.mu.Lock()
	e.keys[result.Node] = result.Keys
	e.mu.Unlock()

	return nil
}

// emitDiffs counts and logs changes since the node's previous cycle.
func (e *MetricsEmitter) emitDiffs(ctx context.Context, result report.Result) {
	diffs := e.diffTracker.ComputeDiff(result)
	if diffs == nil {
		// First cycle - baseline established
		return
	}

	for _, diff := range diffs {
		e.nodeChanges.Add(ctx, 1, metric.WithAttributes(
			attribute.String("node", diff.Node),
			attribute.String("change_type", string(diff.Type)),
		))

		log.Info().Ctx(ctx).
			Str("node", diff.Node).
			Str("change", string(diff.Type)).
			Str("from", diff.Previous).
			Str("to", diff.Current).
			Msg("node changed")
	}
}

// observeKeys is the callback for the node_keys gauge.
func (e *MetricsEmitter) observeKeys(_ context.Context, o metric.Int64Observer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for node, keys := range e.keys {
		o.Observe(int64(keys), metric.WithAttributes(attribute.String("node", node)))
	}

	return nil
}

// Close is a no-op for the metrics emitter.
func (e *MetricsEmitter) Close() error {
	return nil
}
