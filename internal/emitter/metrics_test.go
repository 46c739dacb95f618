package emitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/yairfalse/nodefacts/internal/report"
)

func newTestMetrics(t *testing.T) (*MetricsEmitter, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	e, err := NewMetricsEmitter(provider)
	require.NoError(t, err)
	return e, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumValue(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	if m.Data == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestMetricsEmitter_Emit(t *testing.T) {
	e, reader := newTestMetrics(t)
	ctx := context.Background()

	err := e.Emit(ctx, report.Result{
		Node:          "web01",
		Keys:          40,
		NodeLines:     44,
		RunLines:      8,
		ResourceLines: 3,
		RunSuccessful: false,
		Duration:      250 * time.Millisecond,
	})
	require.NoError(t, err)

	metrics := collect(t, reader)
	node := attribute.String("node", "web01")

	assert.Equal(t, int64(1), sumValue(t, metrics["nodefacts_report_cycles_total"], node, attribute.String("status", "ok")))
	assert.Equal(t, int64(44), sumValue(t, metrics["nodefacts_report_lines_total"], node, attribute.String("report", "node")))
	assert.Equal(t, int64(8), sumValue(t, metrics["nodefacts_report_lines_total"], node, attribute.String("report", "run")))
	assert.Equal(t, int64(3), sumValue(t, metrics["nodefacts_report_lines_total"], node, attribute.String("report", "resource")))
	assert.Equal(t, int64(1), sumValue(t, metrics["nodefacts_run_failures_total"], node))

	gauge, ok := metrics["nodefacts_node_keys"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(40), gauge.DataPoints[0].Value)

	hist, ok := metrics["nodefacts_report_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestMetricsEmitter_FailedCycle(t *testing.T) {
	e, reader := newTestMetrics(t)

	err := e.Emit(context.Background(), report.Result{Node: "web01", Err: errors.New("disk full")})
	require.NoError(t, err)

	metrics := collect(t, reader)
	node := attribute.String("node", "web01")
	assert.Equal(t, int64(1), sumValue(t, metrics["nodefacts_report_cycles_total"], node, attribute.String("status", "failed")))
	assert.Equal(t, int64(0), sumValue(t, metrics["nodefacts_report_lines_total"], node, attribute.String("report", "node")))
}

func TestMetricsEmitter_NodeChanges(t *testing.T) {
	e, reader := newTestMetrics(t)
	ctx := context.Background()

	require.NoError(t, e.Emit(ctx, report.Result{Node: "web01", Keys: 10, RunSuccessful: true}))
	require.NoError(t, e.Emit(ctx, report.Result{Node: "web01", Keys: 11, RunSuccessful: true}))

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), sumValue(t, metrics["nodefacts_node_changes_total"],
		attribute.String("node", "web01"),
		attribute.String("change_type", "keys"),
	))
}
