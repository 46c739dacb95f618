package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingCycle counts calls and returns err on every call.
type countingCycle struct {
	calls atomic.Int64
	err   error
}

func (c *countingCycle) run(context.Context) error {
	c.calls.Add(1)
	return c.err
}

// startDaemon runs d in the background and returns a stop function that
// waits for Start to return.
func startDaemon(t *testing.T, d *Daemon) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Start(ctx)
	}()
	return func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("daemon did not stop")
		}
	}
}

func TestNewDaemon(t *testing.T) {
	c := &countingCycle{}

	d, err := NewDaemon(Config{Interval: 5 * time.Minute}, c.run, nil)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d.interval)
	assert.Equal(t, DefaultDebounce, d.debounce)
	assert.Empty(t, d.watchPath)
	assert.False(t, d.Ready())
}

func TestNewDaemon_Invalid(t *testing.T) {
	_, err := NewDaemon(Config{Interval: time.Minute}, nil, nil)
	assert.Error(t, err)

	c := &countingCycle{}
	_, err = NewDaemon(Config{Interval: 0}, c.run, nil)
	assert.Error(t, err)
}

func TestDaemon_InitialCycle(t *testing.T) {
	c := &countingCycle{}
	d, err := NewDaemon(Config{Interval: time.Hour}, c.run, nil)
	require.NoError(t, err)

	stop := startDaemon(t, d)
	require.Eventually(t, d.Ready, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, int64(1), c.calls.Load())
	assert.Equal(t, int64(1), d.CycleCount())
	assert.Equal(t, "healthy", d.Health().Status)
}

func TestDaemon_Interval(t *testing.T) {
	c := &countingCycle{}
	d, err := NewDaemon(Config{Interval: 10 * time.Millisecond}, c.run, nil)
	require.NoError(t, err)

	stop := startDaemon(t, d)
	require.Eventually(t, func() bool { return d.CycleCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
	stop()
}

func TestDaemon_FailedCycleKeepsRunning(t *testing.T) {
	c := &countingCycle{err: errors.New("snapshot missing")}
	d, err := NewDaemon(Config{Interval: 10 * time.Millisecond}, c.run, nil)
	require.NoError(t, err)

	stop := startDaemon(t, d)
	require.Eventually(t, func() bool { return d.CycleCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	stop()

	health := d.Health()
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "snapshot missing", health.LastError)
	assert.Equal(t, health.Cycles, health.Failures)
	assert.True(t, d.Ready())
}

func TestDaemon_WatchTriggersCycle(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(snapshot, []byte("{}"), 0644))

	c := &countingCycle{}
	d, err := NewDaemon(Config{
		Interval:  time.Hour,
		WatchPath: snapshot,
		Debounce:  10 * time.Millisecond,
	}, c.run, nil)
	require.NoError(t, err)

	stop := startDaemon(t, d)
	defer stop()
	require.Eventually(t, d.Ready, time.Second, 5*time.Millisecond)

	// Other files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), d.CycleCount())

	require.NoError(t, os.WriteFile(snapshot, []byte(`{"node":{}}`), 0644))
	require.Eventually(t, func() bool { return d.CycleCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestDaemon_WatchMissingDirectory(t *testing.T) {
	c := &countingCycle{}
	d, err := NewDaemon(Config{
		Interval:  time.Hour,
		WatchPath: filepath.Join(t.TempDir(), "absent", "snapshot.json"),
	}, c.run, nil)
	require.NoError(t, err)

	err = d.Start(context.Background())
	require.Error(t, err)
	assert.Zero(t, c.calls.Load())
}

func TestMetrics_RecordCycle(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := NewMetrics(provider)
	require.NoError(t, err)

	c := &countingCycle{}
	d, err := NewDaemon(Config{Interval: time.Hour}, c.run, m)
	require.NoError(t, err)

	stop := startDaemon(t, d)
	require.Eventually(t, d.Ready, time.Second, 5*time.Millisecond)
	stop()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := make([]string, 0)
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		names = append(names, metric.Name)
	}
	assert.ElementsMatch(t, []string{"nodefacts.daemon.cycles", "nodefacts.daemon.cycle.duration"}, names)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCycle(context.Background(), TriggerStartup, "success", time.Second)
		m.RecordWatchEvent(context.Background(), "WRITE")
	})
}
