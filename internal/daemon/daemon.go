// Package daemon re-runs report cycles on an interval and whenever the
// snapshot file changes.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce collapses bursts of snapshot writes into one cycle.
const DefaultDebounce = 500 * time.Millisecond

// Cycle triggers.
const (
	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerWatch    = "watch"
)

// CycleFunc runs one report cycle.
type CycleFunc func(ctx context.Context) error

// Config holds daemon configuration
type Config struct {
	Interval  time.Duration
	WatchPath string // snapshot file; empty disables watching
	Debounce  time.Duration
}

// Daemon runs report cycles until its context is cancelled.
type Daemon struct {
	interval  time.Duration
	watchPath string
	debounce  time.Duration
	cycle     CycleFunc
	metrics   *Metrics

	startTime    time.Time
	cycleCount   atomic.Int64
	failureCount atomic.Int64
	ready        atomic.Bool

	mu        sync.RWMutex
	lastErr   error
	lastCycle time.Time
}

// NewDaemon creates a new daemon instance. A nil metrics records nothing.
func NewDaemon(cfg Config, cycle CycleFunc, metrics *Metrics) (*Daemon, error) {
	if cycle == nil {
		return nil, errors.New("cycle function required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive (got %s)", cfg.Interval)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	watchPath := ""
	if cfg.WatchPath != "" {
		watchPath = filepath.Clean(cfg.WatchPath)
	}

	return &Daemon{
		interval:  cfg.Interval,
		watchPath: watchPath,
		debounce:  cfg.Debounce,
		cycle:     cycle,
		metrics:   metrics,
		startTime: time.Now(),
	}, nil
}

// Start runs one cycle immediately, then loops until ctx is done. Cycle
// errors are logged and counted; only watcher setup errors are returned.
func (d *Daemon) Start(ctx context.Context) error {
	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if d.watchPath != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer func() { _ = watcher.Close() }()

		// Watch the directory: atomic replacement swaps the file's inode.
		dir := filepath.Dir(d.watchPath)
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		events, watchErrs = watcher.Events, watcher.Errors
		log.Info().Str("path", d.watchPath).Msg("watching snapshot")
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(d.debounce)
	debounce.Stop()
	defer debounce.Stop()

	log.Info().Dur("interval", d.interval).Msg("daemon started")
	d.runCycle(ctx, TriggerStartup)

	for {
		select {
		case <-ctx.Done():
			log.Info().Int64("cycles", d.CycleCount()).Msg("daemon stopped")
			return nil
		case <-ticker.C:
			d.runCycle(ctx, TriggerInterval)
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if d.relevant(event) {
				log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("snapshot changed")
				d.metrics.RecordWatchEvent(ctx, event.Op.String())
				debounce.Reset(d.debounce)
			}
		case <-debounce.C:
			d.runCycle(ctx, TriggerWatch)
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			log.Warn().Err(err).Msg("snapshot watcher error")
		}
	}
}

func (d *Daemon) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != d.watchPath {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

func (d *Daemon) runCycle(ctx context.Context, trigger string) {
	start := time.Now()
	err := d.cycle(ctx)
	elapsed := time.Since(start)

	d.cycleCount.Add(1)
	status := "success"
	if err != nil {
		status = "failure"
		d.failureCount.Add(1)
		log.Error().Err(err).Str("trigger", trigger).Msg("report cycle failed")
	}

	d.mu.Lock()
	d.lastErr = err
	d.lastCycle = start
	d.mu.Unlock()
	d.ready.Store(true)

	d.metrics.RecordCycle(ctx, trigger, status, elapsed)
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status    string    `json:"status"`
	Uptime    int64     `json:"uptime_seconds"`
	Cycles    int64     `json:"cycles"`
	Failures  int64     `json:"failures"`
	LastCycle time.Time `json:"last_cycle,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Health returns daemon health status. The daemon is degraded while its
// latest cycle failed.
func (d *Daemon) Health() HealthStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	h := HealthStatus{
		Status:    "healthy",
		Uptime:    int64(time.Since(d.startTime).Seconds()),
		Cycles:    d.cycleCount.Load(),
		Failures:  d.failureCount.Load(),
		LastCycle: d.lastCycle,
	}
	if d.lastErr != nil {
		h.Status = "degraded"
		h.LastError = d.lastErr.Error()
	}
	return h
}

// Ready reports whether the first cycle has completed.
func (d *Daemon) Ready() bool {
	return d.ready.Load()
}

// CycleCount returns total cycles run
func (d *Daemon) CycleCount() int64 {
	return d.cycleCount.Load()
}
