package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/nodefacts/internal/config"
	"github.com/yairfalse/nodefacts/internal/daemon"
	"github.com/yairfalse/nodefacts/internal/emitter"
	"github.com/yairfalse/nodefacts/internal/filewriter"
	"github.com/yairfalse/nodefacts/internal/filter"
	"github.com/yairfalse/nodefacts/internal/history"
	"github.com/yairfalse/nodefacts/internal/host"
	"github.com/yairfalse/nodefacts/internal/report"
	"github.com/yairfalse/nodefacts/internal/telemetry"
)

// app is the wired report pipeline shared by the report and daemon commands.
type app struct {
	cfg      *config.Config
	filter   *filter.Filter
	reporter *report.Reporter
	sinks    *emitter.MultiEmitter
}

// newApp wires filter, writer, reporter and sinks. A non-nil provider adds
// the metrics emitter and traces the report cycle. A history database held
// by another process is skipped so facts are still written.
func newApp(c *config.Config, provider *telemetry.Provider) (*app, error) {
	sinks := emitter.NewMultiEmitter(emitter.NewLogEmitter(nil))
	var opts []report.Option

	if provider != nil {
		m, err := emitter.NewMetricsEmitter(provider.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("create metrics emitter: %w", err)
		}
		sinks.Add(m)
		opts = append(opts, report.WithTracer(provider.Tracer()))
	}

	if c.History.Enabled {
		store, err := history.Open(c.History.Path, history.WithRetain(c.History.Retain))
		switch {
		case errors.Is(err, history.ErrLocked):
			log.Warn().Err(err).Str("path", c.History.Path).Msg("history disabled for this run")
		case err != nil:
			return nil, err
		default:
			sinks.Add(store)
		}
	}

	// keep = 0 in the config disables backups.
	keep := c.Report.Keep
	if keep == 0 {
		keep = -1
	}

	r := report.New(report.Options{
		Path:     c.Report.Path,
		Keep:     keep,
		NodeName: c.Report.NodeName,
	}, filewriter.New(), append(opts, report.WithSink(sinks))...)

	return &app{
		cfg:      c,
		filter:   filter.New(c.Report.ExcludeTypes, c.Report.HiddenAttributes),
		reporter: r,
		sinks:    sinks,
	}, nil
}

// cycle loads the snapshot and writes one report.
func (a *app) cycle(ctx context.Context) (report.Result, error) {
	snap, err := host.LoadSnapshot(a.cfg.Snapshot.Path, a.filter)
	if err != nil {
		return report.Result{}, err
	}
	return a.reporter.Report(ctx, snap)
}

// cycleFunc adapts cycle for the daemon.
func (a *app) cycleFunc() daemon.CycleFunc {
	return func(ctx context.Context) error {
		_, err := a.cycle(ctx)
		return err
	}
}

func (a *app) Close() {
	if err := a.sinks.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close sinks")
	}
}
