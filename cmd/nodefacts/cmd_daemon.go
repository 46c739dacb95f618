package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/nodefacts/internal/daemon"
	"github.com/yairfalse/nodefacts/internal/telemetry"
)

var (
	daemonInterval time.Duration
	daemonAddr     string
	daemonNoWatch  bool
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep reports current",
	Long: `Run nodefacts in daemon mode.

The daemon writes a report on start, again at every interval, and whenever
the host rewrites the run snapshot.

Features:
- Prometheus metrics on /metrics
- Health checks on /healthz, /readyz and /status
- Optional cycle history in a local database
- Graceful shutdown on SIGTERM/SIGINT`,
	Example: `  nodefacts daemon                        # Run with config defaults
  nodefacts daemon --interval 5m          # Report every 5 minutes
  nodefacts daemon --addr :9100           # Custom metrics address
  nodefacts daemon --no-watch             # Interval only`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 0, "Report interval (overrides config)")
	daemonCmd.Flags().StringVar(&daemonAddr, "addr", "", "Metrics HTTP server address (overrides config)")
	daemonCmd.Flags().BoolVar(&daemonNoWatch, "no-watch", false, "Do not watch the snapshot file")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if daemonInterval > 0 {
		cfg.Daemon.Interval = daemonInterval
	}
	if daemonAddr != "" {
		cfg.Metrics.Addr = daemonAddr
	}
	if daemonNoWatch {
		cfg.Daemon.Watch = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	provider, err := telemetry.NewProvider(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	a, err := newApp(cfg, provider)
	if err != nil {
		return err
	}
	defer a.Close()

	metrics, err := daemon.NewMetrics(provider.MeterProvider())
	if err != nil {
		return fmt.Errorf("create daemon metrics: %w", err)
	}

	dcfg := daemon.Config{Interval: cfg.Daemon.Interval}
	if cfg.Daemon.Watch {
		dcfg.WatchPath = cfg.Snapshot.Path
	}
	d, err := daemon.NewDaemon(dcfg, a.cycleFunc(), metrics)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Metrics.Addr, err)
	}
	srv := &http.Server{
		Handler:           newMux(provider.Handler(), d),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().
		Str("snapshot", cfg.Snapshot.Path).
		Str("path", cfg.Report.Path).
		Dur("interval", cfg.Daemon.Interval).
		Bool("watch", cfg.Daemon.Watch).
		Str("addr", ln.Addr().String()).
		Msg("nodefacts daemon starting")

	var g run.Group

	daemonCtx, stopDaemon := context.WithCancel(ctx)
	g.Add(func() error {
		return d.Start(daemonCtx)
	}, func(error) {
		stopDaemon()
	})

	g.Add(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}

// readiness is the daemon state exposed over HTTP.
type readiness interface {
	Ready() bool
	Health() daemon.HealthStatus
}

func newMux(metrics http.Handler, d readiness) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/readyz", handleReadyz(d))
	mux.HandleFunc("/status", handleStatus(d))
	return mux
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReadyz(d readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if !d.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("no report cycle completed"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func handleStatus(d readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(d.Health()); err != nil {
			log.Warn().Err(err).Msg("encode status")
		}
	}
}
