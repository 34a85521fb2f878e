// Package main implements the entry point for twinbridge, the digital
// twin connectivity daemon: it bridges AMQP 0.9.1/1.0, MQTT, Kafka and
// HTTP-push external endpoints to the internal twin-protocol signal bus,
// one client.Machine per configured connection (spec.md §1).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/twinbridge/bus"
	"github.com/c360/twinbridge/client"
	"github.com/c360/twinbridge/config"
	"github.com/c360/twinbridge/connection"
	tberrors "github.com/c360/twinbridge/errors"
	"github.com/c360/twinbridge/mapping"
	"github.com/c360/twinbridge/metrics"
	"github.com/c360/twinbridge/pkg/retry"
	"github.com/c360/twinbridge/protocol"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("twinbridge exited with error", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("twinbridge version %s\n", Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("starting twinbridge", "version", Version, "build_time", BuildTime, "config_path", cliCfg.ConfigPath)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	conns, err := loadConnections(cfg.ConnectionsDir)
	if err != nil {
		return fmt.Errorf("load connections: %w", err)
	}
	for i := range conns {
		if err := conns[i].Validate(); err != nil {
			return fmt.Errorf("connection %q: %w", conns[i].ID, err)
		}
	}

	if cliCfg.Validate {
		logger.Info("configuration is valid", "connections", len(conns))
		return nil
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	nb, err := dialBusWithRetry(signalCtx, cfg.NATS.URL, logger)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nb.Close()

	m := metrics.New()
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = startMetricsServer(cfg.Metrics.ListenAddr, reg, logger)
		defer shutdownMetricsServer(metricsSrv, logger)
	}

	supervisors, err := startConnections(signalCtx, conns, nb, m, cfg, logger)
	if err != nil {
		return fmt.Errorf("start connections: %w", err)
	}

	logger.Info("twinbridge started", "connections", len(supervisors))
	<-signalCtx.Done()
	logger.Info("received shutdown signal")

	stopConnections(supervisors, cliCfg.ShutdownTimeout, logger)
	logger.Info("twinbridge shutdown complete")
	return nil
}

// dialBusWithRetry dials the internal NATS bus with the same persistent
// backoff the teacher applies to its own critical startup dependencies
// (connectToNATS in cmd/semstreams/main.go), so a broker that's still
// coming up doesn't fail the whole daemon on the first attempt.
func dialBusWithRetry(ctx context.Context, url string, logger *slog.Logger) (*bus.NATSBus, error) {
	return retry.DoWithResult(ctx, retry.Persistent(), func() (*bus.NATSBus, error) {
		nb, err := bus.Dial(url)
		if err != nil {
			logger.Warn("nats dial failed, retrying", "url", url, "error", err)
			return nil, err
		}
		return nb, nil
	})
}

// openConnectionWithRetry builds conn's protocol factory and opens it on
// mach, retrying on retry.Quick()'s fast component-startup schedule: a
// broker that's still coming up (a transient factory or OpenConnection
// failure) deserves a few quick retries the way the teacher's own
// critical-dependency dials do, but a structurally invalid connection
// document never will open no matter how many times it's retried, so
// those failures are marked retry.NonRetryable to fail on the first
// attempt instead of burning the whole schedule.
func openConnectionWithRetry(ctx context.Context, conn connection.Connection, mach *client.Machine, logger *slog.Logger) (protocol.ClosableFactory, error) {
	return retry.DoWithResult(ctx, retry.Quick(), func() (protocol.ClosableFactory, error) {
		factory, err := protocol.NewFactory(conn, logger)
		if err != nil {
			return nil, nonRetryableIfInvalid(err)
		}

		if err := mach.OpenConnection(ctx, conn, factory); err != nil {
			_ = factory.Close()
			return nil, nonRetryableIfInvalid(err)
		}
		return factory, nil
	})
}

func nonRetryableIfInvalid(err error) error {
	if tberrors.IsInvalid(err) {
		return retry.NonRetryable(err)
	}
	return err
}

// connectionSupervisor pairs a running client.Machine with the protocol
// factory that backs it, so shutdown can close both in the right order
// (spec.md §4.8: the generation's consumers/publisher stop before the
// factory's shared transport is released).
type connectionSupervisor struct {
	id      string
	machine *client.Machine
	factory protocol.ClosableFactory
}

func startConnections(
	ctx context.Context,
	conns []connection.Connection,
	nb bus.Bus,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *slog.Logger,
) ([]*connectionSupervisor, error) {
	registry := mapping.NewRegistry()

	var started []*connectionSupervisor
	for _, conn := range conns {
		if conn.ConnectionStatus == connection.Closed {
			logger.Info("skipping closed connection", "connection", conn.ID)
			continue
		}

		mach := client.New(nb, registry, logger.With("connection", conn.ID))
		mach.Metrics = m
		mach.BufferSize = cfg.BufferSize

		factory, err := openConnectionWithRetry(ctx, conn, mach, logger)
		if err != nil {
			stopConnections(started, 5*time.Second, logger)
			return nil, fmt.Errorf("connection %q: open: %w", conn.ID, err)
		}

		logger.Info("connection opened", "connection", conn.ID, "type", conn.ConnectionType)
		started = append(started, &connectionSupervisor{id: conn.ID, machine: mach, factory: factory})
	}
	return started, nil
}

// stopConnections closes every supervised connection concurrently, each
// bounded by timeout, and logs (never returns) individual failures: a
// stuck generation must not block the others from shutting down.
func stopConnections(supervisors []*connectionSupervisor, timeout time.Duration, logger *slog.Logger) {
	var wg sync.WaitGroup
	for _, s := range supervisors {
		wg.Add(1)
		go func(s *connectionSupervisor) {
			defer wg.Done()
			done := make(chan error, 1)
			go func() { done <- s.machine.CloseConnection() }()

			select {
			case err := <-done:
				if err != nil {
					logger.Warn("connection close failed", "connection", s.id, "error", err)
				}
			case <-time.After(timeout):
				logger.Warn("connection close timed out", "connection", s.id)
			}

			if err := s.factory.Close(); err != nil {
				logger.Warn("factory close failed", "connection", s.id, "error", err)
			}
		}(s)
	}
	wg.Wait()
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server, logger *slog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown failed", "error", err)
	}
}
