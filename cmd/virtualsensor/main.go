// Package main implements the virtualsensor daemon. It restores a virtual
// sensor's self-description from the configured state store, runs the
// sensor with its Prometheus endpoint and saves the description again on
// shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/virtualsensor/component"
	"github.com/c360/virtualsensor/health"
	"github.com/c360/virtualsensor/metric"
	"github.com/c360/virtualsensor/pkg/retry"
	"github.com/c360/virtualsensor/statestore"
	"github.com/c360/virtualsensor/virtualsensor"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "virtualsensor"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:], os.Stderr); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string, logOut io.Writer) error {
	cliCfg, logger, shouldExit, err := initializeCLI(args, logOut)
	if shouldExit || err != nil {
		return err
	}

	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	connectRetry := retry.Quick()
	connectRetry.MaxAttempts = cliCfg.ConnectAttempts

	nc, err := connectToNATS(ctx, cfg, connectRetry, logger)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Close()
	}

	var closeStore func()
	store, err := retry.DoWithResult(ctx, connectRetry, func(ctx context.Context) (statestore.Store, error) {
		st, closeFn, err := openStore(ctx, cfg, nc, logger)
		closeStore = closeFn
		return st, err
	})
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer closeStore()

	metricsRegistry := metric.NewMetricsRegistry()
	deps := component.Dependencies{
		NATSConn:        nc,
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
	}

	opts := []virtualsensor.Option{
		virtualsensor.WithStateLocation(cfg.Store.Backend, stateLocation(cfg)),
	}
	if nc != nil {
		opts = append(opts, virtualsensor.WithEventHandler(
			virtualsensor.NewNATSPublisher(nc, cfg.Sensor.SubjectPrefix, logger)))
	}

	sensor, err := virtualsensor.NewSensor(cfg.Sensor, deps, opts...)
	if err != nil {
		return fmt.Errorf("create sensor: %w", err)
	}

	var metricsServer *metric.Server
	if cfg.Metrics.Port > 0 {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		metricsServer.SetHealthHandler(health.NewMonitor().Handler(appName, healthProbe(sensor, nc)))
		go func() {
			if err := metricsServer.Start(); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		slog.Info("Metrics server started", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
	}

	err = runWithSignalHandling(ctx, sensor, store, cliCfg.ShutdownTimeout)

	if metricsServer != nil {
		if stopErr := metricsServer.Stop(); stopErr != nil {
			slog.Warn("Failed to stop metrics server", "error", stopErr)
		}
	}
	return err
}

// initializeCLI parses flags and sets up logging
func initializeCLI(args []string, logOut io.Writer) (*CLIConfig, *slog.Logger, bool, error) {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cliCfg, err := parseFlags(fs, args)
	if err != nil {
		return nil, nil, false, fmt.Errorf("parse flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp(fs)
		return nil, nil, true, nil
	}

	logger := setupLogger(logOut, cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting virtual sensor",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// initializeConfiguration loads and validates configuration
func initializeConfiguration(cliCfg *CLIConfig) (*Config, error) {
	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Environment variable override takes precedence
	if envURL := os.Getenv("VIRTUALSENSOR_NATS_URL"); envURL != "" {
		cfg.NATS.URL = envURL
	}
	if envURL := os.Getenv("VIRTUALSENSOR_REDIS_URL"); envURL != "" {
		cfg.Store.RedisURL = envURL
	}
	if cliCfg.MetricsPort >= 0 {
		cfg.Metrics.Port = cliCfg.MetricsPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// connectToNATS connects when a URL is configured and returns nil otherwise.
func connectToNATS(ctx context.Context, cfg *Config, retryCfg retry.Config, logger *slog.Logger) (*nats.Conn, error) {
	if cfg.NATS.URL == "" {
		return nil, nil
	}

	name := cfg.NATS.Name
	if name == "" {
		name = appName + "-" + cfg.Sensor.ID
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	nc, err := retry.DoWithResult(ctx, retryCfg, func(context.Context) (*nats.Conn, error) {
		return nats.Connect(cfg.NATS.URL,
			nats.Name(name),
			nats.Timeout(10*time.Second),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("NATS disconnected", "error", err)
				}
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				logger.Info("NATS reconnected", "url", c.ConnectedUrl())
			}),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// healthProbe refreshes the monitor from the sensor and, when present,
// the NATS connection.
func healthProbe(sensor *virtualsensor.Sensor, nc *nats.Conn) func(*health.Monitor) {
	return func(m *health.Monitor) {
		m.Update("sensor", health.FromComponentHealth(sensor.ID(), sensor.Health()))
		if nc == nil {
			return
		}
		if nc.IsConnected() {
			m.Update("nats", health.NewHealthy("nats", "Connected"))
		} else {
			m.Update("nats", health.NewDegraded("nats", "Reconnecting"))
		}
	}
}

func stateLocation(cfg *Config) string {
	switch cfg.Store.Backend {
	case BackendFile:
		return cfg.Store.Directory
	case BackendNATS:
		if cfg.Store.Bucket == "" {
			return statestore.DefaultKVBucket
		}
		return cfg.Store.Bucket
	case BackendRedis:
		return cfg.Store.RedisPrefix
	default:
		return ""
	}
}

// runWithSignalHandling restores and starts the sensor, then waits for a
// shutdown signal.
func runWithSignalHandling(
	ctx context.Context,
	sensor *virtualsensor.Sensor,
	store statestore.Store,
	shutdownTimeout time.Duration,
) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := startSensor(signalCtx, sensor, store); err != nil {
		return err
	}
	slog.Info("Virtual sensor ready",
		"sensor", sensor.ID(),
		"outputs", len(sensor.OutputNames()),
		"templates", len(sensor.TemplateIDs()))

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := shutdown(shutdownCtx, sensor, store, shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Virtual sensor shutdown complete")
	return nil
}

func startSensor(ctx context.Context, sensor *virtualsensor.Sensor, store statestore.Store) error {
	if err := sensor.Initialize(); err != nil {
		return fmt.Errorf("initialize sensor: %w", err)
	}
	if err := sensor.LoadState(ctx, store); err != nil {
		return fmt.Errorf("load sensor state: %w", err)
	}
	if err := sensor.Start(ctx); err != nil {
		return fmt.Errorf("start sensor: %w", err)
	}
	return nil
}

// shutdown stops the sensor and saves its description. The save runs
// even when the stop timed out.
func shutdown(ctx context.Context, sensor *virtualsensor.Sensor, store statestore.Store, timeout time.Duration) error {
	// Calculate timeout from context
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < timeout {
			timeout = remaining
		}
	}

	stopErr := sensor.Stop(timeout)
	if stopErr != nil {
		slog.Warn("Sensor did not stop in time", "error", stopErr)
	}

	if err := sensor.SaveState(ctx, store); err != nil {
		return fmt.Errorf("save sensor state: %w", err)
	}
	return stopErr
}
