package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	MetricsPort     int
	ConnectAttempts int
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	defaultConfig := getEnv("VIRTUALSENSOR_CONFIG", "configs/virtualsensor.json")

	for _, name := range []string{"config", "c"} {
		fs.StringVar(&cfg.ConfigPath, name, defaultConfig,
			"Path to configuration file, .json or .yaml (env: VIRTUALSENSOR_CONFIG)")
	}

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("VIRTUALSENSOR_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: VIRTUALSENSOR_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("VIRTUALSENSOR_LOG_FORMAT", "json"),
		"Log format: json, text (env: VIRTUALSENSOR_LOG_FORMAT)")

	fs.BoolVar(&cfg.Debug, "debug",
		getEnvBool("VIRTUALSENSOR_DEBUG", false),
		"Enable debug mode (env: VIRTUALSENSOR_DEBUG)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("VIRTUALSENSOR_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: VIRTUALSENSOR_SHUTDOWN_TIMEOUT)")

	fs.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("VIRTUALSENSOR_METRICS_PORT", -1),
		"Metrics port, overrides the config file, 0 to disable (env: VIRTUALSENSOR_METRICS_PORT)")

	fs.IntVar(&cfg.ConnectAttempts, "connect-attempts",
		getEnvInt("VIRTUALSENSOR_CONNECT_ATTEMPTS", 10),
		"Attempts to reach NATS and the state store at startup (env: VIRTUALSENSOR_CONNECT_ATTEMPTS)")

	for _, name := range []string{"version", "v"} {
		fs.BoolVar(&cfg.ShowVersion, name, false, "Show version information")
	}
	for _, name := range []string{"help", "h"} {
		fs.BoolVar(&cfg.ShowHelp, name, false, "Show help information")
	}
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")
	fs.Usage = func() { printDetailedHelp(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.ConnectAttempts < 1 {
		return fmt.Errorf("connect attempts must be at least 1: %d", cfg.ConnectAttempts)
	}

	if cfg.MetricsPort < -1 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Virtual sensor daemon

Usage: %s [options]

Options:
`, appName, os.Args[0])
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with custom config
  %s --config=/etc/virtualsensor/sensor.yaml

  # Run with debug logging
  %s --log-level=debug --log-format=text

  # Validate configuration only
  %s --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// envOr returns the parsed value of environment variable key, or def when
// it is unset or does not parse.
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getEnv(key, def string) string {
	return envOr(key, def, func(s string) (string, error) { return s, nil })
}

func getEnvBool(key string, def bool) bool { return envOr(key, def, strconv.ParseBool) }

func getEnvInt(key string, def int) int { return envOr(key, def, strconv.Atoi) }

func getEnvDuration(key string, def time.Duration) time.Duration {
	return envOr(key, def, time.ParseDuration)
}
