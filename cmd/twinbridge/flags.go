package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

func newFlagSet() *flag.FlagSet {
	return flag.NewFlagSet("twinbridge", flag.ContinueOnError)
}

// CLIConfig holds command-line configuration for the twinbridge daemon,
// grounded on the teacher's cmd/semstreams/flags.go CLIConfig/parseFlags
// split (env-var fallback per flag, -h/-v shortcuts).
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags(args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := newFlagSet()

	fs.StringVar(&cfg.ConfigPath, "config", getEnv("TWINBRIDGE_CONFIG", "configs/twinbridge.yaml"),
		"Path to configuration file (env: TWINBRIDGE_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c", getEnv("TWINBRIDGE_CONFIG", "configs/twinbridge.yaml"),
		"Path to configuration file (env: TWINBRIDGE_CONFIG)")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("TWINBRIDGE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: TWINBRIDGE_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("TWINBRIDGE_LOG_FORMAT", "json"),
		"Log format: json, text (env: TWINBRIDGE_LOG_FORMAT)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", getEnvDuration("TWINBRIDGE_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: TWINBRIDGE_SHUTDOWN_TIMEOUT)")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
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
	if !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func printHelp() {
	fmt.Fprintln(os.Stderr, "twinbridge - digital twin connectivity daemon")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage: twinbridge [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Flags:")
	newFlagSet().PrintDefaults()
}
