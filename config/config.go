// Package config loads the connectivity daemon's static startup
// configuration: where to reach the internal NATS bus, where to expose
// Prometheus metrics, and where to find connection configuration
// documents on disk. Per-connection JSON documents (spec.md §6) are a
// separate, dynamic concern handled by package connection; this package
// only covers the process-level settings a supervisor needs before it can
// open any connection at all, grounded on the teacher's config/config.go
// (Config struct, SafeConfig thread-safe wrapper, Validate-before-Update).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/twinbridge/errors"
)

// NATSConfig configures the internal bus connection (spec.md §1 "internal
// bus" external collaborator).
type NATSConfig struct {
	URL           string        `yaml:"url"`
	MaxReconnects int           `yaml:"maxReconnects,omitempty"`
	ReconnectWait time.Duration `yaml:"reconnectWait,omitempty"`
}

// MetricsConfig configures the process's Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listenAddr,omitempty"`
}

// Config is the connectivity daemon's complete static configuration.
type Config struct {
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`

	// ConnectionsDir holds one JSON document per connection (spec.md §6),
	// loaded at startup; persistent connection storage and the HTTP API
	// that edits connections at runtime are out of scope (spec.md §1).
	ConnectionsDir string `yaml:"connectionsDir"`

	// BufferSize is the consumer inbox size (spec.md §5
	// "sourceBufferSize"), applied to every connection; connection
	// documents have no field to override it.
	BufferSize int `yaml:"bufferSize,omitempty"`
}

// Validate checks that Config is complete enough to start the daemon.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return invalid("nats.url required")
	}
	if c.ConnectionsDir == "" {
		return invalid("connectionsDir required")
	}
	return nil
}

// Clone returns a deep copy of c via JSON round-trip, mirroring the
// teacher's SafeConfig.Clone (config/config.go).
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// Load reads and validates a YAML configuration document from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "Load", "read "+path)
	}

	cfg := &Config{
		Metrics:    MetricsConfig{Enabled: true, ListenAddr: ":9090"},
		BufferSize: 64,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapFatal(err, "config", "Load", "parse "+path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SafeConfig provides thread-safe access to a Config, mirroring the
// teacher's config.SafeConfig (config/config.go): Get returns a deep
// copy, Update validates before swapping the live value.
type SafeConfig struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewSafeConfig wraps cfg (defaulting to an empty Config if nil).
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{cfg: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.cfg.Clone()
}

// Update atomically validates and replaces the configuration.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return invalid("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cfg = cfg
	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrConnectionConfigurationInvalid, msg), "config", "Validate", "check structure")
}
