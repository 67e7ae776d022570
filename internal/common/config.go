package common

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Backend     BackendConfig   `toml:"backend"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Reconcile   ReconcileConfig `toml:"reconcile"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

// BackendConfig points the client at the remote document backend
type BackendConfig struct {
	BaseURL        string `toml:"base_url" validate:"required,url"`
	APIKey         string `toml:"api_key"`
	Timeout        string `toml:"timeout"`          // e.g. "30s" - HTTP request timeout
	RateLimit      int    `toml:"rate_limit"`       // requests per second
	MaxRetryStatus int    `toml:"max_retry_status"` // reserved; polling never retries silently
}

// PipelineConfig tunes the coordinator and its helpers
type PipelineConfig struct {
	MaxBatchFiles     int    `toml:"max_batch_files" validate:"gte=1"` // upload batch cap
	PollInterval      string `toml:"poll_interval"`                    // e.g. "2s" - job status poll interval
	IndexSettleDelay  string `toml:"index_settle_delay"`               // fallback delay between conversion and indexing
	ReadinessAttempts int    `toml:"readiness_attempts"`               // conversion readiness probes before falling back
	EnableOCR         bool   `toml:"enable_ocr"`
	MaxFileSizeMB     int    `toml:"max_file_size_mb"`
	AutoIndex         bool   `toml:"auto_index"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	RetentionDays  int    `toml:"retention_days"`   // Run journal retention
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

// ReconcileConfig drives the background classification refresh
type ReconcileConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron schedule format
	Debounce string `toml:"debounce"` // minimum gap between on-demand refreshes
}

type WebSocketConfig struct {
	AllowedEvents []string `toml:"allowed_events"` // whitelist of events to broadcast (empty = allow all)
}

// NewDefaultConfig returns the built-in defaults, overridden by config files
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8190,
			Host: "localhost",
		},
		Backend: BackendConfig{
			BaseURL:   "http://localhost:8000",
			Timeout:   "30s",
			RateLimit: 5,
		},
		Pipeline: PipelineConfig{
			MaxBatchFiles:     5,
			PollInterval:      "2s",
			IndexSettleDelay:  "1s",
			ReadinessAttempts: 3,
			EnableOCR:         true,
			MaxFileSizeMB:     25,
			AutoIndex:         false,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:          "./data/vindex",
				RetentionDays: 30,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Reconcile: ReconcileConfig{
			Enabled:  true,
			Schedule: "*/5 * * * *",
			Debounce: "2s",
		},
	}
}

// LoadFromFiles loads configuration from defaults plus zero or more TOML
// files. Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyFlagOverrides applies command-line flag values on top of the
// loaded configuration. Flags have the highest priority.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks struct tags plus the duration fields that toml keeps
// as strings
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for name, value := range map[string]string{
		"backend.timeout":             c.Backend.Timeout,
		"pipeline.poll_interval":      c.Pipeline.PollInterval,
		"pipeline.index_settle_delay": c.Pipeline.IndexSettleDelay,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	return nil
}

// PollInterval returns the parsed poll interval, defaulting to 2s
func (c *Config) PollInterval() time.Duration {
	return parseDurationOr(c.Pipeline.PollInterval, 2*time.Second)
}

// IndexSettleDelay returns the parsed settle delay, defaulting to 1s
func (c *Config) IndexSettleDelay() time.Duration {
	return parseDurationOr(c.Pipeline.IndexSettleDelay, time.Second)
}

// BackendTimeout returns the parsed HTTP timeout, defaulting to 30s
func (c *Config) BackendTimeout() time.Duration {
	return parseDurationOr(c.Backend.Timeout, 30*time.Second)
}

// ReconcileDebounce returns the parsed refresh debounce, defaulting to 2s
func (c *Config) ReconcileDebounce() time.Duration {
	return parseDurationOr(c.Reconcile.Debounce, 2*time.Second)
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
