package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Trace exporters.
const (
	TraceExporterNone   = "none"
	TraceExporterStdout = "stdout"
)

// Config holds all application configuration.
type Config struct {
	// Database
	DatabaseDriver string // "sqlite" or "postgres" (default: sqlite)
	DatabasePath   string
	DatabaseURL    string

	// HTTP
	HTTPAddr  string
	BaseURL   string // Public URL, used to build image URLs for Instagram
	UploadDir string

	// Logging
	LogLevel string

	// Scheduler settings
	SchedulerInterval time.Duration

	// Platform calls
	PublishTimeout         time.Duration
	ImageTimeout           time.Duration
	ReadTimeout            time.Duration
	InstagramContainerWait time.Duration
	GraphAPIURL            string
	LinkedInAPIURL         string

	// Metrics and tracing
	MetricsEnabled bool
	TraceExporter  string // "none" or "stdout" (default: none)
}

// Load reads configuration from environment variables.
// It automatically loads .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite)),
		DatabasePath:   getEnv("DATABASE_PATH", "data/crosspost.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8090"),
		BaseURL:        strings.TrimRight(getEnv("BASE_URL", "http://localhost:8090"), "/"),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		GraphAPIURL:    getEnv("GRAPH_API_URL", ""),
		LinkedInAPIURL: getEnv("LINKEDIN_API_URL", ""),
		TraceExporter:  strings.ToLower(getEnv("TRACE_EXPORTER", TraceExporterNone)),
	}

	// Parse durations
	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"SCHEDULER_INTERVAL", "1m", &cfg.SchedulerInterval},
		{"PUBLISH_TIMEOUT", "30s", &cfg.PublishTimeout},
		{"IMAGE_TIMEOUT", "60s", &cfg.ImageTimeout},
		{"READ_TIMEOUT", "15s", &cfg.ReadTimeout},
		{"INSTAGRAM_CONTAINER_WAIT", "3s", &cfg.InstagramContainerWait},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	metrics, err := strconv.ParseBool(getEnv("METRICS_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid METRICS_ENABLED: %w", err)
	}
	cfg.MetricsEnabled = metrics

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite, "":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be 'sqlite' or 'postgres')", c.DatabaseDriver)
	}

	switch c.TraceExporter {
	case TraceExporterNone, TraceExporterStdout, "":
	default:
		return fmt.Errorf("invalid TRACE_EXPORTER: %s (must be 'none' or 'stdout')", c.TraceExporter)
	}
	return nil
}

// ValidateForPublishing checks configuration needed to publish posts.
func (c *Config) ValidateForPublishing() error {
	if err := c.Validate(); err != nil {
		return err
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BASE_URL must be an absolute URL, got %q", c.BaseURL)
	}
	if c.PublishTimeout <= 0 || c.ImageTimeout <= 0 || c.ReadTimeout <= 0 {
		return fmt.Errorf("platform timeouts must be positive")
	}
	if c.InstagramContainerWait < 0 {
		return fmt.Errorf("INSTAGRAM_CONTAINER_WAIT must not be negative")
	}
	return nil
}

// ValidateForServe checks all configuration needed for serve mode.
func (c *Config) ValidateForServe() error {
	if err := c.ValidateForPublishing(); err != nil {
		return err
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
