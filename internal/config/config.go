// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	AppHost     string `env:"APP_HOST" envDefault:"0.0.0.0"`
	AppPort     int    `env:"APP_PORT" envDefault:"8000"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"newsletter"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Connection pool bounds
	DBMaxConnections  int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections  int32         `env:"DB_MIN_CONNECTIONS" envDefault:"0"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	DBConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"2s"`
	MigrateOnStart    bool          `env:"MIGRATE_ON_START" envDefault:"true"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Tracing. An empty endpoint keeps spans in-process (logs only).
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`

	// Reuse a well-formed inbound X-Request-ID instead of always minting one.
	TrustInboundRequestID bool `env:"TRUST_INBOUND_REQUEST_ID" envDefault:"false"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 64KiB, forms are small)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"65536"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.AppHost, strconv.Itoa(c.AppPort))
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	if c.AppPort < 0 || c.AppPort > 65535 {
		return fmt.Errorf("APP_PORT out of range: %d", c.AppPort)
	}
	if c.DBMaxConnections <= 0 {
		return errors.New("DB_MAX_CONNECTIONS must be positive")
	}
	if c.DBMinConnections < 0 {
		return errors.New("DB_MIN_CONNECTIONS must not be negative")
	}
	if c.DBMinConnections > c.DBMaxConnections {
		return fmt.Errorf("DB_MIN_CONNECTIONS (%d) exceeds DB_MAX_CONNECTIONS (%d)", c.DBMinConnections, c.DBMaxConnections)
	}
	if c.DBMaxConnLifetime <= 0 {
		return errors.New("DB_MAX_CONN_LIFETIME must be positive")
	}
	if c.MaxRequestBodySize <= 0 {
		return errors.New("MAX_REQUEST_BODY_SIZE must be positive")
	}
	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing or values are invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
