// Package main is the entrypoint for the newsletter API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/newsletter/newsletter/internal/config"
	"github.com/newsletter/newsletter/internal/metrics"
	"github.com/newsletter/newsletter/internal/middleware"
	"github.com/newsletter/newsletter/internal/migrate"
	"github.com/newsletter/newsletter/internal/repository"
	"github.com/newsletter/newsletter/internal/server"
	"github.com/newsletter/newsletter/internal/telemetry"
)

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize tracing
	provider, err := telemetry.NewProvider(ctx, telemetry.ProviderConfig{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	tracer := telemetry.NewTracer(provider.TracerProvider, logger)

	// Apply migrations
	if cfg.MigrateOnStart {
		if err := migrate.Run(cfg.DatabaseURL, migrate.Up, logger); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Error(
				"failed to apply migrations",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		logger.Info("database schema up to date")
	}

	// Initialize database
	repo, err := repository.New(ctx, repository.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConnections,
		MinConns:        cfg.DBMinConnections,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		ConnectTimeout:  cfg.DBConnectTimeout,
	}, tracer)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database", "max_connections", cfg.DBMaxConnections)

	// Initialize metrics
	metricsRecorder := metrics.NewPrometheus()
	if err := metricsRecorder.RegisterPoolStats(repo); err != nil {
		logger.Error("failed to register pool metrics", "error", err)
		os.Exit(1)
	}

	// Setup router
	r := server.NewRouter(server.Dependencies{
		Logger:                logger,
		Tracer:                tracer,
		Store:                 repo,
		Health:                repo,
		Metrics:               metricsRecorder,
		MetricsHandler:        metricsRecorder.Handler(),
		TrustInboundRequestID: cfg.TrustInboundRequestID,
		Security: middleware.SecurityConfig{
			IsDevelopment:      cfg.IsDevelopment(),
			MaxRequestBodySize: cfg.MaxRequestBodySize,
		},
		CORSAllowedOrigins: cfg.GetCORSAllowedOrigins(),
	})

	// Create and run server
	srv := server.New(r, server.Options{
		Addr:            cfg.Addr(),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first, stopped last: spans emitted while the pool drains still export.
	srv.OnShutdown("tracer provider", provider.Shutdown)
	srv.OnShutdown("database pool", func(context.Context) error {
		repo.Close()
		return nil
	})

	logger.Info("starting server",
		"addr", cfg.Addr(),
		"env", cfg.AppEnv,
		"otlp_export", cfg.OTLPEndpoint != "",
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
