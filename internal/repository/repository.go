// Package repository provides database access layer.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newsletter/newsletter/internal/telemetry"
)

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	DatabaseURL string
	// MaxConns caps concurrently open connections; callers block beyond it.
	MaxConns int32
	MinConns int32
	// MaxConnLifetime is the age after which a connection is recycled.
	MaxConnLifetime time.Duration
	// ConnectTimeout bounds each dial, including the startup ping.
	ConnectTimeout time.Duration
}

// Repository provides database access methods.
type Repository struct {
	pool   *pgxpool.Pool
	tracer *telemetry.Tracer
	now    func() time.Time
}

// New creates a new Repository with a connection pool.
// It fails if the database cannot be reached, which callers treat as fatal.
func New(ctx context.Context, cfg PoolConfig, tracer *telemetry.Tracer) (*Repository, error) {
	config, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	if cfg.MaxConns > 0 {
		config.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		config.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		config.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.ConnectTimeout > 0 {
		config.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newWithPool(pool, tracer), nil
}

func newWithPool(pool *pgxpool.Pool, tracer *telemetry.Tracer) *Repository {
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Repository{
		pool:   pool,
		tracer: tracer,
		now:    time.Now,
	}
}

// WithConn acquires one pooled connection, runs fn on it and releases it,
// whatever fn returns. It blocks while every connection is busy.
func (r *Repository) WithConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	return r.pool.AcquireFunc(ctx, fn)
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// PoolStats is a point-in-time view of pool usage.
type PoolStats struct {
	MaxConns      int32
	TotalConns    int32
	AcquiredConns int32
	IdleConns     int32
}

// Stats returns current pool usage.
func (r *Repository) Stats() PoolStats {
	s := r.pool.Stat()
	return PoolStats{
		MaxConns:      s.MaxConns(),
		TotalConns:    s.TotalConns(),
		AcquiredConns: s.AcquiredConns(),
		IdleConns:     s.IdleConns(),
	}
}

// logger returns the span-scoped logger for ctx.
func (r *Repository) logger(ctx context.Context) *slog.Logger {
	return r.tracer.Logger(ctx)
}
