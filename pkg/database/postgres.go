// Package database manages the PostgreSQL metadata store that persists chat
// sessions and messages.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/retry"
)

const (
	defaultMaxConnections  = 10
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
	defaultApplicationName = "ekaya-sqlchat"
)

// DB is the metadata store connection pool.
type DB struct {
	*pgxpool.Pool
	logger *zap.Logger
}

// Config holds database connection configuration. Zero values take defaults.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// ApplicationName is reported in pg_stat_activity.
	ApplicationName string
	// Retry governs the startup ping. Nil uses retry.DefaultConfig.
	Retry *retry.Config
}

// Open connects to the metadata store, retrying while the server is
// unreachable, and applies pending migrations. If logger is nil, a no-op
// logger is used.
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("metadata-db")

	pool, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	db := &DB{Pool: pool, logger: logger}

	version, err := db.Migrate()
	if err != nil {
		db.Close()
		return nil, err
	}

	stat := pool.Stat()
	logger.Info("Metadata store ready",
		zap.String("url", logging.SanitizeConnectionString(cfg.URL)),
		zap.Uint("schema_version", version),
		zap.Int32("max_connections", stat.MaxConns()))
	return db, nil
}

// connect builds the pool and verifies it with a retried ping.
func connect(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = orDefault(cfg.MaxConnections, defaultMaxConnections)
	poolConfig.MaxConnLifetime = orDefault(cfg.MaxConnLifetime, defaultMaxConnLifetime)
	poolConfig.MaxConnIdleTime = orDefault(cfg.MaxConnIdleTime, defaultMaxConnIdleTime)
	poolConfig.ConnConfig.RuntimeParams["application_name"] = orDefault(cfg.ApplicationName, defaultApplicationName)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := retry.Do(ctx, cfg.Retry, func() error { return pool.Ping(ctx) }); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %s", logging.SanitizeError(err))
	}
	return pool, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
