// Package database provides the PostgreSQL connection and transaction helpers.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"
)

// Config holds database connection configuration
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// DefaultConfig returns reasonable defaults for the connection pool.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    30 * time.Second,
	}
}

// DB wraps the pooled connection with logging observers.
type DB struct {
	conn   *sqlx.DB
	config Config
	log    zerolog.Logger
}

// New opens a PostgreSQL connection pool and verifies connectivity.
func New(cfg Config, log zerolog.Logger) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	conn, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		conn:   conn,
		config: cfg,
		log:    log.With().Str("component", "database").Logger(),
	}

	db.log.Info().
		Int("max_open", cfg.MaxOpenConns).
		Int("max_idle", cfg.MaxIdleConns).
		Msg("Database connected")

	return db, nil
}

// Conn returns the underlying sqlx connection for repositories.
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}

// QueryTimeout returns the per-query timeout repositories should apply.
func (db *DB) QueryTimeout() time.Duration {
	return db.config.QueryTimeout
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies connectivity with a bounded deadline.
func (db *DB) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, db.config.QueryTimeout)
	defer cancel()
	return db.conn.PingContext(pingCtx)
}

// PoolStats reports connection pool statistics for the health endpoint.
func (db *DB) PoolStats() map[string]int64 {
	stats := db.conn.Stats()
	return map[string]int64{
		"max_open":         int64(stats.MaxOpenConnections),
		"open":             int64(stats.OpenConnections),
		"in_use":           int64(stats.InUse),
		"idle":             int64(stats.Idle),
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	}
}

// WithTransaction executes fn within a transaction. It handles begin, commit,
// rollback and panic recovery; a panic inside fn is converted to an error.
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			rollbackErr := tx.Rollback()
			if rollbackErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rollbackErr)
			} else {
				err = fmt.Errorf("transaction failed: %w", err)
			}
		} else {
			if commitErr := tx.Commit(); commitErr != nil {
				err = fmt.Errorf("failed to commit transaction: %w", commitErr)
			}
		}
	}()

	err = fn(tx)
	return err
}
