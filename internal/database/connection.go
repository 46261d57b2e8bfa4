package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/islandtrails/excursion-backend/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")

	// ErrStatusConflict is returned when a conditional status update matched no row
	ErrStatusConflict = errors.New("booking status changed concurrently")
)

// approvalLockKey is the pg_advisory_xact_lock key serializing booking approvals.
// The single-resource rule spans every destination, so one key covers them all.
const approvalLockKey int64 = 0x45584355 // "EXCU"

// PostgresDB wraps the sqlx pool together with the retry policy used at the storage boundary
type PostgresDB struct {
	*sqlx.DB
	retrier *Retrier
}

// NewConnection creates a new database connection
func NewConnection(cfg config.DatabaseConfig, logger *logrus.Logger) (*PostgresDB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	// Add connection pooler compatibility parameters if not present
	connectionURL := cfg.URL
	if !strings.Contains(connectionURL, "prefer_simple_protocol") && strings.Contains(connectionURL, "pooler") {
		separator := "?"
		if strings.Contains(connectionURL, "?") {
			separator = "&"
		}
		connectionURL = connectionURL + separator + "prefer_simple_protocol=true"
	}

	db, err := sqlx.Connect("postgres", connectionURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxLifetime / 2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresDB(db, NewRetrier(cfg, logger)), nil
}

// NewPostgresDB wraps an existing pool (tests use this with sqlmock)
func NewPostgresDB(db *sqlx.DB, retrier *Retrier) *PostgresDB {
	if retrier == nil {
		retrier = NewRetrier(config.DatabaseConfig{}, nil)
	}
	return &PostgresDB{DB: db, retrier: retrier}
}

// Retrier returns the storage retry policy
func (db *PostgresDB) Retrier() *Retrier {
	return db.retrier
}

// PingContext checks the connection within the retry policy
func (db *PostgresDB) PingContext(ctx context.Context) error {
	return db.retrier.Do(ctx, "ping", func(ctx context.Context) error {
		return db.DB.PingContext(ctx)
	})
}

// InApprovalTx runs fn inside a READ COMMITTED transaction holding the
// system-wide approval advisory lock. The lock is taken before any read, so
// every statement in fn sees the approvals committed by earlier lock holders.
// The whole transaction is retried on transient failures; errors returned by
// fn that are not transient are passed through untouched.
func (db *PostgresDB) InApprovalTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return db.retrier.Do(ctx, "approval transaction", func(ctx context.Context) error {
		tx, err := db.DB.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		// Each statement must take its snapshot after the lock is granted
		if _, err := tx.ExecContext(ctx, `SET TRANSACTION ISOLATION LEVEL READ COMMITTED`); err != nil {
			return fmt.Errorf("failed to set isolation level: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, approvalLockKey); err != nil {
			return fmt.Errorf("failed to acquire approval lock: %w", err)
		}

		if err := fn(ctx, tx); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}
