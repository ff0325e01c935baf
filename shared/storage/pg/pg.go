// Package pg provides PostgreSQL primitives shared by the storage layers.
//
//   - Querier: transaction-agnostic database operations
//   - WithTx: transaction boilerplate
//   - Connect: pooled connection from config
//   - MapError: constraint violations to typed errors
package pg

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/itchan-dev/legorachat/shared/config"
	"github.com/itchan-dev/legorachat/shared/errors"
	"github.com/lib/pq"
)

// Postgres error codes used by MapError.
const (
	UniqueViolation     = "23505"
	ForeignKeyViolation = "23503"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so the same query code
// runs on the pool or inside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ConnectionConfig holds database connection pool settings.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// DSN builds a lib/pq connection string from config.
func DSN(pg config.Pg) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		pg.Host, pg.Port, pg.User, pg.Password, pg.Dbname)
}

// Connect opens the pool, applies connCfg and verifies connectivity.
func Connect(ctx context.Context, cfg *config.Config, connCfg ConnectionConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", DSN(cfg.Private.Pg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(connCfg.MaxOpenConns)
	db.SetMaxIdleConns(connCfg.MaxIdleConns)
	db.SetConnMaxLifetime(connCfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(connCfg.ConnMaxIdleTime)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// WithTx runs fn inside a transaction. An error from fn rolls back,
// otherwise the transaction is committed.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if transaction is already committed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ErrorCode returns the postgres error code carried by err, or "".
func ErrorCode(err error) string {
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// MapError turns unique violations into Conflict and foreign key violations
// into NotFound. Other errors are returned as is.
func MapError(err error, conflictMsg, notFoundMsg string) error {
	switch ErrorCode(err) {
	case UniqueViolation:
		return errors.Conflict(conflictMsg)
	case ForeignKeyViolation:
		return errors.NotFound(notFoundMsg)
	}
	return err
}
