package pg

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/itchan-dev/legorachat/shared/config"
	"github.com/itchan-dev/legorachat/shared/logger"
	sharedpg "github.com/itchan-dev/legorachat/shared/storage/pg"

	_ "github.com/lib/pq"
)

// queries run to completion even if the caller went away
const queryTimeout = 5 * time.Second

//go:embed migrations/init.sql
var schema string

type Querier = sharedpg.Querier

type Storage struct {
	db *sql.DB
}

func New(ctx context.Context, cfg *config.Config) (*Storage, error) {
	logger.Log.Info("connecting to database", "host", cfg.Private.Pg.Host, "dbname", cfg.Private.Pg.Dbname)
	db, err := sharedpg.Connect(ctx, cfg, sharedpg.DefaultConnectionConfig())
	if err != nil {
		return nil, err
	}
	logger.Log.Info("successfully connected to database")
	return &Storage{db: db}, nil
}

// NewFromDB wraps an already opened pool.
func NewFromDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Cleanup() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Storage) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping is used by the readiness probe.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return sharedpg.WithTx(ctx, s.db, nil, fn)
}

func newQueryContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), queryTimeout)
}
