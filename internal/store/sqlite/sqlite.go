// Package sqlite stores trades in a local SQLite database.
//
// utc_time is kept as Unix nanoseconds so range filters compare integers;
// amounts are kept as decimal strings.
package sqlite

import (
	"context"
	"database/sql"
	"embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gitlab.com/zlyzol/coinledger/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLite struct {
	logger zerolog.Logger
	db     *sql.DB
}

// Open opens the database file, verifies the connection and applies pending
// migrations.
func Open(ctx context.Context, cfg config.SQLiteConfiguration) (*SQLite, error) {
	logger := log.With().Str("module", "sqlite").Logger()

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping sqlite database")
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info().Str("path", cfg.Path).Msg("opened")
	return New(db, logger), nil
}

// New wraps an already migrated database handle.
func New(db *sql.DB, logger zerolog.Logger) *SQLite {
	return &SQLite{db: db, logger: logger}
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, "goose: failed to set dialect")
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return errors.Wrap(err, "goose: migration failed")
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close(ctx context.Context) error {
	return s.db.Close()
}
