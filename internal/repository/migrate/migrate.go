// Package migrate applies the embedded schema migrations of each store backend with goose.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// goose keeps its base filesystem and dialect in package state.
var mu sync.Mutex

// Source is a backend's migration set.
type Source struct {
	// FS holds the *.sql files at its root.
	FS fs.FS

	// Dialect is the goose dialect name ("sqlite3", "postgres", "mysql").
	Dialect string
}

// Up applies all pending migrations.
func Up(ctx context.Context, db *sql.DB, src Source, logger zerolog.Logger) error {
	return run(ctx, db, src, logger, func() error {
		return goose.UpContext(ctx, db, ".")
	})
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *sql.DB, src Source, logger zerolog.Logger) error {
	return run(ctx, db, src, logger, func() error {
		return goose.DownContext(ctx, db, ".")
	})
}

// Status logs the applied state of each migration.
func Status(ctx context.Context, db *sql.DB, src Source, logger zerolog.Logger) error {
	return run(ctx, db, src, logger, func() error {
		return goose.StatusContext(ctx, db, ".")
	})
}

// Version returns the current schema version.
func Version(ctx context.Context, db *sql.DB, src Source, logger zerolog.Logger) (int64, error) {
	var version int64
	err := run(ctx, db, src, logger, func() error {
		var err error
		version, err = goose.GetDBVersionContext(ctx, db)
		return err
	})
	return version, err
}

func run(ctx context.Context, db *sql.DB, src Source, logger zerolog.Logger, fn func() error) error {
	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(src.FS)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect(src.Dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := fn(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through zerolog.
type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error().Msgf(format, v...)
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info().Msgf(format, v...)
}
