// Package store opens the configured user store backend.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/prn-tf/luma-identity/internal/config"
	"github.com/prn-tf/luma-identity/internal/repository"
	"github.com/prn-tf/luma-identity/internal/repository/migrate"
	"github.com/prn-tf/luma-identity/internal/repository/mysql"
	"github.com/prn-tf/luma-identity/internal/repository/postgres"
	"github.com/prn-tf/luma-identity/internal/repository/sqlite"
)

// Open connects to the configured database, applies migrations when
// enabled and returns the repositories backed by it.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.Store, error) {
	logger = logger.With().Str("component", "store").Str("driver", cfg.Driver).Logger()

	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqliteConfig(cfg), logger)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &repository.Store{
			Repos:    &repository.Repositories{User: sqlite.NewUserRepository(db)},
			Database: db,
			Driver:   cfg.Driver,
		}, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &repository.Store{
			Repos:    &repository.Repositories{User: postgres.NewUserRepository(db)},
			Database: db,
			Driver:   cfg.Driver,
		}, nil

	case "mysql":
		db, err := mysql.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &repository.Store{
			Repos:    &repository.Repositories{User: mysql.NewUserRepository(db)},
			Database: db,
			Driver:   cfg.Driver,
		}, nil
	}

	return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
}

func sqliteConfig(cfg config.DatabaseConfig) sqlite.Config {
	sc := sqlite.DefaultConfig(cfg.Path)
	if cfg.JournalMode != "" {
		sc.JournalMode = cfg.JournalMode
	}
	if cfg.BusyTimeout > 0 {
		sc.BusyTimeout = cfg.BusyTimeout
	}
	if cfg.CacheSize != 0 {
		sc.CacheSize = cfg.CacheSize
	}
	if cfg.SynchronousMode != "" {
		sc.SynchronousMode = cfg.SynchronousMode
	}
	return sc
}

// Migrator runs schema migrations against the configured database.
type Migrator struct {
	db     *sql.DB
	src    migrate.Source
	logger zerolog.Logger
	close  func() error
}

// OpenMigrator connects to the configured database for migration commands.
func OpenMigrator(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Migrator, error) {
	m := &Migrator{logger: logger}

	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqliteConfig(cfg), logger)
		if err != nil {
			return nil, err
		}
		m.db, m.src, m.close = db.DB(), sqlite.Migrations(), db.Close
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		sqlDB := stdlib.OpenDBFromPool(db.Pool)
		m.db, m.src = sqlDB, postgres.Migrations()
		m.close = func() error {
			sqlDB.Close()
			return db.Close()
		}
	case "mysql":
		db, err := mysql.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		m.db, m.src, m.close = db.DB(), mysql.Migrations(), db.Close
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
	return m, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	return migrate.Up(ctx, m.db, m.src, m.logger)
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	return migrate.Down(ctx, m.db, m.src, m.logger)
}

// Status logs the state of every migration.
func (m *Migrator) Status(ctx context.Context) error {
	return migrate.Status(ctx, m.db, m.src, m.logger)
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return migrate.Version(ctx, m.db, m.src, m.logger)
}

// Close releases the connection.
func (m *Migrator) Close() error {
	return m.close()
}
