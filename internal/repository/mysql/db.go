// Package mysql provides the MySQL user store.
package mysql

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/prn-tf/luma-identity/internal/config"
	"github.com/prn-tf/luma-identity/internal/repository/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the goose migration set for MySQL.
func Migrations() migrate.Source {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return migrate.Source{FS: sub, Dialect: "mysql"}
}

// DB wraps a sql.DB connection for MySQL.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// DSN builds the driver connection string from the database settings.
// Rows affected counts matched rows so that an UPDATE writing identical
// values still reports the user as present.
func DSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Host + ":" + strconv.Itoa(cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.ClientFoundRows = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// NewDB creates a new MySQL connection pool.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Int("max_conns", cfg.MaxOpenConns).
		Msg("connected to MySQL")

	return Wrap(db, logger), nil
}

// Wrap adopts an already opened connection.
func Wrap(db *sql.DB, logger zerolog.Logger) *DB {
	return &DB{db: db, logger: logger}
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.logger.Info().Msg("closing MySQL connection")
	return db.db.Close()
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// Health checks the database connection health.
func (db *DB) Health(ctx context.Context) error {
	return db.Ping(ctx)
}

// DB returns the underlying sql.DB.
func (db *DB) DB() *sql.DB {
	return db.db
}

// Migrate applies pending schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	if err := migrate.Up(ctx, db.db, Migrations(), db.logger); err != nil {
		return err
	}
	db.logger.Info().Msg("database schema is up to date")
	return nil
}
