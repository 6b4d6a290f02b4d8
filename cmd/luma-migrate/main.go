// Package main is the entry point for the Luma database migration tool.
// It applies the embedded schema for the configured driver (sqlite, postgres or mysql).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/luma-identity/internal/config"
	"github.com/prn-tf/luma-identity/internal/repository/store"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Luma Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		return

	case "up", "down", "status":

	case "help", "-h", "--help":
		printUsage()
		return

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	if err := run(command, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("driver", cfg.Database.Driver).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := store.OpenMigrator(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(ctx); err != nil {
			return err
		}
	case "down":
		if err := m.Down(ctx); err != nil {
			return err
		}
	case "status":
		return m.Status(ctx)
	}

	version, err := m.Version(ctx)
	if err != nil {
		return err
	}
	logger.Info().Int64("version", version).Msg("schema version")
	return nil
}

func printUsage() {
	fmt.Println(`Luma Migration Tool

Usage:
  luma-migrate <command> [--config path]

Commands:
  up          Run all pending migrations
  down        Rollback the last migration
  status      Show current migration status
  version     Print version information
  help        Show this help message

Environment Variables:
  LUMA_DATABASE_DRIVER    sqlite, postgres or mysql
  LUMA_DATABASE_PATH      SQLite database file
  LUMA_DATABASE_HOST      Database host for postgres and mysql

Examples:
  luma-migrate up
  luma-migrate down --config ./configs/config.yaml
  luma-migrate status`)
}
