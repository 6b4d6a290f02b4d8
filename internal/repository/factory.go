package repository

import (
	"context"
)

// Repositories holds all repository instances.
type Repositories struct {
	User UserRepository
}

// DatabaseHealth is an interface for database health checks.
// This interface satisfies handler.HealthChecker for health endpoints.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// Store bundles the repositories with the connection that backs them.
type Store struct {
	Repos    *Repositories
	Database DatabaseHealth
	Driver   string
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.Database.Close()
}
