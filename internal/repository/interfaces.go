// Package repository defines data access interfaces for the Luma identity service.
// These interfaces abstract database operations, allowing for different implementations
// (SQLite, PostgreSQL, MySQL) while keeping the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/prn-tf/luma-identity/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
// Every value reaches the store as a bound parameter; column names are
// taken only from the domain field catalog.
type UserRepository interface {
	// Create inserts a new user and sets user.UID.
	// Returns a *ConflictError when username or email is taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by uid, joined with its group flags.
	GetByID(ctx context.Context, uid int64) (*domain.User, error)

	// GetByUsername retrieves a user by exact username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetProfile retrieves a user together with comment and submission counts.
	GetProfile(ctx context.Context, uid int64) (*domain.UserProfile, error)

	// UpdateFields applies all assignments in one statement scoped by uid
	// and returns the number of rows affected.
	// Returns a *ConflictError when a unique column collides.
	UpdateFields(ctx context.Context, uid int64, fields []domain.FieldValue) (int64, error)

	// TouchLogin records the time and address of a successful login.
	TouchLogin(ctx context.Context, uid int64, ip string, at time.Time) error

	// Delete hard-deletes a user and returns the number of rows affected.
	Delete(ctx context.Context, uid int64) (int64, error)

	// List returns users matching opts.
	List(ctx context.Context, opts UserListOptions) (*ListResult[domain.User], error)

	// ExistsByUsername checks if a user with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// Common Types
// =============================================================================

// ListOptions contains pagination options for list operations.
type ListOptions struct {
	// Offset is the number of items to skip.
	Offset int

	// Limit is the maximum number of items to return.
	Limit int

	// OrderBy is the column to sort by.
	OrderBy string

	// Descending indicates reverse sort order.
	Descending bool
}

// UserListOptions extends ListOptions with exact-match filters.
type UserListOptions struct {
	ListOptions

	// Filters are ANDed column = value predicates. Columns must be in
	// domain.FilterableFields; values are already normalized.
	Filters []domain.FieldValue
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	// Items contains the result items.
	Items []*T

	// Total is the total count of matching items.
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}
