package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prn-tf/luma-identity/internal/domain"
	"github.com/prn-tf/luma-identity/internal/repository"
	"github.com/prn-tf/luma-identity/internal/repository/sqlbuild"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const userColumns = `
	u.uid, u.gid, u.username, u.email, u.password,
	g.staff_user, g.staff_root,
	u.can_msg, u.can_submit, u.can_comment,
	u.title, u.bio, u.website, u.avatar, u.show_email,
	u.registered_ip, u.join_date, u.last_visit, u.last_active, u.last_ip`

const userFrom = ` FROM users u JOIN user_groups g ON g.gid = u.gid`

// userRepository implements repository.UserRepository.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (gid, username, email, password, can_msg, can_submit, can_comment,
			title, bio, website, avatar, show_email, registered_ip, join_date, last_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING uid
	`

	err := r.db.Pool.QueryRow(ctx, query,
		user.GID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CanMsg,
		user.CanSubmit,
		user.CanComment,
		user.Title,
		user.Bio,
		user.Website,
		user.Avatar,
		user.ShowEmail,
		user.RegisteredIP,
		user.JoinDate,
		user.LastIP,
	).Scan(&user.UID)
	if err != nil {
		return translateError("failed to create user", err)
	}
	return nil
}

// GetByID retrieves a user by uid.
func (r *userRepository) GetByID(ctx context.Context, uid int64) (*domain.User, error) {
	user, err := scanUser(r.db.Pool.QueryRow(ctx, `SELECT`+userColumns+userFrom+` WHERE u.uid = $1`, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by exact username.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := scanUser(r.db.Pool.QueryRow(ctx, `SELECT`+userColumns+userFrom+` WHERE u.username = $1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// GetProfile retrieves a user with comment and submission counts.
func (r *userRepository) GetProfile(ctx context.Context, uid int64) (*domain.UserProfile, error) {
	query := `SELECT` + userColumns + `,
		(SELECT COUNT(*) FROM comments c WHERE c.uid = u.uid),
		(SELECT COUNT(*) FROM resources s WHERE s.uid = u.uid AND s.queue_code = 0)` +
		userFrom + ` WHERE u.uid = $1`

	profile := &domain.UserProfile{}
	user, err := scanUser(r.db.Pool.QueryRow(ctx, query, uid), &profile.Comments, &profile.Submissions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	profile.User = user
	return profile, nil
}

// UpdateFields applies the assignments in a single UPDATE.
func (r *userRepository) UpdateFields(ctx context.Context, uid int64, fields []domain.FieldValue) (int64, error) {
	b := sqlbuild.New(sqlbuild.Dollar, nil)
	set, err := b.Assignments(fields)
	if err != nil {
		return 0, err
	}
	query := `UPDATE users SET ` + set + ` WHERE uid = ` + b.Arg(uid)

	tag, err := r.db.Pool.Exec(ctx, query, b.Args()...)
	if err != nil {
		return 0, translateError("failed to update user", err)
	}
	return tag.RowsAffected(), nil
}

// TouchLogin records a successful login.
func (r *userRepository) TouchLogin(ctx context.Context, uid int64, ip string, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET last_visit = $1, last_active = $1, last_ip = $2 WHERE uid = $3`,
		at.UTC(), ip, uid,
	)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// Delete deletes a user by uid.
func (r *userRepository) Delete(ctx context.Context, uid int64) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE uid = $1`, uid)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List returns users with filtering, sorting and pagination.
func (r *userRepository) List(ctx context.Context, opts repository.UserListOptions) (*repository.ListResult[domain.User], error) {
	b := sqlbuild.New(sqlbuild.Dollar, nil)
	where, err := b.Where("u", opts.Filters)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*)`+userFrom+where, b.Args()...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT` + userColumns + userFrom + where +
		sqlbuild.OrderBy("u", opts.ListOptions) +
		` LIMIT ` + b.Arg(opts.Limit) + ` OFFSET ` + b.Arg(opts.Offset)

	rows, err := r.db.Pool.Query(ctx, query, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0, opts.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return &repository.ListResult[domain.User]{
		Items:  users,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// ExistsByUsername checks if a user with the given username exists.
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}
	return exists, nil
}

// ExistsByEmail checks if a user with the given email exists.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

func scanUser(row pgx.Row, extra ...any) (*domain.User, error) {
	user := &domain.User{}
	dest := []any{
		&user.UID,
		&user.GID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.StaffUser,
		&user.StaffRoot,
		&user.CanMsg,
		&user.CanSubmit,
		&user.CanComment,
		&user.Title,
		&user.Bio,
		&user.Website,
		&user.Avatar,
		&user.ShowEmail,
		&user.RegisteredIP,
		&user.JoinDate,
		&user.LastVisit,
		&user.LastActive,
		&user.LastIP,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return user, nil
}

// translateError maps constraint violations to repository errors.
func translateError(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return repository.NewConflictError(constraintField(pgErr.ConstraintName))
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %v", repository.ErrInvalidReference, domain.ErrGroupNotFound)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func constraintField(constraint string) string {
	switch constraint {
	case "users_username_key":
		return domain.FieldUsername
	case "users_email_key":
		return domain.FieldEmail
	}
	return ""
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
